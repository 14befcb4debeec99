package config

// ProjectConfig represents the tulip.toml project file
type ProjectConfig struct {
	Plan        string                   `toml:"plan,omitempty"`
	Artifacts   string                   `toml:"artifacts,omitempty"`
	Deployments string                   `toml:"deployments,omitempty"`
	Verify      VerifySection            `toml:"verify"`
	Networks    map[string]NetworkConfig `toml:"networks"`
}

// VerifySection represents the [verify] table. Zero values fall back to
// runtime defaults.
type VerifySection struct {
	Concurrency      int     `toml:"concurrency,omitempty"`
	MaxAttempts      int     `toml:"max_attempts,omitempty"`
	BaseDelay        string  `toml:"base_delay,omitempty"`
	MaxDelay         string  `toml:"max_delay,omitempty"`
	RateLimit        float64 `toml:"rate_limit,omitempty"`
	MinConfirmations *uint64 `toml:"min_confirmations,omitempty"`
}

// NetworkConfig represents a [networks.<name>] section in tulip.toml.
// String values may reference environment variables as ${VAR}.
type NetworkConfig struct {
	RPCURL         string  `toml:"rpc_url"`
	ChainID        uint64  `toml:"chain_id,omitempty"`
	ExplorerURL    string  `toml:"explorer_url,omitempty"`
	ExplorerAPIURL string  `toml:"explorer_api_url,omitempty"`
	ExplorerAPIKey string  `toml:"explorer_api_key,omitempty"`
	GasPrice       string  `toml:"gas_price,omitempty"` // wei, or with a gwei suffix
	Confirmations  *uint64 `toml:"confirmations,omitempty"`
	Dialect        string  `toml:"dialect,omitempty"`
	PrivateKey     string  `toml:"private_key,omitempty"`
	Impersonate    string  `toml:"impersonate,omitempty"`
}

package config

import (
	"math/big"
	"net/url"
	"time"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string

	// Network is nil if no network could be resolved
	Network *Network

	// Execution settings
	Debug          bool
	NonInteractive bool
	JSON           bool
	Timeout        time.Duration

	// Paths, absolute after resolution
	PlanPath       string
	ArtifactsDir   string
	DeploymentsDir string
	MetricsFile    string

	// Confirmations is the default confirmation depth when the network does not set one
	Confirmations uint64

	Verify VerifyConfig

	// Project is the parsed tulip.toml, empty when the file is absent
	Project *ProjectConfig
}

// VerifyConfig bounds the verification retry loop
type VerifyConfig struct {
	Concurrency      int
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	RateLimit        float64
	MinConfirmations uint64
}

// Dialect selects the test-only JSON-RPC namespace of a development node
type Dialect string

const (
	DialectAnvil   Dialect = "anvil"
	DialectHardhat Dialect = "hardhat"
)

// Method returns the namespaced RPC method, anvil_ when unset
func (d Dialect) Method(name string) string {
	if d == "" {
		d = DialectAnvil
	}
	return string(d) + "_" + name
}

// Network represents network configuration
type Network struct {
	Name           string   `json:"name"`
	ChainID        uint64   `json:"chainId"`
	RPCURL         string   `json:"rpcUrl"`
	ExplorerURL    string   `json:"explorerUrl,omitempty"`
	ExplorerAPIURL string   `json:"explorerApiUrl,omitempty"`
	ExplorerAPIKey string   `json:"-"`
	GasPrice       *big.Int `json:"gasPrice,omitempty"`
	// Confirmations is nil when the network leaves the depth to the run default
	Confirmations *uint64 `json:"confirmations,omitempty"`
	Dialect       Dialect `json:"dialect,omitempty"`
	PrivateKey    string  `json:"-"`
	Impersonate   string  `json:"impersonate,omitempty"`
}

var localChainIDs = map[uint64]bool{
	31337: true,
	1337:  true,
}

// IsLocal reports whether the network is a development node
func (n *Network) IsLocal() bool {
	if n == nil {
		return false
	}
	if localChainIDs[n.ChainID] {
		return true
	}
	u, err := url.Parse(n.RPCURL)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "0.0.0.0", "::1":
		return true
	}
	return false
}

// ConfirmationDepth returns the configured depth or fallback
func (n *Network) ConfirmationDepth(fallback uint64) uint64 {
	if n != nil && n.Confirmations != nil {
		return *n.Confirmations
	}
	if n.IsLocal() {
		return 0
	}
	return fallback
}

// HasExplorer reports whether source verification can be submitted
func (n *Network) HasExplorer() bool {
	return n != nil && n.ExplorerAPIURL != ""
}

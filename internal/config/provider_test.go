package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Defaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Provider(SetupViper(root, nil))
	require.NoError(t, err)

	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, ".tulip"), cfg.DataDir)
	assert.Equal(t, filepath.Join(root, DefaultPlan), cfg.PlanPath)
	assert.Equal(t, filepath.Join(root, DefaultArtifacts), cfg.ArtifactsDir)
	assert.Equal(t, filepath.Join(root, DefaultDeployments), cfg.DeploymentsDir)
	assert.Empty(t, cfg.MetricsFile)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, uint64(DefaultConfirmations), cfg.Confirmations)

	assert.Equal(t, DefaultConcurrency, cfg.Verify.Concurrency)
	assert.Equal(t, DefaultMaxAttempts, cfg.Verify.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, cfg.Verify.BaseDelay)
	assert.Equal(t, DefaultMaxDelay, cfg.Verify.MaxDelay)
	assert.Equal(t, DefaultRateLimit, cfg.Verify.RateLimit)
	assert.Equal(t, uint64(DefaultMinConfirmations), cfg.Verify.MinConfirmations)

	require.NotNil(t, cfg.Network)
	assert.Equal(t, LocalNetwork, cfg.Network.Name)
}

func newFlagCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "deploy"}
	cmd.Flags().String("plan", "", "")
	cmd.Flags().String("network", "", "")
	cmd.Flags().String("rpc-url", "", "")
	cmd.Flags().Bool("verify", false, "")
	cmd.Flags().Int("verify-concurrency", 0, "")
	cmd.Flags().Duration("verify-base-delay", 0, "")
	return cmd
}

func TestProvider_Precedence(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ProjectFile, `
plan = "from-toml.yaml"
deployments = "/var/lib/tulip"

[verify]
concurrency = 2
max_attempts = 9
base_delay = "10s"
max_delay = "3s"
`)

	t.Run("tulip.toml over defaults", func(t *testing.T) {
		cfg, err := Provider(SetupViper(root, newFlagCmd()))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "from-toml.yaml"), cfg.PlanPath)
		assert.Equal(t, "/var/lib/tulip", cfg.DeploymentsDir)
		assert.Equal(t, 2, cfg.Verify.Concurrency)
		assert.Equal(t, 9, cfg.Verify.MaxAttempts)
		assert.Equal(t, 10*time.Second, cfg.Verify.BaseDelay)
		// never below the base delay
		assert.Equal(t, 10*time.Second, cfg.Verify.MaxDelay)
	})

	t.Run("environment over tulip.toml", func(t *testing.T) {
		t.Setenv("TULIP_PLAN", "from-env.yaml")
		t.Setenv("TULIP_VERIFY_CONCURRENCY", "6")

		cfg, err := Provider(SetupViper(root, newFlagCmd()))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "from-env.yaml"), cfg.PlanPath)
		assert.Equal(t, 6, cfg.Verify.Concurrency)
	})

	t.Run("flags over environment", func(t *testing.T) {
		t.Setenv("TULIP_PLAN", "from-env.yaml")

		cmd := newFlagCmd()
		require.NoError(t, cmd.Flags().Set("plan", "from-flag.yaml"))
		require.NoError(t, cmd.Flags().Set("verify-concurrency", "8"))
		require.NoError(t, cmd.Flags().Set("verify-base-delay", "1s"))
		require.NoError(t, cmd.Flags().Set("verify", "true"))

		cfg, err := Provider(SetupViper(root, cmd))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "from-flag.yaml"), cfg.PlanPath)
		assert.Equal(t, 8, cfg.Verify.Concurrency)
		assert.Equal(t, time.Second, cfg.Verify.BaseDelay)
		assert.Equal(t, 3*time.Second, cfg.Verify.MaxDelay)
	})
}

func TestProvider_NetworkOverrides(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ProjectFile, `
[networks.sepolia]
rpc_url = "https://rpc.sepolia.example"
`)
	t.Setenv("TULIP_PRIVATE_KEY", "0xabc")

	cmd := newFlagCmd()
	require.NoError(t, cmd.Flags().Set("network", "sepolia"))
	require.NoError(t, cmd.Flags().Set("rpc-url", "https://other.example"))

	cfg, err := Provider(SetupViper(root, cmd))
	require.NoError(t, err)
	require.NotNil(t, cfg.Network)
	assert.Equal(t, "sepolia", cfg.Network.Name)
	assert.Equal(t, "https://other.example", cfg.Network.RPCURL)
	assert.Equal(t, "0xabc", cfg.Network.PrivateKey)
}

func TestProvider_UnknownNetwork(t *testing.T) {
	root := t.TempDir()
	t.Setenv("TULIP_NETWORK", "mainnet")

	_, err := Provider(SetupViper(root, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown network "mainnet"`)
}

func TestProvider_InvalidDuration(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ProjectFile, "[verify]\nbase_delay = \"soon\"\n")

	_, err := Provider(SetupViper(root, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify.base_delay")
}

func TestFlagKey(t *testing.T) {
	tests := []struct {
		flag   string
		key    string
		config bool
	}{
		{flag: "non-interactive", key: "non_interactive", config: true},
		{flag: "rpc-url", key: "rpc_url", config: true},
		{flag: "verify-max-attempts", key: "verify.max_attempts", config: true},
		{flag: "verify", key: "verify", config: false},
		{flag: "dry-run", key: "dry_run", config: false},
		{flag: "yes", key: "yes", config: false},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			assert.Equal(t, tt.key, flagKey(tt.flag))
			assert.Equal(t, tt.config, isConfigKey(flagKey(tt.flag)))
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ProjectFile, "")
	nested := filepath.Join(root, "contracts", "src")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	found, err := FindProjectRoot()
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	foundResolved, err := filepath.EvalSymlinks(found)
	require.NoError(t, err)
	assert.Equal(t, resolved, foundResolved)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadProjectConfig_Missing(t *testing.T) {
	cfg, err := LoadProjectConfig(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Networks)
	assert.Empty(t, cfg.Plan)
}

func TestLoadProjectConfig_Full(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ProjectFile, `
plan = "plans/launch.yaml"
artifacts = "out"

[verify]
concurrency = 2
base_delay = "1s"
min_confirmations = 0

[networks.sepolia]
rpc_url = "${TULIP_TEST_SEPOLIA_RPC}"
gas_price = "3gwei"
confirmations = 2
dialect = "anvil"
`)
	t.Setenv("TULIP_TEST_SEPOLIA_RPC", "https://rpc.sepolia.example")

	cfg, err := LoadProjectConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "plans/launch.yaml", cfg.Plan)
	assert.Equal(t, "out", cfg.Artifacts)
	assert.Equal(t, 2, cfg.Verify.Concurrency)
	assert.Equal(t, "1s", cfg.Verify.BaseDelay)
	require.NotNil(t, cfg.Verify.MinConfirmations)
	assert.Equal(t, uint64(0), *cfg.Verify.MinConfirmations)

	sepolia := cfg.Networks["sepolia"]
	assert.Equal(t, "https://rpc.sepolia.example", sepolia.RPCURL)
	assert.Equal(t, "3gwei", sepolia.GasPrice)
	require.NotNil(t, sepolia.Confirmations)
	assert.Equal(t, uint64(2), *sepolia.Confirmations)
}

func TestLoadProjectConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ProjectFile, "[networks.sepolia\nrpc_url = 1")

	_, err := LoadProjectConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ProjectFile)
}

func TestLoadProjectConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "TULIP_TEST_KEY=from-env\nTULIP_TEST_OTHER=base\n")
	writeFile(t, dir, ".env.local", "TULIP_TEST_KEY=from-local\n")
	writeFile(t, dir, ProjectFile, `
[networks.base]
rpc_url = "https://rpc.base.example"
explorer_api_key = "${TULIP_TEST_KEY}"
impersonate = "${TULIP_TEST_OTHER}"
`)
	t.Cleanup(func() {
		os.Unsetenv("TULIP_TEST_KEY")
		os.Unsetenv("TULIP_TEST_OTHER")
	})

	cfg, err := LoadProjectConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-local", cfg.Networks["base"].ExplorerAPIKey)
	assert.Equal(t, "base", cfg.Networks["base"].Impersonate)
}

func TestLoadProjectConfig_EnvironmentWinsOverDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "TULIP_TEST_KEY=from-file\n")
	writeFile(t, dir, ProjectFile, `
[networks.base]
rpc_url = "https://rpc.base.example"
explorer_api_key = "${TULIP_TEST_KEY}"
`)
	t.Setenv("TULIP_TEST_KEY", "from-shell")

	cfg, err := LoadProjectConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-shell", cfg.Networks["base"].ExplorerAPIKey)
}

func TestLoadProjectConfig_SampleProject(t *testing.T) {
	t.Setenv("SEPOLIA_RPC_URL", "https://rpc.sepolia.example")
	t.Setenv("ETHERSCAN_API_KEY", "key")
	t.Setenv("DEPLOYER_PRIVATE_KEY", "0x01")

	cfg, err := LoadProjectConfig(filepath.Join("..", "..", "examples", "ethertulip"))
	require.NoError(t, err)

	assert.Equal(t, "deploy.yaml", cfg.Plan)
	require.NotNil(t, cfg.Verify.MinConfirmations)
	assert.Equal(t, uint64(5), *cfg.Verify.MinConfirmations)
	assert.Equal(t, "https://rpc.sepolia.example", cfg.Networks["sepolia"].RPCURL)
	assert.Equal(t, uint64(11155111), cfg.Networks["sepolia"].ChainID)
	assert.Equal(t, "anvil", cfg.Networks["local"].Dialect)
	assert.Contains(t, cfg.Networks, "mainnet")
}

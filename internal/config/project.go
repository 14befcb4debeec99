package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/ethertulip/tulip-deployer/internal/domain/config"
)

// ProjectFile is the name of the project configuration file
const ProjectFile = "tulip.toml"

// LoadProjectConfig loads .env files and parses tulip.toml in projectRoot.
// A missing tulip.toml yields an empty configuration. Values referencing
// ${VAR} are expanded after the .env files are loaded.
func LoadProjectConfig(projectRoot string) (*config.ProjectConfig, error) {
	loadDotEnv(projectRoot)

	cfg := &config.ProjectConfig{Networks: make(map[string]config.NetworkConfig)}
	path := filepath.Join(projectRoot, ProjectFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", ProjectFile, err)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ProjectFile, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		slog.Warn("unknown keys in project config", "file", ProjectFile, "keys", fmt.Sprint(undecoded))
	}
	if cfg.Networks == nil {
		cfg.Networks = make(map[string]config.NetworkConfig)
	}

	cfg.Plan = os.ExpandEnv(cfg.Plan)
	cfg.Artifacts = os.ExpandEnv(cfg.Artifacts)
	cfg.Deployments = os.ExpandEnv(cfg.Deployments)
	for name, n := range cfg.Networks {
		cfg.Networks[name] = expandNetwork(n)
	}
	return cfg, nil
}

// loadDotEnv loads .env.local before .env so the local file wins. Variables
// already set in the environment win over both.
func loadDotEnv(projectRoot string) {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(projectRoot, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("failed to load env file", "file", path, "error", err)
		}
	}
}

func expandNetwork(n config.NetworkConfig) config.NetworkConfig {
	n.RPCURL = os.ExpandEnv(n.RPCURL)
	n.ExplorerURL = os.ExpandEnv(n.ExplorerURL)
	n.ExplorerAPIURL = os.ExpandEnv(n.ExplorerAPIURL)
	n.ExplorerAPIKey = os.ExpandEnv(n.ExplorerAPIKey)
	n.GasPrice = os.ExpandEnv(n.GasPrice)
	n.PrivateKey = os.ExpandEnv(n.PrivateKey)
	n.Impersonate = os.ExpandEnv(n.Impersonate)
	return n
}

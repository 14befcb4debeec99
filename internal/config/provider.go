package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ethertulip/tulip-deployer/internal/domain/config"
)

// Defaults for settings not given by flag, environment or tulip.toml
const (
	DefaultPlan             = "deploy.yaml"
	DefaultArtifacts        = "artifacts"
	DefaultDeployments      = "deployments"
	DefaultTimeout          = 30 * time.Minute
	DefaultConfirmations    = 5
	DefaultConcurrency      = 4
	DefaultMaxAttempts      = 6
	DefaultBaseDelay        = 5 * time.Second
	DefaultMaxDelay         = 2 * time.Minute
	DefaultRateLimit        = 5.0
	DefaultMinConfirmations = 5
)

// Provider creates RuntimeConfig for Wire dependency injection. Precedence is
// flag, then TULIP_ environment variable, then tulip.toml, then default.
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		var err error
		if projectRoot, err = FindProjectRoot(); err != nil {
			return nil, fmt.Errorf("failed to find project root: %w", err)
		}
	}

	project, err := LoadProjectConfig(projectRoot)
	if err != nil {
		return nil, err
	}
	if err := applyProjectDefaults(v, project); err != nil {
		return nil, err
	}

	cfg := &config.RuntimeConfig{
		ProjectRoot:    projectRoot,
		DataDir:        filepath.Join(projectRoot, ".tulip"),
		Debug:          v.GetBool("debug"),
		NonInteractive: v.GetBool("non_interactive"),
		JSON:           v.GetBool("json"),
		Timeout:        v.GetDuration("timeout"),
		PlanPath:       resolvePath(projectRoot, v.GetString("plan")),
		ArtifactsDir:   resolvePath(projectRoot, v.GetString("artifacts")),
		DeploymentsDir: resolvePath(projectRoot, v.GetString("deployments")),
		MetricsFile:    resolvePath(projectRoot, v.GetString("metrics_file")),
		Confirmations:  v.GetUint64("confirmations"),
		Project:        project,
		Verify: config.VerifyConfig{
			Concurrency:      max(v.GetInt("verify.concurrency"), 1),
			MaxAttempts:      max(v.GetInt("verify.max_attempts"), 1),
			BaseDelay:        v.GetDuration("verify.base_delay"),
			MaxDelay:         max(v.GetDuration("verify.max_delay"), v.GetDuration("verify.base_delay")),
			RateLimit:        v.GetFloat64("verify.rate_limit"),
			MinConfirmations: v.GetUint64("verify.min_confirmations"),
		},
	}

	if name := v.GetString("network"); name != "" {
		network, err := NewNetworkResolver(cfg.DataDir, project).Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve network %s: %w", name, err)
		}
		if rpcURL := v.GetString("rpc_url"); rpcURL != "" {
			network.RPCURL = rpcURL
		}
		if key := v.GetString("private_key"); key != "" {
			network.PrivateKey = key
		}
		cfg.Network = network
	}

	return cfg, nil
}

// applyProjectDefaults layers tulip.toml values over the built-in defaults.
// Flags and environment variables still take precedence over them.
func applyProjectDefaults(v *viper.Viper, project *config.ProjectConfig) error {
	for key, value := range map[string]string{
		"plan":        project.Plan,
		"artifacts":   project.Artifacts,
		"deployments": project.Deployments,
	} {
		if value != "" {
			v.SetDefault(key, value)
		}
	}

	section := project.Verify
	if section.Concurrency > 0 {
		v.SetDefault("verify.concurrency", section.Concurrency)
	}
	if section.MaxAttempts > 0 {
		v.SetDefault("verify.max_attempts", section.MaxAttempts)
	}
	if section.RateLimit != 0 {
		v.SetDefault("verify.rate_limit", section.RateLimit)
	}
	if section.MinConfirmations != nil {
		v.SetDefault("verify.min_confirmations", *section.MinConfirmations)
	}
	for key, raw := range map[string]string{
		"verify.base_delay": section.BaseDelay,
		"verify.max_delay":  section.MaxDelay,
	} {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", key, ProjectFile, err)
		}
		v.SetDefault(key, d)
	}
	return nil
}

func resolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// FindProjectRoot walks up from the working directory looking for
// tulip.toml. Without one the working directory is the project root.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, ProjectFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("TULIP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("project_root", projectRoot)
	v.SetDefault("network", LocalNetwork)
	v.SetDefault("plan", DefaultPlan)
	v.SetDefault("artifacts", DefaultArtifacts)
	v.SetDefault("deployments", DefaultDeployments)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("confirmations", DefaultConfirmations)
	v.SetDefault("debug", false)
	v.SetDefault("non_interactive", false)
	v.SetDefault("verify.concurrency", DefaultConcurrency)
	v.SetDefault("verify.max_attempts", DefaultMaxAttempts)
	v.SetDefault("verify.base_delay", DefaultBaseDelay)
	v.SetDefault("verify.max_delay", DefaultMaxDelay)
	v.SetDefault("verify.rate_limit", DefaultRateLimit)
	v.SetDefault("verify.min_confirmations", DefaultMinConfirmations)

	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			key := flagKey(f.Name)
			if !isConfigKey(key) {
				return
			}
			if err := v.BindPFlag(key, f); err != nil {
				panic(err)
			}
		})
	}

	return v
}

// configKeys are the settings flags may override. Other flags only steer the
// command they belong to.
var configKeys = map[string]bool{
	"project_root":    true,
	"network":         true,
	"plan":            true,
	"artifacts":       true,
	"deployments":     true,
	"timeout":         true,
	"confirmations":   true,
	"debug":           true,
	"non_interactive": true,
	"json":            true,
	"rpc_url":         true,
	"private_key":     true,
	"metrics_file":    true,
}

func isConfigKey(key string) bool {
	return configKeys[key] || strings.HasPrefix(key, "verify.")
}

// flagKey maps a flag name onto its config key: --non-interactive binds
// non_interactive, --verify-concurrency binds verify.concurrency
func flagKey(name string) string {
	if rest, ok := strings.CutPrefix(name, "verify-"); ok {
		return "verify." + strings.ReplaceAll(rest, "-", "_")
	}
	return strings.ReplaceAll(name, "-", "_")
}

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ethertulip/tulip-deployer/internal/adapters/progress"
	"github.com/ethertulip/tulip-deployer/internal/app"
	"github.com/ethertulip/tulip-deployer/internal/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// contextKey is the type for context keys
type contextKey string

const (
	// sessionKey is the context key for the running session
	sessionKey contextKey = "session"

	// noTimeoutAnnotation marks commands that run until interrupted
	noTimeoutAnnotation = "tulip/no-timeout"
)

// session is what PersistentPreRunE sets up for a command and what must be
// released once it returns
type session struct {
	app      *app.App
	reporter *progress.Reporter
	cleanup  func()
	cancel   context.CancelFunc
}

func (s *session) close() {
	if s.reporter != nil {
		s.reporter.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.cleanup != nil {
		s.cleanup()
	}
}

// Execute runs the root command and releases what the command opened
func Execute() error {
	rootCmd := NewRootCmd()
	cmd, err := rootCmd.ExecuteC()
	if cmd != nil && cmd.Context() != nil {
		if s, ok := cmd.Context().Value(sessionKey).(*session); ok {
			s.close()
		}
	}
	return err
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tulip",
		Short: "Ordered contract deployment and source verification",
		Long: `tulip deploys a plan of interdependent contracts in dependency order,
records every deployment in a per-network manifest and verifies the sources
on the network's block explorer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for help/version commands
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			projectRoot, err := config.FindProjectRoot()
			if err != nil {
				return err
			}
			v := config.SetupViper(projectRoot, cmd)

			s := &session{}
			var sink usecase.ProgressSink = progress.NewNopSink()
			if !v.GetBool("json") {
				s.reporter = progress.NewReporter(os.Stderr, isInteractive(v.GetBool("non_interactive")))
				sink = s.reporter
			}

			appInstance, cleanup, err := app.InitApp(v, sink)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}
			s.app = appInstance
			s.cleanup = cleanup

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if appInstance.Config.Timeout > 0 && cmd.Annotations[noTimeoutAnnotation] == "" {
				ctx, s.cancel = context.WithTimeout(ctx, appInstance.Config.Timeout)
			}
			cmd.SetContext(context.WithValue(ctx, sessionKey, s))
			return nil
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("network", "n", "", "Network to use (e.g., local, sepolia)")
	flags.String("plan", "", "Deployment plan file (default deploy.yaml)")
	flags.String("rpc-url", "", "Override the network's RPC endpoint")
	flags.String("private-key", "", "Deployer private key (prefer TULIP_PRIVATE_KEY)")
	flags.Duration("timeout", 0, "Abort the command after this long (default 30m)")
	flags.Bool("debug", false, "Enable debug output")
	flags.Bool("non-interactive", false, "Disable interactive prompts")
	flags.Bool("json", false, "Output as JSON")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "main",
		Title: "Main Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands",
	})

	for _, cmd := range []*cobra.Command{NewDeployCmd(), NewVerifyCmd(), NewValidateCmd()} {
		cmd.GroupID = "main"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{NewManifestCmd(), NewNetworksCmd(), NewDevnetCmd()} {
		cmd.GroupID = "management"
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	s, ok := cmd.Context().Value(sessionKey).(*session)
	if !ok || s.app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return s.app, nil
}

// isInteractive reports whether prompts and spinners can be shown
func isInteractive(nonInteractive bool) bool {
	if nonInteractive || os.Getenv("CI") == "true" || color.NoColor {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

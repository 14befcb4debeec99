package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethertulip/tulip-deployer/internal/app"
	"github.com/ethertulip/tulip-deployer/internal/cli/render"
	"github.com/ethertulip/tulip-deployer/internal/config"
	"github.com/ethertulip/tulip-deployer/internal/domain"
	domainconfig "github.com/ethertulip/tulip-deployer/internal/domain/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// NewVerifyCmd creates the verify command
func NewVerifyCmd() *cobra.Command {
	var (
		force bool
		pick  bool
	)

	cmd := &cobra.Command{
		Use:   "verify [unit...]",
		Short: "Verify deployed sources on the block explorer",
		Long: `Submit the source of deployed units to the network's block explorer and
wait for the verdict. Units are verified independently and in parallel; one
failing does not stop the others. Results are written next to the manifest
as <network>.verify.json.

Examples:
  tulip verify -n sepolia                   # Verify every unit in the manifest
  tulip verify -n sepolia Token Registry    # Verify selected units
  tulip verify -n sepolia --pick            # Choose a unit interactively
  tulip verify -n sepolia --force           # Resubmit even if already verified`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			network, err := requireNetwork(app.Config)
			if err != nil {
				return err
			}
			if !network.HasExplorer() {
				return fmt.Errorf("network %s has no explorer API configured (set explorer_api_url in %s)", network.Name, config.ProjectFile)
			}

			ctx := cmd.Context()
			manifest, err := app.ManifestStore.Load(ctx, network.Name)
			if err != nil {
				return fmt.Errorf("failed to load manifest for %s: %w", network.Name, err)
			}
			plan, err := app.PlanLoader.Load(ctx, app.Config.PlanPath)
			if err != nil {
				return err
			}

			only := args
			if pick {
				if len(args) > 0 {
					return fmt.Errorf("--pick cannot be combined with unit arguments")
				}
				unit, err := app.Selector.SelectUnit(manifest.Order, "Select unit to verify")
				if err != nil {
					return err
				}
				only = []string{unit}
			}

			report, err := app.VerifyManifest.Run(ctx, manifest, plan, verifyOptions(app.Config, only, force))
			defer flushMetrics(app)
			if err != nil && report == nil {
				return err
			}
			if renderErr := renderReport(cmd, app, network, report, manifest.Order); renderErr != nil {
				return renderErr
			}
			if err != nil {
				return err
			}
			return reportError(report)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Resubmit even if the explorer reports the source verified")
	cmd.Flags().BoolVar(&pick, "pick", false, "Choose the unit to verify interactively")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics of the run to this textfile")
	addVerifyTuningFlags(cmd)

	return cmd
}

// addVerifyTuningFlags adds the flags bound to the verify.* settings
func addVerifyTuningFlags(cmd *cobra.Command) {
	cmd.Flags().Int("verify-concurrency", 0, "Units verified in parallel (default 4)")
	cmd.Flags().Int("verify-max-attempts", 0, "Explorer round trips per unit before giving up (default 6)")
	cmd.Flags().Duration("verify-base-delay", 0, "Initial delay between status checks, doubled each retry (default 5s)")
	cmd.Flags().Duration("verify-max-delay", 0, "Cap on the delay between status checks (default 2m)")
	cmd.Flags().Float64("verify-rate-limit", 0, "Explorer requests per second (default 5)")
	cmd.Flags().Uint64("verify-min-confirmations", 0, "Confirmations a deployment needs before it is submitted (default 5)")
}

func verifyOptions(cfg *domainconfig.RuntimeConfig, only []string, force bool) usecase.VerifyOptions {
	return usecase.VerifyOptions{
		Only:             only,
		Force:            force,
		Concurrency:      cfg.Verify.Concurrency,
		MaxAttempts:      cfg.Verify.MaxAttempts,
		BaseDelay:        cfg.Verify.BaseDelay,
		MaxDelay:         cfg.Verify.MaxDelay,
		MinConfirmations: minConfirmations(cfg),
	}
}

// minConfirmations is zero on development nodes, which mine no further
// blocks on their own
func minConfirmations(cfg *domainconfig.RuntimeConfig) uint64 {
	if cfg.Network.IsLocal() {
		return 0
	}
	return cfg.Verify.MinConfirmations
}

func renderReport(cmd *cobra.Command, app *app.App, network *domainconfig.Network, report *domain.VerificationReport, order []string) error {
	if app.Config.JSON {
		return render.JSON(cmd.OutOrStdout(), report)
	}
	return render.NewVerifyRenderer(cmd.OutOrStdout(), network.ExplorerURL).Render(report, order)
}

// reportError fails the command when any unit did not end verified
func reportError(report *domain.VerificationReport) error {
	failed := report.Count(domain.VerificationFailed)
	pending := report.Count(domain.VerificationPending)
	if failed+pending == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d units were not verified", failed+pending, len(report.Results))
}

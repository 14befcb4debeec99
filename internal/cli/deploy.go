package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethertulip/tulip-deployer/internal/app"
	"github.com/ethertulip/tulip-deployer/internal/cli/render"
	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	var (
		verify bool
		resume bool
		dryRun bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the plan in dependency order",
		Long: `Validate the deployment plan and deploy its units one after another, waiting
for each to be confirmed before submitting the next. Every deployment is
recorded in deployments/<network>.json as soon as it is submitted.

A failed run leaves the units deployed before the failure in the manifest;
run again with --resume to continue from there.

Examples:
  tulip deploy                              # Deploy deploy.yaml to the local node
  tulip deploy -n sepolia --verify          # Deploy, then verify sources
  tulip deploy -n sepolia --resume          # Continue an interrupted run
  tulip deploy --plan plans/v2.yaml --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			network, err := requireNetwork(app.Config)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			plan, err := app.PlanLoader.Load(ctx, app.Config.PlanPath)
			if err != nil {
				return err
			}

			if !dryRun && !yes && !network.IsLocal() {
				ok, err := app.Selector.Confirm(fmt.Sprintf("Deploy %d units of %s to %s (chain %d)",
					len(plan.Units), plan.Name, network.Name, network.ChainID))
				if err != nil {
					return fmt.Errorf("%w (pass --yes to deploy without confirmation)", err)
				}
				if !ok {
					return errors.New("deployment cancelled")
				}
			}

			opts := usecase.DeployOptions{
				Network:       network.Name,
				Confirmations: confirmationDepth(cmd, app.Config),
				Resume:        resume,
				DryRun:        dryRun,
			}
			result, runErr := app.DeployPlan.Run(ctx, plan, opts)
			defer flushMetrics(app)

			if runErr != nil && result == nil {
				if errors.Is(runErr, domain.ErrInvalidPlan) {
					if !app.Config.JSON {
						render.NewPlanRenderer(cmd.ErrOrStderr()).RenderInvalid(runErr)
					}
					return errors.New("plan is invalid")
				}
			}

			if result != nil {
				if app.Config.JSON {
					if err := render.JSON(cmd.OutOrStdout(), result); err != nil {
						return err
					}
				} else if err := render.NewDeployRenderer(cmd.OutOrStdout()).Render(result); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}

			if verify && !dryRun {
				return verifyAfterDeploy(cmd, app, network, plan, result.Manifest)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Verify sources on the block explorer after deploying")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue the existing manifest of the network")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and print the deployment order without sending anything")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt for non-local networks")
	cmd.Flags().Uint64("confirmations", 0, "Blocks to wait on top of each deployment (default 5, 0 on local nodes)")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics of the run to this textfile")
	addVerifyTuningFlags(cmd)

	return cmd
}

func verifyAfterDeploy(cmd *cobra.Command, app *app.App, network *config.Network, plan *domain.Plan, manifest *domain.Manifest) error {
	if !network.HasExplorer() {
		app.Log.Info("skipping verification, network has no explorer", "network", network.Name)
		return nil
	}
	report, err := app.VerifyManifest.Run(cmd.Context(), manifest, plan, verifyOptions(app.Config, nil, false))
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
}

// confirmationDepth picks the --confirmations flag when given, then the
// network's setting, then the run default
func confirmationDepth(cmd *cobra.Command, cfg *config.RuntimeConfig) uint64 {
	if f := cmd.Flags().Lookup("confirmations"); f != nil && f.Changed {
		return cfg.Confirmations
	}
	return cfg.Network.ConfirmationDepth(cfg.Confirmations)
}

func requireNetwork(cfg *config.RuntimeConfig) (*config.Network, error) {
	if cfg.Network == nil {
		return nil, errors.New("no network selected, pass --network")
	}
	return cfg.Network, nil
}

func flushMetrics(app *app.App) {
	if err := app.Metrics.Flush(); err != nil {
		app.Log.Warn("failed to write metrics", "error", err)
	}
}

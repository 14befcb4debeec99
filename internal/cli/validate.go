package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ethertulip/tulip-deployer/internal/cli/render"
	"github.com/ethertulip/tulip-deployer/internal/domain"
)

// NewValidateCmd creates the validate command
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the deployment plan without deploying",
		Long: `Check the deployment plan: unit names, references, dependency cycles,
share plans, and that every constructor argument matches the compiled ABI.
All problems are reported together. Nothing is sent to the network.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			plan, err := app.PlanLoader.Load(ctx, app.Config.PlanPath)
			if err != nil {
				return err
			}

			result, err := app.ValidatePlan.Validate(ctx, plan)
			if err != nil {
				if !errors.Is(err, domain.ErrInvalidPlan) {
					return err
				}
				if !app.Config.JSON {
					render.NewPlanRenderer(cmd.OutOrStdout()).RenderInvalid(err)
					return errors.New("plan is invalid")
				}
				return err
			}

			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), map[string]any{
					"plan":  plan.Name,
					"order": result.OrderNames(),
				})
			}
			return render.NewPlanRenderer(cmd.OutOrStdout()).Render(result)
		},
	}
}

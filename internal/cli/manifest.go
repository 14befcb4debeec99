package cli

import (
	"github.com/spf13/cobra"

	"github.com/ethertulip/tulip-deployer/internal/cli/render"
)

// NewManifestCmd creates the manifest command
func NewManifestCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Show the deployment manifest of a network",
		Long: `Show the units recorded in the network's manifest, in deployment order.
With --check every transaction is looked up on chain.`,
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

			result, err := app.ShowManifest.Run(cmd.Context(), network.Name, check)
			if err != nil {
				return err
			}
			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), result.Manifest)
			}
			return render.NewManifestRenderer(cmd.OutOrStdout()).Render(result)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Look up each transaction on chain")
	return cmd
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/ethertulip/tulip-deployer/internal/cli/render"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

type networkView struct {
	Name        string `json:"name"`
	ChainID     uint64 `json:"chainId,omitempty"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
	Local       bool   `json:"local"`
	Current     bool   `json:"current,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewNetworksCmd creates the networks command
func NewNetworksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List networks configured in tulip.toml",
		Long: `List all networks configured in the [networks] section of tulip.toml, plus
the built-in local network. Chain ids that are not configured are fetched
from the RPC endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			current := ""
			if app.Config.Network != nil {
				current = app.Config.Network.Name
			}
			result, err := app.ListNetworks.Run(cmd.Context(), current)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), networkViews(result))
			}
			return render.NewNetworksRenderer(cmd.OutOrStdout()).RenderNetworksList(result)
		},
	}
}

func networkViews(result *usecase.ListNetworksResult) []networkView {
	views := make([]networkView, 0, len(result.Networks))
	for _, n := range result.Networks {
		view := networkView{
			Name:        n.Name,
			ChainID:     n.ChainID,
			ExplorerURL: n.ExplorerURL,
			Local:       n.Local,
			Current:     n.Name == result.Current,
		}
		if n.Error != nil {
			view.Error = n.Error.Error()
		}
		views = append(views, view)
	}
	return views
}

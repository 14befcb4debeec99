package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// NetworksRenderer renders network lists
type NetworksRenderer struct {
	out io.Writer
}

// NewNetworksRenderer creates a new networks renderer
func NewNetworksRenderer(out io.Writer) *NetworksRenderer {
	return &NetworksRenderer{out: out}
}

// RenderNetworksList renders the configured networks, marking the current one
func (r *NetworksRenderer) RenderNetworksList(result *usecase.ListNetworksResult) error {
	if len(result.Networks) == 0 {
		fmt.Fprintln(r.out, "No networks configured in tulip.toml")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "Network", "Chain ID", "Explorer", "Kind"})
	for _, n := range result.Networks {
		marker := ""
		if n.Name == result.Current {
			marker = "*"
		}
		if n.Error != nil {
			t.AppendRow(table.Row{marker, n.Name, failureStyle.Sprint("error"), truncate(n.Error.Error(), 60), ""})
			continue
		}
		kind := "remote"
		if n.Local {
			kind = "local"
		}
		t.AppendRow(table.Row{marker, n.Name, n.ChainID, faintStyle.Sprint(n.ExplorerURL), kind})
	}
	t.Render()
	return nil
}

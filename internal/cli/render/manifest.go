package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// ManifestRenderer renders manifests as tables
type ManifestRenderer struct {
	out io.Writer
}

// NewManifestRenderer creates a new manifest renderer
func NewManifestRenderer(out io.Writer) *ManifestRenderer {
	return &ManifestRenderer{out: out}
}

// Render prints a manifest together with on-chain checks, when present
func (r *ManifestRenderer) Render(result *usecase.ShowManifestResult) error {
	r.RenderManifest(result.Manifest, result.Path)
	if len(result.Status) == 0 && len(result.Errors) == 0 {
		return nil
	}

	fmt.Fprintln(r.out)
	sectionHeaderStyle.Fprintln(r.out, "On-chain check")
	for _, entry := range result.Manifest.List() {
		if err, ok := result.Errors[entry.Unit]; ok {
			fmt.Fprintf(r.out, "  %s %s: %v\n", failureStyle.Sprint("✗"), entry.Unit, err)
			continue
		}
		status := result.Status[entry.Unit]
		switch {
		case status == nil || !status.Found:
			fmt.Fprintf(r.out, "  %s %s: transaction not found\n", failureStyle.Sprint("✗"), entry.Unit)
		case !status.Mined:
			fmt.Fprintf(r.out, "  %s %s: not mined yet\n", pendingStyle.Sprint("●"), entry.Unit)
		case !status.Success:
			fmt.Fprintf(r.out, "  %s %s: reverted in block %d\n", failureStyle.Sprint("✗"), entry.Unit, status.BlockNumber)
		default:
			fmt.Fprintf(r.out, "  %s %s: block %d, %d confirmations\n", successStyle.Sprint("✓"), entry.Unit, status.BlockNumber, status.Confirmations)
		}
	}
	return nil
}

// RenderManifest prints the entries in the order they were recorded
func (r *ManifestRenderer) RenderManifest(m *domain.Manifest, path string) {
	if m == nil {
		return
	}
	sectionHeaderStyle.Fprintf(r.out, "%s on %s (chain %d)\n", m.Plan, m.Network, m.ChainID)
	if path != "" {
		faintStyle.Fprintln(r.out, path)
	}
	if m.Len() == 0 {
		fmt.Fprintln(r.out, "No deployments recorded")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Unit", "Contract", "Address", "Transaction", "Status"})
	for _, e := range m.List() {
		t.AppendRow(table.Row{
			e.Unit,
			faintStyle.Sprint(e.Contract),
			addressStyle.Sprint(e.Address),
			shortHash(e.TransactionHash),
			entryStatus(e),
		})
	}
	t.Render()
}

func entryStatus(e domain.ManifestEntry) string {
	switch {
	case e.IsConfirmed():
		return successStyle.Sprintf("%s @%d", title(string(e.Status)), e.ConfirmedAtBlock)
	case e.IsReverted():
		return failureStyle.Sprintf("%s @%d", title(string(e.Status)), e.RevertedAtBlock)
	}
	return pendingStyle.Sprint(title(string(e.Status)))
}

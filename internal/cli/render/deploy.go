package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// DeployRenderer renders the outcome of a deployment run
type DeployRenderer struct {
	out      io.Writer
	manifest *ManifestRenderer
}

// NewDeployRenderer creates a new deploy renderer
func NewDeployRenderer(out io.Writer) *DeployRenderer {
	return &DeployRenderer{out: out, manifest: NewManifestRenderer(out)}
}

// Render prints the manifest and a summary of what the run did. It is also
// used after a failed run, where the manifest shows what is live.
func (r *DeployRenderer) Render(result *usecase.DeployResult) error {
	if result.DryRun {
		fmt.Fprintf(r.out, "Dry run, would deploy in order: %s\n", strings.Join(result.Order, " → "))
		return nil
	}
	if result.Manifest == nil {
		return nil
	}

	fmt.Fprintln(r.out)
	r.manifest.RenderManifest(result.Manifest, result.ManifestPath)
	fmt.Fprintln(r.out)

	if len(result.Reused) > 0 {
		faintStyle.Fprintf(r.out, "Reused %d confirmed deployments: %s\n", len(result.Reused), strings.Join(result.Reused, ", "))
	}
	if missing := len(result.Order) - len(result.Deployed) - len(result.Reused); missing > 0 {
		fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("%d of %d units were not deployed", missing, len(result.Order))))
		return nil
	}
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Deployed %d units", len(result.Deployed))))
	return nil
}

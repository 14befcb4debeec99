package render

import (
	"fmt"
	"io"

	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// DevnetRenderer renders development node operations
type DevnetRenderer struct {
	out io.Writer
}

// NewDevnetRenderer creates a new devnet renderer
func NewDevnetRenderer(out io.Writer) *DevnetRenderer {
	return &DevnetRenderer{out: out}
}

// Render renders the devnet operation result
func (r *DevnetRenderer) Render(result *usecase.ManageDevnetResult) error {
	fmt.Fprintf(r.out, "%s %s\n", FormatSuccess(result.Message), faintStyle.Sprintf("(%s)", result.Network))
	return nil
}

// RenderNodeStarted announces a launched node
func (r *DevnetRenderer) RenderNodeStarted(rpcURL string) {
	fmt.Fprintln(r.out, FormatSuccess("Node running"))
	refStyle.Fprintf(r.out, "🌐 RPC URL: %s\n", rpcURL)
	faintStyle.Fprintln(r.out, "Press Ctrl+C to stop")
}

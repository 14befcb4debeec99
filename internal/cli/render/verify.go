package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ethertulip/tulip-deployer/internal/domain"
)

// VerifyRenderer renders verification reports
type VerifyRenderer struct {
	out         io.Writer
	explorerURL string
}

// NewVerifyRenderer creates a new verify renderer. explorerURL links results
// when set.
func NewVerifyRenderer(out io.Writer, explorerURL string) *VerifyRenderer {
	return &VerifyRenderer{out: out, explorerURL: explorerURL}
}

// Render prints one row per unit in manifest order and a summary line
func (r *VerifyRenderer) Render(report *domain.VerificationReport, order []string) error {
	results := report.Ordered(order)
	if len(results) == 0 {
		fmt.Fprintln(r.out, "Nothing to verify")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Unit", "Address", "Status", "Attempts", "Details"})
	for _, res := range results {
		t.AppendRow(table.Row{res.Unit, addressStyle.Sprint(res.Address), r.status(res.Status), res.Attempts, r.details(res)})
	}
	t.Render()

	ok := report.Count(domain.VerificationVerified) + report.Count(domain.VerificationAlreadyVerified)
	fmt.Fprintf(r.out, "\nVerification complete: %d/%d successful\n", ok, len(results))
	return nil
}

func (r *VerifyRenderer) status(s domain.VerificationStatus) string {
	switch {
	case s.IsSuccess():
		return successStyle.Sprint("✓ " + title(string(s)))
	case s == domain.VerificationPending:
		return pendingStyle.Sprint("● " + title(string(s)))
	}
	return failureStyle.Sprint("✗ " + title(string(s)))
}

func (r *VerifyRenderer) details(res domain.VerificationResult) string {
	if res.Status.IsSuccess() && r.explorerURL != "" {
		return faintStyle.Sprintf("%s/address/%s#code", r.explorerURL, res.Address)
	}
	return truncate(res.Reason, 60)
}

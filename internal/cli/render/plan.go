package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// PlanRenderer renders a validated plan as the ordered list of deployments
type PlanRenderer struct {
	out io.Writer
}

// NewPlanRenderer creates a new plan renderer
func NewPlanRenderer(out io.Writer) *PlanRenderer {
	return &PlanRenderer{out: out}
}

// Render prints the deployment order with constructor arguments
func (r *PlanRenderer) Render(result *usecase.ValidatePlanResult) error {
	sectionHeaderStyle.Fprintf(r.out, "Plan %s: %d units\n\n", result.Plan.Name, len(result.Order))

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Unit", "Contract", "Arguments", "Depends On"})
	for i, unit := range result.Order {
		contract := unit.ContractName()
		if artifact, ok := result.Artifacts[unit.Name]; ok {
			contract = artifact.FullyQualifiedName()
		}
		t.AppendRow(table.Row{
			i + 1,
			unit.Name,
			faintStyle.Sprint(contract),
			formatArgs(unit.Args),
			strings.Join(unit.Dependencies(), ", "),
		})
	}
	t.Render()

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, FormatSuccess("Plan is valid"))
	return nil
}

// RenderInvalid lists every problem found in a plan
func (r *PlanRenderer) RenderInvalid(err error) {
	problems := splitJoined(err)
	fmt.Fprintln(r.out, FormatError(fmt.Sprintf("Plan is invalid (%d problems):", len(problems))))
	for _, p := range problems {
		fmt.Fprintf(r.out, "  ✗ %s\n", p)
	}
}

func formatArgs(args []domain.Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a.IsRef() {
			parts[i] = refStyle.Sprint(a.String())
			continue
		}
		parts[i] = truncate(a.String(), 48)
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// splitJoined unpacks an errors.Join result into its parts
func splitJoined(err error) []string {
	return lo.Filter(strings.Split(err.Error(), "\n"), func(line string, _ int) bool {
		return strings.TrimSpace(line) != ""
	})
}

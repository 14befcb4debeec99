package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ZeroAddress stands in for unresolved references when a plan is checked
// before anything is deployed.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Plan is an ordered declaration of deployable units.
type Plan struct {
	Name  string  `json:"name" yaml:"name"`
	Units []*Unit `json:"units" yaml:"units"`
}

// Unit is one deployable contract instance.
type Unit struct {
	Name      string         `json:"name"`
	Contract  string         `json:"contract,omitempty"`
	Args      []Arg          `json:"args,omitempty"`
	DependsOn []string       `json:"dependsOn,omitempty"`
	SharePlan *SharePlanArgs `json:"sharePlan,omitempty"`
}

// SharePlanArgs points at the constructor arguments holding a share plan.
type SharePlanArgs struct {
	Recipients int `json:"recipients" yaml:"recipients"`
	Shares     int `json:"shares" yaml:"shares"`
}

// Arg is a constructor argument: either a literal value or a reference to
// another unit whose deployed address is substituted at deploy time.
type Arg struct {
	Ref   string `json:"ref,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Literal builds a literal argument
func Literal(v any) Arg { return Arg{Value: v} }

// Ref builds an argument resolved to the address of unit
func Ref(unit string) Arg { return Arg{Ref: unit} }

// IsRef reports whether the argument references another unit
func (a Arg) IsRef() bool { return a.Ref != "" }

func (a Arg) String() string {
	if a.IsRef() {
		return "@" + a.Ref
	}
	return fmt.Sprint(a.Value)
}

// ContractName returns the artifact name, defaulting to the unit name.
func (u *Unit) ContractName() string {
	if u.Contract != "" {
		return u.Contract
	}
	return u.Name
}

// Dependencies returns explicit dependencies followed by argument references,
// deduplicated in first-seen order.
func (u *Unit) Dependencies() []string {
	deps := make([]string, 0, len(u.DependsOn)+len(u.Args))
	deps = append(deps, u.DependsOn...)
	for _, arg := range u.Args {
		if arg.IsRef() {
			deps = append(deps, arg.Ref)
		}
	}
	return lo.Uniq(deps)
}

// ResolveArgs substitutes references using lookup, which returns the address
// of a deployed unit.
func (u *Unit) ResolveArgs(lookup func(unit string) (string, bool)) ([]any, error) {
	resolved := make([]any, len(u.Args))
	for i, arg := range u.Args {
		if !arg.IsRef() {
			resolved[i] = arg.Value
			continue
		}
		address, ok := lookup(arg.Ref)
		if !ok {
			return nil, &UnresolvedDependencyError{Unit: u.Name, Dependency: arg.Ref}
		}
		resolved[i] = address
	}
	return resolved, nil
}

// PlaceholderArgs resolves every reference to the zero address.
func (u *Unit) PlaceholderArgs() []any {
	args, _ := u.ResolveArgs(func(string) (string, bool) { return ZeroAddress, true })
	return args
}

// Unit returns the unit with the given name.
func (p *Plan) Unit(name string) (*Unit, bool) {
	return lo.Find(p.Units, func(u *Unit) bool { return u.Name == name })
}

// UnitNames returns unit names in declaration order.
func (p *Plan) UnitNames() []string {
	return lo.Map(p.Units, func(u *Unit, _ int) string { return u.Name })
}

// Validate runs every structural and domain check and reports all problems
// together, in declaration order.
func (p *Plan) Validate() error {
	if p == nil || len(p.Units) == 0 {
		return &ValidationError{Rule: "plan declares no units"}
	}

	var errs []error
	declared := make(map[string]bool, len(p.Units))
	for i, u := range p.Units {
		if strings.TrimSpace(u.Name) == "" {
			errs = append(errs, &ValidationError{Unit: fmt.Sprintf("#%d", i+1), Rule: "unit name is empty"})
			continue
		}
		if declared[u.Name] {
			errs = append(errs, &DuplicateUnitError{Unit: u.Name})
			continue
		}
		declared[u.Name] = true
	}

	structural := len(errs) == 0
	for _, u := range p.Units {
		for _, dep := range u.Dependencies() {
			if !declared[dep] {
				errs = append(errs, &UnresolvedDependencyError{Unit: u.Name, Dependency: dep})
				structural = false
			}
		}
		if u.SharePlan != nil {
			if _, err := u.SharePlanValue(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	// Ordering is only meaningful once every edge points at a declared unit
	if structural {
		if _, err := p.Order(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Order returns the units in dependency order. Among units whose dependencies
// are all satisfied, the one declared first goes first.
func (p *Plan) Order() ([]*Unit, error) {
	declared := lo.SliceToMap(p.Units, func(u *Unit) (string, bool) { return u.Name, true })
	for _, u := range p.Units {
		for _, dep := range u.Dependencies() {
			if !declared[dep] {
				return nil, &UnresolvedDependencyError{Unit: u.Name, Dependency: dep}
			}
		}
	}

	emitted := make(map[string]bool, len(p.Units))
	order := make([]*Unit, 0, len(p.Units))
	for len(order) < len(p.Units) {
		next, ok := lo.Find(p.Units, func(u *Unit) bool {
			return !emitted[u.Name] && lo.EveryBy(u.Dependencies(), func(dep string) bool { return emitted[dep] })
		})
		if !ok {
			return nil, &CyclicDependencyError{Units: p.findCycle(emitted)}
		}
		emitted[next.Name] = true
		order = append(order, next)
	}
	return order, nil
}

// findCycle walks unresolved dependencies from the first blocked unit until a
// unit repeats. Every blocked unit has a blocked dependency, so the walk
// always closes.
func (p *Plan) findCycle(emitted map[string]bool) []string {
	start, ok := lo.Find(p.Units, func(u *Unit) bool { return !emitted[u.Name] })
	if !ok {
		return nil
	}

	var path []string
	seen := make(map[string]int)
	current := start
	for current != nil {
		if idx, ok := seen[current.Name]; ok {
			return path[idx:]
		}
		seen[current.Name] = len(path)
		path = append(path, current.Name)

		var next *Unit
		for _, dep := range current.Dependencies() {
			if !emitted[dep] {
				next, _ = p.Unit(dep)
				break
			}
		}
		current = next
	}
	return path
}

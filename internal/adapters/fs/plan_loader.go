package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// planFile is the YAML layout of a deployment plan
type planFile struct {
	Name  string     `yaml:"name"`
	Units []unitFile `yaml:"units"`
}

type unitFile struct {
	Name      string                `yaml:"name"`
	Contract  string                `yaml:"contract"`
	Args      []yaml.Node           `yaml:"args"`
	DependsOn []string              `yaml:"depends_on"`
	SharePlan *domain.SharePlanArgs `yaml:"share_plan"`
}

// PlanLoader reads deployment plans from YAML files
type PlanLoader struct {
	log *slog.Logger
}

// NewPlanLoader creates a plan loader
func NewPlanLoader(log *slog.Logger) *PlanLoader {
	return &PlanLoader{log: log.With("component", "plan")}
}

// Load reads and parses the plan at path. Structural problems of the YAML
// itself are reported here, plan rules are left to Plan.Validate.
func (l *PlanLoader) Load(_ context.Context, path string) (*domain.Plan, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("plan file %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat plan file: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	plan, err := ParsePlan(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if plan.Name == "" {
		plan.Name = strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
	}
	l.log.Debug("plan loaded", "path", absPath, "name", plan.Name, "units", len(plan.Units))
	return plan, nil
}

// ParsePlan decodes a plan document
func ParsePlan(data []byte) (*domain.Plan, error) {
	var file planFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &domain.ValidationError{Rule: "malformed plan file", Err: err}
	}

	plan := &domain.Plan{Name: file.Name, Units: make([]*domain.Unit, 0, len(file.Units))}
	for i, uf := range file.Units {
		unit := &domain.Unit{
			Name:      strings.TrimSpace(uf.Name),
			Contract:  strings.TrimSpace(uf.Contract),
			DependsOn: uf.DependsOn,
			SharePlan: uf.SharePlan,
		}
		label := unit.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		for idx := range uf.Args {
			arg, err := decodeArg(&uf.Args[idx])
			if err != nil {
				return nil, &domain.ValidationError{Unit: label, Rule: fmt.Sprintf("argument %d", idx), Err: err}
			}
			unit.Args = append(unit.Args, arg)
		}
		plan.Units = append(plan.Units, unit)
	}
	return plan, nil
}

// decodeArg turns a YAML node into an argument. A mapping with the single
// key ref is a reference, and references are only allowed at the top level.
func decodeArg(node *yaml.Node) (domain.Arg, error) {
	ref, ok, err := refTarget(node)
	if err != nil {
		return domain.Arg{}, err
	}
	if ok {
		return domain.Ref(ref), nil
	}
	value, err := nodeValue(node)
	if err != nil {
		return domain.Arg{}, err
	}
	return domain.Literal(value), nil
}

func refTarget(node *yaml.Node) (string, bool, error) {
	if node.Kind != yaml.MappingNode {
		return "", false, nil
	}
	hasRef := false
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "ref" {
			hasRef = true
		}
	}
	if !hasRef {
		return "", false, nil
	}
	if len(node.Content) != 2 {
		return "", true, fmt.Errorf("line %d: ref must be the only key", node.Line)
	}
	target := node.Content[1]
	if target.Kind != yaml.ScalarNode || strings.TrimSpace(target.Value) == "" {
		return "", true, fmt.Errorf("line %d: ref must name a unit", node.Line)
	}
	return strings.TrimSpace(target.Value), true, nil
}

// nodeValue decodes a literal. Integers that do not fit an int64, and hex
// literals such as addresses with leading zeros, stay strings so no digits
// are lost.
func nodeValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return nodeValue(node.Alias)

	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := nestedValue(child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case yaml.MappingNode:
		out := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := nestedValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[node.Content[i].Value] = v
		}
		return out, nil

	case yaml.ScalarNode:
		if node.ShortTag() == "!!int" {
			if n, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
				return int(n), nil
			}
			return node.Value, nil
		}
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported value", node.Line)
}

func nestedValue(node *yaml.Node) (any, error) {
	if _, ok, _ := refTarget(node); ok {
		return nil, fmt.Errorf("line %d: references are only supported as whole arguments", node.Line)
	}
	return nodeValue(node)
}

var _ usecase.PlanLoader = (*PlanLoader)(nil)

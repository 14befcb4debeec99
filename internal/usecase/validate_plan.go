package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ethertulip/tulip-deployer/internal/domain"
)

// ValidatePlan checks a deployment plan before anything is submitted
type ValidatePlan struct {
	artifacts ArtifactSource
	log       *slog.Logger
}

// NewValidatePlan creates a new ValidatePlan use case. artifacts may be nil,
// in which case only structural and share plan checks run.
func NewValidatePlan(artifacts ArtifactSource, log *slog.Logger) *ValidatePlan {
	return &ValidatePlan{
		artifacts: artifacts,
		log:       log,
	}
}

// ValidatePlanResult is a plan that passed validation
type ValidatePlanResult struct {
	Plan      *domain.Plan
	Order     []*domain.Unit
	Artifacts map[string]*domain.Artifact
}

// OrderNames returns unit names in deployment order
func (r *ValidatePlanResult) OrderNames() []string {
	names := make([]string, len(r.Order))
	for i, u := range r.Order {
		names[i] = u.Name
	}
	return names
}

// Validate runs every check and reports all problems together
func (uc *ValidatePlan) Validate(ctx context.Context, plan *domain.Plan) (*ValidatePlanResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	order, err := plan.Order()
	if err != nil {
		return nil, err
	}

	result := &ValidatePlanResult{
		Plan:      plan,
		Order:     order,
		Artifacts: make(map[string]*domain.Artifact),
	}
	if uc.artifacts == nil {
		return result, nil
	}

	var errs []error
	for _, unit := range plan.Units {
		artifact, err := uc.artifacts.Artifact(ctx, unit.ContractName())
		if err != nil {
			errs = append(errs, &domain.ValidationError{Unit: unit.Name, Rule: "contract artifact not found", Err: err})
			continue
		}
		// References are not deployed yet; the zero address has the right type
		if _, err := uc.artifacts.EncodeConstructorArgs(artifact, unit.PlaceholderArgs()); err != nil {
			errs = append(errs, &domain.ValidationError{Unit: unit.Name, Rule: "constructor arguments do not match ABI", Err: err})
			continue
		}
		result.Artifacts[unit.Name] = artifact
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	uc.log.Debug("plan validated", "plan", plan.Name, "units", len(plan.Units))
	return result, nil
}

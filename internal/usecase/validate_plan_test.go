package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethertulip/tulip-deployer/internal/domain"
)

func TestValidatePlan_Valid(t *testing.T) {
	uc := NewValidatePlan(newFakeArtifacts(), testLogger())

	result, err := uc.Validate(context.Background(), ethertulipPlan())
	require.NoError(t, err)
	assert.Equal(t, []string{"StreamETH", "EtherTulip"}, result.OrderNames())
	assert.Len(t, result.Artifacts, 2)
}

func TestValidatePlan_WithoutArtifacts(t *testing.T) {
	uc := NewValidatePlan(nil, testLogger())

	result, err := uc.Validate(context.Background(), twoUnitPlan())
	require.NoError(t, err)
	assert.Empty(t, result.Artifacts)
}

func TestValidatePlan_MissingArtifact(t *testing.T) {
	artifacts := newFakeArtifacts()
	artifacts.missing["EtherTulip"] = true
	uc := NewValidatePlan(artifacts, testLogger())

	_, err := uc.Validate(context.Background(), ethertulipPlan())
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "EtherTulip", verr.Unit)
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidatePlan_ABIMismatch(t *testing.T) {
	artifacts := newFakeArtifacts()
	artifacts.encodeErr["StreamETH"] = errors.New("argument count mismatch: got 2 for 3")
	artifacts.missing["EtherTulip"] = true
	uc := NewValidatePlan(artifacts, testLogger())

	_, err := uc.Validate(context.Background(), ethertulipPlan())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit StreamETH: constructor arguments do not match ABI")
	assert.Contains(t, err.Error(), "unit EtherTulip: contract artifact not found")
}

func TestValidatePlan_StructuralErrorsSkipArtifacts(t *testing.T) {
	artifacts := newFakeArtifacts()
	artifacts.missing["A"] = true
	uc := NewValidatePlan(artifacts, testLogger())

	plan := &domain.Plan{Units: []*domain.Unit{{Name: "A", DependsOn: []string{"A"}}}}
	_, err := uc.Validate(context.Background(), plan)

	var cycle *domain.CyclicDependencyError
	require.ErrorAs(t, err, &cycle)
	var verr *domain.ValidationError
	assert.False(t, errors.As(err, &verr))
}

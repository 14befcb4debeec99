package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidPlan wraps every plan problem found before any transaction is submitted
	ErrInvalidPlan = errors.New("invalid deployment plan")

	// ErrRPCUnavailable is returned when the chain RPC endpoint cannot be reached
	ErrRPCUnavailable = errors.New("rpc unavailable")

	// ErrExplorerUnavailable is returned when the block explorer cannot be reached
	ErrExplorerUnavailable = errors.New("explorer unavailable")

	// ErrStateMutationUnsupported is returned when a node rejects test-only state mutation methods
	ErrStateMutationUnsupported = errors.New("network does not support local state mutation")

	// ErrManifestLocked is returned when another run holds the manifest lock
	ErrManifestLocked = errors.New("manifest is locked by another run")

	// ErrNetworkMismatch is returned when the RPC endpoint reports a different chain than configured
	ErrNetworkMismatch = errors.New("network mismatch")
)

// ValidationError describes a single problem with a deployment plan.
type ValidationError struct {
	Unit string
	Rule string
	Err  error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Unit != "" {
		fmt.Fprintf(&b, "unit %s: ", e.Unit)
	}
	b.WriteString(e.Rule)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidPlan, e.Err}
	}
	return []error{ErrInvalidPlan}
}

// DuplicateUnitError is returned when two units share a name.
type DuplicateUnitError struct {
	Unit string
}

func (e *DuplicateUnitError) Error() string {
	return fmt.Sprintf("unit %s: declared more than once", e.Unit)
}

func (e *DuplicateUnitError) Unwrap() error { return ErrInvalidPlan }

// CyclicDependencyError names the units forming a dependency cycle, in traversal order.
type CyclicDependencyError struct {
	Units []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Units) == 0 {
		return "cyclic dependency"
	}
	return fmt.Sprintf("cyclic dependency: %s -> %s", strings.Join(e.Units, " -> "), e.Units[0])
}

func (e *CyclicDependencyError) Unwrap() error { return ErrInvalidPlan }

// UnresolvedDependencyError is returned when a unit references a unit that is
// not declared, or whose address is not yet in the manifest.
type UnresolvedDependencyError struct {
	Unit       string
	Dependency string
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("unit %s: unresolved dependency %q", e.Unit, e.Dependency)
}

func (e *UnresolvedDependencyError) Unwrap() error { return ErrInvalidPlan }

// SharePlanRule identifies which share plan invariant was violated
type SharePlanRule string

const (
	SharePlanRuleArgIndex         SharePlanRule = "argument index out of range"
	SharePlanRuleNotList          SharePlanRule = "argument is not a literal list"
	SharePlanRuleEmptyRecipients  SharePlanRule = "recipient list is empty"
	SharePlanRuleLengthMismatch   SharePlanRule = "recipients and shares differ in length"
	SharePlanRuleMalformedAddress SharePlanRule = "malformed recipient address"
	SharePlanRuleInvalidShare     SharePlanRule = "share is not a non-negative integer"
	SharePlanRuleShareTooLarge    SharePlanRule = "share exceeds 10000 bps"
	SharePlanRuleSumMismatch      SharePlanRule = "shares do not sum to 10000 bps"
)

// InvalidSharePlanError reports a violated share plan rule. Sum is set for
// sum mismatches, Address for malformed recipients.
type InvalidSharePlanError struct {
	Unit    string
	Rule    SharePlanRule
	Sum     uint64
	Address string
	Detail  string
}

func (e *InvalidSharePlanError) Error() string {
	msg := fmt.Sprintf("unit %s: invalid share plan: %s", e.Unit, e.Rule)
	switch e.Rule {
	case SharePlanRuleSumMismatch:
		msg += fmt.Sprintf(" (sum=%d)", e.Sum)
	case SharePlanRuleMalformedAddress:
		msg += fmt.Sprintf(" (%q)", e.Address)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *InvalidSharePlanError) Unwrap() error { return ErrInvalidPlan }

// SubmissionFailedError is returned when a deployment could not be submitted
// or confirmed. Units after it in the order were not attempted.
type SubmissionFailedError struct {
	Unit string
	Err  error
}

func (e *SubmissionFailedError) Error() string {
	return fmt.Sprintf("deployment of %s failed: %v", e.Unit, e.Err)
}

func (e *SubmissionFailedError) Unwrap() error { return e.Err }

// TransactionRevertedError is returned when a deployment transaction was mined but failed
type TransactionRevertedError struct {
	TxHash      string
	BlockNumber uint64
}

func (e *TransactionRevertedError) Error() string {
	return fmt.Sprintf("transaction %s reverted in block %d", e.TxHash, e.BlockNumber)
}

// InvalidTimestampError is returned when a requested block timestamp is not
// strictly after the current head.
type InvalidTimestampError struct {
	Requested uint64
	Head      uint64
}

func (e *InvalidTimestampError) Error() string {
	return fmt.Sprintf("invalid timestamp %d: must be greater than head block timestamp %d", e.Requested, e.Head)
}

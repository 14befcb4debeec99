package domain

import (
	"sync"

	"github.com/samber/lo"
)

// VerificationStatus is the outcome of verifying one unit
type VerificationStatus string

const (
	VerificationPending         VerificationStatus = "pending"
	VerificationVerified        VerificationStatus = "verified"
	VerificationAlreadyVerified VerificationStatus = "already_verified"
	VerificationFailed          VerificationStatus = "failed"
)

// IsSuccess reports whether the source is verified on the explorer
func (s VerificationStatus) IsSuccess() bool {
	return s == VerificationVerified || s == VerificationAlreadyVerified
}

// VerificationResult records the verification outcome of one unit
type VerificationResult struct {
	Unit     string             `json:"unit"`
	Address  string             `json:"address"`
	Status   VerificationStatus `json:"status"`
	Reason   string             `json:"reason,omitempty"`
	Attempts int                `json:"attempts"`
	GUID     string             `json:"guid,omitempty"`
}

// VerificationReport collects per-unit results. It is safe for concurrent use.
type VerificationReport struct {
	mu      sync.Mutex
	Network string                         `json:"network"`
	Results map[string]*VerificationResult `json:"results"`
}

// NewVerificationReport creates an empty report
func NewVerificationReport(network string) *VerificationReport {
	return &VerificationReport{
		Network: network,
		Results: make(map[string]*VerificationResult),
	}
}

// Set stores the result for its unit
func (r *VerificationReport) Set(result VerificationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results[result.Unit] = &result
}

// Get returns a copy of the result for unit
func (r *VerificationReport) Get(unit string) (VerificationResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.Results[unit]
	if !ok {
		return VerificationResult{}, false
	}
	return *result, true
}

// Ordered returns results following the given unit order; units without a
// result are skipped.
func (r *VerificationReport) Ordered(order []string) []VerificationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.FilterMap(order, func(unit string, _ int) (VerificationResult, bool) {
		result, ok := r.Results[unit]
		if !ok {
			return VerificationResult{}, false
		}
		return *result, true
	})
}

// Count returns how many results have the given status
func (r *VerificationReport) Count(status VerificationStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.CountBy(lo.Values(r.Results), func(res *VerificationResult) bool { return res.Status == status })
}

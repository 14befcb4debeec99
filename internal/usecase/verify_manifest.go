package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/ethertulip/tulip-deployer/internal/domain"
)

// VerifyOptions contains options for verification
type VerifyOptions struct {
	// Only restricts verification to the named units
	Only []string
	// Force skips the already-verified check before submitting
	Force            bool
	Concurrency      int
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	MinConfirmations uint64
}

func (o VerifyOptions) withDefaults() VerifyOptions {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	return o
}

// backoff returns the delay before retry n (0-based)
func (o VerifyOptions) backoff(n int) time.Duration {
	d := o.BaseDelay
	for i := 0; i < n; i++ {
		d *= 2
		if o.MaxDelay > 0 && d >= o.MaxDelay {
			return o.MaxDelay
		}
	}
	if o.MaxDelay > 0 && d > o.MaxDelay {
		return o.MaxDelay
	}
	return d
}

// VerifyManifest submits the source of every deployed unit to the block
// explorer. Units are verified independently: one failing never stops another.
type VerifyManifest struct {
	chain     ChainClient
	artifacts ArtifactSource
	explorer  ExplorerClient
	store     ManifestStore
	metrics   MetricsRecorder
	progress  ProgressSink
	log       *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewVerifyManifest creates a new VerifyManifest use case
func NewVerifyManifest(
	chain ChainClient,
	artifacts ArtifactSource,
	explorer ExplorerClient,
	store ManifestStore,
	metrics MetricsRecorder,
	progress ProgressSink,
	log *slog.Logger,
) *VerifyManifest {
	return &VerifyManifest{
		chain:     chain,
		artifacts: artifacts,
		explorer:  explorer,
		store:     store,
		metrics:   metrics,
		progress:  progress,
		log:       log,
		sleep:     sleepContext,
	}
}

// Run verifies the manifest entries and saves the report. The error is nil
// unless the context ends or the selection is invalid; per-unit failures are
// in the report.
func (uc *VerifyManifest) Run(ctx context.Context, manifest *domain.Manifest, plan *domain.Plan, opts VerifyOptions) (*domain.VerificationReport, error) {
	opts = opts.withDefaults()

	units := manifest.Order
	if len(opts.Only) > 0 {
		for _, name := range opts.Only {
			if _, ok := manifest.Entries[name]; !ok {
				return nil, fmt.Errorf("unit %s is not in the manifest: %w", name, domain.ErrNotFound)
			}
		}
		units = lo.Filter(units, func(name string, _ int) bool { return lo.Contains(opts.Only, name) })
	}

	report := domain.NewVerificationReport(manifest.Network)
	entries := make([]domain.ManifestEntry, 0, len(units))
	for _, name := range units {
		entry, ok := manifest.Get(name)
		if !ok {
			report.Set(domain.VerificationResult{Unit: name, Status: domain.VerificationFailed, Reason: "manifest lists the unit but has no entry for it"})
			continue
		}
		report.Set(domain.VerificationResult{Unit: name, Address: entry.Address, Status: domain.VerificationPending})
		entries = append(entries, entry)
	}

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			uc.progress.OnProgress(ctx, ProgressEvent{
				Stage:   "verify",
				Unit:    entry.Unit,
				Current: i + 1,
				Total:   len(entries),
				Message: fmt.Sprintf("Verifying %s", entry.Unit),
				Spinner: true,
			})
			result := uc.verifyUnit(ctx, manifest, plan, entry, opts)
			report.Set(result)
			uc.metrics.ObserveVerification(result.Unit, result.Status, result.Attempts)
			uc.log.Info("verification finished", "unit", result.Unit, "status", result.Status, "attempts", result.Attempts, "reason", result.Reason)
			return nil
		})
	}
	_ = g.Wait()
	uc.progress.OnProgress(ctx, ProgressEvent{Stage: "verify", Current: len(entries), Total: len(entries)})

	if err := uc.store.SaveReport(ctx, report); err != nil {
		uc.log.Warn("failed to save verification report", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (uc *VerifyManifest) verifyUnit(ctx context.Context, manifest *domain.Manifest, plan *domain.Plan, entry domain.ManifestEntry, opts VerifyOptions) domain.VerificationResult {
	result := domain.VerificationResult{Unit: entry.Unit, Address: entry.Address}
	failed := func(reason string) domain.VerificationResult {
		result.Status = domain.VerificationFailed
		result.Reason = reason
		return result
	}

	if entry.IsReverted() {
		return failed(fmt.Sprintf("deployment reverted in block %d", entry.RevertedAtBlock))
	}

	req, err := uc.buildRequest(ctx, manifest, plan, entry)
	if err != nil {
		return failed(err.Error())
	}

	// pending entries always wait for their receipt
	depth := opts.MinConfirmations
	if !entry.IsConfirmed() {
		depth = max(depth, 1)
	}
	if !entry.IsConfirmed() || depth > entry.Confirmations {
		if _, err := uc.chain.WaitConfirmations(ctx, entry.TransactionHash, depth); err != nil {
			if ctx.Err() != nil {
				result.Status = domain.VerificationPending
				result.Reason = "interrupted"
				return result
			}
			var reverted *domain.TransactionRevertedError
			if errors.As(err, &reverted) {
				return failed(fmt.Sprintf("deployment reverted in block %d", reverted.BlockNumber))
			}
			return failed(fmt.Sprintf("waiting for %d confirmations: %v", depth, err))
		}
	}

	if !opts.Force {
		verified, err := uc.explorer.IsVerified(ctx, entry.Address)
		if err != nil {
			uc.log.Debug("verification status unknown", "unit", entry.Unit, "error", err)
		} else if verified {
			result.Status = domain.VerificationAlreadyVerified
			return result
		}
	}

	return uc.retry(ctx, req, result, opts)
}

// buildRequest uses the constructor arguments recorded at deployment. Entries
// written without them are rebuilt from the plan the way the deployment
// resolved them.
func (uc *VerifyManifest) buildRequest(ctx context.Context, manifest *domain.Manifest, plan *domain.Plan, entry domain.ManifestEntry) (VerificationRequest, error) {
	contract, args := entry.Contract, entry.Args
	if contract == "" || args == nil {
		var unit *domain.Unit
		if plan != nil {
			unit, _ = plan.Unit(entry.Unit)
		}
		if unit == nil {
			return VerificationRequest{}, errors.New("unit is not declared in the plan and the manifest does not record its arguments")
		}
		if contract == "" {
			contract = unit.ContractName()
		}
		if args == nil {
			resolved, err := unit.ResolveArgs(manifest.Address)
			if err != nil {
				return VerificationRequest{}, err
			}
			args = resolved
		}
	}
	artifact, err := uc.artifacts.Artifact(ctx, contract)
	if err != nil {
		return VerificationRequest{}, fmt.Errorf("failed to load artifact: %w", err)
	}
	if !artifact.Verifiable() {
		return VerificationRequest{}, fmt.Errorf("artifact %s has no compiler input to submit", artifact.Name)
	}
	encoded, err := uc.artifacts.EncodeConstructorArgs(artifact, args)
	if err != nil {
		return VerificationRequest{}, fmt.Errorf("failed to encode constructor arguments: %w", err)
	}
	return VerificationRequest{
		Address:           entry.Address,
		ContractName:      artifact.FullyQualifiedName(),
		CompilerVersion:   artifact.CompilerVersion,
		StandardJSONInput: artifact.StandardJSONInput,
		ConstructorArgs:   hex.EncodeToString(encoded),
	}, nil
}

// attempt tracks one unit through Pending -> Retrying(n) -> final
type attempt struct {
	n          int
	guid       string
	lastReason string
}

// retry drives the bounded state machine. Each iteration issues exactly one
// explorer request: a submission, or a status check once a guid is known.
func (uc *VerifyManifest) retry(ctx context.Context, req VerificationRequest, result domain.VerificationResult, opts VerifyOptions) domain.VerificationResult {
	st := &attempt{}
	for st.n = 1; st.n <= opts.MaxAttempts; st.n++ {
		result.Attempts = st.n
		if status, final := uc.step(ctx, req, st); final {
			result.Status = status
			result.GUID = st.guid
			if !status.IsSuccess() {
				result.Reason = st.lastReason
			}
			return result
		}

		if st.n == opts.MaxAttempts {
			break
		}
		delay := opts.backoff(st.n - 1)
		uc.log.Debug("verification retry scheduled", "unit", result.Unit, "attempt", st.n, "delay", delay, "reason", st.lastReason)
		if err := uc.sleep(ctx, delay); err != nil {
			result.Status = domain.VerificationPending
			result.Reason = "interrupted: " + st.lastReason
			result.GUID = st.guid
			return result
		}
	}

	result.Status = domain.VerificationFailed
	result.GUID = st.guid
	result.Reason = fmt.Sprintf("gave up after %d attempts: %s", opts.MaxAttempts, st.lastReason)
	return result
}

func (uc *VerifyManifest) step(ctx context.Context, req VerificationRequest, st *attempt) (domain.VerificationStatus, bool) {
	var (
		resp *ExplorerResponse
		err  error
	)
	if st.guid == "" {
		resp, err = uc.explorer.Submit(ctx, req)
	} else {
		resp, err = uc.explorer.CheckStatus(ctx, st.guid)
	}
	if err != nil {
		st.lastReason = err.Error()
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return domain.VerificationPending, true
		}
		return "", false
	}

	switch resp.Outcome {
	case OutcomeVerified:
		return domain.VerificationVerified, true
	case OutcomeAlreadyVerified:
		return domain.VerificationAlreadyVerified, true
	case OutcomeRejected:
		st.lastReason = resp.Reason
		return domain.VerificationFailed, true
	case OutcomeQueued:
		if resp.GUID != "" {
			st.guid = resp.GUID
		}
		st.lastReason = "verification still queued"
		if resp.Reason != "" {
			st.lastReason = resp.Reason
		}
		return "", false
	case OutcomeNotIndexed:
		// The explorer forgot or never saw the submission; submit again
		st.guid = ""
		st.lastReason = "contract not indexed yet"
		if resp.Reason != "" {
			st.lastReason = resp.Reason
		}
		return "", false
	default:
		st.lastReason = fmt.Sprintf("unexpected explorer outcome %q", resp.Outcome)
		return domain.VerificationFailed, true
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

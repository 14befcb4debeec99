package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethertulip/tulip-deployer/internal/domain"
)

// DeployOptions contains options for a deployment run
type DeployOptions struct {
	Network       string
	Confirmations uint64
	// Resume reuses confirmed entries of an existing manifest and waits on
	// pending ones instead of resubmitting them. Reverted units are submitted
	// again.
	Resume bool
	DryRun bool
}

// DeployResult contains the outcome of a deployment run. On failure it holds
// the partial manifest.
type DeployResult struct {
	Manifest     *domain.Manifest
	ManifestPath string
	Order        []string
	Deployed     []string
	Reused       []string
	DryRun       bool
}

// DeployPlan deploys the units of a plan one after another in dependency order
type DeployPlan struct {
	validator *ValidatePlan
	chain     ChainClient
	artifacts ArtifactSource
	store     ManifestStore
	metrics   MetricsRecorder
	progress  ProgressSink
	log       *slog.Logger
	now       func() time.Time
}

// NewDeployPlan creates a new DeployPlan use case
func NewDeployPlan(
	validator *ValidatePlan,
	chain ChainClient,
	artifacts ArtifactSource,
	store ManifestStore,
	metrics MetricsRecorder,
	progress ProgressSink,
	log *slog.Logger,
) *DeployPlan {
	return &DeployPlan{
		validator: validator,
		chain:     chain,
		artifacts: artifacts,
		store:     store,
		metrics:   metrics,
		progress:  progress,
		log:       log,
		now:       time.Now,
	}
}

// Run validates the plan and deploys it. Nothing is submitted for an invalid
// plan. A failing unit halts the run; earlier units stay deployed and the
// returned result carries the manifest as it stands.
func (uc *DeployPlan) Run(ctx context.Context, plan *domain.Plan, opts DeployOptions) (*DeployResult, error) {
	validated, err := uc.validator.Validate(ctx, plan)
	if err != nil {
		return nil, err
	}

	result := &DeployResult{
		Order:        validated.OrderNames(),
		ManifestPath: uc.store.Path(opts.Network),
		DryRun:       opts.DryRun,
	}
	if opts.DryRun {
		return result, nil
	}

	unlock, err := uc.store.Lock(ctx, opts.Network)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			uc.log.Warn("failed to release manifest lock", "network", opts.Network, "error", err)
		}
	}()

	manifest, err := uc.openManifest(ctx, plan, opts)
	if err != nil {
		return nil, err
	}
	result.Manifest = manifest

	signer, err := uc.chain.Signer(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to get signer: %w", err)
	}
	if manifest.Deployer != "" && manifest.Deployer != signer.Address() {
		uc.log.Warn("resuming with a different deployer", "recorded", manifest.Deployer, "signer", signer.Address())
	}
	manifest.Deployer = signer.Address()

	total := len(validated.Order)
	for i, unit := range validated.Order {
		uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:   "deploy",
			Unit:    unit.Name,
			Current: i + 1,
			Total:   total,
			Message: fmt.Sprintf("Deploying %s (%d/%d)", unit.Name, i+1, total),
			Spinner: true,
		})

		entry, ok := manifest.Get(unit.Name)
		switch {
		case ok && entry.IsConfirmed():
			uc.log.Info("reusing deployed unit", "unit", unit.Name, "address", entry.Address)
			result.Reused = append(result.Reused, unit.Name)
			continue
		case ok && entry.IsReverted():
			uc.log.Info("resubmitting reverted unit", "unit", unit.Name, "reverted_tx", entry.TransactionHash)
		case ok:
			if err := uc.awaitConfirmation(ctx, manifest, entry, opts.Confirmations); err != nil {
				return result, uc.fail(unit.Name, err, 0)
			}
			result.Deployed = append(result.Deployed, unit.Name)
			continue
		}

		started := uc.now()
		if err := uc.deployUnit(ctx, manifest, validated, unit, signer, opts.Confirmations); err != nil {
			return result, uc.fail(unit.Name, err, uc.now().Sub(started))
		}
		uc.metrics.ObserveDeployment(unit.Name, "deployed", uc.now().Sub(started))
		result.Deployed = append(result.Deployed, unit.Name)
	}

	uc.progress.OnProgress(ctx, ProgressEvent{Stage: "deploy", Current: total, Total: total})
	return result, nil
}

func (uc *DeployPlan) openManifest(ctx context.Context, plan *domain.Plan, opts DeployOptions) (*domain.Manifest, error) {
	chainID, err := uc.chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	existing, err := uc.store.Load(ctx, opts.Network)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.NewManifest(plan.Name, opts.Network, chainID), nil
	case err != nil:
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	if !opts.Resume {
		return nil, fmt.Errorf("manifest for network %s at %s: %w (use --resume to continue it)",
			opts.Network, uc.store.Path(opts.Network), domain.ErrAlreadyExists)
	}
	if existing.ChainID != chainID {
		return nil, fmt.Errorf("manifest was written for chain %d but the RPC reports %d: %w",
			existing.ChainID, chainID, domain.ErrNetworkMismatch)
	}
	return existing, nil
}

// deployUnit submits one unit. The pending entry is persisted before waiting
// so an interrupted run leaves the transaction hash on disk.
func (uc *DeployPlan) deployUnit(
	ctx context.Context,
	manifest *domain.Manifest,
	validated *ValidatePlanResult,
	unit *domain.Unit,
	signer Signer,
	confirmations uint64,
) error {
	args, err := unit.ResolveArgs(manifest.Address)
	if err != nil {
		return err
	}

	artifact, ok := validated.Artifacts[unit.Name]
	if !ok {
		artifact, err = uc.artifacts.Artifact(ctx, unit.ContractName())
		if err != nil {
			return fmt.Errorf("failed to load artifact: %w", err)
		}
	}
	encoded, err := uc.artifacts.EncodeConstructorArgs(artifact, args)
	if err != nil {
		return fmt.Errorf("failed to encode constructor arguments: %w", err)
	}

	submission, err := uc.chain.DeployContract(ctx, DeployRequest{
		Unit:            unit.Name,
		Contract:        unit.ContractName(),
		Bytecode:        artifact.Bytecode,
		ConstructorArgs: encoded,
	}, signer)
	if err != nil {
		return err
	}
	uc.log.Info("deployment submitted", "unit", unit.Name, "tx", submission.TxHash, "address", submission.Address)

	entry := domain.ManifestEntry{
		Unit:            unit.Name,
		Contract:        unit.ContractName(),
		Address:         submission.Address,
		TransactionHash: submission.TxHash,
		Args:            args,
		SubmittedAt:     uc.now().UTC(),
	}
	if err := manifest.RecordPending(entry); err != nil {
		return err
	}
	if err := uc.store.Save(ctx, manifest); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}

	return uc.awaitConfirmation(ctx, manifest, entry, confirmations)
}

func (uc *DeployPlan) awaitConfirmation(ctx context.Context, manifest *domain.Manifest, entry domain.ManifestEntry, confirmations uint64) error {
	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   "confirm",
		Unit:    entry.Unit,
		Message: fmt.Sprintf("Waiting for %d confirmations of %s", confirmations, entry.Unit),
		Spinner: true,
	})

	block, err := uc.chain.WaitConfirmations(ctx, entry.TransactionHash, confirmations)
	if err != nil {
		var reverted *domain.TransactionRevertedError
		if errors.As(err, &reverted) {
			uc.recordRevert(ctx, manifest, entry.Unit, reverted.BlockNumber)
		}
		return err
	}
	if err := manifest.Confirm(entry.Unit, block, confirmations, uc.now().UTC()); err != nil {
		return err
	}
	if err := uc.store.Save(ctx, manifest); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}

	uc.log.Info("deployment confirmed", "unit", entry.Unit, "block", block, "confirmations", confirmations)
	uc.progress.Info(fmt.Sprintf("%s deployed at %s", entry.Unit, entry.Address))
	return nil
}

// recordRevert persists the revert so a resumed run submits the unit again
// instead of waiting on the same transaction.
func (uc *DeployPlan) recordRevert(ctx context.Context, manifest *domain.Manifest, unit string, block uint64) {
	if err := manifest.MarkReverted(unit, block); err != nil {
		uc.log.Warn("failed to record revert", "unit", unit, "error", err)
		return
	}
	if err := uc.store.Save(ctx, manifest); err != nil {
		uc.log.Warn("failed to save manifest", "unit", unit, "error", err)
	}
}

func (uc *DeployPlan) fail(unit string, err error, elapsed time.Duration) error {
	uc.metrics.ObserveDeployment(unit, "failed", elapsed)
	uc.progress.Error(fmt.Sprintf("%s failed: %v", unit, err))
	return &domain.SubmissionFailedError{Unit: unit, Err: err}
}

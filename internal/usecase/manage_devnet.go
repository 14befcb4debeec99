package usecase

import (
	"context"
	"fmt"
	"math/big"
	"net/url"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
)

// DevnetOperation names a development node state change
type DevnetOperation string

const (
	DevnetFork              DevnetOperation = "fork"
	DevnetTimestamp         DevnetOperation = "timestamp"
	DevnetImpersonate       DevnetOperation = "impersonate"
	DevnetStopImpersonating DevnetOperation = "stop-impersonating"
	DevnetMine              DevnetOperation = "mine"
	DevnetSetBalance        DevnetOperation = "set-balance"
)

// ManageDevnetParams contains parameters for devnet operations
type ManageDevnetParams struct {
	Operation DevnetOperation
	SourceURL string
	Block     uint64
	Timestamp uint64
	Address   string
	Blocks    uint64
	Balance   *big.Int
}

// ManageDevnetResult contains the result of a devnet operation
type ManageDevnetResult struct {
	Operation DevnetOperation
	Network   string
	Message   string
}

// ManageDevnet drives state changes on a development node
type ManageDevnet struct {
	controller NetworkStateController
	launcher   NodeLauncher
	network    *config.Network
	progress   ProgressSink
}

// NewManageDevnet creates a new devnet management use case
func NewManageDevnet(cfg *config.RuntimeConfig, controller NetworkStateController, launcher NodeLauncher, progress ProgressSink) *ManageDevnet {
	return &ManageDevnet{
		controller: controller,
		launcher:   launcher,
		network:    cfg.Network,
		progress:   progress,
	}
}

// Execute performs the devnet operation against the active network
func (m *ManageDevnet) Execute(ctx context.Context, params ManageDevnetParams) (*ManageDevnetResult, error) {
	if m.network == nil {
		return nil, fmt.Errorf("no network selected")
	}
	if !m.network.IsLocal() {
		return nil, fmt.Errorf("network %s is not a development node: %w", m.network.Name, domain.ErrStateMutationUnsupported)
	}
	if params.Address != "" && !domain.IsValidAddress(params.Address) {
		return nil, fmt.Errorf("invalid address %q", params.Address)
	}

	result := &ManageDevnetResult{Operation: params.Operation, Network: m.network.Name}
	var err error
	switch params.Operation {
	case DevnetFork:
		err = m.controller.ForkAt(ctx, params.SourceURL, params.Block)
		result.Message = fmt.Sprintf("Forked %s at block %d", redactURL(params.SourceURL), params.Block)
	case DevnetTimestamp:
		err = m.controller.SetNextBlockTimestamp(ctx, params.Timestamp)
		result.Message = fmt.Sprintf("Next block timestamp set to %d", params.Timestamp)
	case DevnetImpersonate:
		err = m.controller.Impersonate(ctx, params.Address)
		if err == nil && params.Balance != nil {
			err = m.controller.SetBalance(ctx, params.Address, params.Balance)
		}
		result.Message = fmt.Sprintf("Impersonating %s", params.Address)
	case DevnetStopImpersonating:
		err = m.controller.StopImpersonating(ctx, params.Address)
		result.Message = fmt.Sprintf("Stopped impersonating %s", params.Address)
	case DevnetMine:
		blocks := params.Blocks
		if blocks == 0 {
			blocks = 1
		}
		err = m.controller.Mine(ctx, blocks)
		result.Message = fmt.Sprintf("Mined %d blocks", blocks)
	case DevnetSetBalance:
		if params.Balance == nil {
			return nil, fmt.Errorf("balance is required")
		}
		err = m.controller.SetBalance(ctx, params.Address, params.Balance)
		result.Message = fmt.Sprintf("Balance of %s set to %s wei", params.Address, params.Balance)
	default:
		return nil, fmt.Errorf("unknown operation: %s", params.Operation)
	}
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", params.Operation, err)
	}

	m.progress.Info(result.Message)
	return result, nil
}

// RunNode starts a local node and blocks until it exits or ctx ends
func (m *ManageDevnet) RunNode(ctx context.Context, opts NodeOptions, ready func(rpcURL string)) error {
	node, err := m.launcher.Launch(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	if ready != nil {
		ready(node.RPCURL())
	}

	done := make(chan error, 1)
	go func() { done <- node.Wait() }()

	select {
	case <-ctx.Done():
		return node.Close()
	case err := <-done:
		return err
	}
}

// redactURL drops path and query, which often carry provider API keys
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}

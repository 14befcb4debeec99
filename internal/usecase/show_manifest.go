package usecase

import (
	"context"
	"fmt"

	"github.com/ethertulip/tulip-deployer/internal/domain"
)

// ShowManifest loads the manifest of a network and optionally checks its
// transactions against the chain
type ShowManifest struct {
	store ManifestStore
	chain ChainClient
}

// NewShowManifest creates a new ShowManifest use case
func NewShowManifest(store ManifestStore, chain ChainClient) *ShowManifest {
	return &ShowManifest{
		store: store,
		chain: chain,
	}
}

// ShowManifestResult contains a manifest and, when checked, the on-chain
// status of each entry
type ShowManifestResult struct {
	Manifest *domain.Manifest
	Path     string
	Status   map[string]*TxStatus
	Errors   map[string]error
}

// Run loads the manifest for network
func (uc *ShowManifest) Run(ctx context.Context, network string, check bool) (*ShowManifestResult, error) {
	manifest, err := uc.store.Load(ctx, network)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest for %s: %w", network, err)
	}

	result := &ShowManifestResult{
		Manifest: manifest,
		Path:     uc.store.Path(network),
		Status:   make(map[string]*TxStatus),
		Errors:   make(map[string]error),
	}
	if !check {
		return result, nil
	}

	for _, entry := range manifest.List() {
		status, err := uc.chain.TransactionStatus(ctx, entry.TransactionHash)
		if err != nil {
			result.Errors[entry.Unit] = err
			continue
		}
		result.Status[entry.Unit] = status
	}
	return result, nil
}

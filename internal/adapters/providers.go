package adapters

import (
	"log/slog"

	"github.com/google/wire"

	"github.com/ethertulip/tulip-deployer/internal/adapters/anvil"
	"github.com/ethertulip/tulip-deployer/internal/adapters/blockchain"
	"github.com/ethertulip/tulip-deployer/internal/adapters/contracts"
	"github.com/ethertulip/tulip-deployer/internal/adapters/fs"
	"github.com/ethertulip/tulip-deployer/internal/adapters/interactive"
	"github.com/ethertulip/tulip-deployer/internal/adapters/metrics"
	"github.com/ethertulip/tulip-deployer/internal/adapters/verification"
	internalconfig "github.com/ethertulip/tulip-deployer/internal/config"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// ProvideChainClient provides the chain client and closes its connection on cleanup
func ProvideChainClient(cfg *config.RuntimeConfig, log *slog.Logger) (*blockchain.Client, func()) {
	client := blockchain.NewClient(cfg, log)
	return client, client.Close
}

// ProvideController provides the devnet controller and closes its connection on cleanup
func ProvideController(cfg *config.RuntimeConfig, log *slog.Logger) (*anvil.Controller, func()) {
	controller := anvil.NewController(cfg, log)
	return controller, controller.Close
}

// ProvideNetworkResolver provides a resolver over the project's networks
func ProvideNetworkResolver(cfg *config.RuntimeConfig) *internalconfig.NetworkResolver {
	return internalconfig.NewNetworkResolver(cfg.DataDir, cfg.Project)
}

// FSSet provides filesystem-based implementations
var FSSet = wire.NewSet(
	fs.NewManifestStore,
	wire.Bind(new(usecase.ManifestStore), new(*fs.ManifestStore)),

	fs.NewPlanLoader,
	wire.Bind(new(usecase.PlanLoader), new(*fs.PlanLoader)),
)

// ContractsSet provides the artifact index
var ContractsSet = wire.NewSet(
	contracts.NewIndexer,
	wire.Bind(new(usecase.ArtifactSource), new(*contracts.Indexer)),
)

// BlockchainSet provides blockchain-based implementations
var BlockchainSet = wire.NewSet(
	ProvideChainClient,
	wire.Bind(new(usecase.ChainClient), new(*blockchain.Client)),
)

// VerificationSet provides the explorer client
var VerificationSet = wire.NewSet(
	verification.NewEtherscanClient,
	wire.Bind(new(usecase.ExplorerClient), new(*verification.EtherscanClient)),
)

// DevnetSet provides development node implementations
var DevnetSet = wire.NewSet(
	ProvideController,
	wire.Bind(new(usecase.NetworkStateController), new(*anvil.Controller)),

	anvil.NewManager,
	wire.Bind(new(usecase.NodeLauncher), new(*anvil.Manager)),
)

// InteractiveSet provides interactive implementations
var InteractiveSet = wire.NewSet(
	interactive.NewSelectorAdapter,
	wire.Bind(new(usecase.InteractiveSelector), new(*interactive.SelectorAdapter)),
)

// ConfigSet provides configuration-based implementations
var ConfigSet = wire.NewSet(
	ProvideNetworkResolver,
	wire.Bind(new(usecase.NetworkResolver), new(*internalconfig.NetworkResolver)),
)

// MetricsSet provides the metrics recorder
var MetricsSet = wire.NewSet(
	metrics.NewRecorder,
	wire.Bind(new(usecase.MetricsRecorder), new(*metrics.Recorder)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	FSSet,
	ContractsSet,
	BlockchainSet,
	VerificationSet,
	DevnetSet,
	InteractiveSet,
	ConfigSet,
	MetricsSet,
)

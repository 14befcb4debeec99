package app

import (
	"log/slog"

	"github.com/ethertulip/tulip-deployer/internal/domain/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig
	Log    *slog.Logger

	// Shared dependencies
	PlanLoader    usecase.PlanLoader
	ManifestStore usecase.ManifestStore
	Selector      usecase.InteractiveSelector
	Metrics       usecase.MetricsRecorder

	// Use cases
	ValidatePlan   *usecase.ValidatePlan
	DeployPlan     *usecase.DeployPlan
	VerifyManifest *usecase.VerifyManifest
	ShowManifest   *usecase.ShowManifest
	ListNetworks   *usecase.ListNetworks
	ManageDevnet   *usecase.ManageDevnet
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	log *slog.Logger,
	planLoader usecase.PlanLoader,
	manifestStore usecase.ManifestStore,
	selector usecase.InteractiveSelector,
	metrics usecase.MetricsRecorder,
	validatePlan *usecase.ValidatePlan,
	deployPlan *usecase.DeployPlan,
	verifyManifest *usecase.VerifyManifest,
	showManifest *usecase.ShowManifest,
	listNetworks *usecase.ListNetworks,
	manageDevnet *usecase.ManageDevnet,
) (*App, error) {
	return &App{
		Config:         cfg,
		Log:            log,
		PlanLoader:     planLoader,
		ManifestStore:  manifestStore,
		Selector:       selector,
		Metrics:        metrics,
		ValidatePlan:   validatePlan,
		DeployPlan:     deployPlan,
		VerifyManifest: verifyManifest,
		ShowManifest:   showManifest,
		ListNetworks:   listNetworks,
		ManageDevnet:   manageDevnet,
	}, nil
}

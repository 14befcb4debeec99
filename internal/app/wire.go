//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"

	"github.com/ethertulip/tulip-deployer/internal/adapters"
	"github.com/ethertulip/tulip-deployer/internal/config"
	"github.com/ethertulip/tulip-deployer/internal/logging"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// InitApp creates a fully wired App instance. The cleanup closes network
// connections the adapters opened.
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, func(), error) {
	wire.Build(
		config.Provider,
		logging.NewLogger,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		usecase.NewValidatePlan,
		usecase.NewDeployPlan,
		usecase.NewVerifyManifest,
		usecase.NewShowManifest,
		usecase.NewListNetworks,
		usecase.NewManageDevnet,

		// App
		NewApp,
	)
	return nil, nil, nil
}

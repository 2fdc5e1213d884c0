//go:build wireinject

package app

import (
	"github.com/ShizNick84/SmoothSail-sub010/internal/config"

	"github.com/google/wire"
)

var providerSet = wire.NewSet(
	provideStores,
	provideBreaker,
	provideRiskService,
	provideHTTPServer,
	provideWatcher,
	newApp,
)

func buildAppWithWire(cfg *config.Config, path ConfigPath) (*App, func(), error) {
	wire.Build(providerSet)
	return nil, nil, nil
}

//go:build wireinject
// +build wireinject

package di

import (
	"SignalDeck/pkg/config"
	"SignalDeck/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideDurableStore,
		ProvideRegistrar,
		ProvideArchiver,

		// Engines and use cases
		ProvideEngines,
		ProvideSignalHandlers,

		// HTTP
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

//go:build wireinject
// +build wireinject

package di

import (
	"CandleScope/pkg/config"
	"CandleScope/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,
		ProvideRedisClient,

		// Repositories
		ProvideCandleStore,
		ProvideTickPublisher,
		ProvideCandleCache,
		ProvideMarketStream,

		// Use cases
		ProvideCandleAggregator,
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideKafkaTicksHandler,
		ProvideCandlesUseCase,
		ProvideSessionManager,
		ProvideBackfillQueue,
		ProvideBackfillCoordinator,

		// HTTP
		ProvideChartHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/config"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/server"
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
		ProvideCacheService,

		// Repositories
		ProvideQualityStore,
		ProvideResultPublisher,
		ProvideResultCache,

		// Engine components
		ProvideNormalizerRegistry,
		ProvideDetector,
		ProvideAggregator,
		ProvideFilter,
		ProvideTracker,

		// Use cases
		ProvideEvaluator,
		ProvidePipeline,
		ProvideCycleHandler,

		// HTTP surface and application server
		ProvideOpsHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}

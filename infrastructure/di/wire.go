//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"artion-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideClock,
	ProvideCollector,
	ProvideSagaMetrics,
	ProvideTracerProvider,
	ProvideLedger,
	ProvideBundleService,
	ProvideOrphanStore,
	ProvideEventPublisher,
	ProvideCoordinatorDeps,
	ProvideRegistry,
	ProvideJWTValidator,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}

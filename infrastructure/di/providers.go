package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"artion-backend/application/ports"
	"artion-backend/application/sagas"
	"artion-backend/application/services"
	"artion-backend/infrastructure/config"
	"artion-backend/infrastructure/ledger"
	"artion-backend/infrastructure/messaging/eventbridge"
	memorybus "artion-backend/infrastructure/messaging/memory"
	"artion-backend/infrastructure/observability"
	"artion-backend/infrastructure/offchain"
	"artion-backend/infrastructure/persistence/dynamodb"
	"artion-backend/infrastructure/persistence/memory"
	"artion-backend/interfaces/http/rest"
	"artion-backend/pkg/auth"
)

// memoryEventLimit bounds the in-process event log used without a bus
const memoryEventLimit = 1000

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zapCfg.Build(zap.Fields(zap.String("environment", cfg.Environment)))
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideClock returns the wall clock
func ProvideClock() ports.Clock {
	return ports.SystemClock{}
}

// ProvideCollector creates the Prometheus collector, or nil when metrics
// are disabled.
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("artion")
}

// ProvideSagaMetrics exposes the collector to the saga layer
func ProvideSagaMetrics(collector *observability.Collector) ports.SagaMetrics {
	if collector == nil {
		return ports.NoopMetrics{}
	}
	return collector
}

// ProvideTracerProvider installs the OTLP tracer when tracing is enabled.
// The cleanup flushes pending spans.
func ProvideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing {
		return nil, func() {}, nil
	}

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: "artion-backend",
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideLedger dials the EVM node. The cleanup closes the connection.
func ProvideLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ledger.Client, func(), error) {
	if !cfg.HasLedger() {
		return nil, nil, fmt.Errorf("ledger is not configured: RPC_URL, SIGNER_PRIVATE_KEY and BUNDLE_MARKETPLACE_ADDRESS are required")
	}

	client, rpc, err := ledger.Dial(ctx, ledger.Settings{
		RPCURL:                cfg.RPCURL,
		ChainID:               cfg.ChainID,
		PrivateKey:            cfg.SignerPrivateKey,
		MarketplaceAddress:    cfg.BundleMarketplaceAddress,
		FinalityConfirmations: cfg.FinalityConfirmations,
		FinalityTimeout:       cfg.FinalityTimeout,
		ReceiptPollInterval:   cfg.ReceiptPollInterval,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Connected to ledger",
		zap.String("rpc_url", cfg.RPCURL),
		zap.Int64("chain_id", cfg.ChainID))
	return client, rpc.Close, nil
}

// ProvideBundleService creates the off-chain bundle service client
func ProvideBundleService(cfg *config.Config, logger *zap.Logger) ports.BundleService {
	return offchain.NewClient(cfg.APIBaseURL, cfg.APITimeout, offchain.DefaultBreakerConfig(), logger)
}

// ProvideOrphanStore persists orphans to DynamoDB when a table is
// configured and keeps them in memory otherwise.
func ProvideOrphanStore(client *awsdynamodb.Client, clock ports.Clock, cfg *config.Config, logger *zap.Logger) ports.OrphanStore {
	if cfg.OrphanTable == "" {
		logger.Warn("ORPHAN_TABLE not set, orphaned bundles are kept in memory")
		return memory.NewOrphanStore(clock)
	}
	return dynamodb.NewOrphanStore(client, cfg.OrphanTable, clock, logger)
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		logger.Warn("EVENT_BUS_NAME not set, saga events are kept in memory")
		return memorybus.NewPublisher(memoryEventLimit, logger)
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideCoordinatorDeps assembles the collaborators shared by every session
func ProvideCoordinatorDeps(
	cfg *config.Config,
	ledgerClient *ledger.Client,
	bundles ports.BundleService,
	publisher ports.EventPublisher,
	orphans ports.OrphanStore,
	metrics ports.SagaMetrics,
	clock ports.Clock,
	logger *zap.Logger,
) sagas.CoordinatorDeps {
	marketplace := common.HexToAddress(cfg.BundleMarketplaceAddress)

	return sagas.CoordinatorDeps{
		Prober: services.NewAuthorizationProber(ledgerClient, ledgerClient, marketplace, cfg.ProbeConcurrency, metrics, logger),
		Driver: services.NewAuthorizationDriver(ledgerClient, marketplace, cfg.ProbeConcurrency, metrics, logger),
		Saga: sagas.NewBundleCommitSaga(
			services.NewBundleProvisioner(bundles, clock, logger),
			services.NewOnchainCommitter(ledgerClient, metrics, logger),
			metrics,
			logger,
		),
		Publisher: publisher,
		Orphans:   orphans,
		Metrics:   metrics,
		Clock:     clock,
		Logger:    logger,
	}
}

// ProvideRegistry creates the session registry and starts its idle sweeper.
// The cleanup stops the sweeper and closes every session.
func ProvideRegistry(deps sagas.CoordinatorDeps, cfg *config.Config) (*sagas.Registry, func()) {
	registry := sagas.NewRegistry(deps, cfg.SessionIdleTimeout)
	registry.StartSweeper()
	return registry, registry.CloseAll
}

// ProvideJWTValidator creates the bearer token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	registry *sagas.Registry,
	orphans ports.OrphanStore,
	validator *auth.JWTValidator,
	collector *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(registry, orphans, validator, collector, cfg, logger)
}

//go:build wireinject
// +build wireinject

package di

import (
	"TagSentry/pkg/config"
	"TagSentry/pkg/server"

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
		ProvideCache,
		ProvideNotifyQueue,

		// Repositories
		ProvideDeviceStore,
		ProvideSightingStore,
		ProvideLocationStore,
		ProvideSettingsStore,
		ProvideWhitelistStore,
		ProvideAlertPublisher,
		ProvideGatewayStream,

		// Detection services
		ProvideIdentifier,
		ProvideFingerprinter,
		ProvideMovementCorrelator,
		ProvideThreatScorer,
		ProvideRotationCorrelator,

		// Use cases
		ProvideSightingProcessor,
		ProvideSightingCollector,
		ProvideKafkaSightingsHandler,
		ProvideAlertDispatcher,
		ProvideDetector,

		// HTTP API and application server
		ProvideDetectionHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}

package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"TagSentry/internal/domain/models"
	"TagSentry/internal/domain/repository"
	domsvc "TagSentry/internal/domain/service"
	"TagSentry/internal/handler/api"
	mid "TagSentry/internal/middleware"
	internalrepo "TagSentry/internal/repository"
	icache "TagSentry/internal/service/cache"
	"TagSentry/internal/service/gateway"
	"TagSentry/internal/services/correlate"
	"TagSentry/internal/services/fingerprint"
	"TagSentry/internal/services/identify"
	"TagSentry/internal/services/movement"
	"TagSentry/internal/services/scoring"
	"TagSentry/internal/usecase"
	pkgcache "TagSentry/pkg/cache"
	pkgch "TagSentry/pkg/clickhouse"
	"TagSentry/pkg/config"
	pkgkafka "TagSentry/pkg/kafka"
	applogger "TagSentry/pkg/logger"
	"TagSentry/pkg/metrics"
	"TagSentry/pkg/queue"
	"TagSentry/pkg/server"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client and applies the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the sighting topic consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache builds the shared cache. Redis when configured, otherwise
// in-process memory. Single-flight sweep locking only works across
// replicas with Redis.
func ProvideCache(cfg *config.Config, l *applogger.Logger) pkgcache.Service {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache()
	}
	host, port := splitAddr(cfg.Redis.Addr)
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		l.Warn("redis unavailable, falling back to memory cache", applogger.Error(err))
		return pkgcache.NewMemoryCache()
	}
	return pkgcache.NewLayeredCache(rc)
}

func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideNotifyQueue creates the alert notification queue, nil when the
// queue (or Redis) is disabled.
func ProvideNotifyQueue(cfg *config.Config, cache pkgcache.Service, l *applogger.Logger) queue.QueueService {
	if !cfg.Queue.Enabled || !cfg.Redis.Enabled {
		return nil
	}
	lc, ok := cache.(*pkgcache.LayeredCache)
	if !ok {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:   cfg.Queue.Workers,
		QueueSize: cfg.Queue.QueueSize,
	}, lc.Redis().Client(), queue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewAlertJob(l))
	if err := q.Start(); err != nil {
		l.Error("notification queue start failed", applogger.Error(err))
		return nil
	}
	l.AttachCollector(applogger.NewCollector(applogger.CollectorConfig{
		Topic:     "error_logs",
		Publisher: q,
	}))
	return q
}

// ProvideDeviceStore creates the ClickHouse device repository.
func ProvideDeviceStore(ch *pkgch.Client, l *applogger.Logger) repository.DeviceStore {
	return internalrepo.NewCHDeviceStore(ch, l)
}

// ProvideSightingStore creates the ClickHouse sighting repository.
func ProvideSightingStore(ch *pkgch.Client, l *applogger.Logger) repository.SightingStore {
	return internalrepo.NewCHSightingStore(ch, "gateway", l)
}

// ProvideLocationStore creates the ClickHouse location repository.
func ProvideLocationStore(ch *pkgch.Client) repository.LocationStore {
	return internalrepo.NewCHLocationStore(ch)
}

// ProvideSettingsStore creates the settings repository with config-derived
// defaults for a fresh database.
func ProvideSettingsStore(ch *pkgch.Client, cfg *config.Config) repository.SettingsStore {
	return internalrepo.NewCHSettingsStore(ch, models.Settings{
		AlertThresholdCount:        cfg.Detection.MinLocations,
		MinDetectionDistanceMeters: cfg.Detection.MinDistanceMeters,
	})
}

// ProvideWhitelistStore creates the whitelist repository.
func ProvideWhitelistStore(ch *pkgch.Client) repository.WhitelistStore {
	return internalrepo.NewCHWhitelistStore(ch)
}

// ProvideAlertPublisher creates the Kafka alert publisher.
func ProvideAlertPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AlertPublisher {
	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.AlertTopic)
}

// ProvideIdentifier builds the advertisement identifier with the built-in
// manufacturer registry.
func ProvideIdentifier() domsvc.Identifier {
	return identify.NewIdentifier(identify.DefaultRegistry())
}

// ProvideFingerprinter builds the fingerprint generator.
func ProvideFingerprinter() domsvc.Fingerprinter {
	return fingerprint.NewGenerator()
}

// ProvideMovementCorrelator builds the movement correlator.
func ProvideMovementCorrelator(cfg *config.Config) domsvc.MovementCorrelator {
	return movement.NewCorrelator(cfg.Detection)
}

// ProvideThreatScorer builds the threat scorer.
func ProvideThreatScorer(cfg *config.Config) domsvc.ThreatScorer {
	return scoring.NewScorer(cfg.Detection)
}

// ProvideRotationCorrelator builds the handoff/shadow correlator.
func ProvideRotationCorrelator(
	cfg *config.Config,
	devices repository.DeviceStore,
	locations repository.LocationStore,
	l *applogger.Logger,
) domsvc.RotationCorrelator {
	return correlate.NewCorrelator(cfg.Detection, devices, locations, l)
}

// ProvideGatewayStream creates the scanner gateway WebSocket stream, nil
// when the gateway is disabled (Kafka-only deployments).
func ProvideGatewayStream(cfg *config.Config) repository.SightingStream {
	if !cfg.Gateway.Enabled {
		return nil
	}
	return gateway.New(
		cfg.Gateway.Token,
		cfg.Gateway.WebSocketURL,
		cfg.Gateway.Scanners,
		cfg.Gateway.ReconnectDelay,
		cfg.Gateway.PingInterval,
	)
}

// ProvideSightingProcessor creates the ingestion use case.
func ProvideSightingProcessor(
	identifier domsvc.Identifier,
	fingerprinter domsvc.Fingerprinter,
	devices repository.DeviceStore,
	sightings repository.SightingStore,
	producer *pkgkafka.Producer,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.SightingProcessor {
	backend := cfg.Backend.Type
	if backend == "" {
		backend = "clickhouse"
	}
	return usecase.NewSightingProcessor(
		identifier,
		fingerprinter,
		devices,
		sightings,
		producer,
		cfg.Kafka.Topic,
		m,
		backend,
	)
}

// ProvideSightingCollector wires the gateway stream through the validation
// pipeline into the processor.
func ProvideSightingCollector(
	stream repository.SightingStream,
	proc *usecase.SightingProcessor,
	m repository.Metrics,
) *usecase.SightingCollector {
	if stream == nil {
		return nil
	}
	pipe := mid.NewSightingPipeline(proc, m,
		mid.WithMaxRPS(4),
		mid.WithBufferSize(1000),
	)
	return usecase.NewSightingCollector(stream, proc, m, pipe)
}

// ProvideKafkaSightingsHandler registers the consumer-side ingestion path.
func ProvideKafkaSightingsHandler(proc *usecase.SightingProcessor, m repository.Metrics, cfg *config.Config) *usecase.KafkaSightingsHandler {
	return usecase.NewKafkaSightingsHandler(cfg.Kafka.Topic, proc, m)
}

// ProvideAlertDispatcher creates the alert fan-out.
func ProvideAlertDispatcher(
	pub repository.AlertPublisher,
	notify queue.QueueService,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.AlertDispatcher {
	return usecase.NewAlertDispatcher(pub, notify, cfg.Detection.AlertLevel, m, l)
}

// ProvideDetector assembles the sweep orchestrator.
func ProvideDetector(
	cfg *config.Config,
	devices repository.DeviceStore,
	sightings repository.SightingStore,
	locations repository.LocationStore,
	settings repository.SettingsStore,
	whitelist repository.WhitelistStore,
	mover domsvc.MovementCorrelator,
	scorer domsvc.ThreatScorer,
	rotator domsvc.RotationCorrelator,
	cache pkgcache.Service,
	dispatcher *usecase.AlertDispatcher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Detector {
	return usecase.NewDetector(
		cfg.Detection,
		cfg.Cache.ResultTTL,
		devices,
		sightings,
		locations,
		settings,
		whitelist,
		mover,
		scorer,
		rotator,
		cache,
		dispatcher,
		m,
		l,
	)
}

// ProvideDetectionHandler creates the HTTP API handler.
func ProvideDetectionHandler(
	detector *usecase.Detector,
	whitelist repository.WhitelistStore,
	settings repository.SettingsStore,
	cache pkgcache.Service,
	l *applogger.Logger,
) *api.DetectionHandler {
	h := api.NewDetectionHandler(detector, whitelist, settings, l)
	if lc, ok := cache.(*pkgcache.LayeredCache); ok {
		h.SetCache(icache.NewRedisCache(lc.Redis().Client()))
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.SightingCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSightingsHandler,
	handler *api.DetectionHandler,
	detector *usecase.Detector,
	chClient *pkgch.Client,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, l, collector, consumer, kh, handler, chClient)
	app.SetDetector(detector)
	return app
}

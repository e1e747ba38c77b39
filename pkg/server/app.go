package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TagSentry/internal/handler/api"
	"TagSentry/internal/usecase"
	pkgch "TagSentry/pkg/clickhouse"
	"TagSentry/pkg/config"
	xhttp "TagSentry/pkg/http"
	pkgkafka "TagSentry/pkg/kafka"
	applogger "TagSentry/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	collector  *usecase.SightingCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	handler    *api.DetectionHandler
	chClient   *pkgch.Client
	httpServer *xhttp.Server
	detector   *usecase.Detector
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.SightingCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	handler *api.DetectionHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		handler:   handler,
		chClient:  chClient,
	}
}

// SetDetector enables the background sweep loop.
func (a *App) SetDetector(d *usecase.Detector) { a.detector = d }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.log.Error("collector error", applogger.Error(err))
			}
		}()
		a.log.Info("gateway collector started",
			applogger.Strings("scanners", a.cfg.Gateway.Scanners))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.detector != nil && a.cfg.Detection.SweepInterval > 0 {
		go a.sweepLoop(ctx)
		a.log.Info("background sweeps enabled",
			applogger.Duration("interval", a.cfg.Detection.SweepInterval))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// sweepLoop runs detection on a fixed interval. A sweep that loses the
// single-flight lock is skipped silently; anything else is logged.
func (a *App) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Detection.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.detector.RunDetection(ctx); err != nil &&
				!errors.Is(err, usecase.ErrSweepInProgress) {
				a.log.Error("scheduled sweep failed", applogger.Error(err))
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}

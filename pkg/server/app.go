package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/middleware"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/quality"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/usecase"
	pkgch "github.com/virtexvirtuoso/Virtuoso-sub004/pkg/clickhouse"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/config"
	xhttp "github.com/virtexvirtuoso/Virtuoso-sub004/pkg/http"
	pkgkafka "github.com/virtexvirtuoso/Virtuoso-sub004/pkg/kafka"
	applogger "github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	evaluator   *usecase.Evaluator
	pipeline    *middleware.EvalPipeline
	tracker     *quality.Tracker
	consumer    *pkgkafka.Consumer
	cycleHandle pkgkafka.MessageHandler
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	evaluator *usecase.Evaluator,
	pipeline *middleware.EvalPipeline,
	tracker *quality.Tracker,
	consumer *pkgkafka.Consumer,
	cycleHandle pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		evaluator:   evaluator,
		pipeline:    pipeline,
		tracker:     tracker,
		consumer:    consumer,
		cycleHandle: cycleHandle,
		chClient:    chClient,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	a.tracker.Start(ctx)
	a.pipeline.Start(ctx)

	if a.consumer != nil && a.cycleHandle != nil {
		a.consumer.RegisterHandler(a.cycleHandle)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.cycleHandle.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops accepting work, drains in-flight evaluations, then
// closes infrastructure in reverse start order.
func (a *App) shutdown(ctx context.Context) error {
	if a.consumer != nil {
		if err := a.consumer.Stop(); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.pipeline.Stop()
	a.evaluator.Drain()
	a.tracker.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}

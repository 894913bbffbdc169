package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SignalDeck/internal/domain/repository"
	"SignalDeck/internal/engine"
	"SignalDeck/internal/usecase"
	"SignalDeck/pkg/config"
	xhttp "SignalDeck/pkg/http"
	pkgkafka "SignalDeck/pkg/kafka"
	applogger "SignalDeck/pkg/logger"
)

// App encapsulates the entire application lifecycle: restore, consume,
// scheduled persistence, HTTP, and graceful shutdown.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	engines   map[string]*engine.Engine
	handlers  []*usecase.SignalHandler
	consumer  *pkgkafka.Consumer
	store     repository.DurableStore
	registrar repository.Registrar
	archiver  repository.Archiver

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	engines map[string]*engine.Engine,
	handlers []*usecase.SignalHandler,
	consumer *pkgkafka.Consumer,
	store repository.DurableStore,
	registrar repository.Registrar,
	archiver repository.Archiver,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		engines:     engines,
		handlers:    handlers,
		consumer:    consumer,
		store:       store,
		registrar:   registrar,
		archiver:    archiver,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Restore caches before the first inbound event can race them.
	for _, eng := range a.engines {
		eng.Restore(ctx, a.store)
	}

	for _, h := range a.handlers {
		a.consumer.RegisterHandler(h)
	}
	if err := a.consumer.Start(); err != nil {
		a.log.Error("kafka consumer start error", applogger.Error(err))
		return err
	}
	a.log.Info("kafka consumer started",
		applogger.Int("topics", len(a.handlers)),
		applogger.Strings("brokers", a.cfg.Kafka.Brokers))

	go a.persistLoop(ctx)

	a.httpServer = xhttp.NewServer(a.log, a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRateLimit(a.cfg.Server.RateLimitBurst, a.cfg.Server.RateLimitPerSec),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// persistLoop snapshots every engine to the durable store on a fixed
// schedule until ctx is cancelled.
func (a *App) persistLoop(ctx context.Context) {
	interval := a.cfg.Engine.PersistInterval
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, eng := range a.engines {
				eng.Persist(ctx, a.store)
			}
		}
	}
}

// shutdown stops intake first so the final persist sees a quiesced state.
func (a *App) shutdown() error {
	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.consumer.Stop(stopCtx); err != nil {
		a.log.Warn("kafka consumer stop error", applogger.Error(err))
	}

	for _, eng := range a.engines {
		eng.Persist(stopCtx, a.store)
		eng.Close()
	}
	a.log.Info("final persist complete", applogger.Int("engines", len(a.engines)))

	if a.httpServer != nil {
		if err := a.httpServer.Stop(stopCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if err := a.registrar.Close(); err != nil {
		a.log.Warn("registrar close error", applogger.Error(err))
	}
	if a.archiver != nil {
		if err := a.archiver.Close(); err != nil {
			a.log.Warn("archiver close error", applogger.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("durable store close error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}

package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CandleScope/internal/domain/repository"
	"CandleScope/internal/usecase"
	pkgch "CandleScope/pkg/clickhouse"
	"CandleScope/pkg/config"
	xhttp "CandleScope/pkg/http"
	pkgkafka "CandleScope/pkg/kafka"
	applogger "CandleScope/pkg/logger"
	"CandleScope/pkg/queue"
)

// App encapsulates the entire application lifecycle: the live tick
// pipeline, the kafka consumer feeding the aggregator, the backfill worker
// pool and the chart HTTP API.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	collector  *usecase.TickCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	chClient   *pkgch.Client
	aggregator *usecase.CandleAggregator
	sessions   *usecase.SessionManager
	backfill   *queue.RedisQueue
	backfiller *usecase.BackfillCoordinator
	handler    xhttp.Handler
	httpServer *xhttp.Server
}

// New wires the application together. Optional pieces (consumer, backfill
// queue, coordinator) may be nil and are skipped at startup.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	aggregator *usecase.CandleAggregator,
	sessions *usecase.SessionManager,
	backfill *queue.RedisQueue,
	backfiller *usecase.BackfillCoordinator,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		collector:  collector,
		consumer:   consumer,
		kh:         kh,
		chClient:   chClient,
		aggregator: aggregator,
		sessions:   sessions,
		backfill:   backfill,
		backfiller: backfiller,
		handler:    handler,
	}
}

// Run starts every component and blocks until an interrupt arrives.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	go func() {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Error("tick collector error", applogger.Error(err))
		}
	}()
	a.log.Info("tick collector started", applogger.Strings("symbols", a.cfg.Stream.Symbols))

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.backfill != nil {
		if err := a.backfill.Start(); err != nil {
			a.log.Error("backfill queue start error", applogger.Error(err))
			return err
		}
		a.log.Info("backfill workers started", applogger.Int("workers", a.cfg.Backfill.Workers))
	}

	if a.backfiller != nil {
		go a.scheduleBackfill(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// scheduleBackfill enqueues the configured lookback window for every
// streamed symbol. Ranges another instance already claimed are skipped by
// the coordinator's lock.
func (a *App) scheduleBackfill(ctx context.Context) {
	if a.cfg.Backfill.LookbackMax <= 0 {
		return
	}
	to := time.Now().UTC()
	from := to.Add(-a.cfg.Backfill.LookbackMax)
	tfs := repository.AllTimeframes()
	for _, symbol := range a.cfg.Stream.Symbols {
		if err := a.backfiller.Enqueue(ctx, symbol, tfs, from, to); err != nil {
			a.log.Warn("startup backfill error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
	}
}

// shutdown stops components in reverse dependency order so no in-flight
// data is lost: intake first, then workers, then storage.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.collector.Shutdown(ctx); err != nil {
		a.log.Warn("tick collector stop error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.backfill != nil {
		if err := a.backfill.Stop(ctx); err != nil {
			a.log.Warn("backfill queue stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.sessions != nil {
		a.sessions.CloseAll()
	}

	if a.aggregator != nil {
		if err := a.aggregator.FlushAll(shutdownCtx); err != nil {
			a.log.Warn("aggregator flush error", applogger.Error(err))
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

package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"CandleScope/internal/domain/repository"
	"CandleScope/internal/engine"
	"CandleScope/internal/handler/api"
	mid "CandleScope/internal/middleware"
	internalrepo "CandleScope/internal/repository"
	"CandleScope/internal/service/bars"
	icache "CandleScope/internal/service/cache"
	"CandleScope/internal/service/marketdata"
	"CandleScope/internal/usecase"
	pkgcache "CandleScope/pkg/cache"
	pkgch "CandleScope/pkg/clickhouse"
	"CandleScope/pkg/config"
	xhttp "CandleScope/pkg/http"
	pkgkafka "CandleScope/pkg/kafka"
	"CandleScope/pkg/logger"
	"CandleScope/pkg/metrics"
	"CandleScope/pkg/queue"
	"CandleScope/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and prepares the
// candle tables.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := internalrepo.NewClickHouseCandleStore(client, l)
	if err := store.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideCandleStore creates the ClickHouse candle repository.
func ProvideCandleStore(chClient *pkgch.Client, l *logger.Logger) repository.CandleStore {
	return internalrepo.NewClickHouseCandleStore(chClient, l)
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

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
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

// ProvideTickPublisher creates the Kafka tick publisher.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.Topic)
}

// ProvideRedisCache creates the shared redis cache layer. Returns nil
// when redis is disabled; downstream providers fall back to memory.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Cache.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		pkgcache.WithRedisPrefix("candlescope"),
	)
}

// ProvideRedisClient exposes the underlying redis client for the backfill
// queue. Nil when redis is disabled.
func ProvideRedisClient(rc *pkgcache.RedisCache) *goredis.Client {
	if rc == nil {
		return nil
	}
	return rc.Client()
}

// ProvideCandleCache creates the per-timeframe candle cache: layered
// memory+redis when redis is up, plain memory otherwise.
func ProvideCandleCache(rc *pkgcache.RedisCache) *icache.CandleCache {
	if rc == nil {
		return icache.NewCandleCache(pkgcache.NewMemoryCache())
	}
	return icache.NewCandleCache(pkgcache.NewLayeredCache(rc))
}

// ProvideMarketStream creates the market data WebSocket stream.
func ProvideMarketStream(cfg *config.Config, l *logger.Logger) repository.MarketStream {
	return marketdata.New(
		cfg.Stream.APIKey,
		cfg.Stream.WebSocketURL,
		cfg.Stream.Symbols,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
		l,
	)
}

// ProvideCandleAggregator creates the tick-to-candle aggregator.
func ProvideCandleAggregator(store repository.CandleStore, cc *icache.CandleCache, m repository.Metrics, l *logger.Logger) *usecase.CandleAggregator {
	return usecase.NewCandleAggregator(store, cc, m, l)
}

// ProvideTickProcessor creates the tick routing use case.
func ProvideTickProcessor(pub repository.Publisher, agg *usecase.CandleAggregator, m repository.Metrics, cfg *config.Config) *usecase.TickProcessor {
	backend := "inline"
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic != "" {
		backend = "kafka"
	}
	return usecase.NewTickProcessor(pub, agg, m, backend)
}

// ProvideTickCollector creates the collector with its throttling pipeline
// between the WebSocket and the processor.
func ProvideTickCollector(stream repository.MarketStream, processor *usecase.TickProcessor, m repository.Metrics) *usecase.TickCollector {
	pipe := mid.NewTickPipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTickCollector(stream, processor, m, pipe)
}

// ProvideKafkaTicksHandler registers the handler for the ticks topic.
func ProvideKafkaTicksHandler(agg *usecase.CandleAggregator, m repository.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Topic, agg, m)
}

// ProvideCandlesUseCase creates the candle page use case.
func ProvideCandlesUseCase(store repository.CandleStore, cc *icache.CandleCache, agg *usecase.CandleAggregator, m repository.Metrics, l *logger.Logger) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store, cc, agg, m, l)
}

// ProvideSessionManager creates the chart session manager with the
// engine settings from config.
func ProvideSessionManager(candles *usecase.CandlesUseCase, cfg *config.Config, m repository.Metrics, l *logger.Logger) *usecase.SessionManager {
	engineOpts := []engine.Option{engine.WithMetrics(m)}
	if cfg.Engine.Lookahead > 0 {
		engineOpts = append(engineOpts, engine.WithLookahead(cfg.Engine.Lookahead, cfg.Engine.EdgeThreshold))
	}
	return usecase.NewSessionManager(candles, cfg.Engine.MaxSessions, m, l,
		usecase.WithEngineOptions(engineOpts...),
	)
}

// ProvideBackfillQueue creates the redis-backed backfill worker pool.
// Returns nil when backfill is disabled or redis is unavailable.
func ProvideBackfillQueue(cfg *config.Config, rdb *goredis.Client, store repository.CandleStore, cc *icache.CandleCache, m repository.Metrics, l *logger.Logger) *queue.RedisQueue {
	if !cfg.Backfill.Enabled || rdb == nil {
		return nil
	}
	httpClient := xhttp.NewClient(xhttp.WithTimeout(cfg.Bars.Timeout))
	fetcher := bars.New(httpClient, cfg.Bars.BaseURL, cfg.Bars.APIKey, cfg.Bars.APISecret, l,
		bars.WithPageLimit(cfg.Bars.PageLimit),
		bars.WithRate(cfg.Bars.RateRPS),
	)
	job := usecase.NewBackfillJob(fetcher, store, cc, m, l)
	return queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    cfg.Backfill.Workers,
		QueueSize:  1024,
		RetryLimit: cfg.Backfill.MaxRetries,
		RetryDelay: cfg.Backfill.RetryDelay,
	}, rdb, []queue.Job{job}, queue.WithKeyPrefix(cfg.Backfill.QueueName))
}

// ProvideBackfillCoordinator creates the startup backfill scheduler.
// Nil when the worker pool is disabled; the redis cache, when present,
// serves as the cross-instance range lock.
func ProvideBackfillCoordinator(cfg *config.Config, q *queue.RedisQueue, rc *pkgcache.RedisCache, l *logger.Logger) *usecase.BackfillCoordinator {
	if q == nil {
		return nil
	}
	var locker usecase.RangeLocker
	if rc != nil {
		locker = rc
	}
	return usecase.NewBackfillCoordinator(q, locker, cfg.Backfill.ChunkDays, cfg.Backfill.LookbackMax, l)
}

// ProvideChartHandler creates the HTTP chart handler.
func ProvideChartHandler(l *logger.Logger, candles *usecase.CandlesUseCase, sessions *usecase.SessionManager) xhttp.Handler {
	return api.NewChartHandler(l, candles, sessions)
}

// ProvideApp assembles the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	chClient *pkgch.Client,
	agg *usecase.CandleAggregator,
	sessions *usecase.SessionManager,
	backfill *queue.RedisQueue,
	backfiller *usecase.BackfillCoordinator,
	handler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, l, collector, consumer, kh, chClient, agg, sessions, backfill, backfiller, handler)
}

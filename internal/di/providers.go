package di

import (
	"context"
	"fmt"
	"time"

	"SignalDeck/internal/domain/repository"
	"SignalDeck/internal/engine"
	"SignalDeck/internal/handler/api"
	internalrepo "SignalDeck/internal/repository"
	"SignalDeck/internal/usecase"
	pkgch "SignalDeck/pkg/clickhouse"
	"SignalDeck/pkg/config"
	xhttp "SignalDeck/pkg/http"
	pkgkafka "SignalDeck/pkg/kafka"
	applogger "SignalDeck/pkg/logger"
	"SignalDeck/pkg/metrics"
	"SignalDeck/pkg/server"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger from the Log block.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient creates the Redis client used by the durable store.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideDurableStore creates the Redis-backed snapshot store.
func ProvideDurableStore(client *redis.Client, log *applogger.Logger, cfg *config.Config) repository.DurableStore {
	activeTTL := time.Duration(cfg.Engine.TTLMinutes) * time.Minute
	return internalrepo.NewRedisStore(client, log, cfg.Redis.KeyPrefix, activeTTL, cfg.Redis.CallTimeout)
}

// ProvideKafkaProducer creates the producer behind the curated registrar.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRegistrar creates the curated-signal forwarder.
func ProvideRegistrar(producer *pkgkafka.Producer, cfg *config.Config) repository.Registrar {
	return internalrepo.NewKafkaRegistrar(producer, cfg.Kafka.CuratedTopic)
}

// ProvideArchiver creates the optional ClickHouse archive. Returns nil when
// the clickhouse block is disabled; the engine treats a nil archiver as "no
// archiving".
func ProvideArchiver(cfg *config.Config) (repository.Archiver, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithDialTimeout(cfg.ClickHouse.DialTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	table := cfg.ClickHouse.Database + ".accepted_signals"
	if err := client.InitSchema(ctx, internalrepo.ArchiveSchema(cfg.ClickHouse.Database, table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return internalrepo.NewClickHouseArchive(client.DB(), table), nil
}

// ProvideEngines creates one lifecycle engine per configured source.
// Per-source TTL and quota override the Engine block defaults.
func ProvideEngines(cfg *config.Config, log *applogger.Logger, m repository.Metrics, registrar repository.Registrar, archiver repository.Archiver) map[string]*engine.Engine {
	loc := cfg.MarketLocation()
	engines := make(map[string]*engine.Engine, len(cfg.Sources))
	for _, src := range cfg.Sources {
		ttl := cfg.Engine.TTLMinutes
		if src.TTLMinutes > 0 {
			ttl = src.TTLMinutes
		}
		maxPerDay := cfg.Engine.MaxPerDay
		if src.MaxPerDay > 0 {
			maxPerDay = src.MaxPerDay
		}
		engines[src.Name] = engine.New(engine.Config{
			Source:          src.Name,
			TTL:             time.Duration(ttl) * time.Minute,
			MaxPerDay:       maxPerDay,
			MaxActive:       cfg.Engine.MaxActive,
			DedupWindow:     time.Duration(cfg.Engine.DedupWindowMin) * time.Minute,
			DedupMaxEntries: cfg.Engine.DedupMaxEntries,
			MarketTZ:        loc,
		}, log, m, registrar, archiver)
	}
	return engines
}

// ProvideSignalHandlers binds each configured source topic to its engine.
func ProvideSignalHandlers(cfg *config.Config, engines map[string]*engine.Engine, log *applogger.Logger) ([]*usecase.SignalHandler, error) {
	handlers := make([]*usecase.SignalHandler, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		parse, ok := usecase.ParserFor(src.Name)
		if !ok {
			return nil, fmt.Errorf("no parser registered for source %q", src.Name)
		}
		handlers = append(handlers, usecase.NewSignalHandler(src.Topic, parse, engines[src.Name], log))
	}
	return handlers, nil
}

// ProvideKafkaConsumer creates the consumer shared by all source topics.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
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
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, km kafkago.Message, _ []byte, err error) {
			log.Warn("signal handler attempt failed",
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.Error(err))
		},
	})
	return consumer, nil
}

// ProvideHTTPHandler creates the signals read API.
func ProvideHTTPHandler(log *applogger.Logger, engines map[string]*engine.Engine) xhttp.Handler {
	return api.NewSignalsHandler(log, engines)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	engines map[string]*engine.Engine,
	handlers []*usecase.SignalHandler,
	consumer *pkgkafka.Consumer,
	store repository.DurableStore,
	registrar repository.Registrar,
	archiver repository.Archiver,
	httpHandler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, engines, handlers, consumer, store, registrar, archiver, httpHandler)
}

package di

import (
	"context"
	"fmt"
	"time"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/confluence"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/repository"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/handler/api"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/manipulation"
	mid "github.com/virtexvirtuoso/Virtuoso-sub004/internal/middleware"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/normalize"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/quality"
	internalrepo "github.com/virtexvirtuoso/Virtuoso-sub004/internal/repository"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/safemath"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/usecase"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/cache"
	pkgch "github.com/virtexvirtuoso/Virtuoso-sub004/pkg/clickhouse"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/config"
	xhttp "github.com/virtexvirtuoso/Virtuoso-sub004/pkg/http"
	pkgkafka "github.com/virtexvirtuoso/Virtuoso-sub004/pkg/kafka"
	applogger "github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/metrics"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/server"
)

// ProvideLogger creates the application logger and installs it as the
// arithmetic fallback logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	safemath.SetLogger(l, cfg.Logging.WarnFallbacks)
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// durable store is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideQualityStore creates the durable quality store on ClickHouse and
// ensures its schema. Nil when ClickHouse is disabled; the tracker then
// runs on its ring buffer and JSONL file only.
func ProvideQualityStore(chClient *pkgch.Client, cfg *config.Config) (repository.QualityStore, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseQualityStore(chClient, cfg.ClickHouse.Database+".quality_log")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = chClient.Close()
		return nil, fmt.Errorf("quality store schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers
// are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
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

// ProvideResultPublisher creates the Kafka result publisher.
func ProvideResultPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultTopic)
}

// ProvideCacheService creates Redis when enabled, in-memory otherwise.
func ProvideCacheService(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideResultCache creates the latest-result cache.
func ProvideResultCache(svc cache.Service, cfg *config.Config) repository.ResultCache {
	return internalrepo.NewCacheResultCache(svc, cfg.Redis.ResultTTL)
}

// ProvideNormalizerRegistry creates the per symbol+indicator normalizer set.
func ProvideNormalizerRegistry(cfg *config.Config, log *applogger.Logger) *normalize.Registry {
	return normalize.NewRegistry(cfg.Normalizer, log)
}

// ProvideDetector creates the manipulation detector.
func ProvideDetector(cfg *config.Config, log *applogger.Logger) *manipulation.Detector {
	return manipulation.NewDetector(cfg.Manipulation, log)
}

// ProvideAggregator creates the confluence aggregator from the configured
// weights.
func ProvideAggregator(cfg *config.Config, log *applogger.Logger) (*confluence.Aggregator, error) {
	return confluence.NewAggregator(cfg.Confluence, confluence.WeightSet(cfg.Weights), log)
}

// ProvideFilter creates the quality filter.
func ProvideFilter(cfg *config.Config, log *applogger.Logger) *quality.Filter {
	return quality.NewFilter(cfg.Filter, log)
}

// ProvideTracker creates the quality metrics tracker.
func ProvideTracker(cfg *config.Config, store repository.QualityStore, m repository.Metrics, log *applogger.Logger) *quality.Tracker {
	return quality.NewTracker(cfg.Tracker, store, m, log)
}

// ProvideEvaluator wires the evaluation use case.
func ProvideEvaluator(
	cfg *config.Config,
	detector *manipulation.Detector,
	norms *normalize.Registry,
	agg *confluence.Aggregator,
	filter *quality.Filter,
	tracker *quality.Tracker,
	publisher repository.ResultPublisher,
	results repository.ResultCache,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Evaluator {
	return usecase.NewEvaluator(
		usecase.EvaluatorConfig{
			Prefilter:           cfg.Engine.Prefilter,
			PenaltyAdjust:       cfg.Engine.PenaltyAdjust,
			PublishTimeout:      cfg.Engine.PublishTimeout,
			ZScoreIndicators:    cfg.Engine.ZScoreIndicators,
			OrderbookIndicators: cfg.Engine.OrderbookIndicators,
		},
		detector, norms, agg, filter, tracker, publisher, results, m, log,
	)
}

// ProvidePipeline creates the evaluation pipeline middleware.
func ProvidePipeline(cfg *config.Config, evaluator *usecase.Evaluator, m repository.Metrics, log *applogger.Logger) *mid.EvalPipeline {
	return mid.NewEvalPipeline(evaluator, m, log,
		mid.WithWorkers(cfg.Engine.Workers),
		mid.WithBufferSize(cfg.Engine.BufferSize),
		mid.WithMaxPerSymbol(cfg.Engine.MaxPerSymbolPS),
	)
}

// ProvideCycleHandler registers the handler for the cycle topic.
func ProvideCycleHandler(cfg *config.Config, pipe *mid.EvalPipeline, m repository.Metrics) pkgkafka.MessageHandler {
	return usecase.NewCycleHandler(cfg.Kafka.CycleTopic, pipe, m)
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when no brokers
// are configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideOpsHandler creates the operational HTTP handler.
func ProvideOpsHandler(log *applogger.Logger, tracker *quality.Tracker, norms *normalize.Registry, results repository.ResultCache) xhttp.Handler {
	return api.NewOpsHandler(log, tracker, norms, results)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	evaluator *usecase.Evaluator,
	pipeline *mid.EvalPipeline,
	tracker *quality.Tracker,
	consumer *pkgkafka.Consumer,
	cycleHandle pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, evaluator, pipeline, tracker, consumer, cycleHandle, chClient, handler)
}

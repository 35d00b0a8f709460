// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"employability-workers/internal/api"
	"employability-workers/internal/common/aws"
	"employability-workers/internal/common/camunda"
	"employability-workers/internal/common/config"
	"employability-workers/internal/common/database"
	stderrs "employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/common/observability"
	"employability-workers/internal/crawler"
	"employability-workers/internal/models"
	"employability-workers/internal/pipeline/artifacts"
	"employability-workers/internal/pipeline/collector"
	"employability-workers/internal/pipeline/model"
	"employability-workers/internal/pipeline/predictor"
	"employability-workers/internal/pipeline/trainer"
	"employability-workers/internal/store/esstore"
	"employability-workers/internal/store/memory"
	pgstore "employability-workers/internal/store/postgres"
	"employability-workers/internal/store/redisstore"
	"employability-workers/pkg/registry"

	// Ingestion workers
	ip "employability-workers/internal/workers/ingestion/ingest-postings"
	rcu "employability-workers/internal/workers/ingestion/register-crawl-url"

	// Model workers
	pe "employability-workers/internal/workers/model/predict-employability"
	tm "employability-workers/internal/workers/model/train-model"
)

const registryPath = "configs/activity-registry.json"

// postingStore is what every storage backend provides.
type postingStore interface {
	collector.Store
	Ping(ctx context.Context) error
}

type urlRepository interface {
	Add(ctx context.Context, url string) (bool, error)
	List(ctx context.Context) ([]models.CrawlURL, error)
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("artifacts", cfg.Artifacts.Dir),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("observability init failed, stage timings disabled", zap.Error(err))
		obs = observability.NewNoop()
	}

	ctx := context.Background()

	// --- Storage backend ---
	store, urls, closeStore, err := openStores(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("storage init failed", zap.Error(err))
	}
	defer closeStore()

	// --- Pipeline ---
	coll := collector.New(store, collector.NewDegrader(cfg.Crawler.Seed), log)
	fetcher := crawler.NewFetcher(config.GetDuration(cfg.Crawler.Timeout), cfg.Crawler.UserAgent)
	crawl := crawler.New(fetcher, cfg.Crawler.Concurrency, log)

	bundles := artifacts.NewStore(cfg.Artifacts.Dir, log)
	pred := predictor.New(bundles, log)
	if err := pred.Reload(); err != nil {
		if errors.Is(err, stderrs.ErrArtifactNotFound) {
			zapLog.Info("no trained model yet, predictions disabled until the first training run")
		} else {
			zapLog.Fatal("artifact bundle load failed", zap.Error(err))
		}
	} else {
		zapLog.Info("model loaded", zap.String("version", pred.Version()))
	}

	trainerOpts := []trainer.Option{trainer.WithObservability(obs)}
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		trainerOpts = append(trainerOpts, trainer.WithNotifier(trainer.NewSNSNotifier(snsClient, cfg.Notifications.SNS.TopicARN)))
		zapLog.Info("training notifications enabled", zap.String("topic", cfg.Notifications.SNS.TopicARN))
	}

	orch := trainer.New(store, bundles, trainer.Config{
		TestFraction: cfg.Training.TestFraction,
		Seed:         cfg.Training.Seed,
		Model:        cfg.Training.Model,
		Params: model.Params{
			Epochs:       cfg.Training.Epochs,
			LearningRate: cfg.Training.LearningRate,
			L2:           cfg.Training.L2,
			Seed:         cfg.Training.Seed,
		},
	}, log, trainerOpts...)

	// --- Zeebe workers ---
	var workers []*camunda.CamundaWorker
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
			if err != nil {
				return err
			}
			hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return zeebe.HealthCheck(hctx)
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		reg, err := registry.LoadRegistry(registryPath)
		if err == nil {
			err = reg.Validate()
		}
		if err != nil {
			zapLog.Warn("activity registry unavailable", zap.String("path", registryPath), zap.Error(err))
			reg = &registry.ActivityRegistry{}
		}

		start := func(taskType string, handler camunda.JobHandler) {
			if !config.IsWorkerEnabled(cfg, taskType) {
				zapLog.Info("worker disabled", zap.String("taskType", taskType))
				return
			}
			if a, ok := reg.Find(taskType); ok {
				zapLog.Info("registering activity",
					zap.String("taskType", taskType),
					zap.String("activity", a.DisplayName),
					zap.Strings("errorCodes", a.ErrorCodes),
				)
			} else {
				zapLog.Warn("task type missing from activity registry", zap.String("taskType", taskType))
			}
			wcfg := config.GetWorkerConfig(cfg, taskType)
			workers = append(workers, camunda.NewWorker(
				zeebe.GetClient(),
				taskType,
				wcfg.MaxJobsActive,
				config.GetDuration(wcfg.Timeout),
				handler,
				zapLog,
			))
		}

		ipCfg := ip.LoadConfig()
		start(ip.TaskType, ip.NewHandler(ipCfg, crawl, fetcher, urls, coll, log))

		rcuCfg := rcu.LoadConfig()
		start(rcu.TaskType, rcu.NewHandler(rcuCfg, urls, log))

		tmCfg := tm.LoadConfig()
		start(tm.TaskType, tm.NewHandler(tmCfg, orch, pred, log))

		peCfg := pe.LoadConfig()
		start(pe.TaskType, pe.NewHandler(peCfg, pred, log))

		zapLog.Info("workers registered", zap.Int("count", len(workers)))
	} else {
		zapLog.Info("camunda disabled, serving HTTP only")
	}

	// --- Prediction / Health / Metrics Server ---
	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           api.NewServer(pred, urls, map[string]api.Pinger{"store": store}, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("observability shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// openStores connects the configured backend. The returned func closes it.
func openStores(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (postingStore, urlRepository, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		zapLog.Warn("using in-memory storage; records are lost on restart")
		return memory.New(), memory.NewURLRepository(), func() {}, nil

	case config.BackendPostgres:
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pgstore.EnsureSchema(ctx, pg.GetDB()); err != nil {
			pg.Close()
			return nil, nil, nil, err
		}
		zapLog.Info("PostgreSQL connected successfully")
		return pgstore.NewStore(pg.GetDB()), pgstore.NewURLRepository(pg.GetDB()), func() { pg.Close() }, nil

	case config.BackendRedis:
		var rc *database.RedisClient
		err := retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return nil, nil, nil, err
		}
		zapLog.Info("Redis connected successfully")
		prefix := cfg.Database.Redis.KeyPrefix
		return redisstore.NewStore(rc.GetClient(), prefix), redisstore.NewURLRepository(rc.GetClient(), prefix), func() { rc.Close() }, nil

	case config.BackendElasticsearch:
		var es *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, nil, nil, err
		}
		zapLog.Info("Elasticsearch connected successfully")
		// the crawl url list is small and lives in process for this backend
		return esstore.NewStore(es), memory.NewURLRepository(), func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
}

// tableflow-api — HTTP сервер движка workflow над таблицами.
//
// Поднимает хранилище источников, клиент сервиса обогащения, пул удалённых
// вызовов, оркестратор run, HTTP API, /metrics и очистку реестра по TTL.
// Если RabbitMQ недоступен, работает только по HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/tableflow/internal/api"
	"github.com/shaiso/tableflow/internal/blocks"
	"github.com/shaiso/tableflow/internal/config"
	"github.com/shaiso/tableflow/internal/mq"
	"github.com/shaiso/tableflow/internal/orchestrator"
	"github.com/shaiso/tableflow/internal/remote"
	"github.com/shaiso/tableflow/internal/repo"
	"github.com/shaiso/tableflow/internal/scheduler"
	"github.com/shaiso/tableflow/internal/telemetry"
	"github.com/shaiso/tableflow/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log("tableflow-api"))
	logger.Info("starting tableflow-api", "addr", cfg.Addr(), "store", cfg.StoreBackend)

	if err := run(cfg, logger); err != nil {
		logger.Error("tableflow-api failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 1. Хранилище источников
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 2. Сервис обогащения и пул вызовов
	var service remote.Service
	if cfg.EnrichAPIURL != "" {
		service = remote.NewClient(remote.Config{
			BaseURL:      cfg.EnrichAPIURL,
			APIKey:       cfg.EnrichAPIKey,
			PollInterval: cfg.EnrichPollInterval,
			MaxWait:      cfg.EnrichMaxWait,
			Logger:       logger,
		})
	} else {
		logger.Warn("ENRICH_API_URL not set, enrich and find_email blocks will fail")
	}

	dispatcher := worker.New(worker.Config{
		Concurrency: cfg.DispatchConcurrency,
		Retry: worker.RetryPolicy{
			MaxAttempts:  cfg.DispatchMaxAttempts,
			InitialDelay: cfg.DispatchInitialDelay,
			MaxDelay:     cfg.DispatchMaxDelay,
		},
		CallTimeout: cfg.RemoteCallTimeout,
		Logger:      logger,
	})

	registry := blocks.DefaultRegistry(blocks.Deps{
		Store:      store,
		Service:    service,
		Dispatcher: dispatcher,
	})

	// 3. RabbitMQ (опционально)
	var mqConn *mq.Connection
	var events orchestrator.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqConn, err = mq.NewConnection(mq.ConnectionConfig{
			URL:    cfg.RabbitMQURL,
			Name:   "tableflow-api",
			Logger: logger,
		})
		if err != nil {
			logger.Warn("RabbitMQ not available, running in HTTP-only mode", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			events = mq.NewPublisher(mqConn, logger)
		}
	}

	// 4. Оркестратор
	orch := orchestrator.New(orchestrator.Config{
		Blocks: registry,
		Events: events,
		Conn:   mqConn,
		Logger: logger,
	})
	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	defer orch.Stop()

	// 5. Очистка реестра
	janitor, err := scheduler.New(scheduler.Config{
		Evictor:  orch,
		TTL:      cfg.RunTTL,
		Schedule: cfg.EvictSchedule,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop(context.Background())

	// 6. HTTP
	handler := api.NewHandler(api.Config{
		Orchestrator: orch,
		Store:        store,
		Logger:       logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Ожидаем сигнал завершения
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}

// openStore создаёт хранилище источников по STORE_BACKEND.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repo.TableStore, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.StoreMemory:
		logger.Info("using in-memory source store")
		return repo.NewMemoryStore(), noop, nil

	case config.StorePostgres:
		pool, err := repo.NewPool(ctx, repo.PoolConfig{
			DSN:             cfg.DBURL,
			MaxConns:        int32(cfg.DBMaxConns),
			ApplicationName: "tableflow-api",
		})
		if err != nil {
			return nil, noop, fmt.Errorf("connect to database: %w", err)
		}
		tables := repo.NewTableRepo(pool)
		if err := tables.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("database connected")
		return tables, pool.Close, nil

	default:
		store, err := repo.NewCSVStore(cfg.DataDir)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("using csv source store", "dir", store.Dir())
		return store, noop, nil
	}
}

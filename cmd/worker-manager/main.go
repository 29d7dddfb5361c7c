// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jacobschwantes/syllabase-parser/internal/common/camunda"
	"github.com/jacobschwantes/syllabase-parser/internal/common/config"
	"github.com/jacobschwantes/syllabase-parser/internal/common/database"
	"github.com/jacobschwantes/syllabase-parser/internal/common/llm"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger"
	"github.com/jacobschwantes/syllabase-parser/internal/common/observability"
	"github.com/jacobschwantes/syllabase-parser/internal/common/queue"
	"github.com/jacobschwantes/syllabase-parser/pkg/registry"

	ps "github.com/jacobschwantes/syllabase-parser/internal/workers/syllabus/parse-syllabus"
)

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

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{"service": cfg.App.Name})

	zapLog.Info("Starting worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.Bool("camunda", cfg.Camunda.Enabled),
		zap.Bool("queue", cfg.Queue.Enabled),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init model client ---
	model, err := llm.NewClient(cfg.OpenAI, log)
	if err != nil {
		zapLog.Fatal("model client init failed", zap.Error(err))
	}

	// --- Build the parse-syllabus pipeline ---
	reg, err := registry.LoadOrDefault(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.String("path", cfg.Registry.Path), zap.Error(err))
	}
	validator, err := ps.NewInputValidator(reg)
	if err != nil {
		zapLog.Fatal("input schema compile failed", zap.Error(err))
	}

	workerCfg := ps.LoadConfig(cfg)
	gateway := database.NewGateway(pg.DB, log)
	service, err := ps.NewService(workerCfg, gateway, model, ps.DefaultSchema, log)
	if err != nil {
		zapLog.Fatal("question schema invalid", zap.Error(err))
	}
	handler := ps.NewHandler(workerCfg, service, validator, obs, log)

	checks := map[string]func(context.Context) error{
		"postgres": pg.Ping,
	}

	// --- Zeebe trigger ---
	var (
		zeebe  *camunda.Client
		worker *camunda.CamundaWorker
	)
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		checks["zeebe"] = zeebe.HealthCheck

		if config.IsWorkerEnabled(cfg, ps.TaskType) {
			wcfg := config.GetWorkerConfig(cfg, ps.TaskType)
			worker = camunda.NewWorker(
				zeebe.GetClient(),
				ps.TaskType,
				wcfg.MaxJobsActive,
				config.GetDuration(wcfg.Timeout),
				handler,
				log,
			)
			worker.Start()
		} else {
			zapLog.Info("worker disabled", zap.String("taskType", ps.TaskType))
		}
	}

	// --- Queue trigger ---
	queueCtx, stopQueue := context.WithCancel(context.Background())
	var queueWG sync.WaitGroup
	if cfg.Queue.Enabled {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")
		checks["redis"] = rdb.Ping

		consumer := queue.NewConsumer(rdb.GetClient(), cfg.Queue, handler.HandleMessage, log)
		queueWG.Add(1)
		go func() {
			defer queueWG.Done()
			consumer.Run(queueCtx)
		}()
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(checks))
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopQueue()
	queueWG.Wait()

	if worker != nil {
		worker.Stop(shutdownCtx)
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func healthHandler(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		body := map[string]interface{}{
			"status":       "healthy",
			"time":         time.Now().Format(time.RFC3339),
			"dependencies": deps,
		}
		if status != http.StatusOK {
			body["status"] = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

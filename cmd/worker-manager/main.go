// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"examflow-workers/internal/audit"
	"examflow-workers/internal/common/aws"
	"examflow-workers/internal/common/camunda"
	"examflow-workers/internal/common/config"
	"examflow-workers/internal/common/database"
	"examflow-workers/internal/common/logger"
	"examflow-workers/internal/common/observability"
	"examflow-workers/internal/notify"
	"examflow-workers/internal/ocr"
	"examflow-workers/internal/omr"
	"examflow-workers/internal/pipeline"
	"examflow-workers/internal/registry"
	activityreg "examflow-workers/pkg/registry"

	gr "examflow-workers/internal/workers/results/generate-result"
	sr "examflow-workers/internal/workers/results/secure-result"
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
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name, cfg.Tracing.JaegerEndpoint)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Activity catalog ---
	catalogPath := os.Getenv("ACTIVITY_REGISTRY_PATH")
	if catalogPath == "" {
		catalogPath = "configs/activities.json"
	}
	catalog, err := activityreg.LoadRegistry(catalogPath)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err))
	}
	for _, taskType := range []string{sr.TaskType, gr.TaskType} {
		if _, err := catalog.FindByTaskType(taskType); err != nil {
			zapLog.Fatal("worker not declared in activity registry",
				zap.String("taskType", taskType), zap.Error(err))
		}
	}

	// --- Init Zeebe client with retry ---
	var zeebeClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
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

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (audit trail only, optional) ---
	auditTrail := audit.Disabled(log)
	if cfg.Audit.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		auditTrail = audit.NewTrail(esClient.Client, cfg.Audit.Index, true, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Notifications (optional) ---
	var publisher pipeline.ResultPublisher
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		publisher = notify.NewNotifier(
			sesClient, snsClient,
			cfg.Notifications.Email.FromEmail,
			cfg.Notifications.Email.Enabled,
			cfg.Notifications.SMS.Enabled,
			log,
		)
	}

	// --- Core services shared by both flows ---
	extractor := ocr.NewExtractor(
		ocr.NewTesseractEngine(cfg.OCR.TessData),
		cfg.OCR.ExamPrefix,
		cfg.OCR.Language,
		log,
	)
	decoder := omr.NewClient(cfg.Decoder.BaseURL, config.GetDuration(cfg.Decoder.Timeout), log)
	sheetGuard := omr.NewSheetGuard(redis.Client, config.GetDuration(cfg.Decoder.DedupTTL), log)

	candidates := registry.NewCandidateStore(pg.DB, redis.Client, log)
	examResults := registry.NewExamResultStore(pg.DB, log)
	answerKeys := registry.NewAnswerKeyStore(pg.DB, log)
	finalResults := registry.NewFinalResultStore(pg.DB, log)

	// --- Register workers ---
	var workers []*camunda.Worker

	if wcfg := cfg.Workers[sr.TaskType]; wcfg.Enabled {
		flow := pipeline.NewSecureResultFlow(decoder, sheetGuard, extractor, candidates, examResults, auditTrail, log)
		handler := sr.NewHandler(
			&sr.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			flow, log,
		)
		workers = append(workers, camunda.NewWorker(
			zeebeClient, sr.TaskType, wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout), handler.Handle, zapLog))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", sr.TaskType))
	}

	if wcfg := cfg.Workers[gr.TaskType]; wcfg.Enabled {
		flow := pipeline.NewGenerateResultFlow(
			extractor, candidates, examResults, answerKeys, finalResults, auditTrail, publisher, log)
		handler := gr.NewHandler(
			&gr.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			flow, log,
		)
		workers = append(workers, camunda.NewWorker(
			zeebeClient, gr.TaskType, wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout), handler.Handle, zapLog))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", gr.TaskType))
	}

	zapLog.Info("All workers registered successfully")

	// --- Health & metrics server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
			if err := zeebeClient.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		w.Close()
	}

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"converthub/batch"
	"converthub/cache"
	"converthub/config"
	"converthub/converter"
	"converthub/database"
	"converthub/events"
	"converthub/handlers"
	"converthub/middleware"
	"converthub/pool"
	"converthub/progress"
	"converthub/repository"
	"converthub/service"
	"converthub/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("Conversion service starting",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: S3 when a bucket is configured, local disk otherwise.
	var store storage.Storage
	if cfg.S3Bucket != "" {
		store = storage.NewS3Storage(storage.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3Endpoint != "",
		})
		logger.Info("Using S3 storage", zap.String("bucket", cfg.S3Bucket))
	} else {
		local, err := storage.NewLocalStorage(cfg.UploadDir, cfg.BaseURL)
		if err != nil {
			logger.Fatal("Failed to initialize local storage", zap.Error(err))
		}
		store = local
		logger.Info("Using local storage", zap.String("dir", cfg.UploadDir))
	}

	// Optional collaborators degrade to disabled when unreachable.
	var results *cache.ResultCache
	if redisCache, err := database.ConnectCache(cfg.RedisAddr); err != nil {
		logger.Warn("Redis unavailable, result cache disabled", zap.Error(err))
	} else {
		defer redisCache.Close()
		results = cache.NewResultCache(redisCache, cfg.CacheTTL)
		logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	}

	var repo repository.Repository
	if db, err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
		logger.Warn("Postgres unavailable, conversion history disabled", zap.Error(err))
	} else {
		defer db.Close()
		repo = repository.NewPostgresRepo(db)
		logger.Info("Connected to Postgres")
	}

	var producer events.Producer = events.NopProducer{}
	if p, err := events.NewProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.EventTopic); err != nil {
		logger.Warn("Kafka unavailable, event publishing disabled", zap.Error(err))
	} else {
		defer p.Close()
		producer = p
		logger.Info("Connected to Kafka", zap.String("brokers", cfg.KafkaBrokers))
	}

	registry := converter.NewRegistry()
	registry.Register("image_convert", converter.NewImageConverter(logger))
	registry.Register("text_convert", converter.NewTextConverter(logger))

	tracker := progress.NewTracker(logger, cfg.TaskRetention, cfg.SweepInterval)
	go tracker.Run(ctx)

	coordinator := batch.NewCoordinator(logger, store, producer, batch.Config{
		MaxFiles:    cfg.MaxBatchFiles,
		MaxBytes:    cfg.MaxBatchBytes,
		Concurrency: cfg.BatchConcurrency,
		FileTimeout: cfg.ConvertTimeout,
	})
	if repo != nil {
		coordinator.SetRepository(repo)
	}
	go coordinator.Run(ctx, time.Hour, cfg.BatchMaxAge)

	workers := pool.NewWorkerPool(cfg.WorkerCount)
	conversions := service.NewConversionService(
		logger, tracker, workers, registry, store, results, repo, producer, cfg.ConvertTimeout,
	)

	convertHandler := handlers.NewConvertHandler(conversions, logger, cfg.MaxFileSize)
	batchHandler := handlers.NewBatchHandler(coordinator, registry, logger, cfg.MaxBatchBytes)
	progressHandler := handlers.NewProgressHandler(tracker, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/api/convert", convertHandler.Convert)
	mux.HandleFunc("/api/batch/convert", batchHandler.Convert)
	mux.HandleFunc("/api/batch/status/", batchHandler.Status)
	mux.HandleFunc("/api/progress", progressHandler.List)
	mux.HandleFunc("/api/progress/", progressHandler.Task)
	if cfg.S3Bucket == "" {
		mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	var handler http.Handler = mux
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.TraceID(handler)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		logger.Info("Server started", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	// Let in-flight conversions settle before exit.
	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("All workers stopped")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout, forcing exit")
	}

	logger.Info("Conversion service stopped")
}

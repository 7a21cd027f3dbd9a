// -------------------------------------------------------------------------------
// Streamlo - Social Audio Sharing Web Service
//
// Project: Streamlo
//
// Entry point for the web service. Loads configuration, connects MongoDB and
// the blob store, wires the services behind the HTTP surface, and starts the
// server with graceful shutdown.
// -------------------------------------------------------------------------------

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dunguyenn/StreamloWebservice/internal/auth"
	"github.com/dunguyenn/StreamloWebservice/internal/blob"
	"github.com/dunguyenn/StreamloWebservice/internal/config"
	"github.com/dunguyenn/StreamloWebservice/internal/saga"
	"github.com/dunguyenn/StreamloWebservice/internal/server"
	"github.com/dunguyenn/StreamloWebservice/internal/service"
	"github.com/dunguyenn/StreamloWebservice/internal/store"
	"github.com/dunguyenn/StreamloWebservice/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Load configuration ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// --- Initialize tracing ---
	ctx := context.Background()
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.Tracing)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}

	// --- Set build info metric ---
	telemetry.BuildInfo.WithLabelValues(telemetry.Version, runtime.Version()).Set(1)

	// --- Connect MongoDB ---
	client, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	db := client.Database(cfg.Database.Database)
	logger.Info("connected to MongoDB",
		"host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)

	if err := store.EnsureIndexes(ctx, db); err != nil {
		logger.Error("failed to ensure indexes", "error", err)
		os.Exit(1)
	}

	// --- Wire services ---
	users := store.NewMongoUserStore(db)
	tracks := store.NewMongoTrackStore(db)
	var blobs blob.Store = blob.NewS3Store(cfg.BlobStore)
	if cfg.BlobStore.CircuitBreaker.Enabled {
		blobs = blob.NewCircuitBreakerStore(blobs, cfg.BlobStore.CircuitBreaker)
		logger.Info("blob store circuit breaker enabled",
			"failure_threshold", cfg.BlobStore.CircuitBreaker.FailureThreshold,
			"open_timeout", cfg.BlobStore.CircuitBreaker.OpenTimeout)
	}
	exec := saga.NewExecutor(logger)

	trackSvc := service.NewTrackService(users, tracks, blobs, exec,
		cfg.BlobStore.AudioBucket, cfg.BlobStore.ImageBucket, logger)
	userSvc := service.NewUserService(users, trackSvc, blobs, exec,
		cfg.BlobStore.ImageBucket, logger)
	tokens := auth.NewTokens(cfg.Auth)

	srv := &server.Server{
		Tracks:        trackSvc,
		Users:         userSvc,
		Blobs:         blobs,
		Tokens:        tokens,
		BlobStore:     cfg.BlobStore,
		Assets:        cfg.Assets,
		MaxUploadSize: cfg.Server.MaxUploadSize,
	}

	// --- Setup HTTP mux ---
	mux := http.NewServeMux()

	if cfg.Telemetry.Metrics.Enabled {
		mux.Handle(cfg.Telemetry.Metrics.Path, server.MetricsHandler())
		logger.Info("metrics endpoint enabled", "path", cfg.Telemetry.Metrics.Path)
	}

	var handler http.Handler = srv.Routes()
	if cfg.RateLimit.Enabled {
		limiter := server.NewRateLimiter(cfg.RateLimit)
		handler = limiter.Middleware(handler)
		logger.Info("rate limiting enabled",
			"requests_per_sec", cfg.RateLimit.RequestsPerSec, "burst", cfg.RateLimit.Burst,
			"write_requests_per_sec", cfg.RateLimit.WriteRequestsPerSec, "write_burst", cfg.RateLimit.WriteBurst)
	}
	mux.Handle("/", handler)

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// --- Handle graceful shutdown ---
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}

		if err := client.Disconnect(shutdownCtx); err != nil {
			logger.Error("database disconnect error", "error", err)
		}

		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	// --- Log startup info ---
	logger.Info("Streamlo starting",
		"version", telemetry.Version, "listen_addr", cfg.Server.ListenAddr,
		"audio_bucket", cfg.BlobStore.AudioBucket, "image_bucket", cfg.BlobStore.ImageBucket)

	if cfg.Telemetry.Tracing.Enabled {
		logger.Info("tracing enabled",
			"endpoint", cfg.Telemetry.Tracing.Endpoint,
			"sample_rate", cfg.Telemetry.Tracing.SampleRate,
			"insecure", cfg.Telemetry.Tracing.Insecure)
	}

	// --- Start server ---
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

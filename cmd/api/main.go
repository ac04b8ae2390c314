// Package main is the entry point for the Errandly API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for goose
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pressly/goose/v3"

	"github.com/errandly/backend/internal/auth"
	"github.com/errandly/backend/internal/config"
	"github.com/errandly/backend/internal/events"
	"github.com/errandly/backend/internal/feed"
	"github.com/errandly/backend/internal/handler"
	"github.com/errandly/backend/internal/middleware"
	"github.com/errandly/backend/internal/repo"
	"github.com/errandly/backend/internal/service"
	"github.com/errandly/backend/internal/storage"
	"github.com/errandly/backend/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	// JSON handler writes machine-readable output suitable for log aggregators.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	if err := runMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	// --- Redis ------------------------------------------------------------
	// One client serves both the session store and the live feed pub/sub.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.Info("redis connection established")

	// --- Optional collaborators -------------------------------------------
	var blobs service.BlobStore
	if cfg.S3Enabled() {
		s3Client, err := minio.New(cfg.S3Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
			Secure: cfg.S3UseSSL,
		})
		if err != nil {
			slog.Error("failed to create s3 client", "error", err)
			os.Exit(1)
		}
		blobs = storage.NewS3Store(s3Client, cfg.S3Bucket, cfg.S3PublicURL)
		slog.Info("photo uploads enabled", "bucket", cfg.S3Bucket)
	}

	var eventSink service.EventSink
	if cfg.KafkaEnabled() {
		producer, err := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			slog.Error("failed to create kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		eventSink = producer
		slog.Info("lifecycle events enabled", "topic", cfg.KafkaTopic)
	}

	broadcaster := feed.NewBroadcaster(redisClient, feed.DefaultChannel)

	// --- Repos and services -----------------------------------------------
	profileRepo := repo.NewProfileRepo(pool)
	requestRepo := repo.NewRequestRepo(pool)

	accounts := service.NewAccountService(
		profileRepo,
		auth.NewRedisSessionStore(redisClient),
		auth.NewJWTManager(cfg.JWTSecret, auth.DefaultAccessTTL),
		service.DefaultSessionTTL,
	)
	requests := service.NewRequestService(requestRepo, profileRepo, service.RequestServiceOptions{
		Blobs:        blobs,
		Feed:         broadcaster,
		Events:       eventSink,
		Logger:       logger,
		RadiusFilter: cfg.RadiusFilter,
	})

	// --- Router -----------------------------------------------------------
	// Middleware order: RequestID → RealIP → SlogLogger → CORS → routes.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Mount("/", handler.NewServer(accounts, requests, broadcaster, logger).Router())

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout stays zero: the SSE feed holds its response open for the
	// whole client session. Read and idle timeouts still bound slow clients.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// runMigrations applies all pending embedded migrations.
// goose drives database/sql, so this opens its own short-lived connection.
func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	_, err = provider.Up(context.Background())
	return err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/codesnap/codesnap/config"
	"github.com/codesnap/codesnap/internal/auth"
	codesnaplambda "github.com/codesnap/codesnap/internal/lambda"
	"github.com/codesnap/codesnap/internal/metrics"
	"github.com/codesnap/codesnap/internal/server"
	"github.com/codesnap/codesnap/internal/services"
	"github.com/codesnap/codesnap/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Version/build info (set via -ldflags at build time)
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "none"
)

// isLambdaEnvironment detects if running in AWS Lambda
func isLambdaEnvironment() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg.Version = Version
	cfg.BuildTime = BuildTime
	cfg.CommitHash = CommitHash

	logger, closeLog, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeLog.Close() }()
	slog.SetDefault(logger)

	logger.Info("Starting codesnap",
		"version", Version,
		"build_time", BuildTime,
		"commit", CommitHash,
		"storage", cfg.StorageType)

	if os.Getenv("GIN_MODE") == "release" || isLambdaEnvironment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if cfg.SeedOnEmpty {
		if n, err := a.service.Seed(ctx); err != nil {
			logger.Error("Failed to seed example pastes", "error", err)
		} else if n > 0 {
			logger.Info("Seeded example pastes", "count", n)
		}
	}

	sweepDone := a.service.StartSweeper(ctx, cfg.SweepInterval)

	if isLambdaEnvironment() {
		logger.Info("Starting in AWS Lambda mode")
		lambda.StartWithOptions(codesnaplambda.NewProxy(a.router, logger).Handle, lambda.WithContext(ctx))
		return
	}

	logger.Info("Starting in HTTP server mode", "port", cfg.Port)
	srv := server.NewHTTPServer(cfg.Port, a.router, logger)
	errs := srv.Start()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping server...")
	case err := <-errs:
		if err != nil {
			logger.Error("HTTP server stopped unexpectedly", "error", err)
		}
	}
	stop()

	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	<-sweepDone
	logger.Info("Shutdown complete")
}

// app holds the wired components of one process
type app struct {
	store       storage.PasteStore
	revocations *auth.RedisRevocations
	service     *services.PasteService
	router      *gin.Engine
	logger      *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := storage.NewStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a := &app{store: store, logger: logger}

	opts := auth.Options{
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
		TokenSecret:  cfg.TokenSecret,
		TokenTTL:     cfg.TokenTTL,
	}
	if cfg.RedisURL != "" {
		revocations, err := auth.NewRedisRevocations(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.revocations = revocations
		opts.Revocations = revocations
		logger.Info("Using Redis for token revocation")
	}
	if cfg.TokenSecret == "" {
		logger.Warn("No token secret configured, admin tokens will not survive a restart")
	}

	authenticator, err := auth.New(opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	m := metrics.New()
	a.service = services.NewPasteService(store, authenticator, cfg, logger, services.WithMetrics(m))
	a.router = server.NewRouter(server.Deps{
		Config:  cfg,
		Pastes:  a.service,
		Auth:    authenticator,
		Store:   store,
		Metrics: m,
		Logger:  logger,
	})
	return a, nil
}

// Close releases the store and the revocation client
func (a *app) Close() {
	if a.revocations != nil {
		if err := a.revocations.Close(); err != nil {
			a.logger.Error("Failed to close redis", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close storage", "error", err)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogging builds the process logger: text on stderr, or JSON appended
// to cfg.LogFile when set.
func setupLogging(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return slog.New(slog.NewJSONHandler(file, opts)), file, nil
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nopCloser{}, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/loopfi/conductor/internal/application/broadcast"
	"github.com/loopfi/conductor/internal/application/coordinator"
	"github.com/loopfi/conductor/internal/application/lending"
	"github.com/loopfi/conductor/internal/application/processor"
	"github.com/loopfi/conductor/internal/application/token"
	"github.com/loopfi/conductor/internal/config"
	"github.com/loopfi/conductor/pkg/adapters/crypto/aesgcm"
	redisevents "github.com/loopfi/conductor/pkg/adapters/events/redis"
	"github.com/loopfi/conductor/pkg/adapters/metrics/prometheus"
	"github.com/loopfi/conductor/pkg/adapters/providers"
	envsecrets "github.com/loopfi/conductor/pkg/adapters/secrets/env"
	redisstorage "github.com/loopfi/conductor/pkg/adapters/storage/redis"
	"github.com/loopfi/conductor/pkg/api/grpc"
	"github.com/loopfi/conductor/pkg/api/http"
	"github.com/loopfi/conductor/pkg/api/websocket"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting Conductor",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize Redis client
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// Initialize adapters
	eventBus := redisevents.NewStreamsEventBus(
		redisClient,
		"conductor-engine",
		fmt.Sprintf("conductor-%d", os.Getpid()),
		logger,
	)

	store := redisstorage.NewStore(
		redisClient,
		30*24*time.Hour, // audit rows kept for 30 days
		logger,
	)

	metricsCollector := prometheus.NewCollector()
	secretSource := envsecrets.NewSource()

	providerRegistry, err := providers.NewRegistry(cfg.Providers, logger)
	if err != nil {
		logger.Fatal("failed to build provider registry", zap.Error(err))
	}

	encryptor, err := aesgcm.NewEncryptor(cfg.Providers.EncryptionKey)
	if err != nil {
		logger.Fatal("failed to create encryptor", zap.Error(err))
	}

	// Initialize application components
	lendingService := lending.NewService(providerRegistry, store, metricsCollector, logger)

	registry, err := processor.NewRegistry(
		processor.NewTriggerProcessor(),
		processor.NewTransformProcessor(),
		processor.NewLendingProcessor(lendingService, logger),
		processor.NewNotificationProcessor(resty.New(), encryptor, logger),
	)
	if err != nil {
		logger.Fatal("failed to build processor registry", zap.Error(err))
	}

	coord := coordinator.New(
		store,
		store,
		eventBus,
		registry,
		secretSource,
		metricsCollector,
		logger,
		coordinator.Config{
			ExecutionTimeout:     cfg.Engine.ExecutionTimeout,
			NodeTimeout:          cfg.Engine.NodeTimeout,
			RetryDelay:           cfg.Engine.RetryDelay,
			SignatureWaitTimeout: cfg.Engine.SignatureWaitTimeout,
		},
	)

	tokenService := token.NewService(cfg.Token.SigningSecret, cfg.Token.TTL, metricsCollector, logger)

	broadcaster := broadcast.New(metricsCollector, logger)
	busCtx, busCancel := context.WithCancel(ctx)
	defer busCancel()
	if err := broadcaster.Start(busCtx, eventBus); err != nil {
		logger.Fatal("failed to start broadcaster", zap.Error(err))
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:        cfg.HTTPPort,
		Coordinator: coord,
		Broadcaster: broadcaster,
		Tokens:      tokenService,
		Logger:      logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(broadcaster, tokenService, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("Conductor started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Strings("providers", providerRegistry.Names()))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownTimeout)
	defer cancel()

	// Shutdown components
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := coord.Shutdown(shutdownCtx); err != nil {
		logger.Error("coordinator shutdown error", zap.Error(err))
	}

	busCancel()
	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("Conductor shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}

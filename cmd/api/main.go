package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bastionhq/bastion/internal/audit"
	"github.com/bastionhq/bastion/internal/auth"
	"github.com/bastionhq/bastion/internal/background"
	"github.com/bastionhq/bastion/internal/config"
	"github.com/bastionhq/bastion/internal/database"
	"github.com/bastionhq/bastion/internal/handlers"
	middlewareCustom "github.com/bastionhq/bastion/internal/middleware"
	"github.com/bastionhq/bastion/internal/repositories"
	"github.com/bastionhq/bastion/internal/routes"
	"github.com/bastionhq/bastion/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("login_attempt_store", cfg.AccountProtection.StoreBackend),
	)

	// Initialize the login attempt store and, when postgres is selected,
	// the audit trail repository that shares its pool.
	var (
		attemptStore services.LoginAttemptStore
		auditLogRepo *repositories.AuditLogRepository
		db           *database.DB
		healthCheck  func(context.Context) error
	)

	switch cfg.AccountProtection.StoreBackend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		cancel()
		defer redisClient.Close()

		attemptStore = repositories.NewRedisLoginAttemptStore(redisClient)
		healthCheck = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

	default:
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		attemptStore = repositories.NewLoginAttemptRepository(db)
		auditLogRepo = repositories.NewAuditLogRepository(db)
		healthCheck = db.HealthCheck
	}

	// Audit pipeline: filter set is read once here and immutable afterwards.
	registry := prometheus.NewRegistry()
	auditFilter := audit.NewFilter(cfg.Audit.ExcludedTypes)

	overflow, err := audit.ParseOverflowPolicy(cfg.Audit.OverflowPolicy)
	if err != nil {
		logger.Error("invalid audit configuration", slog.Any("error", err))
		os.Exit(1)
	}

	reporters := []audit.Reporter{audit.NewLogReporter(logger)}
	if auditLogRepo != nil {
		reporters = append(reporters, audit.NewStoreReporter(auditLogRepo))
	}
	var kafkaReporter *audit.KafkaReporter
	if cfg.Audit.Kafka.Enabled {
		kafkaReporter, err = audit.NewKafkaReporter(audit.KafkaReporterConfig{
			Brokers:      cfg.Audit.Kafka.Brokers,
			Topic:        cfg.Audit.Kafka.Topic,
			BatchSize:    cfg.Audit.Kafka.BatchSize,
			FlushEvery:   cfg.Audit.Kafka.FlushEvery,
			DialTimeout:  cfg.Audit.Kafka.DialTimeout,
			WriteTimeout: cfg.Audit.Kafka.WriteTimeout,
			TLS:          cfg.Audit.Kafka.TLS,
		})
		if err != nil {
			logger.Error("failed to initialize kafka audit reporter", slog.Any("error", err))
			os.Exit(1)
		}
		reporters = append(reporters, kafkaReporter)
	}

	dispatcher := audit.NewDispatcher(
		audit.DispatcherConfig{
			Workers:       cfg.Audit.Workers,
			QueueCapacity: cfg.Audit.QueueCapacity,
			Overflow:      overflow,
		},
		auditFilter,
		audit.NewMultiReporter(logger, reporters...),
		logger,
		audit.NewMetrics(registry),
	)
	dispatcher.Start()

	// Initialize services
	loginAttemptService := services.NewLoginAttemptService(attemptStore, dispatcher, logger)

	// Token manager for the management API
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	// Initialize handlers
	loginAttemptHandler := handlers.NewLoginAttemptHandler(loginAttemptService, dispatcher, logger)

	// A typed nil would defeat the handler's nil check, so only assign the
	// reader when postgres is in play.
	var auditTrailReader handlers.AuditTrailReader
	if auditLogRepo != nil {
		auditTrailReader = auditLogRepo
	}
	auditLogHandler := handlers.NewAuditLogHandler(auditTrailReader, logger)

	// Background purge of expired lockout records
	cleanupManager := background.NewCleanupManager(attemptStore, logger, cfg.AccountProtection.CleanupInterval)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, loginAttemptHandler, auditLogHandler, tokenManager, registry)

	// Health check with backing store
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := healthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","store":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","store":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Drain the audit queue last so records produced while requests were
	// finishing still reach the reporters.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Audit.ShutdownTimeout)
	defer drainCancel()

	if err := dispatcher.Shutdown(drainCtx); err != nil {
		logger.Error("audit dispatcher shutdown error", slog.Any("error", err))
	}
	if kafkaReporter != nil {
		if err := kafkaReporter.Close(); err != nil {
			logger.Error("kafka reporter close error", slog.Any("error", err))
		}
	}

	logger.Info("server stopped gracefully")
}

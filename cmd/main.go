package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satstack-service/satstack_service/internal/adapters/exchange"
	"github.com/satstack-service/satstack_service/internal/api/handlers"
	"github.com/satstack-service/satstack_service/internal/domain/services/executor"
	"github.com/satstack-service/satstack_service/internal/domain/services/plans"
	"github.com/satstack-service/satstack_service/internal/domain/services/scanner"
	"github.com/satstack-service/satstack_service/internal/infrastructure/adapters"
	"github.com/satstack-service/satstack_service/internal/infrastructure/config"
	"github.com/satstack-service/satstack_service/internal/infrastructure/database"
	"github.com/satstack-service/satstack_service/internal/infrastructure/repositories"
	"github.com/satstack-service/satstack_service/internal/workers/execution_worker"
	"github.com/satstack-service/satstack_service/internal/workers/plan_scanner_worker"
	"github.com/satstack-service/satstack_service/pkg/graceful"
	"github.com/satstack-service/satstack_service/pkg/secrets"
	"github.com/satstack-service/satstack_service/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := newLogger(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	ctx := context.Background()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracer(ctx)

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	planRepo := repositories.NewPlanRepository(db)
	txnRepo := repositories.NewTransactionRepository(db)

	secretProvider, err := secrets.NewAWSSecretsManagerProvider(ctx,
		cfg.AWS.Region, cfg.Secrets.Prefix, cfg.Secrets.CacheTTL)
	if err != nil {
		log.Fatal("Failed to create secrets provider", zap.Error(err))
	}

	// Exchange credentials are resolved once at startup; in production a
	// failure here aborts the process.
	creds, err := exchange.ResolveCredentials(ctx, secretProvider,
		cfg.Exchange.CredentialsSecret, cfg.Environment, log)
	if err != nil {
		log.Fatal("Failed to resolve exchange credentials", zap.Error(err))
	}

	exchangeClient := exchange.NewClient(exchange.Config{
		BaseURL:     cfg.Exchange.BaseURL,
		Environment: cfg.Environment,
		Timeout:     cfg.Exchange.Timeout,
	}, creds, log)

	dispatchQueue, err := adapters.NewSQSDispatchQueue(ctx, adapters.SQSConfig{
		Region:   cfg.AWS.Region,
		QueueURL: cfg.Executor.QueueURL,
	}, log)
	if err != nil {
		log.Fatal("Failed to create dispatch queue", zap.Error(err))
	}

	eventPublisher, err := adapters.NewSNSEventPublisher(ctx, adapters.SNSConfig{
		Region:   cfg.AWS.Region,
		TopicARN: cfg.Events.TopicARN,
		Stage:    cfg.Environment,
	}, log)
	if err != nil {
		log.Fatal("Failed to create event publisher", zap.Error(err))
	}

	scannerService := scanner.NewService(planRepo, dispatchQueue, eventPublisher,
		scanner.Config{BatchSize: cfg.Scanner.BatchSize}, log)

	executorService := executor.NewService(planRepo, txnRepo, exchangeClient, eventPublisher,
		executor.Config{MaxRetries: cfg.Executor.MaxRetries}, log)

	scannerWorker := plan_scanner_worker.NewWorker(scannerService, plan_scanner_worker.Config{
		Interval:   cfg.Scanner.Interval,
		RunTimeout: cfg.Scanner.RunTimeout,
	}, log)
	if err := scannerWorker.Start(); err != nil {
		log.Fatal("Failed to start scanner worker", zap.Error(err))
	}

	executionWorker, err := execution_worker.NewWorker(ctx, execution_worker.Config{
		Region:            cfg.AWS.Region,
		QueueURL:          cfg.Executor.QueueURL,
		BatchSize:         cfg.Executor.BatchSize,
		VisibilityTimeout: cfg.Executor.VisibilityTimeout,
	}, executorService, log)
	if err != nil {
		log.Fatal("Failed to create execution worker", zap.Error(err))
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	go executionWorker.Start(workerCtx)

	planService := plans.NewService(planRepo, txnRepo, log)
	server := newServer(cfg, db, handlers.NewPlanHandlers(planService, log))
	go func() {
		log.Info("HTTP server listening",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	sm := graceful.NewShutdownManager(server, db, log)
	sm.Register(scannerWorker)
	sm.Register(executionWorker)
	sm.WaitForShutdown()
}

// newServer builds the HTTP surface: liveness, metrics, and plan
// management. Execution traffic stays event-driven.
func newServer(cfg *config.Config, db *sqlx.DB, planHandlers *handlers.PlanHandlers) *http.Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	planHandlers.RegisterRoutes(router.Group("/api/v1"))

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func newLogger(level, environment string) *zap.Logger {
	var zapCfg zap.Config
	if environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if parsed, err := zapcore.ParseLevel(level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}
	return logger
}

package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/config"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/crypto"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/handlers"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/logging"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/middleware"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting deep-lynx",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Migrations run over database/sql as golang-migrate requires.
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("Redis not configured, data target polling uses per-process locking only")
	}

	encryptor, err := crypto.NewCredentialEncryptor(cfg.CredentialsKey)
	if err != nil {
		logger.Fatal("Failed to initialize credential encryptor", zap.Error(err))
	}

	// Repositories
	containerRepo := repositories.NewContainerRepository(db)
	graphRepo := repositories.NewGraphRepository(db)
	metatypeRepo := repositories.NewMetatypeRepository(db)
	nodeRepo := repositories.NewNodeRepository(db)
	edgeRepo := repositories.NewEdgeRepository(db)
	queueRepo := repositories.NewQueueRepository(db)
	registrationRepo := repositories.NewEventRegistrationRepository(db)
	exportRepo := repositories.NewExportRepository(db)
	shadowRepo := repositories.NewGremlinExportRepository(db)
	targetRepo := repositories.NewDataTargetRepository(db)
	importRepo := repositories.NewImportRepository(db)
	stagingRepo := repositories.NewDataStagingRepository(db)

	// Services
	emitter := services.NewEventEmitter(queueRepo, logger)
	ontologyService := services.NewOntologyService(containerRepo, graphRepo, metatypeRepo, logger)
	nodeService := services.NewNodeService(db, nodeRepo, graphRepo, metatypeRepo, emitter, logger)
	edgeService := services.NewEdgeService(db, edgeRepo, nodeRepo, graphRepo, metatypeRepo, emitter, logger)
	exportService := services.NewExportService(db, exportRepo, shadowRepo, graphRepo, emitter, encryptor, nil, cfg.Export.DefaultBatchSize, logger)
	targetService := services.NewDataTargetService(
		targetRepo,
		services.NewGraphSnapshotRunner(nodeRepo, edgeRepo),
		encryptor,
		redisClient,
		cfg.DataTargets.ScanInterval,
		cfg.DataTargets.LockTTL,
		logger,
	)
	importService := services.NewImportService(db, importRepo, stagingRepo, emitter, logger)
	registrationService := services.NewRegistrationService(registrationRepo, logger)
	processor := services.NewEventProcessor(queueRepo, registrationRepo, cfg.Queue.PollInterval, cfg.Queue.DeliveryTimeout, logger)

	// Exports interrupted by the previous run resume before traffic arrives.
	if err := exportService.RestartExports(ctx); err != nil {
		logger.Error("Failed to restart in-flight exports", zap.Error(err))
	}

	go processor.Run(ctx)
	go targetService.Run(ctx)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewOntologyHandler(ontologyService, logger).RegisterRoutes(mux)
	handlers.NewGraphHandler(nodeService, edgeService, logger).RegisterRoutes(mux)
	handlers.NewExportHandler(exportService, logger).RegisterRoutes(mux)
	handlers.NewDataTargetHandler(targetService, logger).RegisterRoutes(mux)
	handlers.NewEventHandler(registrationService, logger).RegisterRoutes(mux)
	handlers.NewImportHandler(importService, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown incomplete", zap.Error(err))
	}
}

package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/campusops/student-funds-api/internal/handler"
	"github.com/campusops/student-funds-api/internal/middleware"
	"github.com/campusops/student-funds-api/internal/repository"
	"github.com/campusops/student-funds-api/internal/service"
	"github.com/campusops/student-funds-api/pkg/cache"
	"github.com/campusops/student-funds-api/pkg/config"
	"github.com/campusops/student-funds-api/pkg/database"
	"github.com/campusops/student-funds-api/pkg/export"
	"github.com/campusops/student-funds-api/pkg/logger"
	corsmiddleware "github.com/campusops/student-funds-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusops/student-funds-api/pkg/middleware/requestid"
	"github.com/campusops/student-funds-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, snapshot cache disabled", "error", err)
			redisClient = nil
		}
	}

	store, err := storage.NewLocalStorage(cfg.Funding.SnapshotDir)
	if err != nil {
		logr.Sugar().Fatalw("snapshot storage init failed", "error", err)
	}

	termRepo := repository.NewTermRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	programRepo := repository.NewProgramRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	disbursementRepo := repository.NewDisbursementRepository(db)
	transcriptRepo := repository.NewTranscriptRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	factCalc := service.NewFactCalculator(enrollmentRepo, programRepo, ledgerRepo, disbursementRepo, transcriptRepo, metricsSvc, logr)
	snapshotSvc := service.NewSnapshotService(
		export.NewCSVCodec(),
		store,
		cacheRepo,
		export.NewPDFExporter(),
		cfg.Funding,
		cfg.Redis.CacheTTL,
		logr,
	)
	reconciliationSvc := service.NewReconciliationService(
		termRepo,
		enrollmentRepo,
		studentRepo,
		factCalc,
		snapshotSvc,
		metricsSvc,
		cfg.Funding,
		logr,
	)

	fundingHandler := handler.NewFundingHandler(reconciliationSvc, snapshotSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	handler.NewMetricsHandler(metricsSvc).Register(r)

	api := r.Group(cfg.APIPrefix)
	fundingHandler.RegisterRoutes(api)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

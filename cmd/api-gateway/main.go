package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ppdb-admissions-api/api/swagger"
	"github.com/noah-isme/ppdb-admissions-api/internal/handler"
	internalmiddleware "github.com/noah-isme/ppdb-admissions-api/internal/middleware"
	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	"github.com/noah-isme/ppdb-admissions-api/internal/repository"
	"github.com/noah-isme/ppdb-admissions-api/internal/service"
	"github.com/noah-isme/ppdb-admissions-api/pkg/cache"
	"github.com/noah-isme/ppdb-admissions-api/pkg/config"
	"github.com/noah-isme/ppdb-admissions-api/pkg/crypto"
	"github.com/noah-isme/ppdb-admissions-api/pkg/database"
	"github.com/noah-isme/ppdb-admissions-api/pkg/jobs"
	"github.com/noah-isme/ppdb-admissions-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ppdb-admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ppdb-admissions-api/pkg/middleware/requestid"
	"github.com/noah-isme/ppdb-admissions-api/pkg/whatsapp"
)

// @title PPDB Admissions API
// @version 1.0.0
// @description Ranking, selection, waitlist and draft endpoints of the school admissions service
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, ranking cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Ranking.CacheTTL, logr, redisClient != nil && cfg.Ranking.CacheEnabled)

	pathRepo := repository.NewAdmissionPathRepository(db)
	appRepo := repository.NewApplicationRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	resultRepo := repository.NewSelectionResultRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	fieldRepo := repository.NewCustomFieldRepository(db)

	var rankingOpts []service.RankingServiceOption
	if cfg.Ranking.CacheEnabled {
		rankingOpts = append(rankingOpts, service.WithRankingCache(cacheSvc, cfg.Ranking.CacheTTL))
	}
	rankingSvc := service.NewRankingService(pathRepo, appRepo, metricsSvc, logr, rankingOpts...)

	waClient := whatsapp.NewClient(cfg.WhatsApp, logr)
	directNotifier := service.NewDirectNotifier(waClient, metricsSvc, logr)
	notifyQueue := jobs.NewQueue("guardian-notifications", directNotifier.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notifyQueue.Start(context.Background())
	defer notifyQueue.Stop()
	notifier := service.NewQueuedNotifier(notifyQueue, metricsSvc, logr)

	var encryptor service.FieldEncryptor
	fieldCipher, err := crypto.NewFieldCipher(cfg.Encryption.Key, cfg.Encryption.Salt)
	switch {
	case err == nil:
		encryptor = fieldCipher
	case errors.Is(err, crypto.ErrMissingKey):
		logr.Warn("ENCRYPTION_KEY not set, encrypted custom fields will be rejected")
	default:
		logr.Fatal("failed to init field cipher", zap.Error(err))
	}

	selectionSvc := service.NewSelectionService(db, pathRepo, resultRepo, appRepo, auditRepo, rankingSvc, validate, metricsSvc, logr)
	waitlistSvc := service.NewWaitlistService(db, pathRepo, resultRepo, appRepo, auditRepo, rankingSvc, notifier, metricsSvc, logr)
	draftSvc := service.NewDraftService(appRepo, fieldRepo, encryptor, validate, metricsSvc, logr)
	scoreSvc := service.NewScoreService(db, scoreRepo, appRepo, auditRepo, rankingSvc, validate, logr)
	pathSvc := service.NewAdmissionPathService(db, pathRepo, resultRepo, auditRepo, validate, logr)
	applicationSvc := service.NewApplicationService(db, appRepo, auditRepo, waitlistSvc, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	handlers := routeHandlers{
		ranking:     handler.NewRankingHandler(rankingSvc, selectionSvc, waitlistSvc),
		paths:       handler.NewAdmissionPathHandler(pathSvc),
		application: handler.NewApplicationHandler(draftSvc, applicationSvc),
		scores:      handler.NewScoreHandler(scoreSvc),
		metrics:     handler.NewMetricsHandler(metricsSvc, checks),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", handlers.metrics.Health)
	r.GET("/ready", handlers.metrics.Ready)
	r.GET("/metrics", handlers.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(authSvc), internalmiddleware.Tenant())
	registerRoutes(api, handlers)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "ranking_cache", cacheSvc.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type routeHandlers struct {
	ranking     *handler.RankingHandler
	paths       *handler.AdmissionPathHandler
	application *handler.ApplicationHandler
	scores      *handler.ScoreHandler
	metrics     *handler.MetricsHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	admin := internalmiddleware.RequireRoles(models.RoleSchoolAdmin)
	reviewers := internalmiddleware.RequireRoles(models.RoleSchoolAdmin, models.RoleVerifier)
	scorers := internalmiddleware.RequireRoles(models.RoleSchoolAdmin, models.RoleInterviewer)
	parents := internalmiddleware.RequireRoles(models.RoleParent)

	paths := api.Group("/admission-paths/:pathId")
	paths.GET("/ranking", reviewers, h.ranking.Ranking)
	paths.POST("/ranking/finalize", admin, h.ranking.Finalize)
	paths.GET("/selection-results/latest", reviewers, h.ranking.LatestResult)
	paths.GET("/selection-results/latest/export", admin, h.ranking.ExportResult)
	paths.POST("/vacancies", admin, h.ranking.ProcessVacancy)
	paths.PATCH("/quota", admin, h.paths.UpdateQuota)

	apps := api.Group("/applications/:applicationId")
	apps.GET("/draft", parents, h.application.GetDraft)
	apps.PATCH("/draft", parents, h.application.PatchDraft)
	apps.POST("/withdraw", parents, h.application.Withdraw)
	apps.POST("/score", scorers, h.scores.Save)

	api.POST("/scores/:scoreId/unlock", admin, h.scores.Unlock)
}

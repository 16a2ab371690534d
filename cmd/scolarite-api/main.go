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
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	_ "github.com/noah-isme/scolarite-api/api/swagger"
	"github.com/noah-isme/scolarite-api/internal/handler"
	"github.com/noah-isme/scolarite-api/internal/models"
	"github.com/noah-isme/scolarite-api/internal/repository"
	"github.com/noah-isme/scolarite-api/internal/service"
	"github.com/noah-isme/scolarite-api/pkg/cache"
	"github.com/noah-isme/scolarite-api/pkg/config"
	"github.com/noah-isme/scolarite-api/pkg/database"
	"github.com/noah-isme/scolarite-api/pkg/export"
	"github.com/noah-isme/scolarite-api/pkg/jobs"
	"github.com/noah-isme/scolarite-api/pkg/logger"
	"github.com/noah-isme/scolarite-api/pkg/mail"
)

// @title Scolarité API
// @version 1.0.0
// @description Document requests for the school office: transcripts, certificates and attestations.
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

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()

	var redisClient redis.UniversalClient
	if cfg.Stats.CacheEnabled {
		client, err := cache.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
		} else {
			redisClient = client
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	loc := cfg.Location()
	unitPrice, err := decimal.NewFromString(cfg.Requests.AttestationUnitPrice)
	if err != nil {
		logr.Warn("invalid ATTESTATION_UNIT_PRICE, using default", zap.String("value", cfg.Requests.AttestationUnitPrice))
		unitPrice = models.DefaultAttestationUnitPrice
	}

	catalog, err := mail.LoadCatalog(cfg.Mail.TemplatesFile)
	if err != nil {
		logr.Fatal("mail templates invalid", zap.Error(err))
	}
	mailer, err := mail.New(cfg.Mail, logr)
	if err != nil {
		logr.Fatal("mail transport invalid", zap.Error(err))
	}

	seq := repository.NewSequenceGenerator()
	transcripts := repository.NewTranscriptRepository(db, seq)
	certificates := repository.NewCertificateRepository(db, seq)
	attestations := repository.NewAttestationRepository(db, seq)
	sources := service.RequestSources{transcripts, certificates, attestations}

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled && redisClient != nil)
	validate := validator.New()
	identity := service.NewIdentityService(repository.NewUserRepository(db), validate, logr, service.IdentityConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	notifications := service.NewNotificationService(mailer, catalog, metrics, loc, logr)

	notifyOnCreate := service.NotifyOnCreate(notifications)
	var mailQueue *jobs.Queue
	if cfg.Mail.QueueWorkers > 0 {
		mailQueue = jobs.NewQueue("notifications", notifications.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Mail.QueueWorkers,
			MaxRetries: cfg.Mail.MaxRetries,
			RetryDelay: cfg.Mail.RetryDelay,
			Logger:     logr,
		})
		mailQueue.Start(context.Background())
		notifyOnCreate = service.QueueNotifyOnCreate(mailQueue, notifications)
	}

	requests := service.NewRequestService(service.RequestServiceParams{
		Transcripts:  transcripts,
		Certificates: certificates,
		Attestations: attestations,
		Sources:      sources,
		Identity:     identity,
		Hooks: []service.CreationHook{
			service.CountOnCreate(metrics),
			service.InvalidateStatsOnCreate(cacheSvc),
			notifyOnCreate,
		},
		Validator: validate,
		Logger:    logr,
		Config:    service.RequestServiceConfig{AttestationUnitPrice: unitPrice, Location: loc},
	})
	transitions := service.NewTransitionService(sources, identity, notifications, cacheSvc, metrics, logr)
	unified := service.NewUnifiedService(sources, identity, metrics, loc, logr)
	statistics := service.NewStatisticsService(sources, cacheSvc, metrics, service.StatisticsServiceConfig{CacheTTL: cfg.Stats.CacheTTL, Location: loc}, logr)
	exports := service.NewExportService(unified, export.NewCSVExporter(';'), nil, loc, logr)

	r := newRouter(cfg, logr, routeDeps{
		validator: identity,
		metrics:   metrics,
		auth:      handler.NewAuthHandler(identity),
		requests:  handler.NewRequestHandler(requests),
		unified:   handler.NewUnifiedHandler(unified, transitions, statistics, exports),
		probes:    handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
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
	if mailQueue != nil {
		mailQueue.Stop()
	}
	logr.Info("server stopped")
}

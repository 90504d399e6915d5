package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/erducate-api/internal/cache"
	"github.com/noah-isme/erducate-api/internal/config"
	"github.com/noah-isme/erducate-api/internal/database"
	"github.com/noah-isme/erducate-api/internal/handler"
	"github.com/noah-isme/erducate-api/internal/middleware"
	"github.com/noah-isme/erducate-api/internal/observability"
	"github.com/noah-isme/erducate-api/internal/repository"
	"github.com/noah-isme/erducate-api/internal/router"
	"github.com/noah-isme/erducate-api/internal/service"
	"github.com/noah-isme/erducate-api/pkg/ai"
	cloud "github.com/noah-isme/erducate-api/pkg/cloudinary"
)

// bodyLimit sits above the 2MB file cap so oversized files reach validation and get a readable error.
const bodyLimit = 8 * 1024 * 1024

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, listing cache disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, lifecycle events disabled")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	media, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create cloudinary client")
	}

	detector, err := newDetector(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create ai detector")
	}

	observability.RegisterMetrics()
	validate := service.NewValidator()
	listingCache := cache.NewListingCache(redisClient, cfg.ListingCacheTTL, logger)

	exerciseRepo := repository.NewExerciseRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	events := service.NewFanoutPublisher(
		service.NewEventPublisher(natsConn, cfg.EventSubjectBase, logger),
		activityService,
	)

	uploadService := service.NewUploadService(media, logger)
	exerciseService := service.NewExerciseService(exerciseRepo, submissionRepo, uploadService, detector, listingCache, events, validate, logger)
	submissionService := service.NewSubmissionService(exerciseRepo, submissionRepo, progressRepo, uploadService, listingCache, events, validate, logger)
	listingService := service.NewListingService(exerciseRepo, submissionRepo, progressRepo, listingCache, logger)

	responder := handler.NewResponder(logger, cfg.IsDevelopment())

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    bodyLimit,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		APIPrefix: "/api/v1",
		AccessLog: cfg.IsDevelopment(),
	})
	router.Register(app, cfg, router.Dependencies{
		ExerciseHandler:   handler.NewExerciseHandler(exerciseService, responder, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, responder, logger),
		ListingHandler:    handler.NewListingHandler(listingService, responder, logger),
		UploadHandler:     handler.NewUploadHandler(uploadService, exerciseService, submissionService, validate, responder, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, responder, logger),
		HealthChecks:      healthChecks(db, redisClient, natsConn),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func newDetector(cfg config.Config, logger zerolog.Logger) (ai.Detector, error) {
	transform := func(url string) string {
		return cloud.TransformURL(url, cloud.DefaultTransformation)
	}

	if cfg.AIProvider == "http" {
		return ai.NewHTTPDetector(ai.HTTPConfig{
			BaseURL:   cfg.AIDetectorURL,
			APIKey:    cfg.AIDetectorAPIKey,
			Timeout:   cfg.AIRequestTimeout,
			Transform: transform,
			Logger:    logger,
		})
	}

	return ai.NewOpenAIDetector(ai.OpenAIConfig{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Model:        cfg.OpenAIModel,
		FetchTimeout: cfg.AIFetchTimeout,
		Transform:    transform,
		Logger:       logger,
	})
}

func healthChecks(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.DependencyCheck {
	checks := map[string]handler.DependencyCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		checks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}
	return checks
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

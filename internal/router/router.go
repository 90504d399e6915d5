package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/erducate-api/internal/config"
	"github.com/noah-isme/erducate-api/internal/handler"
	"github.com/noah-isme/erducate-api/internal/middleware"
	"github.com/noah-isme/erducate-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExerciseHandler   *handler.ExerciseHandler
	SubmissionHandler *handler.SubmissionHandler
	ListingHandler    *handler.ListingHandler
	UploadHandler     *handler.UploadHandler
	ActivityHandler   *handler.ActivityHandler
	HealthChecks      map[string]handler.DependencyCheck
	JWTMiddleware     fiber.Handler
	Guards            *handler.Guards
}

// DefaultGuards returns the role and rate guards used in production.
func DefaultGuards(cfg config.Config) handler.Guards {
	return handler.Guards{
		Lecturer:     middleware.RequireLecturer(),
		Student:      middleware.RequireStudent(),
		PublishLimit: middleware.RateLimit("publish", cfg.PublishRateLimit, time.Minute),
	}
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	guards := DefaultGuards(cfg)
	if deps.Guards != nil {
		guards = *deps.Guards
	}

	if deps.UploadHandler != nil {
		uploads := api.Group("/uploads", jwtMiddleware)
		deps.UploadHandler.Register(uploads, guards)
	}

	class := api.Group("/classes/:classId", jwtMiddleware)
	if deps.ExerciseHandler != nil {
		deps.ExerciseHandler.Register(class, guards)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(class, guards)
	}
	if deps.ListingHandler != nil {
		deps.ListingHandler.Register(class)
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(class, guards)
	}
}

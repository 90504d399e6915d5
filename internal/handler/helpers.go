package handler

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/erducate-api/internal/middleware"
	"github.com/noah-isme/erducate-api/internal/service"
	"github.com/noah-isme/erducate-api/internal/utils"
)

// Guards are the route middlewares a handler attaches per route. Nil guards allow everything.
type Guards struct {
	Lecturer     fiber.Handler
	Student      fiber.Handler
	PublishLimit fiber.Handler
}

func passthrough(c *fiber.Ctx) error {
	return c.Next()
}

func (g Guards) lecturer() fiber.Handler {
	if g.Lecturer == nil {
		return passthrough
	}
	return g.Lecturer
}

func (g Guards) student() fiber.Handler {
	if g.Student == nil {
		return passthrough
	}
	return g.Student
}

func (g Guards) publishLimit() fiber.Handler {
	if g.PublishLimit == nil {
		return passthrough
	}
	return g.PublishLimit
}

// Responder renders service failures as API envelopes.
type Responder struct {
	logger       zerolog.Logger
	exposeDetail bool
}

// NewResponder builds a responder. Raw upstream detail is only rendered when exposeDetail is set.
func NewResponder(logger zerolog.Logger, exposeDetail bool) Responder {
	return Responder{
		logger:       logger.With().Str("component", "http_errors").Logger(),
		exposeDetail: exposeDetail,
	}
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(err *service.Error) int {
	switch err.Kind {
	case service.KindValidation:
		return fiber.StatusUnprocessableEntity
	case service.KindPolicy, service.KindConflict:
		return fiber.StatusConflict
	case service.KindNotFound:
		return fiber.StatusNotFound
	case service.KindForbidden:
		return fiber.StatusForbidden
	case service.KindUpstream:
		return fiber.StatusBadGateway
	case service.KindTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func (r Responder) details(err *service.Error) fiber.Map {
	details := fiber.Map{"code": err.Code, "kind": err.Kind}
	if len(err.Fields) > 0 {
		details["fields"] = err.Fields
	}
	if err.Retryable {
		details["retryable"] = true
	}
	if err.Hint != "" {
		details["hint"] = err.Hint
	}
	if err.Disabled {
		details["disabled"] = true
	}
	if r.exposeDetail && err.Detail != "" {
		details["detail"] = err.Detail
	}
	return details
}

// Error writes err with the status of its kind. Untyped errors become a 500 without detail.
func (r Responder) Error(c *fiber.Ctx, err error) error {
	return r.ErrorWithData(c, err, nil)
}

// ErrorWithData writes err and still carries a payload, such as a preserved draft.
func (r Responder) ErrorWithData(c *fiber.Ctx, err error, data interface{}) error {
	typed, ok := service.AsError(err)
	if !ok {
		requestLogger(r.logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	status := StatusFor(typed)
	if status >= fiber.StatusInternalServerError {
		requestLogger(r.logger, c).Warn().Str("code", typed.Code).Str("detail", typed.Detail).Msg("upstream failure")
	}

	return utils.FailWithData(c, status, typed.Message, r.details(typed), data)
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   middleware.UserID(c),
		Role: middleware.UserRole(c),
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func trimmedParam(c *fiber.Ctx, key string) string {
	return strings.TrimSpace(c.Params(key))
}

// optionalFile returns the named multipart file, or nil when the form has none.
func optionalFile(c *fiber.Ctx, key string) *multipart.FileHeader {
	file, err := c.FormFile(key)
	if err != nil {
		return nil
	}
	return file
}

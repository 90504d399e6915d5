package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/erducate-api/internal/dto"
	"github.com/noah-isme/erducate-api/internal/service"
	"github.com/noah-isme/erducate-api/internal/utils"
)

// ActivityHandler serves the class activity trail to lecturers.
type ActivityHandler struct {
	service   service.ActivityService
	responder Responder
	logger    zerolog.Logger
}

// NewActivityHandler constructs an activity handler.
func NewActivityHandler(service service.ActivityService, responder Responder, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service:   service,
		responder: responder,
		logger:    logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register wires the routes below /classes/:classId.
func (h *ActivityHandler) Register(router fiber.Router, guards Guards) {
	router.Get("/activity", guards.lecturer(), h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	var filter dto.ActivityFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	trail, err := h.service.List(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), filter)
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.OK(c, trail.Items, "activity retrieved", trail.Pagination)
}

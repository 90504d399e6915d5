package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/erducate-api/internal/service"
	"github.com/noah-isme/erducate-api/internal/utils"
)

// ListingHandler serves the cached class overview.
type ListingHandler struct {
	service   service.ListingService
	responder Responder
	logger    zerolog.Logger
}

// NewListingHandler constructs a listing handler.
func NewListingHandler(service service.ListingService, responder Responder, logger zerolog.Logger) *ListingHandler {
	return &ListingHandler{
		service:   service,
		responder: responder,
		logger:    logger.With().Str("component", "listing_handler").Logger(),
	}
}

// Register wires the routes below /classes/:classId.
func (h *ListingHandler) Register(router fiber.Router) {
	router.Get("/listing", h.overview)
}

func (h *ListingHandler) overview(c *fiber.Ctx) error {
	listing, cached, err := h.service.Overview(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"))
	if err != nil {
		return h.responder.Error(c, err)
	}

	if maxAge := h.service.MaxAge(); maxAge > 0 {
		c.Set(fiber.HeaderCacheControl, "private, max-age="+strconv.Itoa(int(maxAge.Seconds())))
	}
	return utils.OK(c, listing, "listing retrieved", fiber.Map{"cached": cached})
}

package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/erducate-api/internal/dto"
	"github.com/noah-isme/erducate-api/internal/service"
	"github.com/noah-isme/erducate-api/internal/utils"
)

// ExerciseHandler exposes the exercise lifecycle endpoints of a class.
type ExerciseHandler struct {
	service   service.ExerciseService
	responder Responder
	logger    zerolog.Logger
}

// NewExerciseHandler constructs an exercise handler.
func NewExerciseHandler(service service.ExerciseService, responder Responder, logger zerolog.Logger) *ExerciseHandler {
	return &ExerciseHandler{
		service:   service,
		responder: responder,
		logger:    logger.With().Str("component", "exercise_handler").Logger(),
	}
}

// Register wires the routes below /classes/:classId.
func (h *ExerciseHandler) Register(router fiber.Router, guards Guards) {
	router.Get("/exercises", h.list)
	router.Post("/exercises", guards.lecturer(), h.saveDraft)
	router.Post("/exercises/drafts", guards.lecturer(), h.saveDraft)
	router.Post("/exercises/drafts/:id", guards.lecturer(), h.saveDraft)
	router.Post("/exercises/publish", guards.lecturer(), guards.publishLimit(), h.publish)
	router.Post("/exercises/publish/:id", guards.lecturer(), guards.publishLimit(), h.publish)
	router.Get("/exercises/:id", h.get)
	router.Patch("/exercises/:id", guards.lecturer(), h.update)
	router.Delete("/exercises/:id", guards.lecturer(), h.delete)
	router.Get("/exercises/:id/review", guards.lecturer(), h.review)
	router.Post("/exercises/:id/approve", guards.lecturer(), h.approve)
	router.Put("/exercises/:id/answer", guards.lecturer(), h.updateAnswer)
}

func (h *ExerciseHandler) list(c *fiber.Ctx) error {
	var filter dto.ExerciseFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	items, err := h.service.List(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), filter)
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "exercises retrieved", items)
}

func (h *ExerciseHandler) get(c *fiber.Ctx) error {
	exercise, err := h.service.Get(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), trimmedParam(c, "id"))
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "exercise retrieved", exercise)
}

// parseExerciseForm reads a multipart or JSON body. An empty body is an empty draft.
func parseExerciseForm(c *fiber.Ctx) (dto.ExerciseRequest, service.ExerciseFiles, error) {
	var payload dto.ExerciseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return dto.ExerciseRequest{}, service.ExerciseFiles{}, err
		}
	}

	files := service.ExerciseFiles{
		AnswerScheme: optionalFile(c, "answerScheme"),
		Rubric:       optionalFile(c, "rubricFile"),
	}
	return payload, files, nil
}

func (h *ExerciseHandler) saveDraft(c *fiber.Ctx) error {
	payload, files, err := parseExerciseForm(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	id := trimmedParam(c, "id")
	exercise, err := h.service.SaveDraft(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), id, payload, files)
	if err != nil {
		return h.responder.Error(c, err)
	}

	if id == "" {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "draft saved", exercise)
	}
	return utils.SendSuccess(c, "draft saved", exercise)
}

func (h *ExerciseHandler) publish(c *fiber.Ctx) error {
	payload, files, err := parseExerciseForm(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Publish(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), trimmedParam(c, "id"), payload, files)
	if err != nil {
		if result.Exercise != nil {
			return h.responder.ErrorWithData(c, err, result)
		}
		return h.responder.Error(c, err)
	}

	requestLogger(h.logger, c).Info().Str("exercise_id", result.Exercise.ID).Msg("exercise ready for review")
	return utils.SendSuccess(c, result.Message, result)
}

func (h *ExerciseHandler) review(c *fiber.Ctx) error {
	summary, err := h.service.Review(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), trimmedParam(c, "id"))
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "review retrieved", summary)
}

func (h *ExerciseHandler) approve(c *fiber.Ctx) error {
	var payload dto.ApproveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exercise, err := h.service.Approve(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), trimmedParam(c, "id"), payload)
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "exercise published", exercise)
}

func (h *ExerciseHandler) updateAnswer(c *fiber.Ctx) error {
	var payload dto.ApproveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exercise, err := h.service.UpdateCorrectAnswer(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), trimmedParam(c, "id"), payload)
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "correct answer updated", exercise)
}

func (h *ExerciseHandler) update(c *fiber.Ctx) error {
	var payload dto.ExerciseUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exercise, err := h.service.Update(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), trimmedParam(c, "id"), payload)
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "exercise updated", exercise)
}

func (h *ExerciseHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), trimmedParam(c, "id")); err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "exercise deleted", nil)
}

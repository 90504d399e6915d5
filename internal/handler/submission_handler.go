package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/erducate-api/internal/dto"
	"github.com/noah-isme/erducate-api/internal/models"
	"github.com/noah-isme/erducate-api/internal/service"
	"github.com/noah-isme/erducate-api/internal/utils"
)

// SubmissionHandler manages student submissions, progress and grading.
type SubmissionHandler struct {
	service   service.SubmissionService
	responder Responder
	logger    zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, responder Responder, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:   service,
		responder: responder,
		logger:    logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register wires the routes below /classes/:classId.
func (h *SubmissionHandler) Register(router fiber.Router, guards Guards) {
	router.Post("/exercises/:id/submissions", guards.student(), h.submit)
	router.Get("/exercises/:id/submissions", guards.lecturer(), h.listForExercise)
	router.Get("/exercises/:id/progress", h.progress)
	router.Patch("/exercises/:id/submissions/:studentId/grade", guards.lecturer(), h.grade)
	router.Post("/exercises/:id/submissions/:studentId/publish", guards.lecturer(), h.publishGrade)
	router.Get("/students/:studentId/submissions", h.listForStudent)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	result, err := h.service.Submit(c.UserContext(), actorFromContext(c), service.SubmitInput{
		ClassID:    trimmedParam(c, "classId"),
		ExerciseID: trimmedParam(c, "id"),
		File:       optionalFile(c, "file"),
		Comments:   payload.Comments,
	})
	if err != nil {
		return h.responder.Error(c, err)
	}

	message := "submission received"
	if result.EditCount > 0 {
		message = "submission updated"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *SubmissionHandler) listForExercise(c *fiber.Ctx) error {
	var filter dto.SubmissionFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	items, err := h.service.ListForExercise(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), trimmedParam(c, "id"), filter)
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", items)
}

// progress reports the caller's own progress; lecturers may pass ?studentId=.
func (h *SubmissionHandler) progress(c *fiber.Ctx) error {
	actor := actorFromContext(c)
	studentID := actor.ID
	if actor.IsStaff() && c.Query("studentId") != "" {
		studentID = c.Query("studentId")
	}

	progress, err := h.service.Progress(c.UserContext(), actor, h.key(c, studentID))
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "progress retrieved", progress)
}

func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Grade(c.UserContext(), actorFromContext(c), h.key(c, trimmedParam(c, "studentId")), payload)
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *SubmissionHandler) publishGrade(c *fiber.Ctx) error {
	submission, err := h.service.PublishGrade(c.UserContext(), actorFromContext(c), h.key(c, trimmedParam(c, "studentId")))
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "grade published", submission)
}

func (h *SubmissionHandler) listForStudent(c *fiber.Ctx) error {
	items, err := h.service.ListForStudent(c.UserContext(), actorFromContext(c), trimmedParam(c, "classId"), trimmedParam(c, "studentId"))
	if err != nil {
		return h.responder.Error(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", items)
}

func (h *SubmissionHandler) key(c *fiber.Ctx, studentID string) models.SubmissionKey {
	return models.SubmissionKey{
		StudentID:  studentID,
		ClassID:    trimmedParam(c, "classId"),
		ExerciseID: trimmedParam(c, "id"),
	}
}

package handler

import (
	"errors"
	"mime/multipart"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/erducate-api/internal/dto"
	"github.com/noah-isme/erducate-api/internal/service"
	"github.com/noah-isme/erducate-api/internal/utils"
)

// UploadHandler brokers direct uploads to the media host. Files that live on a
// deterministic key go through the service that owns the key and its policy.
type UploadHandler struct {
	uploads     service.UploadService
	exercises   service.ExerciseService
	submissions service.SubmissionService
	validator   *validator.Validate
	responder   Responder
	logger      zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(
	uploads service.UploadService,
	exercises service.ExerciseService,
	submissions service.SubmissionService,
	validate *validator.Validate,
	responder Responder,
	logger zerolog.Logger,
) *UploadHandler {
	return &UploadHandler{
		uploads:     uploads,
		exercises:   exercises,
		submissions: submissions,
		validator:   validate,
		responder:   responder,
		logger:      logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *UploadHandler) Register(router fiber.Router, guards Guards) {
	router.Post("", h.upload)
	router.Delete("", guards.lecturer(), h.delete)
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	var form dto.UploadForm
	if err := c.BodyParser(&form); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form expected")
	}
	if err := h.validator.Struct(form); err != nil {
		return h.fail(c, service.ValidationError(err))
	}

	actor := actorFromContext(c)
	purpose := service.ParsePurpose(form.UploadType)
	file := optionalFile(c, "file")

	var (
		result service.UploadResult
		err    error
	)
	switch purpose {
	case service.PurposeSubmission:
		result, err = h.uploadSubmission(c, actor, form, file)
	case service.PurposeAnswerScheme, service.PurposeRubric:
		result, err = h.uploadExerciseFile(c, actor, purpose, form, file)
	default:
		result, err = h.uploads.Upload(c.UserContext(), service.UploadRequest{
			File:     file,
			Purpose:  purpose,
			Folder:   form.Folder,
			Filename: form.Filename,
		})
	}
	if err != nil {
		return h.fail(c, err)
	}

	requestLogger(h.logger, c).Info().
		Str("public_id", result.StorageKey).
		Str("purpose", string(purpose)).
		Bool("overwritten", result.Overwritten).
		Msg("file uploaded")

	return c.Status(fiber.StatusOK).JSON(dto.UploadResponse{
		Success:      true,
		URL:          result.URL,
		PublicID:     result.StorageKey,
		OriginalName: result.OriginalName,
		FileType:     result.MimeType,
		FileSize:     result.Size,
		Width:        result.Width,
		Height:       result.Height,
		Overwritten:  result.Overwritten,
	})
}

// uploadSubmission runs the upload as a submission, so the due date and the edit limit apply.
func (h *UploadHandler) uploadSubmission(c *fiber.Ctx, actor service.Actor, form dto.UploadForm, file *multipart.FileHeader) (service.UploadResult, error) {
	if studentID := strings.TrimSpace(form.StudentID); studentID != "" && studentID != actor.ID {
		return service.UploadResult{}, service.ErrForbidden.WithMessage("you can only upload your own submission")
	}
	classID := strings.TrimSpace(form.ClassID)
	exerciseID := strings.TrimSpace(form.ExerciseID)
	if fields := missing(map[string]string{"classId": classID, "exerciseId": exerciseID}); len(fields) > 0 {
		return service.UploadResult{}, service.NewFieldError(fields)
	}

	submitted, err := h.submissions.Submit(c.UserContext(), actor, service.SubmitInput{
		ClassID:    classID,
		ExerciseID: exerciseID,
		File:       file,
	})
	if err != nil {
		return service.UploadResult{}, err
	}

	stored := submitted.Submission.File
	if stored == nil {
		return service.UploadResult{}, errors.New("submission stored without a file")
	}
	return service.UploadResult{
		URL:          stored.URL,
		StorageKey:   stored.StorageKey,
		OriginalName: stored.OriginalName,
		MimeType:     stored.MimeType,
		Size:         stored.Size,
		Width:        stored.Width,
		Height:       stored.Height,
		Overwritten:  submitted.Overwritten,
	}, nil
}

func (h *UploadHandler) uploadExerciseFile(c *fiber.Ctx, actor service.Actor, purpose service.UploadPurpose, form dto.UploadForm, file *multipart.FileHeader) (service.UploadResult, error) {
	classID := strings.TrimSpace(form.ClassID)
	exerciseID := strings.TrimSpace(form.ExerciseID)
	if fields := missing(map[string]string{"classId": classID, "exerciseId": exerciseID}); len(fields) > 0 {
		return service.UploadResult{}, service.NewFieldError(fields)
	}
	return h.exercises.AttachFile(c.UserContext(), actor, classID, exerciseID, purpose, file)
}

func missing(values map[string]string) map[string]string {
	fields := map[string]string{}
	for field, value := range values {
		if value == "" {
			fields[field] = field + " is required"
		}
	}
	return fields
}

func (h *UploadHandler) delete(c *fiber.Ctx) error {
	var payload dto.DeleteUploadRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.fail(c, service.ValidationError(err))
	}

	result, err := h.uploads.Delete(c.UserContext(), payload.PublicID)
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.DeleteUploadResponse{Success: true, WasNotFound: !result.Found})
}

// fail renders oversized files as 413; everything else follows the shared mapping.
func (h *UploadHandler) fail(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrUploadTooLarge) {
		typed, _ := service.AsError(err)
		return utils.Fail(c, fiber.StatusRequestEntityTooLarge, typed.Message, h.responder.details(typed))
	}
	return h.responder.Error(c, err)
}

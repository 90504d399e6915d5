package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/erducate-api/internal/models"
	"github.com/noah-isme/erducate-api/internal/observability"
	"github.com/noah-isme/erducate-api/pkg/cloudinary"
)

// MaxUploadBytes is the hard size limit for every upload.
const MaxUploadBytes int64 = 2 << 20

// UploadPurpose selects the allow-list and key policy of an upload.
type UploadPurpose string

const (
	PurposeAnswerScheme UploadPurpose = "answer_scheme"
	PurposeRubric       UploadPurpose = "rubric"
	PurposeSubmission   UploadPurpose = "submission"
	PurposeGeneric      UploadPurpose = "generic"
)

var imageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/gif":  {},
	"image/webp": {},
}

const pdfType = "application/pdf"

// ParsePurpose maps a form value onto a purpose, defaulting to generic.
func ParsePurpose(value string) UploadPurpose {
	switch UploadPurpose(strings.ToLower(strings.TrimSpace(value))) {
	case PurposeAnswerScheme:
		return PurposeAnswerScheme
	case PurposeRubric:
		return PurposeRubric
	case PurposeSubmission:
		return PurposeSubmission
	default:
		return PurposeGeneric
	}
}

// MediaStore abstracts the media host.
type MediaStore interface {
	Put(ctx context.Context, publicID string, reader io.Reader, opts cloudinary.PutOptions) (cloudinary.Asset, error)
	Destroy(ctx context.Context, publicID string) (bool, error)
	TransformURL(url string) string
}

// InspectedFile is an upload that passed size and type checks and is held in memory.
type InspectedFile struct {
	OriginalName string
	MimeType     string
	Size         int64
	Purpose      UploadPurpose
	data         []byte
}

// UploadRequest describes an ad-hoc upload. It always lands under a unique key;
// deterministic keys are written only by the exercise and submission services.
type UploadRequest struct {
	File     *multipart.FileHeader
	Purpose  UploadPurpose
	Folder   string
	Filename string
}

// UploadResult describes a stored object.
type UploadResult struct {
	URL          string
	StorageKey   string
	OriginalName string
	MimeType     string
	Size         int64
	Width        int
	Height       int
	Overwritten  bool
}

// FileRef converts the result into the persisted file reference.
func (r UploadResult) FileRef() models.FileRef {
	return models.FileRef{
		URL:          r.URL,
		StorageKey:   r.StorageKey,
		OriginalName: r.OriginalName,
		Size:         r.Size,
		MimeType:     r.MimeType,
		Width:        r.Width,
		Height:       r.Height,
	}
}

// DeleteResult reports whether an object existed before deletion.
type DeleteResult struct {
	Found bool
}

// UploadService validates files and brokers them to the media host.
type UploadService interface {
	Inspect(file *multipart.FileHeader, purpose UploadPurpose) (*InspectedFile, error)
	Store(ctx context.Context, file *InspectedFile, key string) (UploadResult, error)
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)
	Delete(ctx context.Context, key string) (DeleteResult, error)
	TransformURL(url string) string
}

type uploadService struct {
	store  MediaStore
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewUploadService constructs the media upload broker.
func NewUploadService(store MediaStore, logger zerolog.Logger) UploadService {
	return &uploadService{
		store:  store,
		logger: logger.With().Str("component", "upload_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/erducate-api/internal/service/upload"),
		now:    time.Now,
	}
}

// SubmissionStorageKey is the stable key of a student's submission file.
func SubmissionStorageKey(classID, exerciseID, studentID string) string {
	return cloudinary.JoinPublicID("submissions", idSegment(classID), idSegment(exerciseID), idSegment(studentID))
}

// ExerciseFieldStorageKey is the stable key of a lecturer-uploaded exercise file.
func ExerciseFieldStorageKey(classID, exerciseID, field string) string {
	return cloudinary.JoinPublicID("exercises", idSegment(classID), idSegment(exerciseID), keySegment(field))
}

// Inspect enforces the size limit and the purpose's allow-list without touching the network.
func (s *uploadService) Inspect(file *multipart.FileHeader, purpose UploadPurpose) (*InspectedFile, error) {
	if file == nil {
		return nil, singleFieldError(ErrFileRequired, "file", "")
	}

	if file.Size > MaxUploadBytes {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return nil, singleFieldError(ErrUploadTooLarge, "file", "")
	}

	handle, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, MaxUploadBytes+1)); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(buf.Len()) > MaxUploadBytes {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return nil, singleFieldError(ErrUploadTooLarge, "file", "")
	}
	if buf.Len() == 0 {
		observability.UploadRejected().WithLabelValues("empty").Inc()
		return nil, singleFieldError(ErrFileRequired, "file", "file is empty")
	}

	detected := mimetype.Detect(buf.Bytes()).String()
	fileType := strings.ToLower(strings.TrimSpace(strings.SplitN(detected, ";", 2)[0]))
	if message, ok := allowed(purpose, fileType); !ok {
		observability.UploadRejected().WithLabelValues("type").Inc()
		return nil, singleFieldError(ErrUploadTypeNotAllowed, "file", message)
	}

	return &InspectedFile{
		OriginalName: strings.TrimSpace(filepath.Base(file.Filename)),
		MimeType:     fileType,
		Size:         int64(buf.Len()),
		Purpose:      purpose,
		data:         buf.Bytes(),
	}, nil
}

func allowed(purpose UploadPurpose, fileType string) (string, bool) {
	_, isImage := imageTypes[fileType]
	isPDF := fileType == pdfType

	switch purpose {
	case PurposeAnswerScheme, PurposeSubmission:
		return "only PNG, JPEG, GIF or WebP images are accepted", isImage
	case PurposeRubric:
		return "only PDF documents are accepted for rubrics", isPDF
	default:
		return "only images or PDF documents are accepted", isImage || isPDF
	}
}

// Store uploads an inspected file. A non-empty key overwrites the previous
// object and invalidates its CDN copies; an empty key stores under a unique key.
func (s *uploadService) Store(ctx context.Context, file *InspectedFile, key string) (UploadResult, error) {
	if key == "" {
		return s.put(ctx, file, s.uniqueKey("", file.OriginalName), false)
	}
	return s.put(ctx, file, key, true)
}

func (s *uploadService) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	inspected, err := s.Inspect(req.File, req.Purpose)
	if err != nil {
		return UploadResult{}, err
	}

	if name := strings.TrimSpace(req.Filename); name != "" {
		inspected.OriginalName = filepath.Base(name)
	}

	return s.put(ctx, inspected, s.uniqueKey(req.Folder, inspected.OriginalName), false)
}

func (s *uploadService) put(ctx context.Context, file *InspectedFile, key string, overwrite bool) (UploadResult, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store", trace.WithAttributes(
		attribute.String("upload.purpose", string(file.Purpose)),
		attribute.String("upload.mime", file.MimeType),
		attribute.Int64("upload.size_bytes", file.Size),
		attribute.String("upload.key", key),
		attribute.Bool("upload.overwrite", overwrite),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	asset, err := s.store.Put(ctx, key, bytes.NewReader(file.data), cloudinary.PutOptions{Overwrite: overwrite})
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		s.logger.Error().Err(err).Str("key", key).Msg("media host rejected upload")
		return UploadResult{}, ErrStorageFailed.wrap(err)
	}

	observability.UploadRequests().WithLabelValues(string(file.Purpose), file.MimeType).Inc()
	span.SetStatus(codes.Ok, "stored")

	return UploadResult{
		URL:          asset.URL,
		StorageKey:   asset.PublicID,
		OriginalName: file.OriginalName,
		MimeType:     file.MimeType,
		Size:         file.Size,
		Width:        asset.Width,
		Height:       asset.Height,
		Overwritten:  asset.Overwritten,
	}, nil
}

// Delete removes an object. Deleting an absent object succeeds with Found=false.
func (s *uploadService) Delete(ctx context.Context, key string) (DeleteResult, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return DeleteResult{}, singleFieldError(ErrValidation, "publicId", "publicId is required")
	}

	found, err := s.store.Destroy(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("media host rejected delete")
		return DeleteResult{}, ErrStorageFailed.WithMessage("the file could not be deleted, please try again").wrap(err)
	}

	return DeleteResult{Found: found}, nil
}

func (s *uploadService) TransformURL(url string) string {
	return s.store.TransformURL(url)
}

func (s *uploadService) uniqueKey(folder, name string) string {
	folder = keySegment(folder)
	if folder == "" {
		folder = "uploads"
	}
	base := sanitizeFileName(name)
	return cloudinary.JoinPublicID(folder, fmt.Sprintf("%s-%d-%s", base, s.now().Unix(), uuid.NewString()[:8]))
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = keySegment(base)
	if base == "" {
		base = "upload"
	}
	return base
}

// idSegment keeps the case of an owner id and escapes every byte outside
// [A-Za-z0-9-] as _xx, so distinct ids never share a key.
func idSegment(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String()
}

// keySegment lower-cases a value and replaces anything outside [a-z0-9_-] with '-'.
func keySegment(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, value)
	return strings.Trim(value, "-")
}

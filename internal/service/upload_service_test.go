package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erducate-api/pkg/cloudinary"
)

var (
	pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}
	pdfBytes = []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
)

type mediaStoreStub struct {
	puts       []putCall
	objects    map[string][]byte
	destroyed  []string
	putErr     error
	destroyErr error
}

type putCall struct {
	key       string
	overwrite bool
	size      int
}

func newMediaStoreStub() *mediaStoreStub {
	return &mediaStoreStub{objects: map[string][]byte{}}
}

func (m *mediaStoreStub) Put(ctx context.Context, publicID string, reader io.Reader, opts cloudinary.PutOptions) (cloudinary.Asset, error) {
	if m.putErr != nil {
		return cloudinary.Asset{}, m.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return cloudinary.Asset{}, err
	}
	_, existed := m.objects[publicID]
	m.objects[publicID] = data
	m.puts = append(m.puts, putCall{key: publicID, overwrite: opts.Overwrite, size: len(data)})
	return cloudinary.Asset{
		URL:         fmt.Sprintf("https://res.cloudinary.com/demo/image/upload/v%d/%s", len(m.puts), publicID),
		PublicID:    publicID,
		Bytes:       len(data),
		Width:       640,
		Height:      480,
		Overwritten: existed,
	}, nil
}

func (m *mediaStoreStub) Destroy(ctx context.Context, publicID string) (bool, error) {
	if m.destroyErr != nil {
		return false, m.destroyErr
	}
	m.destroyed = append(m.destroyed, publicID)
	_, ok := m.objects[publicID]
	delete(m.objects, publicID)
	return ok, nil
}

func (m *mediaStoreStub) TransformURL(url string) string {
	return cloudinary.TransformURL(url, cloudinary.DefaultTransformation)
}

func TestUploadServiceRejectsOversizedFileBeforeNetwork(t *testing.T) {
	store := newMediaStoreStub()
	svc := NewUploadService(store, zerolog.Nop())

	file := buildFileHeader(t, "huge.png", append(pngBytes, bytes.Repeat([]byte{0}, 3*1024*1024)...))

	_, err := svc.Upload(context.Background(), UploadRequest{File: file, Purpose: PurposeSubmission})
	require.ErrorIs(t, err, ErrUploadTooLarge)
	require.Contains(t, err.Error(), "2MB")
	require.Empty(t, store.puts)

	typed, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, KindValidation, typed.Kind)
	require.Contains(t, typed.Fields["file"], "2MB")
}

func TestUploadServiceTypeValidationPerPurpose(t *testing.T) {
	svc := NewUploadService(newMediaStoreStub(), zerolog.Nop())

	_, err := svc.Inspect(buildFileHeader(t, "rubric.pdf", pdfBytes), PurposeAnswerScheme)
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
	require.Contains(t, err.Error(), "images")

	_, err = svc.Inspect(buildFileHeader(t, "rubric.png", pngBytes), PurposeRubric)
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
	require.Contains(t, err.Error(), "PDF")

	_, err = svc.Inspect(buildFileHeader(t, "notes.txt", []byte("plain text")), PurposeGeneric)
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)

	_, err = svc.Inspect(buildFileHeader(t, "empty.png", nil), PurposeSubmission)
	require.ErrorIs(t, err, ErrFileRequired)

	_, err = svc.Inspect(nil, PurposeSubmission)
	require.ErrorIs(t, err, ErrFileRequired)

	inspected, err := svc.Inspect(buildFileHeader(t, "rubric.pdf", pdfBytes), PurposeRubric)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", inspected.MimeType)
}

func TestUploadServiceDeterministicKeyOverwrites(t *testing.T) {
	store := newMediaStoreStub()
	svc := NewUploadService(store, zerolog.Nop())
	key := SubmissionStorageKey("class-1", "ex-1", "student-7")
	require.Equal(t, "submissions/class-1/ex-1/student-7", key)

	inspected, err := svc.Inspect(buildFileHeader(t, "erd.png", pngBytes), PurposeSubmission)
	require.NoError(t, err)
	first, err := svc.Store(context.Background(), inspected, key)
	require.NoError(t, err)
	require.False(t, first.Overwritten)

	inspected, err = svc.Inspect(buildFileHeader(t, "erd-v2.png", pngBytes), PurposeSubmission)
	require.NoError(t, err)
	second, err := svc.Store(context.Background(), inspected, key)
	require.NoError(t, err)
	require.True(t, second.Overwritten)
	require.Equal(t, first.StorageKey, second.StorageKey)
	require.Len(t, store.objects, 1)
	require.True(t, store.puts[1].overwrite)
	require.Equal(t, "erd-v2.png", second.OriginalName)
	require.Equal(t, "image/png", second.MimeType)
}

func TestStorageKeysKeepDistinctOwnersApart(t *testing.T) {
	require.NotEqual(t, SubmissionStorageKey("class-1", "ex-1", "UserAbc"), SubmissionStorageKey("class-1", "ex-1", "userabc"))
	require.NotEqual(t, SubmissionStorageKey("class-1", "ex-1", "j.doe@uni"), SubmissionStorageKey("class-1", "ex-1", "j-doe-uni"))
	require.NotEqual(t, SubmissionStorageKey("class-1", "ex-1", "a_2e"), SubmissionStorageKey("class-1", "ex-1", "a."))
	require.NotEqual(t, ExerciseFieldStorageKey("Class-1", "ex-1", "answer_scheme"), ExerciseFieldStorageKey("class-1", "ex-1", "answer_scheme"))

	require.Equal(t, "submissions/Class_201/ex-1/student_2f7", SubmissionStorageKey("Class 1", "ex-1", "student/7"))
	require.Equal(t, "submissions/class-1/ex-1/j_2edoe_40uni", SubmissionStorageKey("class-1", "ex-1", "j.doe@uni"))
	require.Equal(t, "exercises/class-1/ex-1/answer_scheme", ExerciseFieldStorageKey("class-1", "ex-1", "answer_scheme"))
}

func TestUploadServiceGenericKeysAreUnique(t *testing.T) {
	store := newMediaStoreStub()
	svc := NewUploadService(store, zerolog.Nop())

	req := UploadRequest{File: buildFileHeader(t, "My Diagram.PNG", pngBytes), Purpose: PurposeGeneric, Folder: "Lecture Notes"}
	first, err := svc.Upload(context.Background(), req)
	require.NoError(t, err)
	req.File = buildFileHeader(t, "My Diagram.PNG", pngBytes)
	second, err := svc.Upload(context.Background(), req)
	require.NoError(t, err)

	require.NotEqual(t, first.StorageKey, second.StorageKey)
	require.True(t, strings.HasPrefix(first.StorageKey, "lecture-notes/my-diagram-"))
	require.False(t, store.puts[0].overwrite)
}

func TestUploadServiceStorageFailureIsSanitised(t *testing.T) {
	store := newMediaStoreStub()
	store.putErr = errors.New("401 invalid api_secret abc123")
	svc := NewUploadService(store, zerolog.Nop())

	_, err := svc.Upload(context.Background(), UploadRequest{File: buildFileHeader(t, "erd.png", pngBytes), Purpose: PurposeGeneric})
	require.ErrorIs(t, err, ErrStorageFailed)

	typed, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, KindUpstream, typed.Kind)
	require.NotContains(t, typed.Message, "api_secret")
	require.Contains(t, typed.Detail, "api_secret")
}

func TestUploadServiceDeleteAbsentIsSuccess(t *testing.T) {
	store := newMediaStoreStub()
	svc := NewUploadService(store, zerolog.Nop())

	result, err := svc.Delete(context.Background(), "submissions/c/e/missing")
	require.NoError(t, err)
	require.False(t, result.Found)

	stored, err := svc.Upload(context.Background(), UploadRequest{File: buildFileHeader(t, "erd.png", pngBytes), Purpose: PurposeSubmission})
	require.NoError(t, err)
	result, err = svc.Delete(context.Background(), "/"+stored.StorageKey)
	require.NoError(t, err)
	require.True(t, result.Found)

	_, err = svc.Delete(context.Background(), "  ")
	require.ErrorIs(t, err, ErrValidation)
}

func TestParsePurpose(t *testing.T) {
	require.Equal(t, PurposeAnswerScheme, ParsePurpose(" Answer_Scheme "))
	require.Equal(t, PurposeRubric, ParsePurpose("rubric"))
	require.Equal(t, PurposeSubmission, ParsePurpose("submission"))
	require.Equal(t, PurposeGeneric, ParsePurpose("legacy"))
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

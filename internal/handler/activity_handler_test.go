package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erducate-api/internal/dto"
	"github.com/noah-isme/erducate-api/internal/handler"
	"github.com/noah-isme/erducate-api/internal/router"
	"github.com/noah-isme/erducate-api/internal/service"
)

type stubActivityService struct {
	service.ActivityService

	filter dto.ActivityFilter
	calls  int
}

func (s *stubActivityService) List(_ context.Context, _ service.Actor, classID string, filter dto.ActivityFilter) (dto.ActivityList, error) {
	s.calls++
	s.filter = filter
	return dto.ActivityList{
		Items:      []dto.ActivityResponse{{ID: 1, Type: service.EventSubmissionGraded, ClassID: classID}},
		Pagination: dto.PaginationMeta{Page: 2, PageSize: 5, TotalItems: 6, TotalPages: 2},
	}, nil
}

func TestActivityListCarriesPagination(t *testing.T) {
	svc := &stubActivityService{}
	app := newTestApp(t, router.Dependencies{
		ActivityHandler: handler.NewActivityHandler(svc, handler.NewResponder(testLogger(), false), testLogger()),
	})

	resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/classes/class-1/activity?page=2&pageSize=5&type=submission.graded", nil), "student-1", "student")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Zero(t, svc.calls)

	resp = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/classes/class-1/activity?page=2&pageSize=5&type=submission.graded", nil), "lecturer-1", "lecturer")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, dto.ActivityFilter{Type: service.EventSubmissionGraded, Page: 2, PageSize: 5}, svc.filter)

	body := decodeEnvelope(t, resp)
	require.EqualValues(t, 6, body.Meta["totalItems"])

	var items []dto.ActivityResponse
	require.NoError(t, json.Unmarshal(body.Data, &items))
	require.Len(t, items, 1)
	require.Equal(t, "class-1", items[0].ClassID)
}

package plan

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"lpa-backend/internal/service/planfact"
	"lpa-backend/internal/storage"
)

type MockSaver struct {
	mock.Mock
}

func (m *MockSaver) SavePlan(ctx context.Context, shiftID int64, tasks []storage.Task, meta storage.PlanMeta) error {
	args := m.Called(ctx, shiftID, tasks, meta)
	return args.Error(0)
}

func TestSavePlan_Success(t *testing.T) {
	mockSvc := new(MockSaver)
	mockSvc.On("SavePlan", mock.Anything, int64(501),
		[]storage.Task{{Name: "Опалубка", Unit: "м2", Plan: 40}},
		storage.PlanMeta{SiteID: 51, SiteName: "ЖК Северный"}).
		Return(nil)

	handler := SavePlan(slog.Default(), mockSvc)

	reqBody := `{
		"shift_id": 501,
		"tasks": [{"name": "Опалубка", "unit": "м2", "plan": 40}],
		"meta": {"site_id": 51, "site_name": "ЖК Северный"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/shift/plan", strings.NewReader(reqBody))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	mockSvc.AssertExpectations(t)
}

func TestSavePlan_ValidationError(t *testing.T) {
	mockSvc := new(MockSaver)
	mockSvc.On("SavePlan", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&planfact.ValidationError{Field: "meta", Reason: "site_id и site_name обязательны"})

	handler := SavePlan(slog.Default(), mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/shift/plan",
		strings.NewReader(`{"shift_id": 501}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// ошибка валидации — это 400, а не JSON с error
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Неверные данные плана")
}

func TestSavePlan_InvalidJSON(t *testing.T) {
	mockSvc := new(MockSaver)
	handler := SavePlan(slog.Default(), mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/shift/plan", strings.NewReader(`{`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	mockSvc.AssertNotCalled(t, "SavePlan")
}

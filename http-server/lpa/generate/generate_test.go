package generate

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lpa-backend/internal/service/lpa"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateLPA(ctx context.Context, shiftID int64, opts lpa.CollectOptions) (string, error) {
	args := m.Called(ctx, shiftID, opts)
	return args.String(0), args.Error(1)
}

func TestGenerateLPA_Success(t *testing.T) {
	mockSvc := new(MockGenerator)
	mockSvc.On("GenerateLPA", mock.Anything, int64(501), mock.Anything).
		Return("/out/LPA_501_20251117_ЖК_Северный.pdf", nil)

	handler := GenerateLPA(slog.Default(), mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/shift/lpa",
		strings.NewReader(`{"shift_id": 501}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	require.NoError(t, render.DecodeJSON(strings.NewReader(rr.Body.String()), &resp))
	assert.Equal(t, "/out/LPA_501_20251117_ЖК_Северный.pdf", resp.Path)
	assert.Empty(t, resp.Error)

	mockSvc.AssertExpectations(t)
}

func TestGenerateLPA_FallbackPlanPassed(t *testing.T) {
	mockSvc := new(MockGenerator)
	mockSvc.On("GenerateLPA", mock.Anything, int64(501),
		mock.MatchedBy(func(opts lpa.CollectOptions) bool {
			// мешок скаляров из запроса канонизирован в запасной план
			return opts.FallbackPlan != nil &&
				len(opts.FallbackPlan.Tasks) == 1 &&
				opts.FallbackPlan.Tasks[0].Name == "Опалубка" &&
				opts.FallbackPlan.TotalPlan == 40
		})).
		Return("/out/doc.pdf", nil)

	handler := GenerateLPA(slog.Default(), mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/shift/lpa",
		strings.NewReader(`{"shift_id": 501, "fallback_plan": {"Опалубка": 40}}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	mockSvc.AssertExpectations(t)
}

func TestGenerateLPA_PlaceholderError(t *testing.T) {
	mockSvc := new(MockGenerator)
	mockSvc.On("GenerateLPA", mock.Anything, int64(501), mock.Anything).
		Return("", &lpa.PlaceholderError{File: "word/document.xml", Sample: "{{забытое_поле}}"})

	handler := GenerateLPA(slog.Default(), mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/shift/lpa",
		strings.NewReader(`{"shift_id": 501}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var resp Response
	require.NoError(t, render.DecodeJSON(strings.NewReader(rr.Body.String()), &resp))
	// отдельное сообщение: чинит шаблон разработчик, не прораб
	assert.Contains(t, resp.Error, "обратитесь к разработчику")
	assert.Empty(t, resp.Path)
}

func TestGenerateLPA_ShiftNotFound(t *testing.T) {
	mockSvc := new(MockGenerator)
	mockSvc.On("GenerateLPA", mock.Anything, int64(999), mock.Anything).Return("", nil)

	handler := GenerateLPA(slog.Default(), mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/shift/lpa",
		strings.NewReader(`{"shift_id": 999}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var resp Response
	require.NoError(t, render.DecodeJSON(strings.NewReader(rr.Body.String()), &resp))
	assert.Equal(t, "смена не найдена", resp.Error)
}

func TestGenerateLPA_InvalidJSON(t *testing.T) {
	mockSvc := new(MockGenerator)
	handler := GenerateLPA(slog.Default(), mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/shift/lpa", strings.NewReader(`{`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	mockSvc.AssertNotCalled(t, "GenerateLPA")
}

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lpa-backend/internal/constants"
	"lpa-backend/internal/service/lpa"
	"lpa-backend/internal/service/planfact"
	"lpa-backend/internal/storage"
	"lpa-backend/internal/storage/crm"
)

type MockCollector struct {
	mock.Mock
}

func (m *MockCollector) Collect(ctx context.Context, shiftID int64, opts lpa.CollectOptions) (*lpa.RenderContext, error) {
	args := m.Called(ctx, shiftID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lpa.RenderContext), args.Error(1)
}

func (m *MockCollector) TimesheetHours(ctx context.Context, shiftID int64) (float64, error) {
	args := m.Called(ctx, shiftID)
	return args.Get(0).(float64), args.Error(1)
}

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, rc *lpa.RenderContext) (string, error) {
	args := m.Called(ctx, rc)
	return args.String(0), args.Error(1)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) UploadToField(ctx context.Context, filePath, entity string, entityTypeID int, itemID int64, candidates []string) (bool, error) {
	args := m.Called(ctx, filePath, entity, entityTypeID, itemID, candidates)
	return args.Bool(0), args.Error(1)
}

func (m *MockUploader) UploadPhotos(ctx context.Context, paths []string, entity string, entityTypeID int, itemID int64, logical string) error {
	args := m.Called(ctx, paths, entity, entityTypeID, itemID, logical)
	return args.Error(0)
}

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) UpdateAggregates(ctx context.Context, shiftID int64, planTotal, factTotal float64, efficiency *float64, status string) error {
	args := m.Called(ctx, shiftID, planTotal, factTotal, efficiency, status)
	return args.Error(0)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) GetOrCreate(ctx context.Context, siteID int64, date time.Time, siteName string, create bool) (int64, *storage.PlanMeta, error) {
	args := m.Called(ctx, siteID, date, siteName, create)
	var meta *storage.PlanMeta
	if args.Get(1) != nil {
		meta = args.Get(1).(*storage.PlanMeta)
	}
	return args.Get(0).(int64), meta, args.Error(2)
}

type deps struct {
	collector *MockCollector
	renderer  *MockRenderer
	uploader  *MockUploader
	writer    *MockWriter
	resolver  *MockResolver
}

// updateStub CRM, принимающая crm.item.get/update для прямых записей
// оркестратора.
type updateStub struct {
	shift   map[string]any
	updates []map[string]any
}

func (s *updateStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		switch r.URL.Path {
		case "/crm.item.update":
			s.updates = append(s.updates, payload)
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"item": map[string]any{}}})
		case "/crm.item.get":
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"item": s.shift}})
		default:
			t.Errorf("неожиданный метод CRM: %s", r.URL.Path)
		}
	}))
}

func orchestratorFieldMap() *crm.FieldMap {
	return crm.NewFieldMap(map[string]map[string]crm.FieldMeta{
		constants.EntityShift: {
			"UF_CRM_7_PLAN_JSON":       {Label: "План (JSON)"},
			"UF_CRM_7_FACT_JSON":       {Label: "Факт (JSON)"},
			"UF_CRM_7_PLAN_TOTAL":      {Label: "Плановый объем"},
			"UF_CRM_7_DOWNTIME_REASON": {Label: "Причина простоя"},
			"UF_CRM_7_PDF_FILE":        {Label: "Файл ЛПА"},
		},
	}, slog.Default())
}

func newTestService(t *testing.T, stub *updateStub) (*Service, *deps, func()) {
	t.Helper()

	var client *crm.Client
	closeFn := func() {}
	if stub != nil {
		srv := stub.server(t)
		client = crm.NewClient(srv.URL, 1, 5*time.Second, slog.Default())
		closeFn = srv.Close
	}

	d := &deps{
		collector: new(MockCollector),
		renderer:  new(MockRenderer),
		uploader:  new(MockUploader),
		writer:    new(MockWriter),
		resolver:  new(MockResolver),
	}

	svc := New(client, orchestratorFieldMap(), d.resolver, d.writer,
		d.collector, d.renderer, d.uploader, 1050, time.UTC, slog.Default())
	return svc, d, closeFn
}

func TestGenerateLPA_HappyPath(t *testing.T) {
	svc, d, done := newTestService(t, nil)
	defer done()

	rc := &lpa.RenderContext{ShiftID: 501, PlanTotal: 203, FactTotal: 110, Efficiency: 54.19}

	d.collector.On("Collect", mock.Anything, int64(501), mock.Anything).Return(rc, nil)
	d.renderer.On("Render", mock.Anything, rc).Return("/out/LPA_501.pdf", nil)
	d.uploader.On("UploadToField", mock.Anything, "/out/LPA_501.pdf",
		constants.EntityShift, 1050, int64(501), pdfFieldCandidates).Return(true, nil)
	d.writer.On("UpdateAggregates", mock.Anything, int64(501), 203.0, 110.0,
		mock.MatchedBy(func(eff *float64) bool { return eff != nil && *eff == 54.19 }), "closed").
		Return(nil)

	path, err := svc.GenerateLPA(context.Background(), 501, lpa.CollectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "/out/LPA_501.pdf", path)

	d.collector.AssertExpectations(t)
	d.renderer.AssertExpectations(t)
	d.uploader.AssertExpectations(t)
	d.writer.AssertExpectations(t)
}

func TestGenerateLPA_PlaceholderErrorAbortsEverything(t *testing.T) {
	svc, d, done := newTestService(t, nil)
	defer done()

	rc := &lpa.RenderContext{ShiftID: 501}
	d.collector.On("Collect", mock.Anything, int64(501), mock.Anything).Return(rc, nil)
	d.renderer.On("Render", mock.Anything, rc).
		Return("", &lpa.PlaceholderError{File: "word/document.xml", Sample: "{{x}}"})

	_, err := svc.GenerateLPA(context.Background(), 501, lpa.CollectOptions{})

	var phErr *lpa.PlaceholderError
	require.True(t, errors.As(err, &phErr))

	// ничего не загружено, итоги не тронуты
	d.uploader.AssertNotCalled(t, "UploadToField")
	d.writer.AssertNotCalled(t, "UpdateAggregates")
}

func TestGenerateLPA_ConversionFailureStillUploadsDocx(t *testing.T) {
	svc, d, done := newTestService(t, nil)
	defer done()

	rc := &lpa.RenderContext{ShiftID: 501, PlanTotal: 100, FactTotal: 90, Efficiency: 90}
	d.collector.On("Collect", mock.Anything, int64(501), mock.Anything).Return(rc, nil)
	// PDF не вышел, рендерер отдал DOCX и нефатальную ошибку
	d.renderer.On("Render", mock.Anything, rc).
		Return("/out/LPA_501.docx", &lpa.PdfConversionError{Primary: "нет libreoffice", Fallback: "нет soffice"})
	d.uploader.On("UploadToField", mock.Anything, "/out/LPA_501.docx",
		constants.EntityShift, 1050, int64(501), pdfFieldCandidates).Return(true, nil)
	d.writer.On("UpdateAggregates", mock.Anything, int64(501), 100.0, 90.0, mock.Anything, "closed").
		Return(nil)

	path, err := svc.GenerateLPA(context.Background(), 501, lpa.CollectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "/out/LPA_501.docx", path)

	d.uploader.AssertExpectations(t)
	d.writer.AssertExpectations(t)
}

func TestGenerateLPA_UploadFailure(t *testing.T) {
	svc, d, done := newTestService(t, nil)
	defer done()

	rc := &lpa.RenderContext{ShiftID: 501}
	d.collector.On("Collect", mock.Anything, int64(501), mock.Anything).Return(rc, nil)
	d.renderer.On("Render", mock.Anything, rc).Return("/out/LPA_501.pdf", nil)
	d.uploader.On("UploadToField", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	path, err := svc.GenerateLPA(context.Background(), 501, lpa.CollectOptions{})
	require.Error(t, err)
	// путь к артефакту отдаём даже при провале загрузки
	assert.Equal(t, "/out/LPA_501.pdf", path)

	d.writer.AssertNotCalled(t, "UpdateAggregates")
}

func TestGenerateLPA_ShiftNotFound(t *testing.T) {
	svc, d, done := newTestService(t, nil)
	defer done()

	d.collector.On("Collect", mock.Anything, int64(999), mock.Anything).Return(nil, nil)

	path, err := svc.GenerateLPA(context.Background(), 999, lpa.CollectOptions{})
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestSavePlan_Validation(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()

	ctx := context.Background()

	// без site_id и site_name план не принимается
	err := svc.SavePlan(ctx, 501, nil, storage.PlanMeta{})
	var vErr *planfact.ValidationError
	require.ErrorAs(t, err, &vErr)

	// отрицательный объём
	err = svc.SavePlan(ctx, 501,
		[]storage.Task{{Name: "Опалубка", Plan: -5}},
		storage.PlanMeta{SiteID: 51, SiteName: "ЖК"})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "plan", vErr.Field)
}

func TestSavePlan_WritesCanonicalJSON(t *testing.T) {
	stub := &updateStub{}
	svc, _, done := newTestService(t, stub)
	defer done()

	err := svc.SavePlan(context.Background(), 501,
		[]storage.Task{
			{Name: "Разработка грунта", Unit: "м3", Plan: 110},
			{Name: "Щебень", Plan: 93},
		},
		storage.PlanMeta{SiteID: 51, SiteName: "ЖК Северный"})
	require.NoError(t, err)

	require.Len(t, stub.updates, 1)
	fields := stub.updates[0]["fields"].(map[string]any)
	assert.Equal(t, 203.0, fields["ufCrm7PlanTotal"])

	planJSON, _ := fields["ufCrm7PlanJson"].(string)
	assert.Contains(t, planJSON, `"site_id":51`)
	// умолчания выставлены при записи, не при чтении
	assert.Contains(t, planJSON, `"unit":"ед."`)
	assert.Contains(t, planJSON, `"executor":"Бригада"`)
}

func TestSaveFact_TimesheetPriority(t *testing.T) {
	stub := &updateStub{
		shift: map[string]any{
			"id":             501,
			"ufCrm7PlanJson": `{"total_plan":100,"meta":{"site_id":51,"site_name":"ЖК"}}`,
		},
	}
	svc, d, done := newTestService(t, stub)
	defer done()

	d.uploader.On("UploadPhotos", mock.Anything, mock.Anything, constants.EntityShift,
		1050, int64(501), constants.FieldPhotos).Return(nil)
	d.collector.On("TimesheetHours", mock.Anything, int64(501)).Return(14.0, nil)
	// факт из табеля, не из fact_json
	d.writer.On("UpdateAggregates", mock.Anything, int64(501), 100.0, 14.0,
		(*float64)(nil), "closed").Return(nil)

	err := svc.SaveFact(context.Background(), 501,
		map[string]any{"Щебень": 18.0}, "Дождь", nil)
	require.NoError(t, err)

	require.Len(t, stub.updates, 1)
	fields := stub.updates[0]["fields"].(map[string]any)
	factJSON, _ := fields["ufCrm7FactJson"].(string)
	assert.Contains(t, factJSON, `"fact":18`)
	assert.Equal(t, "Дождь", fields["ufCrm7DowntimeReason"])

	d.writer.AssertExpectations(t)
}

func TestSaveFact_FactJSONWhenNoTimesheet(t *testing.T) {
	stub := &updateStub{
		shift: map[string]any{
			"id":             501,
			"ufCrm7PlanJson": `{"total_plan":100,"meta":{"site_id":51}}`,
		},
	}
	svc, d, done := newTestService(t, stub)
	defer done()

	d.uploader.On("UploadPhotos", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.collector.On("TimesheetHours", mock.Anything, int64(501)).Return(0.0, nil)
	d.writer.On("UpdateAggregates", mock.Anything, int64(501), 100.0, 18.0,
		(*float64)(nil), "closed").Return(nil)

	err := svc.SaveFact(context.Background(), 501, map[string]any{"Щебень": 18.0}, "", nil)
	require.NoError(t, err)

	d.writer.AssertExpectations(t)
}

func TestSaveFact_NegativeVolume(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()

	err := svc.SaveFact(context.Background(), 501,
		map[string]any{"tasks": []any{map[string]any{"name": "Щебень", "fact": -1.0}}}, "", nil)
	var vErr *planfact.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "fact", vErr.Field)
}

func TestResolveShift_Passthrough(t *testing.T) {
	svc, d, done := newTestService(t, nil)
	defer done()

	date := time.Date(2025, 11, 17, 0, 0, 0, 0, time.UTC)
	d.resolver.On("GetOrCreate", mock.Anything, int64(51), date, "ЖК", true).
		Return(int64(501), &storage.PlanMeta{SiteID: 51}, nil)

	id, err := svc.ResolveShift(context.Background(), 51, date, "ЖК", true)
	require.NoError(t, err)
	assert.Equal(t, int64(501), id)
}

func TestHasPDF(t *testing.T) {
	stub := &updateStub{
		shift: map[string]any{"id": 501, "ufCrm7PdfFile": "disk456"},
	}
	svc, _, done := newTestService(t, stub)
	defer done()

	has, err := svc.HasPDF(context.Background(), 501)
	require.NoError(t, err)
	assert.True(t, has)
}

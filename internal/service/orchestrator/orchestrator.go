package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lpa-backend/internal/constants"
	"lpa-backend/internal/service/lpa"
	"lpa-backend/internal/service/planfact"
	"lpa-backend/internal/storage"
	"lpa-backend/internal/storage/crm"
)

type ShiftResolver interface {
	GetOrCreate(ctx context.Context, siteID int64, date time.Time, siteName string, create bool) (int64, *storage.PlanMeta, error)
}

type AggregateWriter interface {
	UpdateAggregates(ctx context.Context, shiftID int64, planTotal, factTotal float64, efficiency *float64, status string) error
}

type ShiftCollector interface {
	Collect(ctx context.Context, shiftID int64, opts lpa.CollectOptions) (*lpa.RenderContext, error)
	TimesheetHours(ctx context.Context, shiftID int64) (float64, error)
}

type Renderer interface {
	Render(ctx context.Context, rc *lpa.RenderContext) (string, error)
}

type Uploader interface {
	UploadToField(ctx context.Context, filePath string, entity string, entityTypeID int, itemID int64, candidates []string) (bool, error)
	UploadPhotos(ctx context.Context, paths []string, entity string, entityTypeID int, itemID int64, logical string) error
}

// Service единственная точка входа для чат-слоя и планировщика.
// Никакой другой пакет ядра снаружи не вызывается.
type Service struct {
	client    *crm.Client
	fields    *crm.FieldMap
	resolver  ShiftResolver
	writer    AggregateWriter
	collector ShiftCollector
	renderer  Renderer
	uploader  Uploader

	shiftETID int
	loc       *time.Location
	log       *slog.Logger
}

// кандидаты логических имён файлового поля под ЛПА; загрузчик пробует
// их по очереди
var pdfFieldCandidates = []string{
	constants.FieldPDFFile,
	"UF_LPA_FILE",
	"UF_FILE_PDF",
}

func New(client *crm.Client, fields *crm.FieldMap, resolver ShiftResolver, writer AggregateWriter,
	collector ShiftCollector, renderer Renderer, uploader Uploader,
	shiftETID int, loc *time.Location, log *slog.Logger) *Service {
	return &Service{
		client:    client,
		fields:    fields,
		resolver:  resolver,
		writer:    writer,
		collector: collector,
		renderer:  renderer,
		uploader:  uploader,
		shiftETID: shiftETID,
		loc:       loc,
		log:       log,
	}
}

// ResolveShift ID смены на (объект, дата). create=false и отсутствие
// смены — это 0 без ошибки.
func (s *Service) ResolveShift(ctx context.Context, siteID int64, date time.Time, siteName string, create bool) (int64, error) {
	const op = "service.orchestrator.ResolveShift"

	shiftID, _, err := s.resolver.GetOrCreate(ctx, siteID, date, siteName, create)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return shiftID, nil
}

// SavePlan пишет канонический plan_json (обязательно с meta.site_id и
// meta.site_name) и плановый итог.
func (s *Service) SavePlan(ctx context.Context, shiftID int64, tasks []storage.Task, meta storage.PlanMeta) error {
	const op = "service.orchestrator.SavePlan"

	if meta.SiteID == 0 || meta.SiteName == "" {
		return &planfact.ValidationError{Field: "meta", Reason: "site_id и site_name обязательны"}
	}
	for _, t := range tasks {
		if t.Plan < 0 {
			return &planfact.ValidationError{Field: "plan", Reason: "отрицательный объём у " + t.Name}
		}
	}

	doc := storage.PlanDocument{Tasks: normalizeTasks(tasks), Meta: meta}
	for _, t := range doc.Tasks {
		doc.TotalPlan += t.Plan
	}

	planJSON, err := planfact.ToJSON(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	fields := map[string]any{
		s.camelShift(constants.FieldPlanJSON):  planJSON,
		s.camelShift(constants.FieldPlanTotal): doc.TotalPlan,
	}
	if err := s.client.ItemUpdate(ctx, s.shiftETID, shiftID, fields); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("план сохранён",
		slog.Int64("shift", shiftID), slog.Float64("plan_total", doc.TotalPlan), slog.Int("tasks", len(doc.Tasks)))
	return nil
}

// SaveFact принимает факт в любой исторической форме, пишет fact_json,
// грузит фото, и закрывает смену итогами (факт — из табеля).
func (s *Service) SaveFact(ctx context.Context, shiftID int64, fact any, downtimeReason string, photoPaths []string) error {
	const op = "service.orchestrator.SaveFact"

	factDoc := planfact.Normalize(fact, planfact.SlotFact)
	for _, t := range factDoc.Tasks {
		if t.Fact < 0 {
			return &planfact.ValidationError{Field: "fact", Reason: "отрицательный объём у " + t.Name}
		}
	}
	if downtimeReason != "" {
		factDoc.DowntimeReason = downtimeReason
	}

	factJSON, err := planfact.ToJSON(factDoc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	fields := map[string]any{
		s.camelShift(constants.FieldFactJSON): factJSON,
	}
	if factDoc.DowntimeReason != "" {
		fields[s.camelShift(constants.FieldDowntimeReason)] = factDoc.DowntimeReason
	}
	if err := s.client.ItemUpdate(ctx, s.shiftETID, shiftID, fields); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.uploader.UploadPhotos(ctx, photoPaths, constants.EntityShift, s.shiftETID, shiftID, constants.FieldPhotos); err != nil {
		s.log.Warn("фото смены не загружены", slog.Int64("shift", shiftID), slog.String("error", err.Error()))
	}

	planTotal := s.planTotal(ctx, shiftID)

	factTotal, err := s.collector.TimesheetHours(ctx, shiftID)
	if err != nil {
		s.log.Warn("табель не прочитан, факт берём из fact_json",
			slog.Int64("shift", shiftID), slog.String("error", err.Error()))
	}
	if factTotal == 0 {
		factTotal = factDoc.TotalFact
	}

	if err := s.writer.UpdateAggregates(ctx, shiftID, planTotal, factTotal, nil, "closed"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("факт сохранён, смена закрыта",
		slog.Int64("shift", shiftID), slog.Float64("fact_total", factTotal))
	return nil
}

// GenerateLPA собирает данные смены, рендерит ЛПА, прикрепляет артефакт
// к смене и заново утверждает итоги со статусом "closed". При провале
// аудита плейсхолдеров ничего не загружается и итоги не трогаются.
func (s *Service) GenerateLPA(ctx context.Context, shiftID int64, opts lpa.CollectOptions) (string, error) {
	const op = "service.orchestrator.GenerateLPA"

	rc, err := s.collector.Collect(ctx, shiftID, opts)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if rc == nil {
		return "", nil
	}

	path, err := s.renderer.Render(ctx, rc)
	var convErr *lpa.PdfConversionError
	if err != nil && !errors.As(err, &convErr) {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if convErr != nil {
		// PDF не вышел, но DOCX есть — его и прикрепляем
		s.log.Warn("конвертация в PDF не удалась, прикрепляем DOCX",
			slog.Int64("shift", shiftID), slog.String("error", convErr.Error()))
	}

	ok, err := s.uploader.UploadToField(ctx, path, constants.EntityShift, s.shiftETID, shiftID, pdfFieldCandidates)
	if err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("ни одно файловое поле не приняло артефакт")
		}
		return path, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.writer.UpdateAggregates(ctx, shiftID, rc.PlanTotal, rc.FactTotal, &rc.Efficiency, "closed"); err != nil {
		return path, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("ЛПА сформирован и прикреплён",
		slog.Int64("shift", shiftID), slog.String("file", path))
	return path, nil
}

// GenerateExcel xlsx-выгрузка того же контекста смены.
func (s *Service) GenerateExcel(ctx context.Context, shiftID int64) ([]byte, error) {
	const op = "service.orchestrator.GenerateExcel"

	rc, err := s.collector.Collect(ctx, shiftID, lpa.CollectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rc == nil {
		return nil, nil
	}
	return lpa.GenerateExcel(rc)
}

// HasPDF подсказка чат-слою: у смены уже есть прикреплённый ЛПА,
// стоит спросить про перегенерацию.
func (s *Service) HasPDF(ctx context.Context, shiftID int64) (bool, error) {
	const op = "service.orchestrator.HasPDF"

	rec, err := s.client.ItemGet(ctx, s.shiftETID, shiftID, []string{"*", "uf_*"})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if rec == nil {
		return false, nil
	}
	v := s.fields.ReadField(constants.EntityShift, rec, constants.FieldPDFFile)
	return v != nil && crm.ToString(v) != "", nil
}

// planTotal плановый итог из plan_json смены; при недоступности 0.
func (s *Service) planTotal(ctx context.Context, shiftID int64) float64 {
	rec, err := s.client.ItemGet(ctx, s.shiftETID, shiftID, []string{"*", "uf_*"})
	if err != nil || rec == nil {
		s.log.Warn("план смены не прочитан", slog.Int64("shift", shiftID))
		return 0
	}
	raw := crm.ToString(s.fields.ReadField(constants.EntityShift, rec, constants.FieldPlanJSON))
	doc := planfact.NormalizeJSON(raw, planfact.SlotPlan)
	if doc.TotalPlan > 0 {
		return doc.TotalPlan
	}
	return crm.ToFloat(s.fields.ReadField(constants.EntityShift, rec, constants.FieldPlanTotal))
}

func (s *Service) camelShift(logical string) string {
	return crm.UpperToCamel(s.fields.Resolve(constants.EntityShift, logical))
}

// normalizeTasks выставляет умолчания так же, как канонизатор.
func normalizeTasks(tasks []storage.Task) []storage.Task {
	out := make([]storage.Task, 0, len(tasks))
	for _, t := range tasks {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			continue
		}
		if t.Unit == "" {
			t.Unit = planfact.DefaultUnit
		}
		if t.Executor == "" {
			t.Executor = planfact.DefaultExecutor
		}
		out = append(out, t)
	}
	return out
}

package lpa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"lpa-backend/internal/constants"
	"lpa-backend/internal/service/planfact"
	"lpa-backend/internal/storage"
	"lpa-backend/internal/storage/crm"
	"lpa-backend/internal/storage/mirror"
)

var wildcardSelect = []string{"*", "uf_*"}

// CollectOptions запасные данные от вызывающего, когда CRM-поля пустые.
type CollectOptions struct {
	FallbackPlan *storage.PlanDocument
	FallbackFact *storage.PlanDocument
	Meta         *storage.PlanMeta
}

// Collector вытягивает смену, её ресурсы, табель и фото и собирает
// контекст рендеринга. Каждый агрегат логируется с источником — сверка
// CRM/fallback/табель должна быть прослеживаемой.
type Collector struct {
	client *crm.Client
	fields *crm.FieldMap
	enums  *crm.Enums
	mirror *mirror.Storage

	shiftETID     int
	siteETID      int
	resourceETID  int
	timesheetETID int
	loc           *time.Location
	log           *slog.Logger
}

func NewCollector(client *crm.Client, fields *crm.FieldMap, enums *crm.Enums, m *mirror.Storage,
	shiftETID, siteETID, resourceETID, timesheetETID int, loc *time.Location, log *slog.Logger) *Collector {
	return &Collector{
		client:        client,
		fields:        fields,
		enums:         enums,
		mirror:        m,
		shiftETID:     shiftETID,
		siteETID:      siteETID,
		resourceETID:  resourceETID,
		timesheetETID: timesheetETID,
		loc:           loc,
		log:           log,
	}
}

// Collect контекст рендеринга для смены. (nil, nil) если смены нет.
func (c *Collector) Collect(ctx context.Context, shiftID int64, opts CollectOptions) (*RenderContext, error) {
	const op = "service.lpa.collector.Collect"

	rec, err := c.client.ItemGet(ctx, c.shiftETID, shiftID, wildcardSelect)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rec == nil {
		return nil, nil
	}

	planDoc := planfact.NormalizeJSON(c.readStr(rec, constants.FieldPlanJSON), planfact.SlotPlan)
	factDoc := planfact.NormalizeJSON(c.readStr(rec, constants.FieldFactJSON), planfact.SlotFact)

	if planDoc.Empty() && opts.FallbackPlan != nil {
		c.log.Info("план пуст в CRM, берём fallback вызывающего", slog.Int64("shift", shiftID))
		planDoc = *opts.FallbackPlan
	}
	if factDoc.Empty() && opts.FallbackFact != nil {
		c.log.Info("факт пуст в CRM, берём fallback вызывающего", slog.Int64("shift", shiftID))
		factDoc = *opts.FallbackFact
	}

	var (
		resources []storage.Resource
		timesheet []storage.TimesheetEntry
		photos    []PhotoRef
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resources, err = c.listResources(gCtx, shiftID)
		return err
	})
	g.Go(func() error {
		var err error
		timesheet, err = c.listTimesheet(gCtx, shiftID)
		return err
	})
	g.Go(func() error {
		var err error
		photos, err = c.collectPhotos(gCtx, shiftID, rec, factDoc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var materials, equipment []storage.Resource
	for _, r := range resources {
		if r.Kind == storage.ResourceEquipment {
			equipment = append(equipment, r)
		} else {
			materials = append(materials, r)
		}
	}

	tasks := planfact.Merge(planDoc, factDoc)

	planTotal, planSrc := c.planTotal(planDoc, tasks)
	factTotal, factSrc := c.factTotal(factDoc, tasks, timesheet)
	eff := 0.0
	if planTotal > 0 {
		eff = round2(100 * factTotal / planTotal)
	}
	c.log.Info("итоги смены сведены",
		slog.Int64("shift", shiftID),
		slog.Float64("plan_total", planTotal), slog.String("plan_source", planSrc),
		slog.Float64("fact_total", factTotal), slog.String("fact_source", factSrc),
		slog.Float64("efficiency", eff))

	siteName, siteAddr := c.siteName(ctx, rec, planDoc, opts.Meta)

	rc := &RenderContext{
		ShiftID:     shiftID,
		SiteName:    siteName,
		SiteAddress: siteAddr,
		Date:        c.shiftDate(rec, planDoc),
		ShiftType:   c.shiftTypeLabel(ctx, rec, planDoc),
		Section:     planDoc.Meta.Section,
		Foreman:     planDoc.Meta.Foreman,

		Tasks:     tasks,
		Equipment: equipment,
		Materials: materials,
		Timesheet: timesheet,

		PlanTotal:  planTotal,
		FactTotal:  factTotal,
		Efficiency: eff,

		DowntimeReason: c.downtimeReason(rec, factDoc),
		ReportStatus:   c.reportStatus(ctx, rec),
		ReasonsText:    reasonsText(tasks),

		Photos: photos,
	}

	if opts.Meta != nil {
		if rc.Section == "" {
			rc.Section = opts.Meta.Section
		}
		if rc.Foreman == "" {
			rc.Foreman = opts.Meta.Foreman
		}
	}

	if n := len(photos); n > 0 {
		rc.PhotosAttached = fmt.Sprintf("Да (%d)", n)
	} else {
		rc.PhotosAttached = "Нет"
	}

	return rc, nil
}

// planTotal приоритет: total_plan из plan_json, иначе сумма планов задач.
func (c *Collector) planTotal(plan storage.PlanDocument, tasks []storage.Task) (float64, string) {
	if plan.TotalPlan > 0 {
		return plan.TotalPlan, "plan_json"
	}
	var sum float64
	for _, t := range tasks {
		sum += t.Plan
	}
	return sum, "tasks"
}

// factTotal приоритет: сумма часов табеля, иначе total_fact из fact_json,
// иначе сумма фактов задач. Табель — авторитетная запись сделанного.
func (c *Collector) factTotal(fact storage.PlanDocument, tasks []storage.Task, ts []storage.TimesheetEntry) (float64, string) {
	var hours float64
	for _, e := range ts {
		hours += e.Hours
	}
	if hours > 0 {
		return hours, "timesheet"
	}
	if fact.TotalFact > 0 {
		return fact.TotalFact, "fact_json"
	}
	var sum float64
	for _, t := range tasks {
		sum += t.Fact
	}
	return sum, "tasks"
}

// siteName цепочка источников названия объекта, от надёжного к шаткому.
func (c *Collector) siteName(ctx context.Context, rec crm.Item, plan storage.PlanDocument, meta *storage.PlanMeta) (string, string) {
	if plan.Meta.SiteName != "" {
		return plan.Meta.SiteName, c.siteAddress(ctx, plan.Meta.SiteID)
	}

	if plan.Meta.SiteID != 0 {
		if site := c.readSite(ctx, plan.Meta.SiteID); site != nil {
			return site.Title, site.Address
		}
		if m, err := c.mirror.GetSite(ctx, plan.Meta.SiteID); err == nil && m != nil {
			c.log.Info("название объекта взято из зеркала", slog.Int64("site", plan.Meta.SiteID))
			return m.Title, m.Address
		}
	}

	// связующее поле: "D_<id>", "T<etid>_<id>", список или литерал "Array"
	if id := parseSiteLink(c.fields.ReadField(constants.EntityShift, rec, constants.FieldSiteLink)); id != 0 {
		if site := c.readSite(ctx, id); site != nil {
			return site.Title, site.Address
		}
	}

	if meta != nil && meta.SiteName != "" {
		return meta.SiteName, ""
	}
	return "Не указан", ""
}

func (c *Collector) readSite(ctx context.Context, siteID int64) *storage.Site {
	if siteID == 0 {
		return nil
	}
	rec, err := c.client.ItemGet(ctx, c.siteETID, siteID, wildcardSelect)
	if err != nil || rec == nil {
		return nil
	}
	title := crm.ToString(rec["title"])
	if title == "" {
		return nil
	}
	site := &storage.Site{
		ID:      siteID,
		Title:   title,
		Address: crm.ToString(c.fields.ReadField(constants.EntitySite, rec, constants.FieldSiteAddress)),
	}
	// пополняем зеркало, ошибка не мешает
	if err := c.mirror.UpsertSite(ctx, mirror.Site{ID: siteID, Title: site.Title, Address: site.Address}); err != nil {
		c.log.Warn("зеркало не обновлено", slog.String("error", err.Error()))
	}
	return site
}

func (c *Collector) siteAddress(ctx context.Context, siteID int64) string {
	if site := c.readSite(ctx, siteID); site != nil {
		return site.Address
	}
	return ""
}

func (c *Collector) shiftDate(rec crm.Item, plan storage.PlanDocument) string {
	raw := c.readStr(rec, constants.FieldShiftDate)
	if len(raw) >= 10 {
		if t, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			return t.Format("02.01.2006")
		}
	}
	if plan.Meta.Date != "" {
		return plan.Meta.Date
	}
	return time.Now().In(c.loc).Format("02.01.2006")
}

func (c *Collector) shiftTypeLabel(ctx context.Context, rec crm.Item, plan storage.PlanDocument) string {
	if id := int(crm.ToInt64(c.fields.ReadField(constants.EntityShift, rec, constants.FieldShiftType))); id != 0 {
		if label := c.enums.ShiftType.LabelByID(ctx, id); label != "" {
			return label
		}
	}
	if label, ok := constants.ShiftTypeLabels[plan.Meta.ShiftType]; ok {
		return label
	}
	return constants.ShiftTypeLabels["day"]
}

func (c *Collector) reportStatus(ctx context.Context, rec crm.Item) string {
	if id := int(crm.ToInt64(c.fields.ReadField(constants.EntityShift, rec, constants.FieldStatus))); id != 0 {
		if label := c.enums.ShiftStatus.LabelByID(ctx, id); label != "" {
			return label
		}
	}
	return "Открыта"
}

func (c *Collector) downtimeReason(rec crm.Item, fact storage.PlanDocument) string {
	if s := c.readStr(rec, constants.FieldDowntimeReason); s != "" {
		return s
	}
	return fact.DowntimeReason
}

func (c *Collector) readStr(rec crm.Item, logical string) string {
	return strings.TrimSpace(crm.ToString(c.fields.ReadField(constants.EntityShift, rec, logical)))
}

// reasonsText строки "задача: причина", по одной на задачу с причиной.
func reasonsText(tasks []storage.Task) string {
	var lines []string
	for _, t := range tasks {
		if t.Reason != "" {
			lines = append(lines, t.Name+": "+t.Reason)
		}
	}
	return strings.Join(lines, "\n")
}

// parseSiteLink вытаскивает ID объекта из связующего поля. Формы:
// число, "D_123", "T1046_123", список таких значений, литерал "Array".
// Из смешанного списка берётся первый разобравшийся элемент.
func parseSiteLink(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case []any:
		for _, el := range x {
			if id := parseSiteLink(el); id != 0 {
				return id
			}
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" || s == "Array" {
			return 0
		}
		if i := strings.LastIndex(s, "_"); i >= 0 && (strings.HasPrefix(s, "D_") || strings.HasPrefix(s, "T")) {
			return crm.ToInt64(s[i+1:])
		}
		return crm.ToInt64(s)
	default:
		return crm.ToInt64(v)
	}
}

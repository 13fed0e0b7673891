package shifts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"lpa-backend/internal/constants"
	"lpa-backend/internal/service/planfact"
	"lpa-backend/internal/storage"
	"lpa-backend/internal/storage/crm"
)

const resolveScanLimit = 200

// Resolver находит смену по (объект, дата) или создаёт новую. Связующее
// поле CRM на объект в старых записях битое (пустое или литерал "Array"),
// поэтому ключом служит plan_json.meta.site_id, который пишет само ядро.
type Resolver struct {
	client *crm.Client
	fields *crm.FieldMap
	enums  *crm.Enums

	shiftETID int
	siteETID  int
	loc       *time.Location
	log       *slog.Logger
}

func NewResolver(client *crm.Client, fields *crm.FieldMap, enums *crm.Enums, shiftETID, siteETID int, loc *time.Location, log *slog.Logger) *Resolver {
	return &Resolver{
		client:    client,
		fields:    fields,
		enums:     enums,
		shiftETID: shiftETID,
		siteETID:  siteETID,
		loc:       loc,
		log:       log,
	}
}

type candidate struct {
	id      int64
	hasPlan bool
	meta    storage.PlanMeta
}

// GetOrCreate ID смены на объект и дату. При create=false и отсутствии
// смены возвращает (0, nil, nil) — это не ошибка.
func (r *Resolver) GetOrCreate(ctx context.Context, siteID int64, date time.Time, siteName string, create bool) (int64, *storage.PlanMeta, error) {
	const op = "service.shifts.resolver.GetOrCreate"

	dateKey := date.In(r.loc).Format("2006-01-02")

	dateCode := r.fields.Resolve(constants.EntityShift, constants.FieldShiftDate)
	planCode := r.fields.Resolve(constants.EntityShift, constants.FieldPlanJSON)
	totalCode := r.fields.Resolve(constants.EntityShift, constants.FieldPlanTotal)

	items, err := r.client.ListPages(ctx, r.shiftETID, nil,
		[]string{"id", dateCode, planCode, totalCode},
		map[string]string{"id": "desc"}, resolveScanLimit)
	if err != nil {
		r.log.Warn("резолвер: список смен не прочитан",
			slog.String("error", err.Error()))
		if !create {
			return 0, nil, nil
		}
		// создание всё равно пробуем
		return r.create(ctx, siteID, date, siteName)
	}

	var candidates []candidate
	for _, rec := range items {
		rawPlan := crm.ToString(r.fields.ReadField(constants.EntityShift, rec, constants.FieldPlanJSON))
		if rawPlan == "" {
			continue
		}
		doc := planfact.NormalizeJSON(rawPlan, planfact.SlotPlan)
		if doc.Meta.SiteID != siteID {
			continue
		}

		rowDate := calendarPart(crm.ToString(r.fields.ReadField(constants.EntityShift, rec, constants.FieldShiftDate)))
		if rowDate == "" {
			rowDate = ruDateToISO(doc.Meta.Date)
		}
		if rowDate != dateKey {
			continue
		}

		rowTotal := crm.ToFloat(r.fields.ReadField(constants.EntityShift, rec, constants.FieldPlanTotal))
		candidates = append(candidates, candidate{
			id:      crm.ToInt64(rec["id"]),
			hasPlan: doc.TotalPlan > 0 || len(doc.Tasks) > 0 || rowTotal > 0,
			meta:    doc.Meta,
		})
	}

	if len(candidates) > 0 {
		// сначала смены с планом, внутри группы — самая старая
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].hasPlan != candidates[j].hasPlan {
				return candidates[i].hasPlan
			}
			return candidates[i].id < candidates[j].id
		})
		best := candidates[0]
		r.log.Info("резолвер: найдена смена",
			slog.Int64("shift", best.id), slog.Int64("site", siteID), slog.String("date", dateKey))
		return best.id, &best.meta, nil
	}

	if !create {
		return 0, nil, nil
	}
	return r.create(ctx, siteID, date, siteName)
}

func (r *Resolver) create(ctx context.Context, siteID int64, date time.Time, siteName string) (int64, *storage.PlanMeta, error) {
	const op = "service.shifts.resolver.create"

	if siteName == "" {
		siteName = r.siteTitle(ctx, siteID)
	}

	meta := storage.PlanMeta{
		SiteID:    siteID,
		SiteName:  siteName,
		Date:      date.In(r.loc).Format("02.01.2006"),
		ShiftType: "day",
	}
	// минимальный plan_json сразу с meta: только по нему повторный
	// резолв найдёт эту же смену
	planJSON, err := planfact.ToJSON(storage.PlanDocument{Meta: meta})
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}

	dateCode := r.fields.Resolve(constants.EntityShift, constants.FieldShiftDate)
	planCode := r.fields.Resolve(constants.EntityShift, constants.FieldPlanJSON)
	totalCode := r.fields.Resolve(constants.EntityShift, constants.FieldPlanTotal)

	fields := map[string]any{
		"title":                     "Смена для " + siteName,
		crm.UpperToCamel(dateCode):  date.In(r.loc).Format("2006-01-02") + "T08:00:00",
		crm.UpperToCamel(planCode):  planJSON,
		crm.UpperToCamel(totalCode): 0,
	}

	// тип смены — заглушка "Дневная"; без ID поле просто не пишем
	if id, err := r.enums.ShiftType.IDByLabel(ctx, constants.ShiftTypeLabels["day"]); err == nil {
		typeCode := r.fields.Resolve(constants.EntityShift, constants.FieldShiftType)
		fields[crm.UpperToCamel(typeCode)] = id
	}

	shiftID, err := r.client.ItemAdd(ctx, r.shiftETID, fields)
	if err != nil {
		r.log.Error("резолвер: смена не создана",
			slog.Int64("site", siteID), slog.String("error", err.Error()))
		return 0, nil, nil
	}

	r.log.Info("резолвер: создана смена",
		slog.Int64("shift", shiftID), slog.Int64("site", siteID), slog.String("date", meta.Date))
	return shiftID, &meta, nil
}

func (r *Resolver) siteTitle(ctx context.Context, siteID int64) string {
	rec, err := r.client.ItemGet(ctx, r.siteETID, siteID, []string{"id", "title"})
	if err != nil {
		r.log.Warn("резолвер: объект не прочитан", slog.Int64("site", siteID), slog.String("error", err.Error()))
		return ""
	}
	return crm.ToString(rec["title"])
}

// calendarPart календарная часть ISO-времени "2025-11-17T08:00:00+03:00".
func calendarPart(s string) string {
	if len(s) >= 10 && s[4] == '-' && s[7] == '-' {
		return s[:10]
	}
	return ""
}

// ruDateToISO "17.11.2025" -> "2025-11-17".
func ruDateToISO(s string) string {
	t, err := time.Parse("02.01.2006", s)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

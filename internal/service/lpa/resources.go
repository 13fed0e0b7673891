package lpa

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"lpa-backend/internal/constants"
	"lpa-backend/internal/storage"
	"lpa-backend/internal/storage/crm"
)

const resourceScanLimit = 500

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// listResources ресурсы смены, разделённые на материалы и технику.
// Основной признак — какие из колонок вида заполнены; enum вида ресурса
// используется как решающий голос при ничьей.
func (c *Collector) listResources(ctx context.Context, shiftID int64) ([]storage.Resource, error) {
	const op = "service.lpa.resources.listResources"

	linkCode := c.fields.Resolve(constants.EntityResource, constants.FieldResourceShift)
	items, err := c.client.ListPages(ctx, c.resourceETID,
		map[string]any{linkCode: shiftID}, wildcardSelect, nil, resourceScanLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var out []storage.Resource
	for _, rec := range items {
		read := func(logical string) any {
			return c.fields.ReadField(constants.EntityResource, rec, logical)
		}

		r := storage.Resource{
			ID:      crm.ToInt64(rec["id"]),
			ShiftID: shiftID,
			Name:    crm.ToString(rec["title"]),

			Unit:      crm.ToString(read(constants.FieldResourceUnit)),
			Quantity:  crm.ToFloat(read(constants.FieldResourceQty)),
			UnitPrice: crm.ToFloat(read(constants.FieldResourcePrice)),
			Sum:       crm.ToFloat(read(constants.FieldResourceSum)),

			Hours:    crm.ToFloat(read(constants.FieldResourceHours)),
			Rate:     crm.ToFloat(read(constants.FieldResourceRate)),
			RateKind: crm.ToString(read(constants.FieldResourceRateKind)),
		}

		mat := crm.ToString(read(constants.FieldMaterialType))
		eq := crm.ToString(read(constants.FieldEquipmentType))
		switch {
		case eq != "" && mat == "":
			r.Kind = storage.ResourceEquipment
		case mat != "" && eq == "":
			r.Kind = storage.ResourceMaterial
		default:
			r.Kind = storage.ResourceMaterial
			if id := int(crm.ToInt64(read(constants.FieldResourceKind))); id != 0 {
				if c.enums.ResourceKind.LabelByID(ctx, id) == constants.LabelEquipment {
					r.Kind = storage.ResourceEquipment
				}
			}
		}

		if r.Sum == 0 && r.Kind == storage.ResourceMaterial {
			r.Sum = round2(r.Quantity * r.UnitPrice)
		}

		out = append(out, r)
	}

	c.log.Info("ресурсы смены прочитаны", slog.Int64("shift", shiftID), slog.Int("count", len(out)))
	return out, nil
}

// listTimesheet записи табеля смены.
func (c *Collector) listTimesheet(ctx context.Context, shiftID int64) ([]storage.TimesheetEntry, error) {
	const op = "service.lpa.resources.listTimesheet"

	linkCode := c.fields.Resolve(constants.EntityTimesheet, constants.FieldTimesheetShift)
	items, err := c.client.ListPages(ctx, c.timesheetETID,
		map[string]any{linkCode: shiftID}, wildcardSelect, nil, resourceScanLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var out []storage.TimesheetEntry
	for _, rec := range items {
		read := func(logical string) any {
			return c.fields.ReadField(constants.EntityTimesheet, rec, logical)
		}

		e := storage.TimesheetEntry{
			ID:       crm.ToInt64(rec["id"]),
			ShiftID:  shiftID,
			CrewName: crm.ToString(read(constants.FieldTimesheetCrew)),
			Hours:    crm.ToFloat(read(constants.FieldTimesheetHours)),
			Rate:     crm.ToFloat(read(constants.FieldTimesheetRate)),
			Sum:      crm.ToFloat(read(constants.FieldTimesheetSum)),
		}
		if e.CrewName == "" {
			e.CrewName = crm.ToString(rec["title"])
		}
		if e.Sum == 0 {
			e.Sum = round2(e.Hours * e.Rate)
		}
		out = append(out, e)
	}

	c.log.Info("табель смены прочитан", slog.Int64("shift", shiftID), slog.Int("count", len(out)))
	return out, nil
}

// TimesheetHours сумма часов по табелю смены — авторитетный факт.
func (c *Collector) TimesheetHours(ctx context.Context, shiftID int64) (float64, error) {
	const op = "service.lpa.resources.TimesheetHours"

	entries, err := c.listTimesheet(ctx, shiftID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	var hours float64
	for _, e := range entries {
		hours += e.Hours
	}
	return hours, nil
}

// collectPhotos фото из файлового поля смены. Поле номинально одиночное,
// но приходит и списком ID, и списком дескрипторов, и литералом "Array" —
// в последнем случае перечитываем запись с явным wildcard select.
func (c *Collector) collectPhotos(ctx context.Context, shiftID int64, rec crm.Item, fact storage.PlanDocument) ([]PhotoRef, error) {
	v := c.fields.ReadField(constants.EntityShift, rec, constants.FieldPhotos)

	if s, ok := v.(string); ok && s == "Array" {
		c.log.Warn("поле фото вернуло литерал \"Array\", перечитываем смену", slog.Int64("shift", shiftID))
		fresh, err := c.client.ItemGet(ctx, c.shiftETID, shiftID, wildcardSelect)
		if err == nil && fresh != nil {
			v = c.fields.ReadField(constants.EntityShift, fresh, constants.FieldPhotos)
		}
	}

	ids := photoFileIDs(v)

	var out []PhotoRef
	for _, id := range ids {
		f, err := c.client.DiskFileGet(ctx, id)
		if err != nil {
			c.log.Warn("фото недоступно, пропускаем",
				slog.Int64("file", id), slog.String("error", err.Error()))
			continue
		}
		out = append(out, PhotoRef{FileID: id, URL: f.DownloadURL})
	}

	// поле пустое, но чат положил file_id в fact_json.photos — отдаём их
	// рендереру как альтернативные дескрипторы
	if len(out) == 0 {
		for _, chatID := range fact.Photos {
			out = append(out, PhotoRef{ChatFileID: chatID})
		}
	}

	c.log.Info("фото смены собраны", slog.Int64("shift", shiftID), slog.Int("count", len(out)))
	return out, nil
}

// photoFileIDs ID файлов из любого проводного представления поля.
func photoFileIDs(v any) []int64 {
	var ids []int64
	switch x := v.(type) {
	case nil:
	case []any:
		for _, el := range x {
			if m, ok := el.(map[string]any); ok {
				if id := crm.ToInt64(m["id"]); id != 0 {
					ids = append(ids, id)
				}
				continue
			}
			if id := crm.ToInt64(el); id != 0 {
				ids = append(ids, id)
			}
		}
	case map[string]any:
		if id := crm.ToInt64(x["id"]); id != 0 {
			ids = append(ids, id)
		}
	default:
		if id := crm.ToInt64(v); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

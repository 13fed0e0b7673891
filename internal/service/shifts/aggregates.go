package shifts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"lpa-backend/internal/constants"
	"lpa-backend/internal/service/planfact"
	"lpa-backend/internal/storage/crm"
)

// AggregateWriter пишет итоги смены обратно в CRM: план, факт,
// эффективность и статус (как целочисленный ID enum-значения).
type AggregateWriter struct {
	client *crm.Client
	fields *crm.FieldMap
	enums  *crm.Enums

	shiftETID     int
	closedStageID int
	log           *slog.Logger
}

func NewAggregateWriter(client *crm.Client, fields *crm.FieldMap, enums *crm.Enums, shiftETID, closedStageID int, log *slog.Logger) *AggregateWriter {
	return &AggregateWriter{
		client:        client,
		fields:        fields,
		enums:         enums,
		shiftETID:     shiftETID,
		closedStageID: closedStageID,
		log:           log,
	}
}

// UpdateAggregates одна запись crm.item.update со всеми полями.
// efficiency == nil считается по плану и факту. status пустой — статус
// не трогаем. Enum-поле со статусом шлём голым целым: словарь или
// {value: ...} смарт-процесс молча отвергает.
func (w *AggregateWriter) UpdateAggregates(ctx context.Context, shiftID int64, planTotal, factTotal float64, efficiency *float64, status string) error {
	const op = "service.shifts.aggregates.UpdateAggregates"

	eff := 0.0
	if efficiency != nil {
		eff = *efficiency
	} else if planTotal > 0 {
		eff = Round2(100 * factTotal / planTotal)
	}

	fields := map[string]any{
		w.camel(constants.FieldPlanTotal): planTotal,
		w.camel(constants.FieldFactTotal): factTotal,
		w.camel(constants.FieldEffRaw):    eff,
		w.camel(constants.FieldEffFinal):  eff,
	}

	if status != "" {
		if id, ok := w.statusID(ctx, status); ok {
			fields[w.camel(constants.FieldStatus)] = id
		}
	}

	if err := w.client.ItemUpdate(ctx, w.shiftETID, shiftID, fields); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	w.log.Info("итоги смены записаны",
		slog.Int64("shift", shiftID),
		slog.Float64("plan", planTotal),
		slog.Float64("fact", factTotal),
		slog.Float64("eff", eff),
		slog.String("status", status))

	if status == "closed" {
		// перевод стадии смарт-процесса — второстепенная запись,
		// её ошибку глотаем
		err := w.client.ItemUpdate(ctx, w.shiftETID, shiftID, map[string]any{
			"statusId": w.closedStageID,
		})
		if err != nil {
			w.log.Warn("стадия смарт-процесса не переведена",
				slog.Int64("shift", shiftID), slog.String("error", err.Error()))
		}
	}

	return nil
}

// statusID английский статус -> русская подпись -> ID. Если подпись не
// нашлась, но кэш не пуст, берём любой известный ID: CRM порой предлагает
// единственное значение при нескольких подписях в обороте.
func (w *AggregateWriter) statusID(ctx context.Context, status string) (int, bool) {
	label, ok := constants.ShiftStatusLabels[status]
	if !ok {
		label = status
	}

	id, err := w.enums.ShiftStatus.IDByLabel(ctx, label)
	if err == nil {
		return id, true
	}

	var enumErr *crm.EnumResolutionError
	if errors.As(err, &enumErr) {
		if fallback, ok := w.enums.ShiftStatus.AnyID(ctx); ok {
			w.log.Warn("статус: подпись не найдена, берём известный ID",
				slog.String("label", label), slog.Int("id", fallback))
			return fallback, true
		}
	}

	w.log.Warn("статус не записан: enum не разрешён", slog.String("label", label))
	return 0, false
}

// UpdateShiftType записывает тип смены по внутреннему коду (day, night...).
// Пустой код — no-op.
func (w *AggregateWriter) UpdateShiftType(ctx context.Context, shiftID int64, code string) error {
	const op = "service.shifts.aggregates.UpdateShiftType"

	if code == "" {
		return nil
	}
	label, ok := constants.ShiftTypeLabels[code]
	if !ok {
		return &planfact.ValidationError{Field: "shift_type", Reason: "неизвестный код " + code}
	}

	id, err := w.enums.ShiftType.IDByLabel(ctx, label)
	if err != nil {
		w.log.Warn("тип смены не записан: enum не разрешён",
			slog.String("label", label), slog.String("error", err.Error()))
		return nil
	}

	if err := w.client.ItemUpdate(ctx, w.shiftETID, shiftID, map[string]any{
		w.camel(constants.FieldShiftType): id,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (w *AggregateWriter) camel(logical string) string {
	return crm.UpperToCamel(w.fields.Resolve(constants.EntityShift, logical))
}

// Round2 округление до двух знаков.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

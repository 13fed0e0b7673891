package crm

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"lpa-backend/internal/constants"
)

const enumScanLimit = 100

// inferFn по контекстным колонкам записи угадывает русскую подпись
// enum-значения. Пустая строка — угадать не удалось.
type inferFn func(rec Item) string

// Enum кэш значений одного enum-поля: подпись <-> целочисленный ID.
// Подписи enum-полей смарт-процессов напрямую не запрашиваются, поэтому
// кэш строится по живым записям. Статическая затравка заполняет пробелы,
// живое обнаружение перекрывает совпадающие подписи.
type Enum struct {
	name          string
	entityTypeID  int
	entity        string
	field         string // логическое имя
	contextFields []string
	seed          map[string]int
	infer         inferFn

	client *Client
	fields *FieldMap
	log    *slog.Logger

	mu      sync.Mutex
	loaded  bool
	byLabel map[string]int
	byID    map[int]string
}

func newEnum(name string, entityTypeID int, entity, field string, contextFields []string,
	seed map[string]int, infer inferFn, client *Client, fields *FieldMap, log *slog.Logger) *Enum {
	return &Enum{
		name:          name,
		entityTypeID:  entityTypeID,
		entity:        entity,
		field:         field,
		contextFields: contextFields,
		seed:          seed,
		infer:         infer,
		client:        client,
		fields:        fields,
		log:           log,
	}
}

func (e *Enum) ensure(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return
	}
	e.loadLocked(ctx)
	e.loaded = true
}

// Refresh принудительно перечитывает кэш.
func (e *Enum) Refresh(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadLocked(ctx)
	e.loaded = true
}

func (e *Enum) loadLocked(ctx context.Context) {
	e.byLabel = make(map[string]int)
	e.byID = make(map[int]string)

	// затравка; сортировка подписей даёт детерминированный byID
	labels := make([]string, 0, len(e.seed))
	for l := range e.seed {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		id := e.seed[l]
		e.byLabel[l] = id
		if _, ok := e.byID[id]; !ok {
			e.byID[id] = l
		}
	}

	sel := []string{"id", e.fields.Resolve(e.entity, e.field)}
	for _, cf := range e.contextFields {
		sel = append(sel, e.fields.Resolve(e.entity, cf))
	}

	items, err := e.client.ListPages(ctx, e.entityTypeID, nil, sel, map[string]string{"id": "desc"}, enumScanLimit)
	if err != nil {
		e.log.Warn("enum: не удалось прочитать записи, остаёмся на затравке",
			slog.String("enum", e.name), slog.String("error", err.Error()))
		return
	}

	for _, rec := range items {
		id := int(ToInt64(e.fields.ReadField(e.entity, rec, e.field)))
		if id == 0 {
			continue
		}
		label := e.infer(rec)
		if label == "" {
			continue
		}
		// живое обнаружение главнее затравки
		e.byLabel[label] = id
		if _, ok := e.byID[id]; !ok {
			// читатель предпочитает первую увиденную подпись
			e.byID[id] = label
		}
	}

	e.log.Info("enum: кэш загружен",
		slog.String("enum", e.name), slog.Int("labels", len(e.byLabel)))
}

// IDByLabel ID по подписи, сравнение без регистра.
func (e *Enum) IDByLabel(ctx context.Context, label string) (int, error) {
	e.ensure(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()

	want := strings.ToLower(strings.TrimSpace(label))
	for l, id := range e.byLabel {
		if strings.ToLower(strings.TrimSpace(l)) == want {
			return id, nil
		}
	}
	return 0, &EnumResolutionError{Field: e.field, Label: label}
}

// AnyID любой известный ID — запасной вариант, когда подпись не нашлась,
// но CRM вообще предлагает только одно значение.
func (e *Enum) AnyID(ctx context.Context) (int, bool) {
	e.ensure(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]int, 0, len(e.byID))
	for id := range e.byID {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return 0, false
	}
	sort.Ints(ids)
	return ids[0], true
}

// LabelByID обратный запрос; пустая строка, если ID неизвестен.
func (e *Enum) LabelByID(ctx context.Context, id int) string {
	e.ensure(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.byID[id]
}

// Enums три enum-кэша ядра.
type Enums struct {
	ShiftStatus  *Enum
	ShiftType    *Enum
	ResourceKind *Enum
}

// NewEnums собирает кэши с их правилами вывода подписей.
func NewEnums(client *Client, fields *FieldMap, shiftETID, resourceETID int, log *slog.Logger) *Enums {
	shiftStatus := newEnum("shift_status", shiftETID, constants.EntityShift, constants.FieldStatus,
		[]string{constants.FieldPDFFile},
		constants.SeedShiftStatus,
		func(rec Item) string {
			// прикреплённый файл ЛПА значит, что смена закрыта
			if v := fields.ReadField(constants.EntityShift, rec, constants.FieldPDFFile); v != nil && ToString(v) != "" {
				return "Закрыта"
			}
			return ""
		},
		client, fields, log)

	shiftType := newEnum("shift_type", shiftETID, constants.EntityShift, constants.FieldShiftType,
		[]string{constants.FieldPlanJSON},
		constants.SeedShiftType,
		func(rec Item) string {
			raw := ToString(fields.ReadField(constants.EntityShift, rec, constants.FieldPlanJSON))
			code := metaShiftType(raw)
			return constants.ShiftTypeLabels[code]
		},
		client, fields, log)

	resourceKind := newEnum("resource_kind", resourceETID, constants.EntityResource, constants.FieldResourceKind,
		[]string{constants.FieldMaterialType, constants.FieldEquipmentType},
		constants.SeedResourceKind,
		func(rec Item) string {
			mat := ToString(fields.ReadField(constants.EntityResource, rec, constants.FieldMaterialType))
			eq := ToString(fields.ReadField(constants.EntityResource, rec, constants.FieldEquipmentType))
			switch {
			case mat != "" && eq == "":
				return constants.LabelMaterial
			case eq != "" && mat == "":
				return constants.LabelEquipment
			}
			return ""
		},
		client, fields, log)

	return &Enums{
		ShiftStatus:  shiftStatus,
		ShiftType:    shiftType,
		ResourceKind: resourceKind,
	}
}

// metaShiftType лёгкий разбор plan_json ради meta.shift_type; полноценной
// канонизации здесь не нужно.
func metaShiftType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var doc struct {
		Meta struct {
			ShiftType string `json:"shift_type"`
		} `json:"meta"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return ""
	}
	return doc.Meta.ShiftType
}

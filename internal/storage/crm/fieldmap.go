package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"lpa-backend/internal/constants"
)

// FieldMeta метаданные одного пользовательского поля из карты.
type FieldMeta struct {
	Label string `json:"label"`
	Title string `json:"title"`
	Type  string `json:"type,omitempty"`
}

// FieldMap карта "логическое имя -> реальный код поля" на процесс.
// Загружается с диска один раз и дальше неизменяема; перезагрузка —
// только рестартом процесса.
type FieldMap struct {
	entities map[string]map[string]FieldMeta
	log      *slog.Logger
}

// LoadFieldMap читает JSON-файл карты полей: на каждую русскую сущность
// ("Смена", "Ресурс", ...) словарь реальный_код -> метаданные.
func LoadFieldMap(path string, log *slog.Logger) (*FieldMap, error) {
	const op = "storage.crm.fieldmap.LoadFieldMap"

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var entities map[string]map[string]FieldMeta
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &FieldMap{entities: entities, log: log}, nil
}

// NewFieldMap карта из готовых данных, для тестов.
func NewFieldMap(entities map[string]map[string]FieldMeta, log *slog.Logger) *FieldMap {
	return &FieldMap{entities: entities, log: log}
}

// FetchFieldMap строит карту прямо из CRM: userfield.list каждого
// процесса даёт реальные коды и русские подписи. Запасной путь, когда
// файла карты ещё нет; entities — русская сущность -> entityTypeId.
func FetchFieldMap(ctx context.Context, client *Client, entities map[string]int, log *slog.Logger) (*FieldMap, error) {
	const op = "storage.crm.fieldmap.FetchFieldMap"

	out := make(map[string]map[string]FieldMeta, len(entities))
	for entity, etid := range entities {
		ufs, err := client.UserfieldList(ctx, etid)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, entity, err)
		}

		fields := make(map[string]FieldMeta, len(ufs))
		for _, uf := range ufs {
			if uf.FieldName == "" {
				continue
			}
			fields[uf.FieldName] = FieldMeta{Label: uf.Label, Title: uf.Label, Type: uf.UserTypeID}
		}
		out[entity] = fields

		log.Info("поля процесса прочитаны из CRM",
			slog.String("entity", entity), slog.Int("count", len(fields)))
	}

	return &FieldMap{entities: out, log: log}, nil
}

// Save пишет карту на диск в том же формате, который читает LoadFieldMap.
func (m *FieldMap) Save(path string) error {
	const op = "storage.crm.fieldmap.Save"

	raw, err := json.MarshalIndent(m.entities, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Resolve подбирает реальный код поля по логическому имени.
//  1. По русской подписи поля из constants.FieldLabels.
//  2. По суффиксу кода.
//  3. Отдаём логическое имя как есть — для встроенных стандартных полей
//     (TITLE, ID) этого достаточно.
func (m *FieldMap) Resolve(entity, logical string) string {
	fields := m.entities[entity]

	if label, ok := constants.FieldLabels[logical]; ok {
		for code, meta := range fields {
			if strings.TrimSpace(meta.Label) == label || strings.TrimSpace(meta.Title) == label {
				return code
			}
		}
	}

	for code := range fields {
		if strings.HasSuffix(code, logical) {
			return code
		}
	}

	m.log.Warn("поле не найдено в карте, используем логическое имя",
		slog.String("entity", entity), slog.String("field", logical))
	return logical
}

// ReadField достаёт значение логического поля из сырой записи: сначала
// верхний змеиный код, затем camel, затем разворачиваем список из одного
// элемента — CRM заворачивает часть скаляров в списки.
func (m *FieldMap) ReadField(entity string, rec Item, logical string) any {
	code := m.Resolve(entity, logical)

	v, ok := rec[code]
	if !ok {
		v, ok = rec[UpperToCamel(code)]
	}
	if !ok {
		return nil
	}

	if list, isList := v.([]any); isList && len(list) == 1 {
		return list[0]
	}
	return v
}

// UpperToCamel переводит UF_CRM_7_UF_CRM_PLAN_TOTAL в ufCrm7UfCrmPlanTotal.
// Первый сегмент в нижний регистр, остальные с заглавной, чисто числовые
// сегменты приклеиваются как есть.
func UpperToCamel(code string) string {
	parts := strings.Split(code, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(strings.ToLower(p))
			continue
		}
		if isNumeric(p) {
			b.WriteString(p)
			continue
		}
		lower := strings.ToLower(p)
		r := []rune(lower)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

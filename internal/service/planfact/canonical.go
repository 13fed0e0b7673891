package planfact

import (
	"encoding/json"
	"fmt"
	"strings"

	"lpa-backend/internal/constants"
	"lpa-backend/internal/storage"
)

// Slot куда класть числа из мешка скаляров.
type Slot int

const (
	SlotPlan Slot = iota
	SlotFact
)

const (
	DefaultUnit     = "ед."
	DefaultExecutor = "Бригада"

	ReasonOffPlan   = "Работа вне плана"
	ReasonDeviation = "Отклонение от плана"
)

// ValidationError входные данные не приводятся к допустимым значениям.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("planfact: invalid %s: %s", e.Field, e.Reason)
}

// shape исторические формы plan_json/fact_json. Определение формы —
// явное помеченное объединение, а не разбросанный по коду type sniffing.
type shape int

const (
	shapeEmpty shape = iota
	shapeCanonical
	shapeBag
	shapeString
	shapeList
)

func detect(v any) shape {
	switch x := v.(type) {
	case nil:
		return shapeEmpty
	case string:
		if strings.TrimSpace(x) == "" {
			return shapeEmpty
		}
		return shapeString
	case []any:
		return shapeList
	case map[string]any:
		if len(x) == 0 {
			return shapeEmpty
		}
		if _, ok := x["tasks"]; ok {
			return shapeCanonical
		}
		return shapeBag
	}
	return shapeEmpty
}

// Normalize приводит любую историческую форму к канонической. Мусор на
// входе даёт пустой канонический документ, не ошибку — старые смены
// нормализуются по мере сил.
func Normalize(raw any, slot Slot) storage.PlanDocument {
	switch detect(raw) {
	case shapeEmpty:
		return storage.PlanDocument{}
	case shapeList:
		list := raw.([]any)
		if len(list) == 1 {
			return Normalize(list[0], slot)
		}
		return storage.PlanDocument{}
	case shapeString:
		var parsed any
		if err := json.Unmarshal([]byte(raw.(string)), &parsed); err != nil {
			return storage.PlanDocument{}
		}
		return Normalize(parsed, slot)
	case shapeCanonical:
		return fromCanonical(raw.(map[string]any))
	case shapeBag:
		return fromBag(raw.(map[string]any), slot)
	}
	return storage.PlanDocument{}
}

// NormalizeJSON то же для сырой строки из поля CRM.
func NormalizeJSON(raw string, slot Slot) storage.PlanDocument {
	if strings.TrimSpace(raw) == "" {
		return storage.PlanDocument{}
	}
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return storage.PlanDocument{}
	}
	return Normalize(parsed, slot)
}

func fromCanonical(m map[string]any) storage.PlanDocument {
	var doc storage.PlanDocument

	if rawTasks, ok := m["tasks"].([]any); ok {
		for _, rt := range rawTasks {
			tm, ok := rt.(map[string]any)
			if !ok {
				continue
			}
			task := storage.Task{
				Name:     strings.TrimSpace(toStr(tm["name"])),
				Unit:     strings.TrimSpace(toStr(tm["unit"])),
				Plan:     toFloat(tm["plan"]),
				Fact:     toFloat(tm["fact"]),
				Executor: strings.TrimSpace(toStr(tm["executor"])),
				Reason:   strings.TrimSpace(toStr(tm["reason"])),
			}
			if task.Name == "" {
				continue
			}
			if task.Unit == "" {
				task.Unit = DefaultUnit
			}
			if task.Executor == "" {
				task.Executor = DefaultExecutor
			}
			doc.Tasks = append(doc.Tasks, task)
		}
	}

	doc.TotalPlan = toFloat(firstOf(m, "total_plan", "plan_total"))
	doc.TotalFact = toFloat(firstOf(m, "total_fact", "fact_total"))
	doc.DowntimeReason = strings.TrimSpace(toStr(m["downtime_reason"]))

	if photos, ok := m["photos"].([]any); ok {
		for _, p := range photos {
			if s := toStr(p); s != "" {
				doc.Photos = append(doc.Photos, s)
			}
		}
	}

	if meta, ok := m["meta"].(map[string]any); ok {
		doc.Meta = storage.PlanMeta{
			SiteID:    toInt64(meta["site_id"]),
			SiteName:  strings.TrimSpace(toStr(meta["site_name"])),
			Date:      strings.TrimSpace(toStr(meta["date"])),
			Section:   strings.TrimSpace(toStr(meta["section"])),
			Foreman:   strings.TrimSpace(toStr(meta["foreman"])),
			ShiftType: strings.TrimSpace(toStr(meta["shift_type"])),
		}
	}

	fillTotals(&doc)
	return doc
}

// fromBag мешок скаляров: каждый незарезервированный ключ с положительным
// числом становится строкой задачи.
func fromBag(m map[string]any, slot Slot) storage.PlanDocument {
	var doc storage.PlanDocument

	// порядок ключей в map случаен, собираем и сортируем для стабильности
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)

	for _, k := range keys {
		if constants.ReservedPlanKeys[strings.ToLower(strings.TrimSpace(k))] {
			continue
		}
		n := toFloat(m[k])
		if n <= 0 {
			continue
		}
		task := storage.Task{
			Name:     strings.TrimSpace(k),
			Unit:     DefaultUnit,
			Executor: DefaultExecutor,
		}
		if slot == SlotPlan {
			task.Plan = n
		} else {
			task.Fact = n
		}
		doc.Tasks = append(doc.Tasks, task)
	}

	doc.TotalPlan = toFloat(firstOf(m, "total_plan", "plan_total"))
	doc.TotalFact = toFloat(firstOf(m, "total_fact", "fact_total"))
	doc.DowntimeReason = strings.TrimSpace(toStr(m["downtime_reason"]))

	fillTotals(&doc)
	return doc
}

// fillTotals итог равен сумме по задачам, если вызывающий не передал
// ненулевой итог сам.
func fillTotals(doc *storage.PlanDocument) {
	var sumPlan, sumFact float64
	for _, t := range doc.Tasks {
		sumPlan += t.Plan
		sumFact += t.Fact
	}
	if doc.TotalPlan == 0 {
		doc.TotalPlan = sumPlan
	}
	if doc.TotalFact == 0 {
		doc.TotalFact = sumFact
	}
}

// Merge сводит план и факт по имени задачи (без регистра, с обрезкой).
// Фактовые задачи вне плана добавляются в конец с причиной "Работа вне
// плана"; расхождение план/факт получает причину "Отклонение от плана",
// если факт не принёс свою.
func Merge(plan, fact storage.PlanDocument) []storage.Task {
	factByName := make(map[string]storage.Task, len(fact.Tasks))
	used := make(map[string]bool, len(fact.Tasks))
	for _, ft := range fact.Tasks {
		factByName[taskKey(ft.Name)] = ft
	}

	var out []storage.Task
	for _, pt := range plan.Tasks {
		row := pt
		if ft, ok := factByName[taskKey(pt.Name)]; ok {
			row.Fact = ft.Fact
			if ft.Reason != "" {
				row.Reason = ft.Reason
			}
			used[taskKey(pt.Name)] = true
		} else {
			row.Fact = 0
		}
		if row.Plan != row.Fact && row.Reason == "" {
			row.Reason = ReasonDeviation
		}
		out = append(out, row)
	}

	for _, ft := range fact.Tasks {
		if used[taskKey(ft.Name)] {
			continue
		}
		row := ft
		row.Plan = 0
		row.Reason = ReasonOffPlan
		out = append(out, row)
	}

	return out
}

func taskKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ToJSON сериализует канонический документ для записи в CRM.
func ToJSON(doc storage.PlanDocument) (string, error) {
	const op = "service.planfact.ToJSON"
	if doc.Tasks == nil {
		doc.Tasks = []storage.Task{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(raw), nil
}

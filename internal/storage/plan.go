package storage

// Task каноническая строка плана/факта. Имена задач сравниваются
// без регистра и с обрезанными пробелами.
type Task struct {
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Plan     float64 `json:"plan"`
	Fact     float64 `json:"fact"`
	Executor string  `json:"executor"`
	Reason   string  `json:"reason,omitempty"`
}

// PlanMeta служебный блок канонического plan_json. По meta.site_id
// резолвер смен восстанавливает объект, когда связующее поле CRM пустое
// или содержит литерал "Array".
type PlanMeta struct {
	SiteID    int64  `json:"site_id"`
	SiteName  string `json:"site_name"`
	Date      string `json:"date,omitempty"` // ДД.ММ.ГГГГ
	Section   string `json:"section,omitempty"`
	Foreman   string `json:"foreman,omitempty"`
	ShiftType string `json:"shift_type,omitempty"`
}

// PlanDocument каноническая форма plan_json / fact_json.
type PlanDocument struct {
	Tasks          []Task   `json:"tasks"`
	TotalPlan      float64  `json:"total_plan"`
	TotalFact      float64  `json:"total_fact"`
	DowntimeReason string   `json:"downtime_reason,omitempty"`
	Photos         []string `json:"photos,omitempty"`
	Meta           PlanMeta `json:"meta"`
}

// Empty true, если документ не несёт ни задач, ни итогов.
func (d PlanDocument) Empty() bool {
	return len(d.Tasks) == 0 && d.TotalPlan == 0 && d.TotalFact == 0
}

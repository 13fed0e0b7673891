package storage

// Shift одна рабочая смена на одном объекте. Все ID назначает CRM.
type Shift struct {
	ID       int64  `json:"id"`
	SiteID   int64  `json:"site_id"`
	Date     string `json:"date"` // календарный день, ДД.ММ.ГГГГ
	Type     string `json:"shift_type"`
	Status   string `json:"status"` // open | closed
	PlanJSON string `json:"plan_json"`
	FactJSON string `json:"fact_json"`

	PlanTotal       float64 `json:"plan_total"`
	FactTotal       float64 `json:"fact_total"`
	EfficiencyRaw   float64 `json:"efficiency_raw"`
	EfficiencyFinal float64 `json:"efficiency_final"`

	DowntimeReason string  `json:"downtime_reason,omitempty"`
	PhotoIDs       []int64 `json:"photo_ids,omitempty"`
	PDFFileID      int64   `json:"pdf_file,omitempty"`
}

// Site строительный объект. Для ядра только чтение.
type Site struct {
	ID      int64  `json:"site_id"`
	Title   string `json:"title"`
	Code    string `json:"code,omitempty"`
	Address string `json:"address,omitempty"`
}

package lpa

import "lpa-backend/internal/storage"

// PhotoRef одна фотография смены. Либо файл на диске CRM (FileID + URL),
// либо файл из чата (ChatFileID), который рендерер заберёт у чат-слоя.
type PhotoRef struct {
	FileID     int64  `json:"file_id,omitempty"`
	URL        string `json:"url,omitempty"`
	ChatFileID string `json:"chat_file_id,omitempty"`
}

// RenderContext полностью типизированный контекст для заполнения шаблона
// ЛПА. Собирается коллектором, потребляется рендерером и excel-экспортом.
type RenderContext struct {
	ShiftID int64

	SiteName    string
	SiteAddress string
	Date        string // ДД.ММ.ГГГГ
	ShiftType   string // русская подпись
	Section     string
	Foreman     string

	Tasks     []storage.Task
	Equipment []storage.Resource
	Materials []storage.Resource
	Timesheet []storage.TimesheetEntry

	PlanTotal  float64
	FactTotal  float64
	Efficiency float64

	DowntimeReason string
	DowntimeMin    float64
	ReportStatus   string
	ReasonsText    string

	Photos         []PhotoRef
	PhotosAttached string // "Да (N)" или "Нет"
}

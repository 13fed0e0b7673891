package storage

// TimesheetEntry часы одной бригады за смену. Сумма часов по табелю —
// единственный источник правды для фактического объёма смены.
type TimesheetEntry struct {
	ID       int64   `json:"ts_id"`
	ShiftID  int64   `json:"shift_id"`
	CrewName string  `json:"crew_name"`
	Hours    float64 `json:"hours"`
	Rate     float64 `json:"rate"`
	Sum      float64 `json:"sum"`
}

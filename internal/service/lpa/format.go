package lpa

import (
	"fmt"
	"strconv"
	"strings"
)

// шаблон рассчитан на фиксированное число строк
const (
	maxTaskRows   = 10
	maxEquipRows  = 7
	maxWorkerRows = 7
	maxMatRows    = 7
	maxInlinePics = 5
)

// formatNumber число по-русски: до prec знаков, хвостовые нули срезаны,
// десятичная запятая, необязательный суффикс. Ноль рендерится как "0".
func formatNumber(v float64, prec int, suffix string) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-0" {
		s = "0"
	}
	s = strings.ReplaceAll(s, ".", ",")
	return s + suffix
}

// flatten разворачивает контекст в плоский словарь нумерованных
// плейсхолдеров шаблона. Отсутствующие строки добиваются пустыми
// значениями, лишние отрезаются по бюджету шаблона.
func flatten(rc *RenderContext) map[string]string {
	out := map[string]string{
		"site_name":       rc.SiteName,
		"site_address":    rc.SiteAddress,
		"date":            rc.Date,
		"shift_type":      rc.ShiftType,
		"section":         rc.Section,
		"foreman":         rc.Foreman,
		"plan_total":      formatNumber(rc.PlanTotal, 2, ""),
		"fact_total":      formatNumber(rc.FactTotal, 2, ""),
		"efficiency":      formatNumber(rc.Efficiency, 2, " %"),
		"downtime_reason": rc.DowntimeReason,
		"downtime_min":    formatNumber(rc.DowntimeMin, 0, ""),
		"report_status":   rc.ReportStatus,
		"reasons_text":    rc.ReasonsText,
		"photos_attached": rc.PhotosAttached,
	}

	for i := 1; i <= maxTaskRows; i++ {
		var name, unit, plan, fact, executor, reason string
		if i <= len(rc.Tasks) {
			t := rc.Tasks[i-1]
			name, unit, executor, reason = t.Name, t.Unit, t.Executor, t.Reason
			plan = formatNumber(t.Plan, 2, "")
			fact = formatNumber(t.Fact, 2, "")
		}
		p := fmt.Sprintf("task%d_", i)
		out[p+"name"] = name
		out[p+"unit"] = unit
		out[p+"plan"] = plan
		out[p+"fact"] = fact
		out[p+"executor"] = executor
		out[p+"reason"] = reason
	}

	for i := 1; i <= maxEquipRows; i++ {
		var name, hours, comment string
		if i <= len(rc.Equipment) {
			e := rc.Equipment[i-1]
			name = e.Name
			hours = formatNumber(e.Hours, 2, "")
			comment = e.Comment
		}
		p := fmt.Sprintf("equip%d_", i)
		out[p+"name"] = name
		out[p+"hours"] = hours
		out[p+"comment"] = comment
	}

	for i := 1; i <= maxWorkerRows; i++ {
		var name, hours, rate, sum string
		if i <= len(rc.Timesheet) {
			w := rc.Timesheet[i-1]
			name = w.CrewName
			hours = formatNumber(w.Hours, 2, "")
			rate = formatNumber(w.Rate, 2, "")
			total := w.Sum
			if total == 0 {
				total = round2(w.Hours * w.Rate)
			}
			sum = formatNumber(total, 2, "")
		}
		p := fmt.Sprintf("worker%d_", i)
		out[p+"name"] = name
		out[p+"hours"] = hours
		out[p+"rate"] = rate
		out[p+"sum"] = sum
	}

	for i := 1; i <= maxMatRows; i++ {
		var name, unit, qty, price, sum string
		if i <= len(rc.Materials) {
			m := rc.Materials[i-1]
			name = m.Name
			unit = m.Unit
			qty = formatNumber(m.Quantity, 2, "")
			price = formatNumber(m.UnitPrice, 2, "")
			total := m.Sum
			if total == 0 {
				total = round2(m.Quantity * m.UnitPrice)
			}
			sum = formatNumber(total, 2, "")
		}
		p := fmt.Sprintf("mat%d_", i)
		out[p+"name"] = name
		out[p+"unit"] = unit
		out[p+"qty"] = qty
		out[p+"price"] = price
		out[p+"sum"] = sum
	}

	return out
}

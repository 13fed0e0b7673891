package lpa

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lpa-backend/internal/storage"
)

func TestFormatNumber(t *testing.T) {
	// десятичная запятая, хвостовые нули срезаны
	assert.Equal(t, "110", formatNumber(110, 2, ""))
	assert.Equal(t, "54,19", formatNumber(54.19, 2, ""))
	assert.Equal(t, "12,5", formatNumber(12.50, 2, ""))
	assert.Equal(t, "0", formatNumber(0, 2, ""))
	assert.Equal(t, "0", formatNumber(0, 0, ""))
	assert.Equal(t, "54,19 %", formatNumber(54.19, 2, " %"))
	assert.Equal(t, "203", formatNumber(203.004, 2, ""))
}

func TestFlatten_HeaderFields(t *testing.T) {
	rc := &RenderContext{
		ShiftID:        501,
		SiteName:       "ЖК Северный",
		Date:           "17.11.2025",
		ShiftType:      "Дневная",
		PlanTotal:      203,
		FactTotal:      110,
		Efficiency:     54.19,
		ReportStatus:   "Закрыта",
		PhotosAttached: "Да (3)",
	}

	out := flatten(rc)

	assert.Equal(t, "ЖК Северный", out["site_name"])
	assert.Equal(t, "17.11.2025", out["date"])
	assert.Equal(t, "203", out["plan_total"])
	assert.Equal(t, "110", out["fact_total"])
	assert.Equal(t, "54,19 %", out["efficiency"])
	assert.Equal(t, "Да (3)", out["photos_attached"])
}

func TestFlatten_RowPaddingAndCap(t *testing.T) {
	rc := &RenderContext{
		Tasks: []storage.Task{
			{Name: "Опалубка", Unit: "м2", Plan: 40, Fact: 38, Executor: "Бригада", Reason: "Отклонение от плана"},
		},
	}
	// задач больше бюджета шаблона — лишние отрезаются
	for i := 0; i < 15; i++ {
		rc.Tasks = append(rc.Tasks, storage.Task{Name: "Прочее", Plan: 1})
	}

	out := flatten(rc)

	assert.Equal(t, "Опалубка", out["task1_name"])
	assert.Equal(t, "40", out["task1_plan"])
	assert.Equal(t, "Отклонение от плана", out["task1_reason"])

	// десятая строка ещё есть, одиннадцатой нет
	assert.Equal(t, "Прочее", out["task10_name"])
	_, ok := out["task11_name"]
	assert.False(t, ok)

	// пустой контекст добивается пустыми значениями, ключи на месте
	empty := flatten(&RenderContext{})
	assert.Contains(t, empty, "task10_reason")
	assert.Empty(t, empty["task10_reason"])
	assert.Contains(t, empty, "equip7_hours")
	assert.Contains(t, empty, "worker7_sum")
	assert.Contains(t, empty, "mat7_price")
}

func TestFlatten_ComputedSums(t *testing.T) {
	rc := &RenderContext{
		Timesheet: []storage.TimesheetEntry{
			{CrewName: "Бригада 1", Hours: 8, Rate: 500},            // сумма считается
			{CrewName: "Бригада 2", Hours: 6, Rate: 450, Sum: 9999}, // явная сумма главнее
		},
		Materials: []storage.Resource{
			{Name: "Щебень", Unit: "т", Quantity: 18, UnitPrice: 1200.5},
		},
	}

	out := flatten(rc)

	assert.Equal(t, "4000", out["worker1_sum"])
	assert.Equal(t, "9999", out["worker2_sum"])
	assert.Equal(t, "21609", out["mat1_sum"])
	assert.Equal(t, "1200,5", out["mat1_price"])
}

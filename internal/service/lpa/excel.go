package lpa

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// GenerateExcel собирает одностраничный отчёт по смене в xlsx — для
// владельцев, которым нужны числа, а не PDF.
func GenerateExcel(rc *RenderContext) ([]byte, error) {
	const op = "service.lpa.excel.GenerateExcel"

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Отчет по смене"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})

	// шапка смены
	head := [][]any{
		{"Объект", rc.SiteName},
		{"Адрес", rc.SiteAddress},
		{"Дата", rc.Date},
		{"Тип смены", rc.ShiftType},
		{"Участок", rc.Section},
		{"Прораб", rc.Foreman},
		{"План", rc.PlanTotal},
		{"Факт", rc.FactTotal},
		{"Эффективность, %", rc.Efficiency},
		{"Статус", rc.ReportStatus},
	}
	for i, row := range head {
		f.SetCellValue(sheet, cellName(1, i+1), row[0])
		f.SetCellValue(sheet, cellName(2, i+1), row[1])
	}

	rowNum := len(head) + 2

	// задачи
	taskHeaders := []string{"Работа", "Ед.", "План", "Факт", "Исполнитель", "Причина"}
	for i, name := range taskHeaders {
		f.SetCellValue(sheet, cellName(i+1, rowNum), name)
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(taskHeaders), rowNum)
	firstCol, _ := excelize.CoordinatesToCellName(1, rowNum)
	f.SetCellStyle(sheet, firstCol, lastCol, headerStyle)
	rowNum++

	for _, t := range rc.Tasks {
		f.SetCellValue(sheet, cellName(1, rowNum), t.Name)
		f.SetCellValue(sheet, cellName(2, rowNum), t.Unit)
		f.SetCellValue(sheet, cellName(3, rowNum), t.Plan)
		f.SetCellValue(sheet, cellName(4, rowNum), t.Fact)
		f.SetCellValue(sheet, cellName(5, rowNum), t.Executor)
		f.SetCellValue(sheet, cellName(6, rowNum), t.Reason)
		rowNum++
	}
	rowNum++

	// табель
	tsHeaders := []string{"Бригада", "Часы", "Ставка", "Сумма"}
	for i, name := range tsHeaders {
		f.SetCellValue(sheet, cellName(i+1, rowNum), name)
	}
	firstCol, _ = excelize.CoordinatesToCellName(1, rowNum)
	lastCol, _ = excelize.CoordinatesToCellName(len(tsHeaders), rowNum)
	f.SetCellStyle(sheet, firstCol, lastCol, headerStyle)
	rowNum++

	for _, e := range rc.Timesheet {
		f.SetCellValue(sheet, cellName(1, rowNum), e.CrewName)
		f.SetCellValue(sheet, cellName(2, rowNum), e.Hours)
		f.SetCellValue(sheet, cellName(3, rowNum), e.Rate)
		f.SetCellValue(sheet, cellName(4, rowNum), e.Sum)
		rowNum++
	}
	rowNum++

	// материалы и техника
	resHeaders := []string{"Ресурс", "Вид", "Кол-во/часы", "Цена/ставка", "Сумма"}
	for i, name := range resHeaders {
		f.SetCellValue(sheet, cellName(i+1, rowNum), name)
	}
	firstCol, _ = excelize.CoordinatesToCellName(1, rowNum)
	lastCol, _ = excelize.CoordinatesToCellName(len(resHeaders), rowNum)
	f.SetCellStyle(sheet, firstCol, lastCol, headerStyle)
	rowNum++

	for _, m := range rc.Materials {
		f.SetCellValue(sheet, cellName(1, rowNum), m.Name)
		f.SetCellValue(sheet, cellName(2, rowNum), "Материал")
		f.SetCellValue(sheet, cellName(3, rowNum), m.Quantity)
		f.SetCellValue(sheet, cellName(4, rowNum), m.UnitPrice)
		f.SetCellValue(sheet, cellName(5, rowNum), m.Sum)
		rowNum++
	}
	for _, e := range rc.Equipment {
		f.SetCellValue(sheet, cellName(1, rowNum), e.Name)
		f.SetCellValue(sheet, cellName(2, rowNum), "Техника")
		f.SetCellValue(sheet, cellName(3, rowNum), e.Hours)
		f.SetCellValue(sheet, cellName(4, rowNum), e.Rate)
		f.SetCellValue(sheet, cellName(5, rowNum), round2(e.Hours*e.Rate))
		rowNum++
	}

	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
	})
	f.SetColWidth(sheet, "A", "A", 32)
	f.SetColWidth(sheet, "B", "F", 15)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}

package excel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

type ExcelGenerator interface {
	GenerateExcel(ctx context.Context, shiftID int64) ([]byte, error)
}

// GenerateReportExcel отдаёт xlsx-отчёт по смене.
func GenerateReportExcel(log *slog.Logger, svc ExcelGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.lpa.excel.GenerateReportExcel"

		shiftID, err := strconv.ParseInt(r.URL.Query().Get("shift_id"), 10, 64)
		if err != nil || shiftID <= 0 {
			http.Error(w, "Неверный shift_id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()

		data, err := svc.GenerateExcel(ctx, shiftID)
		if err != nil {
			log.Error("Ошибка генерации excel", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "не удалось сформировать отчет", http.StatusInternalServerError)
			return
		}
		if data == nil {
			http.Error(w, "смена не найдена", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="shift_%d.xlsx"`, shiftID))
		w.Write(data)
	}
}

package resolve

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

type Request struct {
	SiteID   int64  `json:"site_id"`
	Date     string `json:"date"` // ДД.ММ.ГГГГ или ГГГГ-ММ-ДД
	SiteName string `json:"site_name,omitempty"`
	Create   bool   `json:"create"`
}

type Response struct {
	ShiftID int64  `json:"shift_id"`
	Found   bool   `json:"found"`
	Error   string `json:"error,omitempty"`
}

type ShiftResolver interface {
	ResolveShift(ctx context.Context, siteID int64, date time.Time, siteName string, create bool) (int64, error)
}

func ResolveShift(log *slog.Logger, svc ShiftResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.shift.resolve.ResolveShift"

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("Неверный JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "Неверные данные", http.StatusBadRequest)
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			log.Error("Неверная дата", slog.String("op", op), slog.String("date", req.Date))
			http.Error(w, "Неверная дата", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		shiftID, err := svc.ResolveShift(ctx, req.SiteID, date, req.SiteName, req.Create)
		if err != nil {
			log.Error("Ошибка резолва смены", slog.String("op", op), slog.String("error", err.Error()))
			render.JSON(w, r, Response{Error: "не удалось определить смену"})
			return
		}

		render.JSON(w, r, Response{ShiftID: shiftID, Found: shiftID != 0})
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("02.01.2006", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

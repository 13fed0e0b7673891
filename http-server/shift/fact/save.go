package fact

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"lpa-backend/internal/service/planfact"
)

type Request struct {
	ShiftID int64 `json:"shift_id"`
	// факт в любой исторической форме, канонизатор разберётся
	Fact           json.RawMessage `json:"fact"`
	DowntimeReason string          `json:"downtime_reason,omitempty"`
	PhotoPaths     []string        `json:"photo_paths,omitempty"`
}

type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type FactSaver interface {
	SaveFact(ctx context.Context, shiftID int64, fact any, downtimeReason string, photoPaths []string) error
}

func SaveFact(log *slog.Logger, svc FactSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.shift.fact.SaveFact"

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("Неверный JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "Неверные данные", http.StatusBadRequest)
			return
		}

		var fact any
		if len(req.Fact) > 0 {
			if err := json.Unmarshal(req.Fact, &fact); err != nil {
				log.Error("Неверный факт", slog.String("op", op), slog.String("error", err.Error()))
				http.Error(w, "Неверные данные", http.StatusBadRequest)
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		if err := svc.SaveFact(ctx, req.ShiftID, fact, req.DowntimeReason, req.PhotoPaths); err != nil {
			var vErr *planfact.ValidationError
			if errors.As(err, &vErr) {
				log.Warn("Факт отклонён", slog.String("op", op), slog.String("error", vErr.Error()))
				http.Error(w, "Неверные данные факта", http.StatusBadRequest)
				return
			}
			log.Error("Ошибка сохранения факта", slog.String("op", op), slog.String("error", err.Error()))
			render.JSON(w, r, Response{Error: "не удалось сохранить факт"})
			return
		}

		render.JSON(w, r, Response{Status: strconv.Itoa(http.StatusOK)})
	}
}

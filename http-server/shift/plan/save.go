package plan

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
	"lpa-backend/internal/storage"
)

type Request struct {
	ShiftID int64            `json:"shift_id"`
	Tasks   []storage.Task   `json:"tasks"`
	Meta    storage.PlanMeta `json:"meta"`
}

type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type PlanSaver interface {
	SavePlan(ctx context.Context, shiftID int64, tasks []storage.Task, meta storage.PlanMeta) error
}

func SavePlan(log *slog.Logger, svc PlanSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.shift.plan.SavePlan"

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("Неверный JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "Неверные данные", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		if err := svc.SavePlan(ctx, req.ShiftID, req.Tasks, req.Meta); err != nil {
			var vErr *planfact.ValidationError
			if errors.As(err, &vErr) {
				log.Warn("План отклонён", slog.String("op", op), slog.String("error", vErr.Error()))
				http.Error(w, "Неверные данные плана", http.StatusBadRequest)
				return
			}
			log.Error("Ошибка сохранения плана", slog.String("op", op), slog.String("error", err.Error()))
			render.JSON(w, r, Response{Error: "не удалось сохранить план"})
			return
		}

		render.JSON(w, r, Response{Status: strconv.Itoa(http.StatusOK)})
	}
}

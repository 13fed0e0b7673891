package generate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"lpa-backend/internal/service/lpa"
	"lpa-backend/internal/service/planfact"
	"lpa-backend/internal/storage"
)

type Request struct {
	ShiftID int64 `json:"shift_id"`
	// запасные план и факт, если в CRM поля пустые
	FallbackPlan json.RawMessage   `json:"fallback_plan,omitempty"`
	FallbackFact json.RawMessage   `json:"fallback_fact,omitempty"`
	Meta         *storage.PlanMeta `json:"meta,omitempty"`
}

type Response struct {
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

type LPAGenerator interface {
	GenerateLPA(ctx context.Context, shiftID int64, opts lpa.CollectOptions) (string, error)
}

func GenerateLPA(log *slog.Logger, svc LPAGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.lpa.generate.GenerateLPA"

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("Неверный JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "Неверные данные", http.StatusBadRequest)
			return
		}

		opts := lpa.CollectOptions{Meta: req.Meta}
		if doc := decodeFallback(req.FallbackPlan, planfact.SlotPlan); doc != nil {
			opts.FallbackPlan = doc
		}
		if doc := decodeFallback(req.FallbackFact, planfact.SlotFact); doc != nil {
			opts.FallbackFact = doc
		}

		// сбор + рендер + конвертация + загрузка, бюджет с запасом
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()

		path, err := svc.GenerateLPA(ctx, req.ShiftID, opts)
		if err != nil {
			var phErr *lpa.PlaceholderError
			if errors.As(err, &phErr) {
				log.Error("В шаблоне остались пустые поля", slog.String("op", op), slog.String("error", phErr.Error()))
				render.JSON(w, r, Response{Error: "в шаблоне есть незаполненные поля, обратитесь к разработчику"})
				return
			}
			log.Error("Ошибка генерации ЛПА", slog.String("op", op), slog.String("error", err.Error()))
			render.JSON(w, r, Response{Error: "не удалось сформировать ЛПА"})
			return
		}
		if path == "" {
			render.JSON(w, r, Response{Error: "смена не найдена"})
			return
		}

		render.JSON(w, r, Response{Path: path})
	}
}

func decodeFallback(raw json.RawMessage, slot planfact.Slot) *storage.PlanDocument {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	doc := planfact.Normalize(v, slot)
	if doc.Empty() {
		return nil
	}
	return &doc
}

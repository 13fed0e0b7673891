package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	excelreport "lpa-backend/http-server/lpa/excel"
	"lpa-backend/http-server/lpa/generate"
	factsave "lpa-backend/http-server/shift/fact"
	plansave "lpa-backend/http-server/shift/plan"
	"lpa-backend/http-server/shift/resolve"
	"lpa-backend/internal/config"
	"lpa-backend/internal/middleware/auth"
	"lpa-backend/internal/service/orchestrator"
)

func routes(cfg config.Config, log *slog.Logger, svc *orchestrator.Service) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:8081", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// API для чат-слоя и планировщика; кроме health — под basic auth
	router.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass))

	// резолв смены по (объект, дата)
	apiRouter.Post("/shift/resolve", resolve.ResolveShift(log, svc))

	// план и факт смены
	apiRouter.Post("/shift/plan", plansave.SavePlan(log, svc))
	apiRouter.Post("/shift/fact", factsave.SaveFact(log, svc))

	// генерация ЛПА и прикрепление к смене
	apiRouter.Post("/shift/lpa", generate.GenerateLPA(log, svc))

	// xlsx-отчёт по смене
	apiRouter.Get("/shift/report/excel", excelreport.GenerateReportExcel(log, svc))

	router.Mount("/api", apiRouter)

	return router
}

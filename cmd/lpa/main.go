package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"lpa-backend/internal/config"
	"lpa-backend/internal/constants"
	"lpa-backend/internal/service/lpa"
	"lpa-backend/internal/service/orchestrator"
	"lpa-backend/internal/service/shifts"
	"lpa-backend/internal/storage/crm"
	"lpa-backend/internal/storage/mirror"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	// .env удобен локально; в проде переменные приходят из окружения
	_ = godotenv.Load()

	cfg := config.MustConfig()

	log := setupLogger(cfg.Env)

	client := crm.NewClient(cfg.CRM.WebhookBase, cfg.CRM.MaxAttempts, cfg.CRM.CallTimeout, log)

	fields, err := crm.LoadFieldMap(cfg.FieldMapPath, log)
	if errors.Is(err, os.ErrNotExist) {
		// файла карты нет — собираем её из метаданных полей CRM
		log.Info("карта полей не найдена, строим из CRM", slog.String("path", cfg.FieldMapPath))

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		fields, err = crm.FetchFieldMap(ctx, client, map[string]int{
			constants.EntityShift:     cfg.CRM.ShiftEntityTypeID,
			constants.EntitySite:      cfg.CRM.SiteEntityTypeID,
			constants.EntityResource:  cfg.CRM.ResourceEntityTypeID,
			constants.EntityTimesheet: cfg.CRM.TimesheetEntityTypeID,
		}, log)
		cancel()

		if err == nil {
			if saveErr := fields.Save(cfg.FieldMapPath); saveErr != nil {
				log.Warn("карта полей не сохранена на диск", slog.String("error", saveErr.Error()))
			}
		}
	}
	if err != nil {
		log.Error("failed to load field map", slog.String("error", err.Error()))
		os.Exit(1)
	}
	enums := crm.NewEnums(client, fields, cfg.CRM.ShiftEntityTypeID, cfg.CRM.ResourceEntityTypeID, log)
	uploader := crm.NewUploader(client, fields, log)

	mirrorDB, err := mirror.New(cfg.MirrorDSN)
	if err != nil {
		log.Error("failed to open mirror db", slog.String("error", err.Error()))
		os.Exit(1)
	}

	loc := cfg.Location()

	resolver := shifts.NewResolver(client, fields, enums,
		cfg.CRM.ShiftEntityTypeID, cfg.CRM.SiteEntityTypeID, loc, log)
	writer := shifts.NewAggregateWriter(client, fields, enums,
		cfg.CRM.ShiftEntityTypeID, cfg.CRM.ClosedStageID, log)
	collector := lpa.NewCollector(client, fields, enums, mirrorDB,
		cfg.CRM.ShiftEntityTypeID, cfg.CRM.SiteEntityTypeID,
		cfg.CRM.ResourceEntityTypeID, cfg.CRM.TimesheetEntityTypeID, loc, log)
	renderer := lpa.NewRenderer(cfg.TemplatePath, cfg.OutputDir, nil, log)

	svc := orchestrator.New(client, fields, resolver, writer, collector, renderer, uploader,
		cfg.CRM.ShiftEntityTypeID, loc, log)

	log.Info("server started", slog.String("address", cfg.Address))

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      routes(*cfg, log, svc),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	err = srv.ListenAndServe()
	if err != nil {
		log.Error("failed start server ", slog.String("error", err.Error()))
	}

	log.Error("server stopped")
}

type dualHandler struct {
	coreHandler  slog.Handler
	errorHandler slog.Handler
}

func (h *dualHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.coreHandler.Enabled(ctx, lvl) || h.errorHandler.Enabled(ctx, lvl)
}

func (h *dualHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error

	// Всегда пишем в основной вывод (stdout)
	if h.coreHandler.Enabled(ctx, r.Level) {
		err = h.coreHandler.Handle(ctx, r)
		if err != nil {
			return err
		}
	}

	// Если это ошибка — пишем в файл
	if r.Level >= slog.LevelError && h.errorHandler.Enabled(ctx, r.Level) {
		cloned := r.Clone()
		_ = h.errorHandler.Handle(ctx, cloned)
	}

	return err
}

func (h *dualHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dualHandler{
		coreHandler:  h.coreHandler.WithAttrs(attrs),
		errorHandler: h.errorHandler.WithAttrs(attrs),
	}
}

func (h *dualHandler) WithGroup(name string) slog.Handler {
	return &dualHandler{
		coreHandler:  h.coreHandler.WithGroup(name),
		errorHandler: h.errorHandler.WithGroup(name),
	}
}

func setupLogger(env string) *slog.Logger {
	var level slog.Level = slog.LevelDebug
	switch env {
	case envProd:
		level = slog.LevelInfo
	}

	// 1. Основной handler — пишет всё в stdout
	var coreHandler slog.Handler
	switch env {
	case envLocal:
		coreHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	case envDev:
		coreHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	case envProd:
		coreHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		coreHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	// 2. Файловый handler — только ошибки
	errorFile, err := os.OpenFile("errors.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		slog.Warn("Cannot open error log file", "error", err)
		return slog.New(coreHandler)
	}

	errorHandler := slog.NewTextHandler(errorFile, &slog.HandlerOptions{
		Level: slog.LevelError,
	})

	handler := &dualHandler{
		coreHandler:  coreHandler,
		errorHandler: errorHandler,
	}

	return slog.New(handler)
}

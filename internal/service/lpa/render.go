package lpa

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Renderer заполняет шаблон ЛПА, вставляет фото, прогоняет аудит
// плейсхолдеров и конвертирует документ в PDF.
type Renderer struct {
	templatePath string
	outputDir    string
	chat         ChatFileFetcher
	convert      func(ctx context.Context, docxPath, outDir string, log *slog.Logger) (string, error)
	log          *slog.Logger
}

func NewRenderer(templatePath, outputDir string, chat ChatFileFetcher, log *slog.Logger) *Renderer {
	return &Renderer{
		templatePath: templatePath,
		outputDir:    outputDir,
		chat:         chat,
		convert:      convertToPDF,
		log:          log,
	}
}

// Render возвращает путь к готовому PDF. Если оба конвертера отказали,
// возвращает путь к DOCX вместе с PdfConversionError — хоть какой-то
// артефакт лучше, чем никакого. PlaceholderError фатален, файл остаётся
// на диске для разбора.
func (r *Renderer) Render(ctx context.Context, rc *RenderContext) (string, error) {
	const op = "service.lpa.render.Render"

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	base := outputBaseName(rc)
	workDocx := filepath.Join(r.outputDir, "tmp_"+uuid.NewString()+".docx")

	if err := fillTemplate(r.templatePath, workDocx, flatten(rc)); err != nil {
		os.Remove(workDocx)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	photos := r.preparePhotos(ctx, rc)
	if len(photos) > 0 {
		if err := appendPhotos(workDocx, photos, len(rc.Photos)); err != nil {
			os.Remove(workDocx)
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := auditDocx(workDocx); err != nil {
		// файл нарочно не удаляем
		r.log.Error("аудит плейсхолдеров провален",
			slog.Int64("shift", rc.ShiftID), slog.String("file", workDocx), slog.String("error", err.Error()))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	tmpPdf, convErr := r.convert(ctx, workDocx, r.outputDir, r.log)
	if convErr != nil {
		docxPath := filepath.Join(r.outputDir, base+".docx")
		if err := os.Rename(workDocx, docxPath); err != nil {
			os.Remove(workDocx)
			return "", fmt.Errorf("%s: %w", op, err)
		}
		r.log.Warn("PDF не сконвертирован, отдаём DOCX",
			slog.Int64("shift", rc.ShiftID), slog.String("file", docxPath))
		return docxPath, convErr
	}

	finalPdf := filepath.Join(r.outputDir, base+".pdf")
	// итоговый PDF появляется атомарно, через rename
	if err := os.Rename(tmpPdf, finalPdf); err != nil {
		os.Remove(tmpPdf)
		os.Remove(workDocx)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	os.Remove(workDocx)

	// прежние ЛПА убираем только когда новый уже на месте: при провале
	// конвертации у смены остаётся последний удачный PDF
	r.cleanupOld(rc.ShiftID, base+".pdf")

	r.log.Info("ЛПА отрендерен", slog.Int64("shift", rc.ShiftID), slog.String("pdf", finalPdf))
	return finalPdf, nil
}

// preparePhotos скачивает и ужимает до пяти снимков; недоступные
// пропускаются с предупреждением.
func (r *Renderer) preparePhotos(ctx context.Context, rc *RenderContext) []processedPhoto {
	var out []processedPhoto
	for _, ref := range rc.Photos {
		if len(out) == maxInlinePics {
			break
		}
		data, err := fetchPhoto(ctx, ref, r.chat)
		if err != nil {
			r.log.Warn("фото не скачано", slog.String("error", err.Error()))
			continue
		}
		p, err := processPhoto(data)
		if err != nil {
			r.log.Warn("фото не обработано", slog.String("error", err.Error()))
			continue
		}
		out = append(out, p)
	}
	return out
}

// cleanupOld удаляет прежние ЛПА этой смены, чтобы они не копились.
func (r *Renderer) cleanupOld(shiftID int64, keep string) {
	pattern := filepath.Join(r.outputDir, fmt.Sprintf("LPA_%d_*.pdf", shiftID))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, m := range matches {
		if filepath.Base(m) == keep {
			continue
		}
		if err := os.Remove(m); err != nil {
			r.log.Warn("старый ЛПА не удалён", slog.String("file", m))
		}
	}
}

// outputBaseName стабильное имя артефакта: LPA_<смена>_<ГГГГММДД>_<объект>.
func outputBaseName(rc *RenderContext) string {
	dateKey := rc.Date
	if t, err := time.Parse("02.01.2006", rc.Date); err == nil {
		dateKey = t.Format("20060102")
	}
	return fmt.Sprintf("LPA_%d_%s_%s", rc.ShiftID, dateKey, sanitizeName(rc.SiteName))
}

// sanitizeName чистит название объекта для имени файла: запрещённые
// символы и пробелы в подчёркивания, не длиннее 50 рун.
func sanitizeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		`"`, "_", "<", "_", ">", "_", "|", "_",
	)
	s := replacer.Replace(name)
	s = strings.Join(strings.Fields(s), "_")

	runes := []rune(s)
	if len(runes) > 50 {
		runes = runes[:50]
	}
	return string(runes)
}

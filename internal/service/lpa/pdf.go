package lpa

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const pdfConvertTimeout = 60 * time.Second

// PdfConversionError оба конвертера не справились. Не фатально:
// вызывающий получает DOCX и решает сам.
type PdfConversionError struct {
	Primary  string
	Fallback string
}

func (e *PdfConversionError) Error() string {
	return fmt.Sprintf("lpa: pdf conversion failed: primary: %s; fallback: %s", e.Primary, e.Fallback)
}

// convertToPDF гонит DOCX через headless-конвертер. Конвертация —
// единственная длинная блокирующая операция рендера, бюджет 60 секунд.
func convertToPDF(ctx context.Context, docxPath, outDir string, log *slog.Logger) (string, error) {
	const op = "service.lpa.pdf.convertToPDF"

	pdfPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(docxPath), ".docx")+".pdf")

	primaryErr := runConverter(ctx, "libreoffice", docxPath, outDir)
	if primaryErr == nil {
		if _, err := os.Stat(pdfPath); err == nil {
			return pdfPath, nil
		}
		primaryErr = fmt.Errorf("конвертер отработал, но PDF не появился")
	}
	log.Warn("основной конвертер не справился, пробуем soffice",
		slog.String("error", primaryErr.Error()))

	fallbackErr := runConverter(ctx, "soffice", docxPath, outDir)
	if fallbackErr == nil {
		if _, err := os.Stat(pdfPath); err == nil {
			return pdfPath, nil
		}
		fallbackErr = fmt.Errorf("конвертер отработал, но PDF не появился")
	}

	return "", &PdfConversionError{Primary: primaryErr.Error(), Fallback: fallbackErr.Error()}
}

func runConverter(ctx context.Context, bin, docxPath, outDir string) error {
	cctx, cancel := context.WithTimeout(ctx, pdfConvertTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, bin,
		"--headless", "--convert-to", "pdf", "--outdir", outDir, docxPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", bin, err, strings.TrimSpace(string(out)))
	}
	return nil
}

package lpa

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	xdraw "golang.org/x/image/draw"
)

const (
	photoMaxWidth  = 800
	photoMaxHeight = 600
	photoQuality   = 85

	photoDownloadTimeout = 30 * time.Second
)

// ChatFileFetcher отдаёт содержимое файла, загруженного через чат.
// Реализацию даёт чат-слой; nil означает, что чатовые фото недоступны.
type ChatFileFetcher interface {
	FetchFile(ctx context.Context, chatFileID string) ([]byte, error)
}

var photoHTTP = &http.Client{Timeout: photoDownloadTimeout}

// fetchPhoto байты снимка: либо скачиваем с диска CRM, либо просим у
// чат-слоя.
func fetchPhoto(ctx context.Context, ref PhotoRef, chat ChatFileFetcher) ([]byte, error) {
	const op = "service.lpa.photos.fetchPhoto"

	if ref.URL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		resp, err := photoHTTP.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s: статус %d", op, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	if ref.ChatFileID != "" && chat != nil {
		data, err := chat.FetchFile(ctx, ref.ChatFileID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("%s: у фото нет ни URL, ни chat_file_id", op)
}

// processPhoto вписывает снимок в 800×600 и пережимает в JPEG q85.
func processPhoto(data []byte) (processedPhoto, error) {
	const op = "service.lpa.photos.processPhoto"

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return processedPhoto{}, fmt.Errorf("%s: %w", op, err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > photoMaxWidth || h > photoMaxHeight {
		scale := float64(photoMaxWidth) / float64(w)
		if hs := float64(photoMaxHeight) / float64(h); hs < scale {
			scale = hs
		}
		nw, nh := int(float64(w)*scale), int(float64(h)*scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
		img = dst
		w, h = nw, nh
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: photoQuality}); err != nil {
		return processedPhoto{}, fmt.Errorf("%s: %w", op, err)
	}

	return processedPhoto{data: buf.Bytes(), width: w, height: h}, nil
}

package crm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Uploader загрузка файлов в файловые поля смарт-процессов.
type Uploader struct {
	client *Client
	fields *FieldMap
	log    *slog.Logger
}

func NewUploader(client *Client, fields *FieldMap, log *slog.Logger) *Uploader {
	return &Uploader{client: client, fields: fields, log: log}
}

// UploadToField кладёт файл в первое подошедшее поле из candidates
// (логические имена). Возвращает true при успехе.
func (u *Uploader) UploadToField(ctx context.Context, filePath string, entity string, entityTypeID int, itemID int64, candidates []string) (bool, error) {
	const op = "storage.crm.upload.UploadToField"

	if len(candidates) == 0 {
		return false, fmt.Errorf("%s: пустой список кандидатов полей", op)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	name := filepath.Base(filePath)

	for _, logical := range candidates {
		code := u.fields.Resolve(entity, logical)
		if code == logical {
			// карта не знает такого поля — пробуем следующего кандидата
			continue
		}

		fields := map[string]any{
			UpperToCamel(code): map[string]any{
				"fileData": []string{name, encoded},
			},
		}
		if err := u.client.ItemUpdate(ctx, entityTypeID, itemID, fields); err != nil {
			u.log.Warn("загрузка файла в поле не удалась, пробуем следующее",
				slog.String("field", logical), slog.String("error", err.Error()))
			continue
		}

		u.log.Info("файл загружен в CRM",
			slog.String("file", name), slog.String("field", logical), slog.Int64("item", itemID))
		return true, nil
	}

	return false, &FieldResolutionError{Entity: entity, Logical: candidates[0]}
}

// UploadPhotos кладёт набор фотографий в множественное файловое поле смены.
func (u *Uploader) UploadPhotos(ctx context.Context, paths []string, entity string, entityTypeID int, itemID int64, logical string) error {
	const op = "storage.crm.upload.UploadPhotos"

	if len(paths) == 0 {
		return nil
	}

	var files []map[string]any
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			u.log.Warn("фото не прочитано, пропускаем", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		files = append(files, map[string]any{
			"fileData": []string{filepath.Base(p), base64.StdEncoding.EncodeToString(data)},
		})
	}
	if len(files) == 0 {
		return nil
	}

	code := u.fields.Resolve(entity, logical)
	fields := map[string]any{UpperToCamel(code): files}
	if err := u.client.ItemUpdate(ctx, entityTypeID, itemID, fields); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	u.log.Info("фото загружены в CRM", slog.Int("count", len(files)), slog.Int64("item", itemID))
	return nil
}

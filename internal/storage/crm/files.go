package crm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// DiskFile описание файла на диске CRM.
type DiskFile struct {
	ID          int64  `json:"-"`
	Name        string `json:"NAME"`
	DownloadURL string `json:"DOWNLOAD_URL"`
	Size        int64  `json:"-"`
}

// DiskFileGet метаданные файла, прежде всего DOWNLOAD_URL.
func (c *Client) DiskFileGet(ctx context.Context, fileID int64) (*DiskFile, error) {
	const op = "storage.crm.files.DiskFileGet"

	raw, err := c.Call(ctx, "disk.file.get", map[string]any{"id": fileID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f := &DiskFile{
		ID:          ToInt64(rec["ID"]),
		Name:        ToString(rec["NAME"]),
		DownloadURL: ToString(rec["DOWNLOAD_URL"]),
		Size:        ToInt64(rec["SIZE"]),
	}
	if f.DownloadURL == "" {
		return nil, fmt.Errorf("%s: у файла %d нет DOWNLOAD_URL", op, fileID)
	}
	return f, nil
}

// DiskFileContent содержимое файла через disk.file.getcontent.
// Метод отдаёт ссылку на скачивание, сами байты качает вызывающий.
func (c *Client) DiskFileContent(ctx context.Context, fileID int64) (string, error) {
	const op = "storage.crm.files.DiskFileContent"

	raw, err := c.Call(ctx, "disk.file.getcontent", map[string]any{"id": fileID})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return ToString(rec["DOWNLOAD_URL"]), nil
}

// DiskFileUpload перезаливает содержимое существующего файла диска CRM.
// Файловые поля смарт-процессов грузятся через Uploader, этот метод —
// для артефактов, живущих прямо на диске.
func (c *Client) DiskFileUpload(ctx context.Context, fileID int64, name string, data []byte) (*DiskFile, error) {
	const op = "storage.crm.files.DiskFileUpload"

	raw, err := c.Call(ctx, "disk.file.upload", map[string]any{
		"id":   fileID,
		"data": []string{name, base64.StdEncoding.EncodeToString(data)},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &DiskFile{
		ID:          ToInt64(rec["ID"]),
		Name:        ToString(rec["NAME"]),
		DownloadURL: ToString(rec["DOWNLOAD_URL"]),
		Size:        ToInt64(rec["SIZE"]),
	}, nil
}

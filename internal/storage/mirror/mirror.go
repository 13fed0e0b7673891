package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// Storage локальное реляционное зеркало CRM. Никогда не авторитетно:
// используется как запасной источник названия объекта, ошибки деградируют
// до лог-строки у вызывающего.
type Storage struct {
	db *sql.DB
}

// New открывает зеркало. Пустой DSN — зеркала нет, все запросы будут
// отвечать "не найдено".
func New(dsn string) (*Storage, error) {
	const op = "storage.mirror.New"

	if dsn == "" {
		return &Storage{}, nil
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// Site строка зеркала объекта.
type Site struct {
	ID      int64
	Title   string
	Address string
}

// GetSite название и адрес объекта из зеркала. (nil, nil) — не найдено.
func (s *Storage) GetSite(ctx context.Context, siteID int64) (*Site, error) {
	const op = "storage.mirror.GetSite"

	if s.db == nil {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, COALESCE(address, '') FROM sites WHERE id = ?", siteID)

	var site Site
	if err := row.Scan(&site.ID, &site.Title, &site.Address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &site, nil
}

// UpsertSite обновляет кэш по свежим данным CRM, по возможности.
func (s *Storage) UpsertSite(ctx context.Context, site Site) error {
	const op = "storage.mirror.UpsertSite"

	if s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sites (id, title, address) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE title = VALUES(title), address = VALUES(address)`,
		site.ID, site.Title, site.Address)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

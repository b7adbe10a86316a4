package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/v0xg/routedoc/internal/model"
)

// ScreenshotStore holds the screenshots of the current capture session.
type ScreenshotStore interface {
	Put(ctx context.Context, s model.Screenshot) error
	// All returns screenshots in insertion order.
	All(ctx context.Context) ([]model.Screenshot, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Screenshots returns the screenshot table as a ScreenshotStore.
func (db *DB) Screenshots() ScreenshotStore {
	return sqliteScreenshots{db: db}
}

type sqliteScreenshots struct {
	db *DB
}

func (s sqliteScreenshots) Put(ctx context.Context, shot model.Screenshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO screenshots (id, route_id, route_url, data_url, tab_id, url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			route_id = excluded.route_id,
			route_url = excluded.route_url,
			data_url = excluded.data_url,
			tab_id = excluded.tab_id,
			url = excluded.url,
			created_at = excluded.created_at
	`, shot.ID, shot.RouteID, shot.RouteURL, shot.DataURL, shot.TabID, shot.URL, shot.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert screenshot: %w", err)
	}
	return nil
}

func (s sqliteScreenshots) All(ctx context.Context) ([]model.Screenshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, route_id, route_url, data_url, tab_id, url, created_at
		FROM screenshots ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query screenshots: %w", err)
	}
	defer rows.Close()

	shots := []model.Screenshot{}
	for rows.Next() {
		var (
			shot      model.Screenshot
			tabID     sql.NullString
			url       sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&shot.ID, &shot.RouteID, &shot.RouteURL, &shot.DataURL, &tabID, &url, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan screenshot: %w", err)
		}
		shot.TabID = tabID.String
		shot.URL = url.String
		shot.CreatedAt = time.UnixMilli(createdAt)
		shots = append(shots, shot)
	}
	return shots, rows.Err()
}

func (s sqliteScreenshots) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM screenshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count screenshots: %w", err)
	}
	return n, nil
}

func (s sqliteScreenshots) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM screenshots"); err != nil {
		return fmt.Errorf("failed to clear screenshots: %w", err)
	}
	return nil
}

// MemoryScreenshots is an in-process ScreenshotStore.
type MemoryScreenshots struct {
	mu    sync.Mutex
	shots []model.Screenshot
}

// NewMemoryScreenshots creates an empty store.
func NewMemoryScreenshots() *MemoryScreenshots {
	return &MemoryScreenshots{}
}

func (m *MemoryScreenshots) Put(_ context.Context, s model.Screenshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.shots {
		if m.shots[i].ID == s.ID {
			m.shots[i] = s
			return nil
		}
	}
	m.shots = append(m.shots, s)
	return nil
}

func (m *MemoryScreenshots) All(context.Context) ([]model.Screenshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Screenshot{}, m.shots...), nil
}

func (m *MemoryScreenshots) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shots), nil
}

func (m *MemoryScreenshots) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shots = nil
	return nil
}

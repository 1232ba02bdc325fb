// Package store persists a delivery log for diagnostics: one row per handled
// update with action, outcome, and latency. Message content is never stored.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"zathurabot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteLog implements domain.DeliveryLog using SQLite.
type SQLiteLog struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteLog(dbPath string, logger *slog.Logger) (*SQLiteLog, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	log := &SQLiteLog{db: db, logger: logger}

	if err := log.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return log, nil
}

func (s *SQLiteLog) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deliveries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id     INTEGER NOT NULL,
		action      TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		latency_ms  INTEGER DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_time ON deliveries(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteLog) RecordDelivery(ctx context.Context, rec domain.DeliveryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (chat_id, action, outcome, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ChatID, rec.Action, rec.Outcome, rec.LatencyMs, rec.CreatedAt,
	)
	return err
}

func (s *SQLiteLog) RecentDeliveries(ctx context.Context, limit int) ([]domain.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, action, outcome, latency_ms, created_at
		 FROM deliveries ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.DeliveryRecord
	for rows.Next() {
		var rec domain.DeliveryRecord
		if err := rows.Scan(&rec.ChatID, &rec.Action, &rec.Outcome, &rec.LatencyMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteLog) Close() error {
	return s.db.Close()
}

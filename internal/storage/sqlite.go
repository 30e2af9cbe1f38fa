package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cambi/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the slot as one row of the storage_slots table.
type SQLiteStore struct {
	db   *sql.DB
	slot string
}

func NewSQLiteStore(dbPath, slot string) (*SQLiteStore, error) {
	if slot == "" {
		slot = DefaultSlot
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, slot: slot}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]core.Entry, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM storage_slots WHERE name = ?`, s.slot).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return []core.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read slot %q: %w", s.slot, err)
	}
	return Decode([]byte(payload))
}

func (s *SQLiteStore) Save(ctx context.Context, entries []core.Entry) error {
	b, err := Encode(entries)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO storage_slots (name, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		s.slot, string(b), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write slot %q: %w", s.slot, err)
	}
	slog.DebugContext(ctx, "Storage slot written to SQLite", "slot", s.slot, "entries", len(entries))
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpdatedAt returns when the slot was last written.
func (s *SQLiteStore) UpdatedAt(ctx context.Context) (time.Time, error) {
	var ts string
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM storage_slots WHERE name = ?`, s.slot).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("read slot %q timestamp: %w", s.slot, err)
	}
	return time.Parse(time.RFC3339Nano, ts)
}

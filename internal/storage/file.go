package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"cambi/internal/core"
)

// FileStore keeps the slot in a JSON file. Writes go to a temp file in the
// same directory which is then renamed over the target.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) ([]core.Entry, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.DebugContext(ctx, "Storage slot not written yet", "path", s.path)
		return []core.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read slot file: %w", err)
	}
	return Decode(b)
}

func (s *FileStore) Save(ctx context.Context, entries []core.Entry) error {
	b, err := Encode(entries)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace slot file: %w", err)
	}
	slog.DebugContext(ctx, "Storage slot written", "path", s.path, "entries", len(entries), "bytes", len(b))
	return nil
}

// Ping checks that the data directory is still there.
func (s *FileStore) Ping(_ context.Context) error {
	fi, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(s.path))
	}
	return nil
}

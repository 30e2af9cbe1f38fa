package backend

import (
	"context"
	"fmt"
	"time"

	applog "cambi/internal/log"
	"cambi/internal/storage"
	"cambi/internal/storage/memory"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the store and an optional cleanup function.
type Result struct {
	Store   storage.EntryStore
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory opens the store for a backend Config.
type Factory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &Factory{logger: logger.WithComponent(applog.ComponentStorage)}
}

// CreateStore opens the configured backend. Network backends are pinged so a
// misconfiguration fails at startup.
func (f *Factory) CreateStore(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case MemoryBackend:
		f.logger.WarnContext(ctx, "Using memory backend, entries are lost on restart")
		return &Result{Store: memory.New()}, nil

	case FileBackend:
		store, err := storage.NewFileStore(cfg.DataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized file backend", "path", store.Path())
		return &Result{Store: store}, nil

	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath, cfg.Slot)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend",
			"db_path", cfg.SQLiteDBPath,
			"slot", cfg.Slot)
		return &Result{Store: store, Cleanup: store.Close}, nil

	case RedisBackend:
		store := storage.NewRedisStore(storage.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Slot:     cfg.Slot,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		f.logger.InfoContext(ctx, "Initialized Redis backend",
			"addr", cfg.RedisAddr,
			"slot", cfg.Slot)
		return &Result{Store: store, Cleanup: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

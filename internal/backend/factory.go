package backend

import (
	"context"
	"fmt"

	"spendwise/internal/log"
	"spendwise/internal/storage"
	"spendwise/internal/storage/memory"
)

// Factory opens stores and logs what it opened.
type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentStorage)}
}

// CreateBackend opens the store described by cfg.
func (f *Factory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		f.logger.InfoContext(ctx, "SQLite store ready",
			"db_path", cfg.SQLiteDBPath,
			"schema_version", repo.SchemaVersion())
		return &BackendResult{Store: repo, Cleanup: repo.Close, SchemaVersion: repo.SchemaVersion()}, nil
	default:
		f.logger.WarnContext(ctx, "Memory store ready, data is lost on restart")
		store := memory.New()
		return &BackendResult{Store: store, Cleanup: store.Close}, nil
	}
}

package storage

import (
	"context"
	"fmt"

	"airsync/internal/config"
	"airsync/internal/domain/entity"
	"airsync/internal/infrastructure/storage/memory"
	"airsync/internal/infrastructure/storage/postgres"
	"airsync/internal/infrastructure/storage/sqlite"

	"golang.org/x/exp/slog"
)

// Store документное хранилище, с которым работает синхронизация
type Store interface {
	entity.Repository
	PutAttachment(ctx context.Context, typ, id, name string, info entity.AttachmentInfo) error
	Close() error
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// Open открывает хранилище выбранного драйвера
func Open(ctx context.Context, cfg config.Storage, log *slog.Logger) (Store, error) {
	log.Info("Opening storage", slog.String("driver", cfg.Driver))

	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(ctx, cfg.SQLitePath, cfg.Migrations, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURI, cfg.Migrations, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

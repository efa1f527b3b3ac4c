package db

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/RezaEskandarii/userfire/internal/constants"
	"github.com/RezaEskandarii/userfire/internal/lock"
	"github.com/RezaEskandarii/userfire/migrations"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/pressly/goose/v3"
	"log/slog"
)

// Migrator applies the embedded goose migrations. Only one process migrates
// at a time: Up holds the migration advisory lock while it runs.
type Migrator struct {
	db    *sql.DB
	locks lock.DistributedLockManager
	log   *slog.Logger
}

func NewMigrator(db *sql.DB, locks lock.DistributedLockManager, log *slog.Logger) *Migrator {
	return &Migrator{
		db:    db,
		locks: locks,
		log:   log.With(logger.Scope("migrator")),
	}
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

// Up runs all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.locks.Acquire(ctx, constants.MigrationLock); err != nil {
		return err
	}
	defer func() {
		if err := m.locks.Release(context.WithoutCancel(ctx), constants.MigrationLock); err != nil {
			m.log.Warn("failed to release migration lock", logger.Error(err))
		}
	}()

	if err := m.prepare(); err != nil {
		return err
	}
	m.log.Info("running database migrations")
	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	m.log.Info("migrations completed successfully")
	return nil
}

// Down rolls back the last migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return nil
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

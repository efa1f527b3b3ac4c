//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"github.com/RezaEskandarii/userfire/internal/db"
	"github.com/RezaEskandarii/userfire/internal/lock"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/internal/queue/queuetest"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"os"
	"testing"
)

func TestPostgresJobQueue_Conformance(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	sqlDB, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	migrator := db.NewMigrator(sqlDB, lock.NewPostgresDistributedLockManager(sqlDB), logger.Discard())
	require.NoError(t, migrator.Up(ctx))

	queuetest.Run(t, func(t *testing.T, cfg queue.Config) queue.Backend {
		_, err := sqlDB.ExecContext(ctx, `TRUNCATE job_envelopes, job_dead_letters`)
		require.NoError(t, err)

		notifier, err := NewListenerNotifier(dsn, logger.Discard())
		require.NoError(t, err)

		q := NewPostgresJobQueue(sqlDB, cfg, WithNotifier(notifier), WithLogger(logger.Discard()))
		t.Cleanup(func() { q.Close() })
		return q
	})
}

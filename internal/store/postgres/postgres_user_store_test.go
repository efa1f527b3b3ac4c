package postgres

import (
	"context"
	"errors"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/RezaEskandarii/userfire/internal/store"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"testing"
	"time"
)

var userCols = []string{"id", "name", "email", "created_at", "updated_at"}

func newBunMock(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestNewPostgresUserStore(t *testing.T) {
	db, _ := newBunMock(t)

	userStore := NewPostgresUserStore(db)
	require.NotNil(t, userStore)
	var _ store.UserStore = userStore
}

func TestPostgresUserStore_FindAll(t *testing.T) {
	db, mock := newBunMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM "users" AS "u" ORDER BY id ASC`).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "Alice", "alice@example.com", now, now).
			AddRow(2, "Bob", "bob@example.com", now, now))

	users, err := NewPostgresUserStore(db).FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, int64(2), users[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_FindByID_NotFound(t *testing.T) {
	db, mock := newBunMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users" AS "u" WHERE \(id = 999\)`).
		WillReturnRows(sqlmock.NewRows(userCols))

	user, err := NewPostgresUserStore(db).FindByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_Insert(t *testing.T) {
	db, mock := newBunMock(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO "users" (.+)'Alice', 'alice@example.com'`).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "Alice", "alice@example.com", now, now))

	user, err := NewPostgresUserStore(db).Insert(context.Background(), types.UserInput{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_Update_NotFound(t *testing.T) {
	db, mock := newBunMock(t)

	mock.ExpectQuery(`UPDATE "users" AS "u" SET name = 'Z'`).
		WillReturnRows(sqlmock.NewRows(userCols))

	user, err := NewPostgresUserStore(db).Update(context.Background(), 42, types.UserInput{Name: "Z", Email: "z@x"})
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_Remove(t *testing.T) {
	db, mock := newBunMock(t)

	mock.ExpectExec(`DELETE FROM "users" AS "u" WHERE \(id = 1\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "users" AS "u" WHERE \(id = 2\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	userStore := NewPostgresUserStore(db)
	removed, err := userStore.Remove(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = userStore.Remove(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_WithTransaction_Commit(t *testing.T) {
	db, mock := newBunMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(7, "Alice", "alice@example.com", now, now))
	mock.ExpectCommit()

	var created *types.User
	err := NewPostgresUserStore(db).WithTransaction(context.Background(), func(ctx context.Context, tx store.UserStore) error {
		var err error
		created, err = tx.Insert(ctx, types.UserInput{Name: "Alice", Email: "alice@example.com"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_WithTransaction_Rollback(t *testing.T) {
	db, mock := newBunMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := NewPostgresUserStore(db).WithTransaction(context.Background(), func(ctx context.Context, tx store.UserStore) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAuditStore_Record(t *testing.T) {
	db, mock := newBunMock(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO "audit_logs" (.+)'delete', 1, NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recorded_at"}).AddRow(10, now))

	record := &types.AuditRecord{Action: "delete", UserID: 1, PerformedAt: now}
	err := NewPostgresAuditStore(db).Record(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, int64(10), record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

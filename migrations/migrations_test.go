package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ContainsGooseMigrations(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		body, err := fs.ReadFile(FS, name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}
}

func TestInit_CreatesQueueTables(t *testing.T) {
	body, err := fs.ReadFile(FS, "00001_init.sql")
	require.NoError(t, err)

	sql := string(body)
	for _, table := range []string{"users", "job_envelopes", "job_dead_letters", "audit_logs"} {
		assert.True(t, strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" "), table)
	}
	assert.Contains(t, sql, "CREATE SEQUENCE IF NOT EXISTS job_envelopes_seq")
}

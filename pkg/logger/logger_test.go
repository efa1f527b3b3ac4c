package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope(t *testing.T) {
	attr := Scope("worker.email")
	assert.Equal(t, "scope", attr.Key)
	assert.Equal(t, "worker.email", attr.Value.String())
}

func TestError(t *testing.T) {
	err := errors.New("something went wrong")
	attr := Error(err)
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "")
	log.Info("job acked", Scope("queue"))

	assert.Contains(t, buf.String(), `"scope":"queue"`)
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
}

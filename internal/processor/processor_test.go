package processor

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/internal/mail"
	"github.com/RezaEskandarii/userfire/internal/storage"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

func noop(context.Context, string, json.RawMessage) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(types.CategoryEmail, noop))
	require.NoError(t, r.Register(types.CategoryAudit, noop))

	assert.Error(t, r.Register(types.CategoryEmail, noop))
	assert.Error(t, r.Register(types.Category("sms"), noop))
	assert.Error(t, r.Register(types.CategoryReport, nil))

	assert.True(t, r.Exists(types.CategoryEmail))
	assert.False(t, r.Exists(types.CategoryReport))

	_, err := r.Get(types.CategoryReport)
	assert.Error(t, err)
	p, err := r.Get(types.CategoryAudit)
	require.NoError(t, err)
	assert.NoError(t, p(context.Background(), "log", nil))

	assert.Equal(t, []types.Category{types.CategoryAudit, types.CategoryEmail}, r.Categories())
}

type recordingSender struct {
	sent   []mail.SendOptions
	result *mail.SendResult
	err    error
}

func (s *recordingSender) Send(_ context.Context, opts mail.SendOptions) (*mail.SendResult, error) {
	s.sent = append(s.sent, opts)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &mail.SendResult{Success: true, MessageID: "m-1"}, nil
}

func TestEmailProcessor_Welcome(t *testing.T) {
	sender := &recordingSender{}
	p := NewEmailProcessor(sender, mail.NewTemplates(), logger.Discard())

	payload := json.RawMessage(`{"name":"Alice","email":"a@x.io","type":"welcome"}`)
	require.NoError(t, p.Process(context.Background(), "welcome", payload))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a@x.io", sender.sent[0].To)
	assert.Equal(t, "Alice", sender.sent[0].ToName)
	assert.Contains(t, sender.sent[0].Subject, "Alice")
}

func TestEmailProcessor_TypeFallsBackToName(t *testing.T) {
	sender := &recordingSender{}
	p := NewEmailProcessor(sender, mail.NewTemplates(), logger.Discard())

	require.NoError(t, p.Process(context.Background(), "welcome", json.RawMessage(`{"name":"Bob","email":"b@x.io"}`)))
	assert.Len(t, sender.sent, 1)
}

func TestEmailProcessor_UnknownTypeIsNoop(t *testing.T) {
	sender := &recordingSender{}
	p := NewEmailProcessor(sender, mail.NewTemplates(), logger.Discard())

	require.NoError(t, p.Process(context.Background(), "digest", json.RawMessage(`{"name":"Bob","email":"b@x.io"}`)))
	assert.Empty(t, sender.sent)
}

func TestEmailProcessor_Failures(t *testing.T) {
	ctx := context.Background()
	payload := json.RawMessage(`{"name":"Alice","email":"a@x.io","type":"welcome"}`)

	p := NewEmailProcessor(&recordingSender{err: errors.New("smtp down")}, mail.NewTemplates(), logger.Discard())
	err := p.Process(ctx, "welcome", payload)
	assert.True(t, custom_errors.Is(err, custom_errors.KindProcessor))

	p = NewEmailProcessor(&recordingSender{result: &mail.SendResult{Error: "rejected"}}, mail.NewTemplates(), logger.Discard())
	err = p.Process(ctx, "welcome", payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")

	err = p.Process(ctx, "welcome", json.RawMessage(`not json`))
	assert.True(t, custom_errors.Is(err, custom_errors.KindProcessor))

	err = p.Process(ctx, "welcome", json.RawMessage(`{"name":"Alice","type":"welcome"}`))
	assert.Error(t, err)
}

type memoryAudit struct {
	records []*types.AuditRecord
	err     error
}

func (m *memoryAudit) Record(_ context.Context, r *types.AuditRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func TestAuditProcessor(t *testing.T) {
	audit := &memoryAudit{}
	p := NewAuditProcessor(audit, logger.Discard())

	payload := json.RawMessage(`{"action":"create","userId":1,"payload":{"name":"Alice","email":"a@x.io"},"performedAt":"2024-01-02T03:04:05Z"}`)
	require.NoError(t, p.Process(context.Background(), "log", payload))

	require.Len(t, audit.records, 1)
	rec := audit.records[0]
	assert.Equal(t, "create", rec.Action)
	assert.Equal(t, int64(1), rec.UserID)
	assert.JSONEq(t, `{"name":"Alice","email":"a@x.io"}`, string(rec.Payload))
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), rec.PerformedAt.UTC())
}

func TestAuditProcessor_NullPayload(t *testing.T) {
	audit := &memoryAudit{}
	p := NewAuditProcessor(audit, logger.Discard())

	payload := json.RawMessage(`{"action":"delete","userId":7,"payload":null,"performedAt":"2024-01-02T03:04:05Z"}`)
	require.NoError(t, p.Process(context.Background(), "log", payload))
	require.Len(t, audit.records, 1)
	assert.Nil(t, audit.records[0].Payload)
}

func TestAuditProcessor_Errors(t *testing.T) {
	ctx := context.Background()

	p := NewAuditProcessor(nil, logger.Discard())
	assert.NoError(t, p.Process(ctx, "log", json.RawMessage(`{"action":"update","userId":2,"payload":null,"performedAt":"2024-01-02T03:04:05Z"}`)))
	assert.Error(t, p.Process(ctx, "log", json.RawMessage(`{"userId":2}`)))

	p = NewAuditProcessor(&memoryAudit{err: errors.New("db down")}, logger.Discard())
	err := p.Process(ctx, "log", json.RawMessage(`{"action":"update","userId":2,"payload":null,"performedAt":"2024-01-02T03:04:05Z"}`))
	assert.True(t, custom_errors.Is(err, custom_errors.KindProcessor))
}

type fakeUploader struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, key string, data []byte, _ string) (*storage.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, key)
	f.bodies = append(f.bodies, data)
	return &storage.UploadResult{Key: key, Bucket: "reports", StorageURL: "s3://reports/" + key, Size: int64(len(data))}, nil
}

func TestReportProcessor_Uploads(t *testing.T) {
	up := &fakeUploader{}
	p := NewReportProcessor(up, logger.Discard())
	p.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	payload := json.RawMessage(`{"userId":1,"deletedAt":"2024-04-30T10:00:00Z"}`)
	require.NoError(t, p.Process(context.Background(), types.JobDeletionReport, payload))

	require.Len(t, up.keys, 1)
	assert.True(t, strings.HasPrefix(up.keys[0], "reports/deletions/1/"))
	assert.True(t, strings.HasSuffix(up.keys[0], ".json"))

	var report DeletionReport
	require.NoError(t, json.Unmarshal(up.bodies[0], &report))
	assert.Equal(t, int64(1), report.UserID)
	assert.Equal(t, "2024-05-01T00:00:00Z", report.GeneratedAt.Format(time.RFC3339))
	assert.NotEmpty(t, report.ReportID)
}

func TestReportProcessor_WithoutStorage(t *testing.T) {
	p := NewReportProcessor(nil, logger.Discard())
	assert.NoError(t, p.Process(context.Background(), types.JobDeletionReport, json.RawMessage(`{"userId":1,"deletedAt":"2024-04-30T10:00:00Z"}`)))
	assert.NoError(t, p.Process(context.Background(), "other", nil))
}

func TestReportProcessor_UploadError(t *testing.T) {
	p := NewReportProcessor(&fakeUploader{err: errors.New("denied")}, logger.Discard())
	err := p.Process(context.Background(), types.JobDeletionReport, json.RawMessage(`{"userId":1,"deletedAt":"2024-04-30T10:00:00Z"}`))
	assert.True(t, custom_errors.Is(err, custom_errors.KindProcessor))
}

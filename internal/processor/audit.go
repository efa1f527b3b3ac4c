package processor

import (
	"context"
	"encoding/json"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/internal/store"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/RezaEskandarii/userfire/types"
	"log/slog"
	"time"
)

type AuditProcessor struct {
	store store.AuditStore
	log   *slog.Logger
}

// NewAuditProcessor logs every entry and, when s is not nil, persists it.
func NewAuditProcessor(s store.AuditStore, log *slog.Logger) *AuditProcessor {
	return &AuditProcessor{
		store: s,
		log:   log.With(logger.Scope("processor.audit")),
	}
}

func (p *AuditProcessor) Process(ctx context.Context, name string, payload json.RawMessage) error {
	var entry types.AuditLogPayload
	if err := json.Unmarshal(payload, &entry); err != nil {
		return custom_errors.NewProcessor("invalid audit payload", err)
	}
	if entry.Action == "" {
		return custom_errors.NewProcessor("audit entry has no action", nil)
	}

	attrs := []any{
		slog.String("action", entry.Action),
		slog.Int64("userId", entry.UserID),
		slog.String("performedAt", entry.PerformedAt.UTC().Format(time.RFC3339)),
	}
	var details json.RawMessage
	if entry.Payload != nil {
		attrs = append(attrs, slog.Any("payload", entry.Payload))
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			return custom_errors.NewProcessor("encode audit details", err)
		}
		details = raw
	}
	p.log.Info("audit log", attrs...)

	if p.store == nil {
		return nil
	}
	err := p.store.Record(ctx, &types.AuditRecord{
		Action:      entry.Action,
		UserID:      entry.UserID,
		Payload:     details,
		PerformedAt: entry.PerformedAt,
	})
	if err != nil {
		return custom_errors.NewProcessor("record audit entry", err)
	}
	return nil
}

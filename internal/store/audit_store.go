package store

import (
	"context"
	"github.com/RezaEskandarii/userfire/types"
)

// AuditStore persists audit trail entries produced by the audit processor.
type AuditStore interface {
	Record(ctx context.Context, record *types.AuditRecord) error
}

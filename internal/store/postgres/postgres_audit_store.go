package postgres

import (
	"context"
	"github.com/RezaEskandarii/userfire/internal/store"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/uptrace/bun"
)

type postgresAuditStore struct {
	db bun.IDB
}

func NewPostgresAuditStore(db bun.IDB) store.AuditStore {
	return &postgresAuditStore{db: db}
}

func (s *postgresAuditStore) Record(ctx context.Context, record *types.AuditRecord) error {
	_, err := s.db.NewInsert().
		Model(record).
		Returning("id, recorded_at").
		Exec(ctx)
	return err
}

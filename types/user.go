package types

import (
	"encoding/json"
	"github.com/uptrace/bun"
	"time"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u" json:"-"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Email     string    `bun:"email,notnull" json:"email"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// UserInput carries the writable fields of a user.
type UserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuditRecord is a persisted audit trail entry.
type AuditRecord struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al" json:"-"`

	ID          int64           `bun:"id,pk,autoincrement" json:"id"`
	Action      string          `bun:"action,notnull" json:"action"`
	UserID      int64           `bun:"user_id,notnull" json:"user_id"`
	Payload     json.RawMessage `bun:"payload,type:jsonb,nullzero" json:"payload,omitempty"`
	PerformedAt time.Time       `bun:"performed_at,notnull" json:"performed_at"`
	RecordedAt  time.Time       `bun:"recorded_at,nullzero,notnull,default:current_timestamp" json:"recorded_at"`
}

package types

import "time"

// Audit actions.
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
)

type WelcomeEmailPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Type  string `json:"type"`
}

// AuditLogPayload.Payload is serialized as null when there is nothing to record.
type AuditLogPayload struct {
	Action      string     `json:"action"`
	UserID      int64      `json:"userId"`
	Payload     *UserInput `json:"payload"`
	PerformedAt time.Time  `json:"performedAt"`
}

type DeletionReportPayload struct {
	UserID    int64     `json:"userId"`
	DeletedAt time.Time `json:"deletedAt"`
}

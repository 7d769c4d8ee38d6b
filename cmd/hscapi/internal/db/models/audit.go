package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditLog is an append-only record of a user action or request.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         string         `bun:"id,pk"` // ULID
	UserID     *string        `bun:"user_id"`
	Username   string         `bun:"username"`
	Action     string         `bun:"action,notnull"`
	AppLabel   string         `bun:"app_label"`
	Model      string         `bun:"model"`
	ObjectID   string         `bun:"object_id"`
	ObjectRepr string         `bun:"object_repr"`
	IPAddress  string         `bun:"ip_address"`
	UserAgent  string         `bun:"user_agent"`
	Extra      map[string]any `bun:"extra,type:jsonb"`
	CreatedAt  time.Time      `bun:"created_at,notnull"`
}

// Notification is an in-app message to a user.
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    *string   `bun:"user_id"`
	Message   string    `bun:"message,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// SMSLog records an outbound SMS attempt.
type SMSLog struct {
	bun.BaseModel `bun:"table:sms_logs,alias:sms"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Phone     string    `bun:"phone,notnull"`
	Message   string    `bun:"message,notnull"`
	Status    string    `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

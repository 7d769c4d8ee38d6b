package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261001000002, down_20261001000002)
}

var auditTables = []tableStep{
	{
		name:  "audit_logs",
		model: (*models.AuditLog)(nil),
		after: []string{
			`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id)`,
		},
	},
	{
		name:  "notifications",
		model: (*models.Notification)(nil),
		after: []string{`CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at)`},
	},
	{
		name:  "sms_logs",
		model: (*models.SMSLog)(nil),
		after: []string{`CREATE INDEX IF NOT EXISTS idx_sms_logs_created_at ON sms_logs(created_at)`},
	},
}

func up_20261001000002(ctx context.Context, db *bun.DB) error {
	return createTables(ctx, db, auditTables)
}

func down_20261001000002(ctx context.Context, db *bun.DB) error {
	return dropTables(ctx, db, auditTables)
}

package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth/bunadapter"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261001000001, down_20261001000001)
}

var authTables = []tableStep{
	{
		name:  "users",
		model: (*models.User)(nil),
		after: []string{`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`},
	},
	{name: "role_groups", model: (*models.Group)(nil)},
	{
		name:  "permissions",
		model: (*models.Permission)(nil),
		after: []string{`CREATE UNIQUE INDEX IF NOT EXISTS idx_permissions_resource_action ON permissions(resource_type, action)`},
	},
	{
		name:  "casbin_rules",
		model: (*bunadapter.CasbinRule)(nil),
		after: []string{`CREATE INDEX IF NOT EXISTS idx_casbin_rules_v1 ON casbin_rules(ptype, v1)`},
	},
	{
		name:  "revoked_tokens",
		model: (*models.RevokedToken)(nil),
		after: []string{`CREATE INDEX IF NOT EXISTS idx_revoked_tokens_exp ON revoked_tokens(exp)`},
	},
}

// up_20261001000001 creates users, role groups, the permission catalog
// and the casbin policy table. Groups and grants are filled by the
// permission synchronizer, not here.
func up_20261001000001(ctx context.Context, db *bun.DB) error {
	return createTables(ctx, db, authTables)
}

func down_20261001000001(ctx context.Context, db *bun.DB) error {
	return dropTables(ctx, db, authTables)
}

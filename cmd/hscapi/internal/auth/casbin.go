package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/uptrace/bun"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth/bunadapter"
)

//go:embed model.conf
var casbinModelContent string

// InitEnforcer builds a synced enforcer over the casbin_rules table and
// loads the current policy. Writes to the table happen in repository
// transactions; callers reload the enforcer after committing.
func InitEnforcer(db bun.IDB) (casbin.IEnforcer, error) {
	adapter, err := bunadapter.NewAdapter(db)
	if err != nil {
		return nil, fmt.Errorf("create casbin adapter: %w", err)
	}

	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	// Policy changes are written by the store, never by the enforcer.
	enforcer.EnableAutoSave(false)

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policies: %w", err)
	}

	return enforcer, nil
}

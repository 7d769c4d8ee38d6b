package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// IsSQLite checks if the database is SQLite
func IsSQLite(db bun.IDB) bool {
	return db.Dialect().Name() == dialect.SQLite
}

// IsPostgreSQL checks if the database is PostgreSQL
func IsPostgreSQL(db bun.IDB) bool {
	return db.Dialect().Name() == dialect.PG
}

// tableStep creates one table from a model and runs follow-up statements
// (indexes). It prints progress the way `hscapi db migrate` reports it.
type tableStep struct {
	name  string
	model any
	fks   []string
	after []string
}

func createTables(ctx context.Context, db *bun.DB, steps []tableStep) error {
	for _, step := range steps {
		fmt.Printf(" [up] creating %s table...", step.name)
		q := db.NewCreateTable().Model(step.model).IfNotExists()
		for _, fk := range step.fks {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create %s table: %w", step.name, err)
		}
		for _, stmt := range step.after {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to finish %s table: %w", step.name, err)
			}
		}
		fmt.Println(" OK")
	}
	return nil
}

func dropTables(ctx context.Context, db *bun.DB, steps []tableStep) error {
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		fmt.Printf(" [down] dropping %s table...", step.name)
		if _, err := db.NewDropTable().Model(step.model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", step.name, err)
		}
		fmt.Println(" OK")
	}
	return nil
}

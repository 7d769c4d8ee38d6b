package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261001000003, down_20261001000003)
}

var clinicalTables = []tableStep{
	{
		name:  "patients",
		model: (*models.Patient)(nil),
		after: []string{`CREATE INDEX IF NOT EXISTS idx_patients_last_accessed_at ON patients(last_accessed_at)`},
	},
	{
		name:  "pregnancies",
		model: (*models.Pregnancy)(nil),
		fks:   []string{`("patient_id") REFERENCES "patients" ("id") ON DELETE CASCADE`},
	},
	{
		name:  "cpn_visits",
		model: (*models.CPNVisit)(nil),
		fks:   []string{`("pregnancy_id") REFERENCES "pregnancies" ("id") ON DELETE CASCADE`},
		after: []string{`CREATE INDEX IF NOT EXISTS idx_cpn_visits_pregnancy_date ON cpn_visits(pregnancy_id, visit_date)`},
	},
	{name: "pathologies", model: (*models.Pathology)(nil)},
}

var seedPathologies = []models.Pathology{
	{Code: "VIH", Label: "VIH/SIDA"},
	{Code: "TB", Label: "Tuberculose"},
	{Code: "HEPATITES", Label: "Hépatites"},
	{Code: "SANTE_MENTALE", Label: "Santé mentale"},
}

func up_20261001000003(ctx context.Context, db *bun.DB) error {
	if err := createTables(ctx, db, clinicalTables); err != nil {
		return err
	}

	fmt.Print(" [up] seeding pathologies...")
	for _, seed := range seedPathologies {
		pathology := seed
		_, err := db.NewInsert().
			Model(&pathology).
			ExcludeColumn("id").
			On("CONFLICT (code) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed pathology %s: %w", seed.Code, err)
		}
	}
	fmt.Println(" OK")
	return nil
}

func down_20261001000003(ctx context.Context, db *bun.DB) error {
	return dropTables(ctx, db, clinicalTables)
}

package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
)

// BunCPNRepository implements CPNRepository using Bun ORM
type BunCPNRepository struct {
	db *bun.DB
}

// NewBunCPNRepository creates a new Bun-based CPN repository
func NewBunCPNRepository(db *bun.DB) *BunCPNRepository {
	return &BunCPNRepository{db: db}
}

// PregnanciesWithLatestVisit loads every pregnancy with its patient and
// the most recent visit, if any.
func (r *BunCPNRepository) PregnanciesWithLatestVisit(ctx context.Context) ([]PregnancyVisit, error) {
	var pregnancies []models.Pregnancy
	if err := r.db.NewSelect().
		Model(&pregnancies).
		Relation("Patient").
		Order("preg.id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list pregnancies: %w", err)
	}

	var visits []models.CPNVisit
	if err := r.db.NewSelect().
		Model(&visits).
		Order("pregnancy_id ASC", "visit_date DESC", "id DESC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list cpn visits: %w", err)
	}

	latest := make(map[int64]*models.CPNVisit, len(pregnancies))
	for i := range visits {
		if _, seen := latest[visits[i].PregnancyID]; !seen {
			latest[visits[i].PregnancyID] = &visits[i]
		}
	}

	out := make([]PregnancyVisit, 0, len(pregnancies))
	for _, p := range pregnancies {
		out = append(out, PregnancyVisit{Pregnancy: p, LatestVisit: latest[p.ID]})
	}
	return out, nil
}

// UpdateRiskLevel stores a new risk level.
func (r *BunCPNRepository) UpdateRiskLevel(ctx context.Context, pregnancyID int64, level string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Pregnancy)(nil)).
		Set("risk_level = ?", level).
		Where("id = ?", pregnancyID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update risk level: %w", err)
	}
	return nil
}

// CreatePregnancy inserts a pregnancy.
func (r *BunCPNRepository) CreatePregnancy(ctx context.Context, p *models.Pregnancy) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	if _, err := r.db.NewInsert().Model(p).Exec(ctx); err != nil {
		return fmt.Errorf("create pregnancy: %w", err)
	}
	return nil
}

// AddVisit records a consultation for a pregnancy.
func (r *BunCPNRepository) AddVisit(ctx context.Context, v *models.CPNVisit) error {
	v.VisitDate = v.VisitDate.UTC()
	if _, err := r.db.NewInsert().Model(v).Exec(ctx); err != nil {
		return fmt.Errorf("add cpn visit: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
)

// BunPatientRepository implements PatientRepository using Bun ORM
type BunPatientRepository struct {
	db *bun.DB
}

// NewBunPatientRepository creates a new Bun-based patient repository
func NewBunPatientRepository(db *bun.DB) *BunPatientRepository {
	return &BunPatientRepository{db: db}
}

// Create inserts a patient and fills its generated id.
func (r *BunPatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	now := nowUTC()
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = now
	}
	patient.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(patient).Exec(ctx); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

// GetByID retrieves a patient by id
func (r *BunPatientRepository) GetByID(ctx context.Context, id int64) (*models.Patient, error) {
	patient := new(models.Patient)
	err := r.db.NewSelect().Model(patient).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrPatientNotFound, id)
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return patient, nil
}

// List returns patients ordered by name.
func (r *BunPatientRepository) List(ctx context.Context, limit, offset int) ([]models.Patient, error) {
	if limit <= 0 {
		limit = 50
	}
	var patients []models.Patient
	err := r.db.NewSelect().
		Model(&patients).
		Order("nom ASC", "prenoms ASC", "id ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return patients, nil
}

// TouchLastAccess records that the patient file was opened.
func (r *BunPatientRepository) TouchLastAccess(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.Patient)(nil)).
		Set("last_accessed_at = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch patient last access: %w", err)
	}
	return nil
}

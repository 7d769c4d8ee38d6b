package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
)

// AnonymizedName marks a patient row as already scrubbed.
const AnonymizedName = "ANONYMISE"

// PurgeTable names a table the retention purge may delete from.
type PurgeTable string

const (
	PurgeNotifications PurgeTable = "notifications"
	PurgeSMSLogs       PurgeTable = "sms_logs"
	PurgeAuditLogs     PurgeTable = "audit_logs"
)

func (t PurgeTable) model() (any, error) {
	switch t {
	case PurgeNotifications:
		return (*models.Notification)(nil), nil
	case PurgeSMSLogs:
		return (*models.SMSLog)(nil), nil
	case PurgeAuditLogs:
		return (*models.AuditLog)(nil), nil
	}
	return nil, fmt.Errorf("unknown purge table %q", string(t))
}

// BunRetentionRepository implements RetentionRepository using Bun ORM
type BunRetentionRepository struct {
	db *bun.DB
}

// NewBunRetentionRepository creates a new Bun-based retention repository
func NewBunRetentionRepository(db *bun.DB) *BunRetentionRepository {
	return &BunRetentionRepository{db: db}
}

// AnonymizationCandidates returns patients not accessed since cutoff, or
// never accessed and created before cutoff, skipping scrubbed rows.
func (r *BunRetentionRepository) AnonymizationCandidates(ctx context.Context, cutoff time.Time) ([]models.Patient, error) {
	cutoff = cutoff.UTC()
	var patients []models.Patient
	err := r.db.NewSelect().
		Model(&patients).
		Where("nom <> ?", AnonymizedName).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("last_accessed_at IS NOT NULL AND last_accessed_at < ?", cutoff).
				WhereOr("last_accessed_at IS NULL AND created_at < ?", cutoff)
		}).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list anonymization candidates: %w", err)
	}
	return patients, nil
}

// Anonymize scrubs identifying fields and appends entry atomically.
func (r *BunRetentionRepository) Anonymize(ctx context.Context, patientID int64, entry *models.AuditLog) (bool, error) {
	var done bool
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Patient)(nil)).
			Set("nom = ?", AnonymizedName).
			Set("prenoms = ?", fmt.Sprintf("PATIENT_%d", patientID)).
			Set("telephone = ''").
			Set("adresse = ''").
			Set("antecedents = ''").
			Set("date_naissance = NULL").
			Set("last_accessed_at = NULL").
			Set("updated_at = ?", nowUTC()).
			Where("id = ?", patientID).
			Where("nom <> ?", AnonymizedName).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("anonymize patient %d: %w", patientID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("anonymize patient %d: %w", patientID, err)
		}
		if n == 0 {
			return nil
		}
		if err := NewBunAuditRepository(tx).Append(ctx, entry); err != nil {
			return err
		}
		done = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return done, nil
}

// PurgeOlderThan deletes or counts rows created before cutoff.
func (r *BunRetentionRepository) PurgeOlderThan(ctx context.Context, table PurgeTable, cutoff time.Time, dryRun bool) (int64, error) {
	model, err := table.model()
	if err != nil {
		return 0, err
	}
	cutoff = cutoff.UTC()

	if dryRun {
		n, err := r.db.NewSelect().Model(model).Where("created_at < ?", cutoff).Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		return int64(n), nil
	}

	res, err := r.db.NewDelete().Model(model).Where("created_at < ?", cutoff).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", table, err)
	}
	return n, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/bunx"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
)

// DefaultAuditPageSize applies when AuditQuery.Limit is zero.
const DefaultAuditPageSize = 50

// BunAuditRepository implements AuditRepository using Bun ORM
type BunAuditRepository struct {
	db bun.IDB
}

// NewBunAuditRepository creates a new Bun-based audit repository
func NewBunAuditRepository(db bun.IDB) *BunAuditRepository {
	return &BunAuditRepository{db: db}
}

// Append inserts one entry, assigning its id and timestamp when unset.
func (r *BunAuditRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = bunx.NewULID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = nowUTC()
	}
	if entry.Extra == nil {
		entry.Extra = map[string]any{}
	}
	if _, err := r.db.NewInsert().Model(entry).Returning("NULL").Exec(ctx); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (r *BunAuditRepository) List(ctx context.Context, q AuditQuery) ([]models.AuditLog, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultAuditPageSize
	}

	var entries []models.AuditLog
	query := r.db.NewSelect().
		Model(&entries).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Offset(q.Offset)
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	if q.Action != "" {
		query = query.Where("action = ?", q.Action)
	}
	if !q.Since.IsZero() {
		query = query.Where("created_at >= ?", q.Since.UTC())
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}

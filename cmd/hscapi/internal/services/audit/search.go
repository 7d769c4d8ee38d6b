package audit

import (
	"context"
	"time"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
)

// scanPageSize is how many rows Search pulls per round when a filter
// expression has to be evaluated in memory.
const scanPageSize = 500

// Query selects audit entries. The column filters go to the database;
// Filter is a go-bexpr expression evaluated per row over the fields
// id, user_id, username, action, app_label, model, object_id,
// object_repr, ip_address, user_agent, created_at and extra.
type Query struct {
	UserID string
	Action string
	Since  time.Time
	Filter string
	Limit  int
	Offset int
}

// Search returns entries newest first.
func (r *Recorder) Search(ctx context.Context, q Query) ([]models.AuditLog, error) {
	evaluator, err := auth.CompileFilter(q.Filter)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = repository.DefaultAuditPageSize
	}
	base := repository.AuditQuery{UserID: q.UserID, Action: q.Action, Since: q.Since}

	if evaluator == nil {
		base.Limit, base.Offset = limit, q.Offset
		return r.repo.List(ctx, base)
	}

	out := make([]models.AuditLog, 0, limit)
	skipped := 0
	for offset := 0; ; offset += scanPageSize {
		base.Limit, base.Offset = scanPageSize, offset
		page, err := r.repo.List(ctx, base)
		if err != nil {
			return nil, err
		}
		for _, row := range page {
			if !auth.MatchFilter(evaluator, fields(row)) {
				continue
			}
			if skipped < q.Offset {
				skipped++
				continue
			}
			out = append(out, row)
			if len(out) == limit {
				return out, nil
			}
		}
		if len(page) < scanPageSize {
			return out, nil
		}
	}
}

func fields(row models.AuditLog) map[string]any {
	userID := ""
	if row.UserID != nil {
		userID = *row.UserID
	}
	extra := row.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	return map[string]any{
		"id":          row.ID,
		"user_id":     userID,
		"username":    row.Username,
		"action":      row.Action,
		"app_label":   row.AppLabel,
		"model":       row.Model,
		"object_id":   row.ObjectID,
		"object_repr": row.ObjectRepr,
		"ip_address":  row.IPAddress,
		"user_agent":  row.UserAgent,
		"created_at":  row.CreatedAt.UTC().Format(time.RFC3339),
		"extra":       extra,
	}
}

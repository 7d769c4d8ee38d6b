package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
)

// PurgeWindows are retention windows in days. Zero skips the table.
type PurgeWindows struct {
	NotificationsDays int
	SMSDays           int
	AuditDays         int
	// IncludeAudit must be set for audit logs to be purged at all.
	IncludeAudit bool
}

// DefaultPurgeWindows are 90 days of notifications, 180 of SMS logs and
// 365 of audit logs.
func DefaultPurgeWindows() PurgeWindows {
	return PurgeWindows{NotificationsDays: 90, SMSDays: 180, AuditDays: 365}
}

// PurgeCount is the outcome for one table.
type PurgeCount struct {
	Table  repository.PurgeTable
	Cutoff time.Time
	Rows   int64
}

// Purger deletes expired notifications, SMS logs and audit logs.
type Purger struct {
	repo   repository.RetentionRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewPurger(repo repository.RetentionRepository, logger zerolog.Logger) *Purger {
	return &Purger{
		repo:   repo,
		logger: logger.With().Str("component", "rgpd").Logger(),
		now:    time.Now,
	}
}

// Run purges each enabled table in turn. With dryRun it only counts.
func (p *Purger) Run(ctx context.Context, w PurgeWindows, dryRun bool) ([]PurgeCount, error) {
	plan := []struct {
		table repository.PurgeTable
		days  int
	}{
		{repository.PurgeNotifications, w.NotificationsDays},
		{repository.PurgeSMSLogs, w.SMSDays},
	}
	if w.IncludeAudit {
		plan = append(plan, struct {
			table repository.PurgeTable
			days  int
		}{repository.PurgeAuditLogs, w.AuditDays})
	}

	now := p.now().UTC()
	var out []PurgeCount
	for _, step := range plan {
		if step.days <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -step.days)
		n, err := p.repo.PurgeOlderThan(ctx, step.table, cutoff, dryRun)
		if err != nil {
			return out, err
		}
		p.logger.Info().
			Str("table", string(step.table)).
			Time("cutoff", cutoff).
			Int64("rows", n).
			Bool("dry_run", dryRun).
			Msg("retention purge")
		out = append(out, PurgeCount{Table: step.table, Cutoff: cutoff, Rows: n})
	}
	return out, nil
}

// Package retention implements the RGPD anonymization and purge jobs.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/audit"
)

// CleanupUserAgent tags audit rows written by the retention jobs.
const CleanupUserAgent = "rgpd_cleanup"

// AnonymizeResult summarizes one anonymization run.
type AnonymizeResult struct {
	Cutoff     time.Time
	Candidates int
	Anonymized int
	DryRun     bool
}

// Anonymizer scrubs patients who have not been accessed for a number of years.
type Anonymizer struct {
	repo   repository.RetentionRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewAnonymizer(repo repository.RetentionRepository, logger zerolog.Logger) *Anonymizer {
	return &Anonymizer{
		repo:   repo,
		logger: logger.With().Str("component", "rgpd").Logger(),
		now:    time.Now,
	}
}

// Cutoff is now minus years, in UTC.
func (a *Anonymizer) Cutoff(years int) time.Time {
	return a.now().UTC().AddDate(-years, 0, 0)
}

// Run anonymizes every candidate older than the cutoff. Each patient is
// scrubbed in its own transaction; a failure stops the run and reports
// what was done so far.
func (a *Anonymizer) Run(ctx context.Context, years int, dryRun bool) (AnonymizeResult, error) {
	if years <= 0 {
		return AnonymizeResult{}, fmt.Errorf("years must be positive, got %d", years)
	}
	cutoff := a.Cutoff(years)
	result := AnonymizeResult{Cutoff: cutoff, DryRun: dryRun}

	candidates, err := a.repo.AnonymizationCandidates(ctx, cutoff)
	if err != nil {
		return result, err
	}
	result.Candidates = len(candidates)
	if dryRun {
		a.logger.Info().
			Time("cutoff", cutoff).
			Int("candidates", result.Candidates).
			Msg("dry run, no patient anonymized")
		return result, nil
	}

	for _, p := range candidates {
		done, err := a.repo.Anonymize(ctx, p.ID, anonymizationEntry(p, cutoff))
		if err != nil {
			return result, err
		}
		if done {
			result.Anonymized++
		}
	}

	a.logger.Info().
		Time("cutoff", cutoff).
		Int("candidates", result.Candidates).
		Int("anonymized", result.Anonymized).
		Msg("patients anonymized")
	return result, nil
}

func anonymizationEntry(p models.Patient, cutoff time.Time) *models.AuditLog {
	return &models.AuditLog{
		Action:     string(audit.ActionUpdate),
		AppLabel:   "patients",
		Model:      "patient",
		ObjectID:   fmt.Sprint(p.ID),
		ObjectRepr: fmt.Sprintf("PATIENT_%d", p.ID),
		UserAgent:  CleanupUserAgent,
		Extra: map[string]any{
			"anonymized":            true,
			"previous_code_patient": p.CodePatient,
			"source":                CleanupUserAgent,
			"cutoff":                cutoff.Format(time.RFC3339),
		},
	}
}

// Package cpn scores prenatal follow-ups (consultations prénatales).
package cpn

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
)

// Level is a pregnancy risk level.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Score adds up risk points for a pregnancy and its latest visit. The
// patient's age is taken at now.
func Score(p models.Pregnancy, visit *models.CPNVisit, now time.Time) int {
	score := 0
	if p.HasDiabetes {
		score += 2
	}
	if p.HasHypertension {
		score += 2
	}
	if p.HasAnemia {
		score++
	}

	if visit != nil {
		if atLeast(visit.SystolicBP, 140) || atLeast(visit.DiastolicBP, 90) {
			score += 2
		}
		if visit.Hemoglobin != nil && *visit.Hemoglobin < 11 {
			score++
		}
		if visit.ProteinUrine {
			score++
		}
		if strings.Contains(strings.ToLower(visit.HIVResult), "positif") {
			score += 2
		}
	}

	if p.Patient != nil && p.Patient.DateNaissance != nil {
		age := ageAt(*p.Patient.DateNaissance, now)
		if age < 18 || age > 35 {
			score++
		}
	}
	return score
}

// LevelFor maps a score to a level: 4 and above is HIGH, 2 and above MEDIUM.
func LevelFor(score int) Level {
	switch {
	case score >= 4:
		return LevelHigh
	case score >= 2:
		return LevelMedium
	default:
		return LevelLow
	}
}

func atLeast(v *int, threshold int) bool {
	return v != nil && *v >= threshold
}

func ageAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// UpdateResult counts what UpdateAll did.
type UpdateResult struct {
	Scanned int
	Skipped int
	Updated int
}

// Updater recomputes stored risk levels.
type Updater struct {
	repo   repository.CPNRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewUpdater(repo repository.CPNRepository, logger zerolog.Logger) *Updater {
	return &Updater{
		repo:   repo,
		logger: logger.With().Str("component", "cpn").Logger(),
		now:    time.Now,
	}
}

// UpdateAll rescores every pregnancy that has at least one visit and
// writes the level only when it changed.
func (u *Updater) UpdateAll(ctx context.Context) (UpdateResult, error) {
	var result UpdateResult
	rows, err := u.repo.PregnanciesWithLatestVisit(ctx)
	if err != nil {
		return result, err
	}
	now := u.now()
	for _, row := range rows {
		result.Scanned++
		if row.LatestVisit == nil {
			result.Skipped++
			continue
		}
		level := LevelFor(Score(row.Pregnancy, row.LatestVisit, now))
		if string(level) == row.Pregnancy.RiskLevel {
			continue
		}
		if err := u.repo.UpdateRiskLevel(ctx, row.Pregnancy.ID, string(level)); err != nil {
			return result, err
		}
		u.logger.Debug().
			Int64("pregnancy_id", row.Pregnancy.ID).
			Str("from", row.Pregnancy.RiskLevel).
			Str("to", string(level)).
			Msg("risk level changed")
		result.Updated++
	}
	u.logger.Info().
		Int("scanned", result.Scanned).
		Int("skipped", result.Skipped).
		Int("updated", result.Updated).
		Msg("cpn risk levels updated")
	return result, nil
}

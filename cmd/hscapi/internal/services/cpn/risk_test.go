package cpn

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/dbtest"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
)

var now = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func born(year int) *time.Time {
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func patientBorn(year int) *models.Patient {
	return &models.Patient{DateNaissance: born(year)}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		pregnancy models.Pregnancy
		visit     *models.CPNVisit
		want      int
		level     Level
	}{
		{
			name:      "no factors",
			pregnancy: models.Pregnancy{Patient: patientBorn(2000)},
			visit:     &models.CPNVisit{SystolicBP: intPtr(120), DiastolicBP: intPtr(80), Hemoglobin: floatPtr(12.5)},
			want:      0,
			level:     LevelLow,
		},
		{
			name:      "anemia only",
			pregnancy: models.Pregnancy{HasAnemia: true},
			want:      1,
			level:     LevelLow,
		},
		{
			name:      "diabetes",
			pregnancy: models.Pregnancy{HasDiabetes: true},
			want:      2,
			level:     LevelMedium,
		},
		{
			name:      "diastolic alone counts as high blood pressure",
			pregnancy: models.Pregnancy{},
			visit:     &models.CPNVisit{SystolicBP: intPtr(130), DiastolicBP: intPtr(90)},
			want:      2,
			level:     LevelMedium,
		},
		{
			name:      "low hemoglobin and protein",
			pregnancy: models.Pregnancy{},
			visit:     &models.CPNVisit{Hemoglobin: floatPtr(10.2), ProteinUrine: true},
			want:      2,
			level:     LevelMedium,
		},
		{
			name:      "hiv positive is case insensitive",
			pregnancy: models.Pregnancy{HasAnemia: true},
			visit:     &models.CPNVisit{HIVResult: "POSITIF"},
			want:      3,
			level:     LevelMedium,
		},
		{
			name:      "teenage mother with hypertension",
			pregnancy: models.Pregnancy{HasHypertension: true, Patient: patientBorn(2010)},
			visit:     &models.CPNVisit{SystolicBP: intPtr(145)},
			want:      5,
			level:     LevelHigh,
		},
		{
			name:      "over 35",
			pregnancy: models.Pregnancy{HasDiabetes: true, HasAnemia: true, Patient: patientBorn(1985)},
			want:      4,
			level:     LevelHigh,
		},
		{
			name:      "unknown birth date adds nothing",
			pregnancy: models.Pregnancy{Patient: &models.Patient{}},
			visit:     &models.CPNVisit{HIVResult: "negatif"},
			want:      0,
			level:     LevelLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.pregnancy, tt.visit, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.level, LevelFor(got))
		})
	}
}

func TestAgeAt(t *testing.T) {
	birth := time.Date(2008, 9, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 17, ageAt(birth, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 18, ageAt(birth, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)))
}

func TestUpdater_UpdateAll(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	cpnRepo := repository.NewBunCPNRepository(db)
	patients := repository.NewBunPatientRepository(db)

	mother := &models.Patient{CodePatient: "P-200", Nom: "DIALLO", Prenoms: "Fanta", DateNaissance: born(1995)}
	require.NoError(t, patients.Create(ctx, mother))

	risky := &models.Pregnancy{PatientID: mother.ID, HasHypertension: true, RiskLevel: string(LevelLow)}
	unchanged := &models.Pregnancy{PatientID: mother.ID, RiskLevel: string(LevelLow)}
	noVisit := &models.Pregnancy{PatientID: mother.ID, HasDiabetes: true, HasAnemia: true, RiskLevel: string(LevelLow)}
	for _, p := range []*models.Pregnancy{risky, unchanged, noVisit} {
		require.NoError(t, cpnRepo.CreatePregnancy(ctx, p))
	}
	require.NoError(t, cpnRepo.AddVisit(ctx, &models.CPNVisit{PregnancyID: risky.ID, VisitDate: now.AddDate(0, -1, 0), SystolicBP: intPtr(150)}))
	require.NoError(t, cpnRepo.AddVisit(ctx, &models.CPNVisit{PregnancyID: unchanged.ID, VisitDate: now, Hemoglobin: floatPtr(12)}))

	updater := NewUpdater(cpnRepo, zerolog.Nop())
	updater.now = func() time.Time { return now }

	res, err := updater.UpdateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, UpdateResult{Scanned: 3, Skipped: 1, Updated: 1}, res)

	rows, err := cpnRepo.PregnanciesWithLatestVisit(ctx)
	require.NoError(t, err)
	levels := map[int64]string{}
	for _, r := range rows {
		levels[r.Pregnancy.ID] = r.Pregnancy.RiskLevel
	}
	assert.Equal(t, string(LevelHigh), levels[risky.ID])
	assert.Equal(t, string(LevelLow), levels[unchanged.ID])
	assert.Equal(t, string(LevelLow), levels[noVisit.ID])

	again, err := updater.UpdateAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Updated)
}

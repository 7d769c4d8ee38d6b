package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Patient is a registry entry. LastAccessedAt drives RGPD anonymization.
type Patient struct {
	bun.BaseModel `bun:"table:patients,alias:p"`

	ID             int64      `bun:"id,pk,autoincrement" json:"id"`
	CodePatient    string     `bun:"code_patient,notnull,unique" json:"code_patient"`
	Nom            string     `bun:"nom,notnull" json:"nom"`
	Prenoms        string     `bun:"prenoms,notnull" json:"prenoms"`
	DateNaissance  *time.Time `bun:"date_naissance" json:"date_naissance,omitempty"`
	Sexe           string     `bun:"sexe" json:"sexe"`
	Telephone      string     `bun:"telephone" json:"telephone"`
	Adresse        string     `bun:"adresse" json:"adresse"`
	Zone           string     `bun:"zone" json:"zone"`
	Antecedents    string     `bun:"antecedents" json:"antecedents"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	LastAccessedAt *time.Time `bun:"last_accessed_at" json:"last_accessed_at,omitempty"`
}

// FullName returns "NOM Prenoms" as displayed in audit entries.
func (p *Patient) FullName() string {
	if p.Prenoms == "" {
		return p.Nom
	}
	return p.Nom + " " + p.Prenoms
}

// Pregnancy is a prenatal follow-up (suivi CPN).
type Pregnancy struct {
	bun.BaseModel `bun:"table:pregnancies,alias:preg"`

	ID              int64     `bun:"id,pk,autoincrement"`
	PatientID       int64     `bun:"patient_id,notnull"`
	Patient         *Patient  `bun:"rel:belongs-to,join:patient_id=id"`
	HasDiabetes     bool      `bun:"has_diabetes,notnull,default:false"`
	HasHypertension bool      `bun:"has_hypertension,notnull,default:false"`
	HasAnemia       bool      `bun:"has_anemia,notnull,default:false"`
	RiskLevel       string    `bun:"risk_level,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
}

// CPNVisit is one prenatal consultation with its measurements.
type CPNVisit struct {
	bun.BaseModel `bun:"table:cpn_visits,alias:cv"`

	ID           int64     `bun:"id,pk,autoincrement"`
	PregnancyID  int64     `bun:"pregnancy_id,notnull"`
	VisitDate    time.Time `bun:"visit_date,notnull"`
	SystolicBP   *int      `bun:"systolic_bp"`
	DiastolicBP  *int      `bun:"diastolic_bp"`
	Hemoglobin   *float64  `bun:"hemoglobin"`
	ProteinUrine bool      `bun:"protein_urine,notnull,default:false"`
	HIVResult    string    `bun:"hiv_result"`
}

// Pathology is a community-tracked condition (VIH, TB...).
type Pathology struct {
	bun.BaseModel `bun:"table:pathologies,alias:path"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Code  string `bun:"code,notnull,unique"`
	Label string `bun:"label,notnull"`
}

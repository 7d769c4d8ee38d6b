package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/audit"
)

// CreatePatientRequest is the body of POST /api/patients.
type CreatePatientRequest struct {
	CodePatient   string     `json:"code_patient"`
	Nom           string     `json:"nom"`
	Prenoms       string     `json:"prenoms"`
	DateNaissance *time.Time `json:"date_naissance,omitempty"`
	Sexe          string     `json:"sexe"`
	Telephone     string     `json:"telephone"`
	Adresse       string     `json:"adresse"`
	Zone          string     `json:"zone"`
}

// HandleListPatients handles GET /api/patients?limit=&offset=.
func HandleListPatients(patients repository.PatientRepository, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intParam(r.URL.Query().Get("limit"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		offset, err := intParam(r.URL.Query().Get("offset"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		list, err := patients.List(r.Context(), limit, offset)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if list == nil {
			list = []models.Patient{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// HandleGetPatient handles GET /api/patients/{id}. The last-access stamp
// is updated by the audit middleware.
func HandleGetPatient(patients repository.PatientRepository, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			writeServiceError(w, logger, ErrInvalidID)
			return
		}
		patient, err := patients.GetByID(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, patient)
	}
}

// HandleCreatePatient handles POST /api/patients.
func HandleCreatePatient(patients repository.PatientRepository, recorder auditRecorder, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePatientRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if req.CodePatient == "" || req.Nom == "" {
			writeError(w, http.StatusBadRequest, "code_patient and nom are required")
			return
		}

		patient := &models.Patient{
			CodePatient:   req.CodePatient,
			Nom:           req.Nom,
			Prenoms:       req.Prenoms,
			DateNaissance: req.DateNaissance,
			Sexe:          req.Sexe,
			Telephone:     req.Telephone,
			Adresse:       req.Adresse,
			Zone:          req.Zone,
		}
		if err := patients.Create(r.Context(), patient); err != nil {
			writeServiceError(w, logger, err)
			return
		}

		entry := audit.FromRequest(r, auth.PrincipalFromContext(r.Context()), audit.ActionCreate)
		entry.AppLabel = "patients"
		entry.Model = "patient"
		entry.ObjectID = strconv.FormatInt(patient.ID, 10)
		entry.ObjectRepr = patient.FullName()
		recordAudit(r.Context(), recorder, logger, entry)

		writeJSON(w, http.StatusCreated, patient)
	}
}

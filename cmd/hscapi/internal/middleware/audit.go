package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/audit"
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// AuditRecorderFunc adapts a function to AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry audit.Entry) error

func (f AuditRecorderFunc) Record(ctx context.Context, entry audit.Entry) error {
	return f(ctx, entry)
}

// PatientAccessToucher records when a patient file was opened.
type PatientAccessToucher interface {
	TouchLastAccess(ctx context.Context, id int64, at time.Time) error
}

// AuditDependencies groups the audit middleware collaborators. Patients
// may be nil.
type AuditDependencies struct {
	Recorder AuditRecorder
	Patients PatientAccessToucher
	Logger   zerolog.Logger
}

var auditSkipPrefixes = []string{"/static/", "/healthz", "/metrics"}

const patientPathPrefix = "/api/patients/"

// NewAuditMiddleware writes an ACCESS entry for every authenticated
// request once the handler has responded. Recorder failures are logged
// and never alter the response.
func NewAuditMiddleware(deps AuditDependencies) func(http.Handler) http.Handler {
	logger := deps.Logger.With().Str("component", "audit").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			if skipAudit(r.URL.Path) {
				return
			}
			principal := auth.PrincipalFromContext(r.Context())
			if !principal.Authenticated() {
				return
			}

			// The client is already answered; a cancelled request must
			// not lose its audit row.
			ctx := context.WithoutCancel(r.Context())

			entry := audit.FromRequest(r, principal, audit.ActionAccess)
			entry.Extra = map[string]any{
				"path":        r.URL.Path,
				"method":      r.Method,
				"status_code": rec.status,
			}

			patientID, isPatient := patientIDFromPath(r.URL.Path)
			if isPatient {
				entry.AppLabel = "patients"
				entry.Model = "patient"
				entry.ObjectID = strconv.FormatInt(patientID, 10)
			}

			if err := deps.Recorder.Record(ctx, entry); err != nil {
				logger.Error().Err(err).
					Str("user_id", principal.UserID).
					Str("path", r.URL.Path).
					Msg("failed to record access")
			}

			if isPatient && deps.Patients != nil && rec.status < http.StatusBadRequest {
				if err := deps.Patients.TouchLastAccess(ctx, patientID, time.Now()); err != nil {
					logger.Warn().Err(err).Int64("patient_id", patientID).Msg("touch patient last access")
				}
			}
		})
	}
}

func skipAudit(path string) bool {
	for _, prefix := range auditSkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// patientIDFromPath matches /api/patients/{id} and /api/patients/{id}/...
func patientIDFromPath(path string) (int64, bool) {
	rest, ok := strings.CutPrefix(path, patientPathPrefix)
	if !ok {
		return 0, false
	}
	segment, _, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(segment, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/audit"
)

type auditSearcher interface {
	Search(ctx context.Context, q audit.Query) ([]models.AuditLog, error)
}

// AuditEntryResponse is one audit row.
type AuditEntryResponse struct {
	ID         string         `json:"id"`
	UserID     *string        `json:"user_id"`
	Username   string         `json:"username"`
	Action     string         `json:"action"`
	AppLabel   string         `json:"app_label,omitempty"`
	Model      string         `json:"model,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	ObjectRepr string         `json:"object_repr,omitempty"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	Extra      map[string]any `json:"extra"`
	CreatedAt  time.Time      `json:"created_at"`
}

// HandleListAudit handles GET /api/audit. Query parameters: user_id,
// action, since (RFC 3339), filter (go-bexpr), limit, offset.
func HandleListAudit(searcher auditSearcher, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseAuditQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		rows, err := searcher.Search(r.Context(), q)
		if err != nil {
			if q.Filter != "" {
				// Most likely a malformed expression.
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeServiceError(w, logger, err)
			return
		}

		out := make([]AuditEntryResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, AuditEntryResponse{
				ID:         row.ID,
				UserID:     row.UserID,
				Username:   row.Username,
				Action:     row.Action,
				AppLabel:   row.AppLabel,
				Model:      row.Model,
				ObjectID:   row.ObjectID,
				ObjectRepr: row.ObjectRepr,
				IPAddress:  row.IPAddress,
				UserAgent:  row.UserAgent,
				Extra:      row.Extra,
				CreatedAt:  row.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func parseAuditQuery(r *http.Request) (audit.Query, error) {
	values := r.URL.Query()
	q := audit.Query{
		UserID: values.Get("user_id"),
		Action: values.Get("action"),
		Filter: values.Get("filter"),
	}
	if s := values.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.Since = since
	}
	var err error
	if q.Limit, err = intParam(values.Get("limit")); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(values.Get("offset")); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, ErrInvalidQuery
	}
	return n, nil
}

// Package audit writes and searches the append-only audit trail.
package audit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/telemetry"
)

// Action is the kind of audited event.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionExport Action = "EXPORT"
	ActionLogin  Action = "LOGIN"
	ActionLogout Action = "LOGOUT"
	ActionAccess Action = "ACCESS"
)

// MaxUserAgentLength is the stored user agent limit.
const MaxUserAgentLength = 255

// Entry is one event to record. UserID may be empty for system actions.
type Entry struct {
	UserID     string
	Username   string
	Action     Action
	AppLabel   string
	Model      string
	ObjectID   string
	ObjectRepr string
	IPAddress  string
	UserAgent  string
	Extra      map[string]any
}

// Recorder appends audit entries and serves searches over them.
type Recorder struct {
	repo    repository.AuditRepository
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewRecorder(repo repository.AuditRepository, metrics *telemetry.Metrics, logger zerolog.Logger) *Recorder {
	return &Recorder{
		repo:    repo,
		metrics: metrics,
		logger:  logger.With().Str("component", "audit").Logger(),
		now:     time.Now,
	}
}

// Record appends one entry. Entries are never updated afterwards.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if e.Action == "" {
		return fmt.Errorf("audit entry requires an action")
	}
	row := &models.AuditLog{
		Username:   e.Username,
		Action:     string(e.Action),
		AppLabel:   e.AppLabel,
		Model:      e.Model,
		ObjectID:   e.ObjectID,
		ObjectRepr: e.ObjectRepr,
		IPAddress:  e.IPAddress,
		UserAgent:  TruncateUserAgent(e.UserAgent),
		Extra:      e.Extra,
		CreatedAt:  r.now().UTC(),
	}
	if e.UserID != "" {
		id := e.UserID
		row.UserID = &id
	}
	if err := r.repo.Append(ctx, row); err != nil {
		r.metrics.ObserveAuditWriteError()
		return err
	}
	return nil
}

// FromRequest fills the request-derived fields of an entry.
func FromRequest(req *http.Request, principal *auth.AuthenticatedPrincipal, action Action) Entry {
	e := Entry{
		Action:    action,
		IPAddress: ClientIP(req),
		UserAgent: req.UserAgent(),
	}
	if principal.Authenticated() {
		e.UserID = principal.UserID
		e.Username = principal.Username
	}
	return e
}

// ClientIP returns the first X-Forwarded-For address, or the host part of
// RemoteAddr.
func ClientIP(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// TruncateUserAgent cuts ua to MaxUserAgentLength bytes without splitting
// a UTF-8 sequence.
func TruncateUserAgent(ua string) string {
	if len(ua) <= MaxUserAgentLength {
		return ua
	}
	cut := MaxUserAgentLength
	for cut > 0 && !isRuneStart(ua[cut]) {
		cut--
	}
	return ua[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

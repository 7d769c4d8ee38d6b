package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/dbtest"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/telemetry"
)

var ok200 = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func newTestAuthz(t *testing.T, metrics *telemetry.Metrics) *Authz {
	t.Helper()
	enforcer, err := auth.InitEnforcer(dbtest.New(t))
	require.NoError(t, err)
	_, err = enforcer.AddPolicy(auth.RoleID(string(auth.RoleMedecin)), string(auth.ResourcePatient), string(auth.ActionRead))
	require.NoError(t, err)

	authz, err := NewAuthz(AuthzDependencies{
		Guard:    iam.NewGuard(),
		Enforcer: enforcer,
		Metrics:  metrics,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return authz
}

func serveAs(h http.Handler, p *auth.AuthenticatedPrincipal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/roles", nil)
	if p != nil {
		req = req.WithContext(auth.SetUserContext(req.Context(), *p))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewAuthz_RequiresDependencies(t *testing.T) {
	_, err := NewAuthz(AuthzDependencies{})
	assert.Error(t, err)
	_, err = NewAuthz(AuthzDependencies{Guard: iam.NewGuard()})
	assert.Error(t, err)
}

func TestRequireRole(t *testing.T) {
	metrics := telemetry.NewMetrics()
	authz := newTestAuthz(t, metrics)
	handler := authz.RequireRole(auth.RoleAdmin)(ok200)

	tests := []struct {
		name      string
		principal *auth.AuthenticatedPrincipal
		want      int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"admin group", &auth.AuthenticatedPrincipal{UserID: "a", Role: auth.RoleAdmin, Groups: []string{"ADMIN"}}, http.StatusOK},
		{"admin attribute only", &auth.AuthenticatedPrincipal{UserID: "b", Role: auth.RoleAdmin}, http.StatusOK},
		{"superuser", &auth.AuthenticatedPrincipal{UserID: "c", IsSuperuser: true}, http.StatusOK},
		{"doctor", &auth.AuthenticatedPrincipal{UserID: "d", Role: auth.RoleMedecin, Groups: []string{"MEDECIN"}}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveAs(handler, tt.principal)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				var body errorBody
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, msgInsufficientPerms, body.Error)
			}
		})
	}

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	assert.Contains(t, body, `hsc_access_decisions_total{decision="allow",reason="role attribute"} 1`)
	assert.Contains(t, body, `hsc_access_decisions_total{decision="allow",reason="superuser"} 1`)
	assert.Contains(t, body, `hsc_access_decisions_total{decision="deny",reason="insufficient role"} 1`)
	assert.Contains(t, body, `hsc_access_decisions_total{decision="deny",reason="unauthenticated"} 1`)
}

func TestRequirePermission(t *testing.T) {
	authz := newTestAuthz(t, nil)
	read := authz.RequirePermission(auth.ResourcePatient, auth.ActionRead)(ok200)
	del := authz.RequirePermission(auth.ResourcePatient, auth.ActionDelete)(ok200)

	doctor := &auth.AuthenticatedPrincipal{UserID: "d", Role: auth.RoleMedecin, Groups: []string{"MEDECIN"}}
	// The role attribute alone does not carry grants.
	ungrouped := &auth.AuthenticatedPrincipal{UserID: "e", Role: auth.RoleMedecin}
	root := &auth.AuthenticatedPrincipal{UserID: "r", IsSuperuser: true}

	assert.Equal(t, http.StatusUnauthorized, serveAs(read, nil).Code)
	assert.Equal(t, http.StatusOK, serveAs(read, doctor).Code)
	assert.Equal(t, http.StatusForbidden, serveAs(read, ungrouped).Code)
	assert.Equal(t, http.StatusForbidden, serveAs(del, doctor).Code)
	assert.Equal(t, http.StatusOK, serveAs(del, root).Code)
}

func TestRequireAuthenticated(t *testing.T) {
	authz := newTestAuthz(t, nil)
	handler := authz.RequireAuthenticated()(ok200)

	assert.Equal(t, http.StatusUnauthorized, serveAs(handler, nil).Code)
	assert.Equal(t, http.StatusOK, serveAs(handler, &auth.AuthenticatedPrincipal{UserID: "p", Role: auth.RolePatient}).Code)
}

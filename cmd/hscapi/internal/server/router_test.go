package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/dbtest"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
	hscmiddleware "github.com/horizonsante/hsc/cmd/hscapi/internal/middleware"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/audit"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/telemetry"
)

const testSecret = "router-test-secret-router-test-secret"

type testEnv struct {
	t       *testing.T
	db      *bun.DB
	handler http.Handler
	prov    *iam.Provisioner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()
	db := dbtest.New(t)

	enforcer, err := auth.InitEnforcer(db)
	require.NoError(t, err)

	catalog := repository.NewBunResourceCatalog(db)
	sync := iam.NewSynchronizer(iam.SynchronizerDeps{
		Store:    repository.NewBunPermissionStore(db),
		Catalog:  catalog,
		Reloader: enforcer,
		Logger:   logger,
	})
	boot := iam.NewBootstrap(catalog, sync, logger)
	require.NoError(t, boot.RegisterAll(ctx, iam.DefaultComponents()...))
	_, err = boot.Finalize(ctx)
	require.NoError(t, err)

	users := repository.NewBunUserRepository(db)
	members := repository.NewBunMembershipStore(db)
	assigner := iam.NewAssigner(iam.AssignerDeps{Members: members, Reloader: enforcer, Logger: logger})
	prov := iam.NewProvisioner(users, assigner, logger)
	authenticator := iam.NewAuthenticator(iam.AuthenticatorDeps{
		Users:   users,
		Members: members,
		Revoked: repository.NewBunRevokedTokenRepository(db),
		Tokens:  auth.NewTokenIssuer(testSecret, "hscapi", "http://test", time.Hour),
		Logger:  logger,
	})

	router, err := NewRouter(RouterOptions{
		Authenticator: authenticator,
		Assigner:      assigner,
		Synchronizer:  sync,
		Provisioner:   prov,
		Enforcer:      enforcer,
		Audit:         audit.NewRecorder(repository.NewBunAuditRepository(db), nil, logger),
		Patients:      repository.NewBunPatientRepository(db),
		LoginLimiter:  hscmiddleware.NewIPRateLimiter(100, 100),
		Metrics:       telemetry.NewMetrics(),
		Logger:        logger,
	})
	require.NoError(t, err)

	return &testEnv{t: t, db: db, handler: router, prov: prov}
}

func (e *testEnv) user(username string, role auth.Role) *models.User {
	e.t.Helper()
	res, err := e.prov.EnsureUser(context.Background(), iam.NewUser{Username: username, Password: "password-" + username, Role: role})
	require.NoError(e.t, err)
	return res.User
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(username string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/auth/login", "", LoginRequest{Username: username, Password: "password-" + username})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(e.t, "Bearer", resp.TokenType)
	return resp.AccessToken
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "", nil).Code)
	metrics := env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "http_requests_total")
}

func TestRouter_LoginWhoAmILogout(t *testing.T) {
	env := newTestEnv(t)
	doctor := env.user("dr.kone", auth.RoleMedecin)

	bad := env.do(http.MethodPost, "/auth/login", "", LoginRequest{Username: "dr.kone", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	token := env.login("dr.kone")

	rec := env.do(http.MethodGet, "/auth/whoami", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me WhoAmIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, doctor.ID, me.ID)
	assert.Equal(t, auth.RoleMedecin, me.Role)
	assert.Equal(t, []string{"MEDECIN"}, me.Groups)
	assert.Contains(t, me.Permissions, "read_patient")
	assert.NotContains(t, me.Permissions, "delete_patient")

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodPost, "/auth/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/auth/whoami", token, nil).Code)

	entries, err := repository.NewBunAuditRepository(env.db).List(context.Background(), repository.AuditQuery{UserID: doctor.ID})
	require.NoError(t, err)
	actions := map[string]int{}
	for _, e := range entries {
		actions[e.Action]++
	}
	assert.Equal(t, 1, actions["LOGIN"])
	assert.Equal(t, 1, actions["LOGOUT"])
	// whoami and logout are both recorded as accesses.
	assert.Equal(t, 2, actions["ACCESS"])
}

func TestRouter_AdminGuard(t *testing.T) {
	env := newTestEnv(t)
	env.user("admin", auth.RoleAdmin)
	env.user("dr.kone", auth.RoleMedecin)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/admin/roles", "", nil).Code)

	doctorToken := env.login("dr.kone")
	forbidden := env.do(http.MethodGet, "/api/admin/roles", doctorToken, nil)
	assert.Equal(t, http.StatusForbidden, forbidden.Code)
	assert.JSONEq(t, `{"error":"insufficient permissions"}`, forbidden.Body.String())

	adminToken := env.login("admin")
	rec := env.do(http.MethodGet, "/api/admin/roles", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var roles []RoleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roles))
	require.Len(t, roles, len(auth.Definitions()))
	for _, role := range roles {
		assert.ElementsMatch(t, role.Expected, role.Current, role.Code)
	}

	sync := env.do(http.MethodPost, "/api/admin/iam/sync", adminToken, nil)
	require.Equal(t, http.StatusOK, sync.Code)
	var report SyncResponse
	require.NoError(t, json.Unmarshal(sync.Body.Bytes(), &report))
	assert.False(t, report.Changed)
	assert.Empty(t, report.Skipped)
}

func TestRouter_RoleChangeAppliesToNextRequest(t *testing.T) {
	env := newTestEnv(t)
	env.user("admin", auth.RoleAdmin)
	midwife := env.user("awa", auth.RoleSageFemme)
	adminToken := env.login("admin")
	token := env.login("awa")

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/admin/roles", token, nil).Code)

	rec := env.do(http.MethodPut, "/api/admin/users/"+midwife.ID+"/role", adminToken, SetRoleRequest{Role: "admin"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var changed UserRoleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changed))
	assert.Equal(t, auth.RoleSageFemme, changed.PreviousRole)
	assert.Equal(t, "ADMIN", changed.Group)

	// Same token, new role.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/roles", token, nil).Code)

	unknown := env.do(http.MethodPut, "/api/admin/users/"+midwife.ID+"/role", adminToken, SetRoleRequest{Role: "CHIRURGIEN"})
	assert.Equal(t, http.StatusBadRequest, unknown.Code)

	missing := env.do(http.MethodPut, "/api/admin/users/00000000-0000-0000-0000-000000000000/role", adminToken, SetRoleRequest{Role: "MEDECIN"})
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestRouter_CreateUser(t *testing.T) {
	env := newTestEnv(t)
	env.user("admin", auth.RoleAdmin)
	adminToken := env.login("admin")

	rec := env.do(http.MethodPost, "/api/admin/users", adminToken, CreateUserRequest{
		Username: "psy.yao", Password: "long-password", Role: "PSYCHOLOGUE", FullName: "Yao Adjoua",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created UserRoleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Created)
	assert.Equal(t, "PSYCHOLOGUE", created.Group)

	short := env.do(http.MethodPost, "/api/admin/users", adminToken, CreateUserRequest{Username: "x", Password: "short", Role: "PATIENT"})
	assert.Equal(t, http.StatusBadRequest, short.Code)

	unknownField := env.do(http.MethodPost, "/api/admin/users", adminToken, map[string]string{"username": "x", "is_superuser": "true"})
	assert.Equal(t, http.StatusBadRequest, unknownField.Code)
}

func TestRouter_PatientsAndAudit(t *testing.T) {
	env := newTestEnv(t)
	env.user("dr.kone", auth.RoleMedecin)
	env.user("koffi", auth.RolePatient)
	doctorToken := env.login("dr.kone")
	patientToken := env.login("koffi")

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/patients", patientToken, nil).Code)

	rec := env.do(http.MethodPost, "/api/patients", doctorToken, CreatePatientRequest{CodePatient: "P-001", Nom: "KONE", Prenoms: "Awa"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var patient models.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patient))

	list := env.do(http.MethodGet, "/api/patients", doctorToken, nil)
	require.Equal(t, http.StatusOK, list.Code)
	var patients []models.Patient
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &patients))
	assert.Len(t, patients, 1)

	path := "/api/patients/" + strconv.FormatInt(patient.ID, 10)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, path, doctorToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/patients/999", doctorToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/patients/abc", doctorToken, nil).Code)

	stored, err := repository.NewBunPatientRepository(env.db).GetByID(context.Background(), patient.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastAccessedAt)

	auditRec := env.do(http.MethodGet, `/api/audit?filter=action+%3D%3D+%22CREATE%22`, doctorToken, nil)
	require.Equal(t, http.StatusOK, auditRec.Code, auditRec.Body.String())
	var entries []AuditEntryResponse
	require.NoError(t, json.Unmarshal(auditRec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "patient", entries[0].Model)
	assert.Equal(t, "KONE Awa", entries[0].ObjectRepr)

	badFilter := env.do(http.MethodGet, `/api/audit?filter=action+%3D%3D`, doctorToken, nil)
	assert.Equal(t, http.StatusBadRequest, badFilter.Code)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/audit", patientToken, nil).Code)
}

func TestRouter_RejectsInvalidBodies(t *testing.T) {
	env := newTestEnv(t)
	env.user("dr.kone", auth.RoleMedecin)
	token := env.login("dr.kone")

	rec := env.do(http.MethodPost, "/api/patients", token, map[string]any{"code_patient": "P-002", "nom": "KONE", "sexe": "X"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation failed at '$.sexe'")

	rec = env.do(http.MethodPost, "/auth/login", "", map[string]any{"username": "dr.kone"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Permission is checked before the body.
	env.user("koffi", auth.RolePatient)
	rec = env.do(http.MethodPost, "/api/patients", env.login("koffi"), map[string]any{"nom": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

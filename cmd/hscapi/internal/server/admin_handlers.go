package server

import (
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/audit"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
)

// RoleResponse is one registry role with its expected and current grants.
type RoleResponse struct {
	Code     auth.Role `json:"code"`
	Label    string    `json:"label"`
	Expected []string  `json:"expected"`
	Current  []string  `json:"current"`
}

func codenames(grants []auth.Grant) []string {
	out := make([]string, 0, len(grants))
	for _, g := range grants {
		out = append(out, g.Codename())
	}
	return out
}

// HandleListRoles handles GET /api/admin/roles.
func HandleListRoles(enforcer casbin.IEnforcer, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defs := auth.Definitions()
		out := make([]RoleResponse, 0, len(defs))
		for _, def := range defs {
			current, err := iam.GroupGrants(enforcer, string(def.Code))
			if err != nil {
				writeServiceError(w, logger, err)
				return
			}
			out = append(out, RoleResponse{
				Code:     def.Code,
				Label:    def.Label,
				Expected: codenames(def.Expected()),
				Current:  codenames(current),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// SyncGroupResponse mirrors iam.GroupSync.
type SyncGroupResponse struct {
	Group     string `json:"group"`
	Created   bool   `json:"created"`
	Relabeled bool   `json:"relabeled"`
	Expected  int    `json:"expected"`
	Added     int    `json:"added"`
	Removed   int    `json:"removed"`
}

// SyncResponse is the body of POST /api/admin/iam/sync.
type SyncResponse struct {
	Changed bool                `json:"changed"`
	Added   int                 `json:"added"`
	Removed int                 `json:"removed"`
	Groups  []SyncGroupResponse `json:"groups"`
	Skipped []string            `json:"skipped"`
}

func newSyncResponse(report iam.SyncReport) SyncResponse {
	added, removed := report.Totals()
	resp := SyncResponse{
		Changed: report.Changed(),
		Added:   added,
		Removed: removed,
		Groups:  make([]SyncGroupResponse, 0, len(report.Groups)),
		Skipped: make([]string, 0, len(report.Skipped)),
	}
	for _, g := range report.Groups {
		resp.Groups = append(resp.Groups, SyncGroupResponse{
			Group:     g.Group,
			Created:   g.Created,
			Relabeled: g.Relabeled,
			Expected:  g.Expected,
			Added:     g.Added,
			Removed:   g.Removed,
		})
	}
	for _, s := range report.Skipped {
		resp.Skipped = append(resp.Skipped, s.Group+"/"+s.Grant.Codename())
	}
	return resp
}

// HandleSync handles POST /api/admin/iam/sync.
func HandleSync(reconciler policyReconciler, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := reconciler.Reconcile(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newSyncResponse(report))
	}
}

// CreateUserRequest is the body of POST /api/admin/users.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// UserRoleResponse describes a user after a role change.
type UserRoleResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	Role         auth.Role `json:"role"`
	PreviousRole auth.Role `json:"previous_role,omitempty"`
	Group        string    `json:"group"`
	GroupMissing bool      `json:"group_missing"`
	Created      bool      `json:"created,omitempty"`
}

// HandleCreateUser handles POST /api/admin/users.
func HandleCreateUser(prov userProvisioner, recorder auditRecorder, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		role, ok := auth.ParseRole(req.Role)
		if !ok {
			writeServiceError(w, logger, iam.ErrUnknownRole)
			return
		}

		res, err := prov.EnsureUser(r.Context(), iam.NewUser{
			Username: req.Username,
			Password: req.Password,
			Role:     role,
			FullName: req.FullName,
			Email:    req.Email,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		action := audit.ActionUpdate
		status := http.StatusOK
		if res.Created {
			action = audit.ActionCreate
			status = http.StatusCreated
		}
		entry := audit.FromRequest(r, auth.PrincipalFromContext(r.Context()), action)
		entry.AppLabel = "auth"
		entry.Model = "user"
		entry.ObjectID = res.User.ID
		entry.ObjectRepr = res.User.Username
		entry.Extra = map[string]any{"role": string(role)}
		recordAudit(r.Context(), recorder, logger, entry)

		writeJSON(w, status, UserRoleResponse{
			ID:           res.User.ID,
			Username:     res.User.Username,
			Role:         role,
			PreviousRole: res.Assignment.PreviousRole,
			Group:        res.Assignment.Group,
			GroupMissing: res.Assignment.GroupMissing,
			Created:      res.Created,
		})
	}
}

// SetRoleRequest is the body of PUT /api/admin/users/{id}/role.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// HandleSetRole handles PUT /api/admin/users/{id}/role.
func HandleSetRole(assigner roleAssigner, recorder auditRecorder, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")
		var req SetRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		role, ok := auth.ParseRole(req.Role)
		if !ok {
			writeServiceError(w, logger, iam.ErrUnknownRole)
			return
		}

		asg, err := assigner.AssignRole(r.Context(), userID, role)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		entry := audit.FromRequest(r, auth.PrincipalFromContext(r.Context()), audit.ActionUpdate)
		entry.AppLabel = "auth"
		entry.Model = "user"
		entry.ObjectID = userID
		entry.Extra = map[string]any{
			"previous_role": string(asg.PreviousRole),
			"role":          string(asg.Role),
			"group_missing": asg.GroupMissing,
		}
		recordAudit(r.Context(), recorder, logger, entry)

		writeJSON(w, http.StatusOK, UserRoleResponse{
			ID:           userID,
			Role:         asg.Role,
			PreviousRole: asg.PreviousRole,
			Group:        asg.Group,
			GroupMissing: asg.GroupMissing,
		})
	}
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrGroupNotFound   = errors.New("group not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// GroupChange is what EnsureGroup did to the group row.
type GroupChange int

const (
	GroupUnchanged GroupChange = iota
	GroupCreated
	GroupRelabeled
)

// PermissionStore persists role groups and the grants attached to them.
type PermissionStore interface {
	// EnsureGroup creates the group if absent and refreshes its label.
	EnsureGroup(ctx context.Context, name, label string) (*models.Group, GroupChange, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	GroupGrants(ctx context.Context, group string) ([]auth.Grant, error)
	// SetGroupGrants replaces the group's grant set in one transaction.
	SetGroupGrants(ctx context.Context, group string, grants []auth.Grant) (added, removed int, err error)
}

// RoleChange describes a committed role reassignment.
type RoleChange struct {
	PreviousRole   auth.Role
	PreviousGroups []string
	// Group is the role group the user now belongs to; empty when the
	// group does not exist yet.
	Group string
}

// MembershipStore persists the user → role group relation.
type MembershipStore interface {
	// ApplyRoleChange sets users.role, removes the user from every group
	// in roleGroups and adds them to the group named after role, if it
	// exists, all in one transaction.
	ApplyRoleChange(ctx context.Context, userID string, role auth.Role, roleGroups []string) (RoleChange, error)
	GroupsForUser(ctx context.Context, userID string) ([]string, error)
}

// ResourceCatalog records which (resource type, action) pairs exist.
type ResourceCatalog interface {
	// Register adds a catalog row per action and returns how many were new.
	Register(ctx context.Context, component string, resource auth.ResourceType, actions []auth.Action) (int, error)
	// Resolve returns the catalog row for a grant, or ok=false when the
	// resource type has not been registered.
	Resolve(ctx context.Context, grant auth.Grant) (perm *models.Permission, ok bool, err error)
	List(ctx context.Context) ([]models.Permission, error)
}

// UserRepository exposes persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	SetPasswordHash(ctx context.Context, id, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// AuditQuery filters audit log listings. Zero values mean "no filter".
type AuditQuery struct {
	UserID string
	Action string
	Since  time.Time
	Limit  int
	Offset int
}

// AuditRepository is append-only: there is no update method, and rows are
// removed only by RetentionRepository.PurgeOlderThan.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, q AuditQuery) ([]models.AuditLog, error)
}

// RevokedTokenRepository is the logout denylist.
type RevokedTokenRepository interface {
	Revoke(ctx context.Context, token *models.RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PatientRepository exposes persistence operations for the patient registry.
type PatientRepository interface {
	Create(ctx context.Context, patient *models.Patient) error
	GetByID(ctx context.Context, id int64) (*models.Patient, error)
	List(ctx context.Context, limit, offset int) ([]models.Patient, error)
	TouchLastAccess(ctx context.Context, id int64, at time.Time) error
}

// RetentionRepository backs the RGPD anonymization and purge commands.
type RetentionRepository interface {
	AnonymizationCandidates(ctx context.Context, cutoff time.Time) ([]models.Patient, error)
	// Anonymize scrubs one patient and appends entry in the same
	// transaction. It returns false if the patient was already anonymized.
	Anonymize(ctx context.Context, patientID int64, entry *models.AuditLog) (bool, error)
	// PurgeOlderThan deletes (or, when dryRun, counts) rows of table with
	// created_at before cutoff.
	PurgeOlderThan(ctx context.Context, table PurgeTable, cutoff time.Time, dryRun bool) (int64, error)
}

// PregnancyVisit pairs a pregnancy (with its patient) and its latest visit.
type PregnancyVisit struct {
	Pregnancy   models.Pregnancy
	LatestVisit *models.CPNVisit
}

// CPNRepository backs the risk-scoring batch.
type CPNRepository interface {
	PregnanciesWithLatestVisit(ctx context.Context) ([]PregnancyVisit, error)
	UpdateRiskLevel(ctx context.Context, pregnancyID int64, level string) error
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a staff or patient account. Role holds the semantic role code;
// group membership is stored separately as casbin grouping rows.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string     `bun:"id,pk,type:uuid"`
	Username     string     `bun:"username,notnull,unique"`
	Email        string     `bun:"email"`
	FullName     string     `bun:"full_name"`
	PasswordHash string     `bun:"password_hash,notnull"`
	Role         string     `bun:"role,notnull"`
	IsSuperuser  bool       `bun:"is_superuser,notnull,default:false"`
	IsActive     bool       `bun:"is_active,notnull"`
	CreatedAt    time.Time  `bun:"created_at,notnull"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull"`
	LastLoginAt  *time.Time `bun:"last_login_at"`
}

// Group is the persisted bucket of grants for one role. Name is the role code.
type Group struct {
	bun.BaseModel `bun:"table:role_groups,alias:rg"`

	ID        string    `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull,unique"`
	Label     string    `bun:"label"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// Permission is a resource catalog entry. A row exists once the owning
// component has registered the resource type.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:perm"`

	ID           string    `bun:"id,pk,type:uuid"`
	ResourceType string    `bun:"resource_type,notnull"`
	Action       string    `bun:"action,notnull"`
	Codename     string    `bun:"codename,notnull,unique"`
	Component    string    `bun:"component,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

// RevokedToken is the logout denylist, keyed by the jti claim.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rt"`

	JTI       string    `bun:"jti,pk"`
	UserID    string    `bun:"user_id,notnull"`
	Exp       time.Time `bun:"exp,notnull"`
	RevokedAt time.Time `bun:"revoked_at,notnull"`
}

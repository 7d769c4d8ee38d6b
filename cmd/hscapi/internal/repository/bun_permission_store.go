package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth/bunadapter"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/bunx"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
)

// ========================================
// Permission Store
// ========================================

// BunPermissionStore keeps role groups in role_groups and their grants as
// "p, role:<GROUP>, <resource>, <action>" rows in casbin_rules.
type BunPermissionStore struct {
	db *bun.DB
}

// NewBunPermissionStore creates a new Bun-based permission store
func NewBunPermissionStore(db *bun.DB) *BunPermissionStore {
	return &BunPermissionStore{db: db}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// lockForUpdate adds FOR UPDATE on Postgres. SQLite serialises writers on
// its single connection.
func lockForUpdate(q *bun.SelectQuery, db bun.IDB) *bun.SelectQuery {
	if db.Dialect().Name() == dialect.PG {
		return q.For("UPDATE")
	}
	return q
}

// EnsureGroup creates the group if absent and keeps its label current.
func (s *BunPermissionStore) EnsureGroup(ctx context.Context, name, label string) (*models.Group, GroupChange, error) {
	candidate := &models.Group{
		ID:        bunx.NewUUIDv7(),
		Name:      name,
		Label:     label,
		CreatedAt: nowUTC(),
	}
	res, err := s.db.NewInsert().
		Model(candidate).
		On("CONFLICT (name) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return nil, GroupUnchanged, fmt.Errorf("ensure group %s: %w", name, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, GroupUnchanged, fmt.Errorf("ensure group %s: %w", name, err)
	}

	group := new(models.Group)
	if err := s.db.NewSelect().Model(group).Where("name = ?", name).Scan(ctx); err != nil {
		return nil, GroupUnchanged, fmt.Errorf("get group %s: %w", name, err)
	}

	if inserted == 0 && group.Label != label {
		if _, err := s.db.NewUpdate().
			Model((*models.Group)(nil)).
			Set("label = ?", label).
			Where("name = ?", name).
			Exec(ctx); err != nil {
			return nil, GroupUnchanged, fmt.Errorf("update group label %s: %w", name, err)
		}
		group.Label = label
		return group, GroupRelabeled, nil
	}
	if inserted > 0 {
		return group, GroupCreated, nil
	}
	return group, GroupUnchanged, nil
}

// ListGroups returns every role group ordered by name.
func (s *BunPermissionStore) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.NewSelect().Model(&groups).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// GroupGrants returns the grants currently attached to a group, sorted.
func (s *BunPermissionStore) GroupGrants(ctx context.Context, group string) ([]auth.Grant, error) {
	grants, err := groupGrants(ctx, s.db, group)
	if err != nil {
		return nil, err
	}
	auth.SortGrants(grants)
	return grants, nil
}

func groupGrants(ctx context.Context, db bun.IDB, group string) ([]auth.Grant, error) {
	var rules []bunadapter.CasbinRule
	err := db.NewSelect().
		Model(&rules).
		Where("ptype = ?", bunadapter.PtypePolicy).
		Where("v0 = ?", auth.RoleID(group)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get grants for group %s: %w", group, err)
	}
	grants := make([]auth.Grant, 0, len(rules))
	for _, r := range rules {
		grants = append(grants, auth.Grant{Resource: auth.ResourceType(r.V1), Action: auth.Action(r.V2)})
	}
	return grants, nil
}

// SetGroupGrants makes the group's grant set exactly equal to grants.
// Additions and removals are applied in one transaction, so readers see
// either the old set or the new one.
func (s *BunPermissionStore) SetGroupGrants(ctx context.Context, group string, grants []auth.Grant) (int, int, error) {
	want := make(map[auth.Grant]struct{}, len(grants))
	for _, g := range grants {
		want[g] = struct{}{}
	}

	var added, removed int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(models.Group)
		err := lockForUpdate(tx.NewSelect().Model(row).Where("name = ?", group), tx).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrGroupNotFound, group)
			}
			return fmt.Errorf("lock group %s: %w", group, err)
		}

		current, err := groupGrants(ctx, tx, group)
		if err != nil {
			return err
		}
		have := make(map[auth.Grant]struct{}, len(current))
		for _, g := range current {
			have[g] = struct{}{}
		}

		subject := auth.RoleID(group)
		for g := range have {
			if _, keep := want[g]; keep {
				continue
			}
			_, err := tx.NewDelete().
				Model((*bunadapter.CasbinRule)(nil)).
				Where("ptype = ?", bunadapter.PtypePolicy).
				Where("v0 = ?", subject).
				Where("v1 = ?", string(g.Resource)).
				Where("v2 = ?", string(g.Action)).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("remove grant %s from %s: %w", g, group, err)
			}
			removed++
		}
		for g := range want {
			if _, exists := have[g]; exists {
				continue
			}
			_, err := tx.NewInsert().
				Model(bunadapter.Policy(subject, string(g.Resource), string(g.Action))).
				On("CONFLICT DO NOTHING").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("add grant %s to %s: %w", g, group, err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return added, removed, nil
}

// ========================================
// Membership Store
// ========================================

// BunMembershipStore keeps user → role group membership as
// "g, user:<id>, role:<GROUP>" rows in casbin_rules.
type BunMembershipStore struct {
	db *bun.DB
}

// NewBunMembershipStore creates a new Bun-based membership store
func NewBunMembershipStore(db *bun.DB) *BunMembershipStore {
	return &BunMembershipStore{db: db}
}

// ApplyRoleChange performs the remove-then-add membership move and the
// users.role update in one transaction. The user row is locked first so
// concurrent reassignments of the same user serialise.
func (s *BunMembershipStore) ApplyRoleChange(ctx context.Context, userID string, role auth.Role, roleGroups []string) (RoleChange, error) {
	var change RoleChange
	member := auth.UserID(userID)

	subjects := make([]string, 0, len(roleGroups))
	for _, g := range roleGroups {
		subjects = append(subjects, auth.RoleID(g))
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user := new(models.User)
		err := lockForUpdate(tx.NewSelect().Model(user).Where("id = ?", userID), tx).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
			}
			return fmt.Errorf("lock user %s: %w", userID, err)
		}
		change.PreviousRole = auth.Role(user.Role)

		previous, err := groupsForUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		for _, g := range previous {
			for _, known := range roleGroups {
				if g == known {
					change.PreviousGroups = append(change.PreviousGroups, g)
					break
				}
			}
		}

		if _, err := tx.NewUpdate().
			Model((*models.User)(nil)).
			Set("role = ?", string(role)).
			Set("updated_at = ?", nowUTC()).
			Where("id = ?", userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("update user role: %w", err)
		}

		if len(subjects) > 0 {
			if _, err := tx.NewDelete().
				Model((*bunadapter.CasbinRule)(nil)).
				Where("ptype = ?", bunadapter.PtypeGrouping).
				Where("v0 = ?", member).
				Where("v1 IN (?)", bun.In(subjects)).
				Exec(ctx); err != nil {
				return fmt.Errorf("remove role group memberships: %w", err)
			}
		}

		exists, err := tx.NewSelect().
			Model((*models.Group)(nil)).
			Where("name = ?", string(role)).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check group %s: %w", role, err)
		}
		if !exists {
			return nil
		}

		if _, err := tx.NewInsert().
			Model(bunadapter.Grouping(member, auth.RoleID(string(role)))).
			On("CONFLICT DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("add role group membership: %w", err)
		}
		change.Group = string(role)
		return nil
	})
	if err != nil {
		return RoleChange{}, err
	}
	return change, nil
}

// GroupsForUser returns the role groups the user belongs to, in one query.
func (s *BunMembershipStore) GroupsForUser(ctx context.Context, userID string) ([]string, error) {
	return groupsForUser(ctx, s.db, userID)
}

func groupsForUser(ctx context.Context, db bun.IDB, userID string) ([]string, error) {
	var subjects []string
	err := db.NewSelect().
		Model((*bunadapter.CasbinRule)(nil)).
		Column("v1").
		Where("ptype = ?", bunadapter.PtypeGrouping).
		Where("v0 = ?", auth.UserID(userID)).
		Order("v1 ASC").
		Scan(ctx, &subjects)
	if err != nil {
		return nil, fmt.Errorf("get groups for user %s: %w", userID, err)
	}
	groups := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		name, err := auth.ExtractRoleID(subject)
		if err != nil {
			continue
		}
		groups = append(groups, name)
	}
	return groups, nil
}

// ========================================
// Resource Catalog
// ========================================

// BunResourceCatalog stores registered (resource type, action) pairs in
// the permissions table.
type BunResourceCatalog struct {
	db *bun.DB
}

// NewBunResourceCatalog creates a new Bun-based resource catalog
func NewBunResourceCatalog(db *bun.DB) *BunResourceCatalog {
	return &BunResourceCatalog{db: db}
}

// Register inserts missing catalog rows for the resource type.
func (c *BunResourceCatalog) Register(ctx context.Context, component string, resource auth.ResourceType, actions []auth.Action) (int, error) {
	created := 0
	for _, action := range actions {
		grant := auth.Grant{Resource: resource, Action: action}
		perm := &models.Permission{
			ID:           bunx.NewUUIDv7(),
			ResourceType: string(resource),
			Action:       string(action),
			Codename:     grant.Codename(),
			Component:    component,
			CreatedAt:    nowUTC(),
		}
		res, err := c.db.NewInsert().
			Model(perm).
			On("CONFLICT (codename) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return created, fmt.Errorf("register %s: %w", grant.Codename(), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("register %s: %w", grant.Codename(), err)
		}
		created += int(n)
	}
	return created, nil
}

// Resolve looks a grant up by codename.
func (c *BunResourceCatalog) Resolve(ctx context.Context, grant auth.Grant) (*models.Permission, bool, error) {
	perm := new(models.Permission)
	err := c.db.NewSelect().Model(perm).Where("codename = ?", grant.Codename()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("resolve %s: %w", grant.Codename(), err)
	}
	return perm, true, nil
}

// List returns every catalog row ordered by codename.
func (c *BunResourceCatalog) List(ctx context.Context) ([]models.Permission, error) {
	var perms []models.Permission
	if err := c.db.NewSelect().Model(&perms).Order("codename ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return perms, nil
}

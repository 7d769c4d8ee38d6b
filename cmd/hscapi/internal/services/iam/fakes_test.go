package iam

import (
	"context"
	"fmt"
	"sync"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/models"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
)

// Fakes for the store interfaces. Each guards its state with one lock so
// multi-row changes are atomic, like the transactional stores.

type fakePermissionStore struct {
	mu     sync.RWMutex
	labels map[string]string
	grants map[string]map[auth.Grant]struct{}
	err    error
}

func newFakePermissionStore() *fakePermissionStore {
	return &fakePermissionStore{
		labels: make(map[string]string),
		grants: make(map[string]map[auth.Grant]struct{}),
	}
}

func (f *fakePermissionStore) EnsureGroup(ctx context.Context, name, label string) (*models.Group, repository.GroupChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, repository.GroupUnchanged, f.err
	}
	current, ok := f.labels[name]
	f.labels[name] = label
	group := &models.Group{ID: name, Name: name, Label: label}
	switch {
	case !ok:
		f.grants[name] = make(map[auth.Grant]struct{})
		return group, repository.GroupCreated, nil
	case current != label:
		return group, repository.GroupRelabeled, nil
	}
	return group, repository.GroupUnchanged, nil
}

func (f *fakePermissionStore) ListGroups(ctx context.Context) ([]models.Group, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []models.Group
	for name, label := range f.labels {
		out = append(out, models.Group{ID: name, Name: name, Label: label})
	}
	return out, f.err
}

func (f *fakePermissionStore) GroupGrants(ctx context.Context, group string) ([]auth.Grant, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]auth.Grant, 0, len(f.grants[group]))
	for g := range f.grants[group] {
		out = append(out, g)
	}
	auth.SortGrants(out)
	return out, nil
}

func (f *fakePermissionStore) SetGroupGrants(ctx context.Context, group string, grants []auth.Grant) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, 0, f.err
	}
	have, ok := f.grants[group]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", repository.ErrGroupNotFound, group)
	}
	want := make(map[auth.Grant]struct{}, len(grants))
	for _, g := range grants {
		want[g] = struct{}{}
	}
	added, removed := 0, 0
	for g := range want {
		if _, ok := have[g]; !ok {
			added++
		}
	}
	for g := range have {
		if _, ok := want[g]; !ok {
			removed++
		}
	}
	f.grants[group] = want
	return added, removed, nil
}

func (f *fakePermissionStore) seedGrant(group string, g auth.Grant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.grants[group]; !ok {
		f.labels[group] = group
		f.grants[group] = make(map[auth.Grant]struct{})
	}
	f.grants[group][g] = struct{}{}
}

type fakeCatalog struct {
	mu        sync.RWMutex
	resources map[auth.ResourceType]string
}

func newFakeCatalog(components ...Component) *fakeCatalog {
	c := &fakeCatalog{resources: make(map[auth.ResourceType]string)}
	for _, comp := range components {
		for _, r := range comp.ResourceTypes() {
			c.resources[r] = comp.Name()
		}
	}
	return c
}

func (c *fakeCatalog) Register(ctx context.Context, component string, resource auth.ResourceType, actions []auth.Action) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.resources[resource]; ok {
		return 0, nil
	}
	c.resources[resource] = component
	return len(actions), nil
}

func (c *fakeCatalog) Resolve(ctx context.Context, grant auth.Grant) (*models.Permission, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	component, ok := c.resources[grant.Resource]
	if !ok {
		return nil, false, nil
	}
	return &models.Permission{
		ResourceType: string(grant.Resource),
		Action:       string(grant.Action),
		Codename:     grant.Codename(),
		Component:    component,
	}, true, nil
}

func (c *fakeCatalog) List(ctx context.Context) ([]models.Permission, error) {
	return nil, nil
}

type fakeMembershipStore struct {
	mu       sync.RWMutex
	existing map[string]bool
	roles    map[string]auth.Role
	groups   map[string][]string
	err      error
}

func newFakeMembershipStore(existingGroups ...string) *fakeMembershipStore {
	f := &fakeMembershipStore{
		existing: make(map[string]bool),
		roles:    make(map[string]auth.Role),
		groups:   make(map[string][]string),
	}
	for _, g := range existingGroups {
		f.existing[g] = true
	}
	return f
}

func (f *fakeMembershipStore) addUser(id string, role auth.Role, groups ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[id] = role
	f.groups[id] = append([]string(nil), groups...)
}

func (f *fakeMembershipStore) ApplyRoleChange(ctx context.Context, userID string, role auth.Role, roleGroups []string) (repository.RoleChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return repository.RoleChange{}, f.err
	}
	previousRole, ok := f.roles[userID]
	if !ok {
		return repository.RoleChange{}, fmt.Errorf("%w: %s", repository.ErrUserNotFound, userID)
	}
	isRoleGroup := make(map[string]bool, len(roleGroups))
	for _, g := range roleGroups {
		isRoleGroup[g] = true
	}

	change := repository.RoleChange{PreviousRole: previousRole}
	var kept []string
	for _, g := range f.groups[userID] {
		if isRoleGroup[g] {
			change.PreviousGroups = append(change.PreviousGroups, g)
			continue
		}
		kept = append(kept, g)
	}
	if f.existing[string(role)] {
		kept = append(kept, string(role))
		change.Group = string(role)
	}
	f.roles[userID] = role
	f.groups[userID] = kept
	return change, nil
}

func (f *fakeMembershipStore) GroupsForUser(ctx context.Context, userID string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.groups[userID]...), f.err
}

type countingReloader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingReloader) LoadPolicy() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *countingReloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

package iam

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/dbtest"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
)

func TestProvisioner_EnsureUser(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	sync := NewSynchronizer(SynchronizerDeps{
		Store:   repository.NewBunPermissionStore(db),
		Catalog: repository.NewBunResourceCatalog(db),
		Logger:  zerolog.Nop(),
	})
	_, err := sync.Reconcile(ctx)
	require.NoError(t, err)

	users := repository.NewBunUserRepository(db)
	members := repository.NewBunMembershipStore(db)
	prov := NewProvisioner(users, NewAssigner(AssignerDeps{Members: members, Logger: zerolog.Nop()}), zerolog.Nop())

	first, err := prov.EnsureUser(ctx, NewUser{Username: "dr.kone", Password: "s3cret-pass", Role: auth.RoleMedecin})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "MEDECIN", first.Assignment.Group)

	second, err := prov.EnsureUser(ctx, NewUser{Username: "dr.kone", Password: "other-pass", Role: auth.RoleSageFemme})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.User.ID, second.User.ID)

	stored, err := users.GetByUsername(ctx, "dr.kone")
	require.NoError(t, err)
	assert.Equal(t, "SAGE_FEMME", stored.Role)
	ok, err := auth.CheckPassword(stored.PasswordHash, "other-pass")
	require.NoError(t, err)
	assert.True(t, ok)

	groups, err := members.GroupsForUser(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"SAGE_FEMME"}, groups)
}

func TestProvisioner_Validation(t *testing.T) {
	prov := NewProvisioner(nil, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := prov.EnsureUser(ctx, NewUser{Password: "long-enough", Role: auth.RoleAdmin})
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, err = prov.EnsureUser(ctx, NewUser{Username: "x", Password: "long-enough", Role: "CHIRURGIEN"})
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, err = prov.EnsureUser(ctx, NewUser{Username: "x", Password: "short", Role: auth.RoleAdmin})
	assert.ErrorIs(t, err, ErrInvalidUser)
}

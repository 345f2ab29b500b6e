package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/user"
	testutil "github.com/trezcool/cshub/tests"
)

func TestService_AssignRole(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.repo, "sub-admin", "admin@example.com", "Admin", []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, f.repo, "sub-student", "student@example.com", "Student", []string{user.RoleStudent}, true)
	usr, _, err := f.svc.Sync(ctx, janeIdentity())
	require.NoError(t, err)

	tests := []struct {
		name     string
		role     string
		by       *user.User
		want     bool
		checkErr func(t *testing.T, err error)
	}{
		{
			name: "invalid role",
			role: "superuser",
			by:   &admin,
			checkErr: func(t *testing.T, err error) {
				var vErr *core.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, "Invalid role: superuser", vErr.Error())
			},
		},
		{
			name: "assigner not admin",
			role: user.RoleInstructor,
			by:   &student,
			checkErr: func(t *testing.T, err error) {
				var pErr *core.PermissionError
				require.True(t, errors.As(err, &pErr))
			},
		},
		{name: "by admin", role: user.RoleInstructor, by: &admin, want: true},
		{name: "already assigned", role: user.RoleInstructor, by: &admin, want: false},
		{name: "system assignment", role: user.RoleGuest, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			created, err := f.svc.AssignRole(ctx, &usr, tc.role, tc.by)
			if tc.checkErr != nil {
				require.Error(t, err)
				tc.checkErr(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, created)
		})
	}

	assert.ElementsMatch(t, []string{user.RoleStudent, user.RoleInstructor, user.RoleGuest}, usr.Roles)

	// one audit entry per created assignment (student on sync, instructor, guest)
	trail, err := f.svc.AuditTrail(ctx, usr)
	require.NoError(t, err)
	var grants int
	for _, log := range trail {
		if log.EntityType == user.EntityUserRole && log.Action == user.ActionCreate {
			grants++
		}
	}
	assert.Equal(t, 3, grants)
}

func TestService_RevokeRole(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.repo, "sub-admin", "admin@example.com", "Admin", []string{user.RoleAdmin}, true)
	usr, _, err := f.svc.Sync(ctx, janeIdentity())
	require.NoError(t, err)

	trail, err := f.svc.AuditTrail(ctx, usr)
	require.NoError(t, err)
	nLogs := len(trail)

	revoked, err := f.svc.RevokeRole(ctx, &usr, user.RoleInstructor, &admin)
	require.NoError(t, err)
	assert.False(t, revoked, "user does not hold the role")
	trail, err = f.svc.AuditTrail(ctx, usr)
	require.NoError(t, err)
	assert.Len(t, trail, nLogs, "no audit entry when nothing was revoked")

	_, err = f.svc.RevokeRole(ctx, &usr, user.RoleStudent, &usr)
	var pErr *core.PermissionError
	assert.True(t, errors.As(err, &pErr))

	revoked, err = f.svc.RevokeRole(ctx, &usr, user.RoleStudent, &admin)
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Empty(t, usr.Roles)
	trail, err = f.svc.AuditTrail(ctx, usr)
	require.NoError(t, err)
	assert.Equal(t, user.ActionDelete, trail[0].Action)
}

func TestService_Promote(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.repo, "sub-admin", "admin@example.com", "Admin", []string{user.RoleAdmin}, true)
	usr, _, err := f.svc.Sync(ctx, janeIdentity())
	require.NoError(t, err)

	_, err = f.svc.PromoteToInstructor(ctx, &usr, nil)
	var pErr *core.PermissionError
	require.True(t, errors.As(err, &pErr), "promotions need an admin")

	ok, err := f.svc.PromoteToInstructor(ctx, &usr, &admin)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.PromoteToAdmin(ctx, &usr, &admin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, usr.IsAdmin())

	admins, err := f.svc.UsersByRole(ctx, user.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, admins, 2)
}

func TestService_InitializeDefaultRoles(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		roles, err := f.svc.InitializeDefaultRoles(ctx)
		require.NoError(t, err)
		require.Len(t, roles, len(user.AllRoles))
		for j, role := range roles {
			assert.Equal(t, user.AllRoles[j], role.Name)
			assert.Equal(t, user.RoleDisplay(role.Name), role.DisplayName)
		}
	}

	roles, err := f.svc.QueryRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, len(user.AllRoles))

	role, err := f.svc.GetRole(ctx, roles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleGuest, role.Name)
	assert.Equal(t, "Guest user with read-only access to public content", role.Description)
	assert.False(t, role.Permissions["can_comment"])

	_, err = f.svc.GetRole(ctx, 999)
	assert.True(t, errors.Is(err, user.ErrRoleNotFound))
}

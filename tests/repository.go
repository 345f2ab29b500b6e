package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/user"
)

var errBoom = errors.New("boom")

// TestRepository runs the behaviour every user.Repository implementation must have.
// newRepo must return a repository over an empty database.
func TestRepository(t *testing.T, newRepo func(t *testing.T) user.Repository) {
	t.Run("CreateUserIfNotExist", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		usr := user.User{
			ID: newID(t), SupabaseID: "sub-1", Email: "jane@example.com", DisplayName: "jane",
			IsActive: true, CreatedAt: now, UpdatedAt: now,
		}
		got, created, err := repo.CreateUserIfNotExist(ctx, usr)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, usr.ID, got.ID)

		again := usr
		again.ID = newID(t)
		got, created, err = repo.CreateUserIfNotExist(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, usr.ID, got.ID, "existing user should be returned")

		other := usr
		other.ID = newID(t)
		other.SupabaseID = "sub-2"
		_, _, err = repo.CreateUserIfNotExist(ctx, other)
		assert.True(t, errors.Is(err, user.ErrEmailExists))
	})

	t.Run("GetUser", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		usr := CreateUser(t, repo, "sub-1", "jane@example.com", "Jane", []string{user.RoleStudent}, true)

		for _, filter := range []user.GetFilter{{ID: usr.ID}, {SupabaseID: "sub-1"}, {Email: "jane@example.com"}} {
			got, err := repo.GetUser(ctx, filter)
			require.NoError(t, err)
			assert.Equal(t, usr.ID, got.ID)
			assert.Equal(t, []string{user.RoleStudent}, got.Roles)
			assert.Nil(t, got.Profile)
		}

		_, err := repo.GetUser(ctx, user.GetFilter{SupabaseID: "unknown"})
		assert.True(t, errors.Is(err, user.ErrNotFound))
	})

	t.Run("UpdateUser", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		jane := CreateUser(t, repo, "sub-1", "jane@example.com", "Jane", nil, true)
		CreateUser(t, repo, "sub-2", "john@example.com", "John", nil, true)

		jane.DisplayName = "Jane D."
		jane.IsActive = false
		_, err := repo.UpdateUser(ctx, jane)
		require.NoError(t, err)
		got, err := repo.GetUser(ctx, user.GetFilter{ID: jane.ID})
		require.NoError(t, err)
		assert.Equal(t, "Jane D.", got.DisplayName)
		assert.False(t, got.IsActive)

		jane.Email = "john@example.com"
		_, err = repo.UpdateUser(ctx, jane)
		assert.True(t, errors.Is(err, user.ErrEmailExists))

		require.NoError(t, repo.SetLastLogin(ctx, jane.ID, time.Now().UTC()))
		got, err = repo.GetUser(ctx, user.GetFilter{ID: jane.ID})
		require.NoError(t, err)
		assert.True(t, got.LastLogin.Valid)
	})

	t.Run("QueryUsers", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC()
		ann := CreateUser(t, repo, "sub-1", "ann@example.com", "Ann", []string{user.RoleStudent}, true, now.Add(-3*time.Hour))
		bob := CreateUser(t, repo, "sub-2", "bob@example.com", "Bob", []string{user.RoleAdmin}, true, now.Add(-2*time.Hour))
		cal := CreateUser(t, repo, "sub-3", "cal@school.edu", "Cal", []string{user.RoleStudent, user.RoleInstructor}, false, now.Add(-time.Hour))

		inactive := false
		tests := []struct {
			name     string
			filter   *user.QueryFilter
			ordering []core.DBOrdering
			want     []string
		}{
			{
				name:     "all newest first",
				filter:   &user.QueryFilter{},
				ordering: []core.DBOrdering{{Field: "created_at"}},
				want:     []string{cal.ID, bob.ID, ann.ID},
			},
			{
				name:     "search email",
				filter:   &user.QueryFilter{Search: "EXAMPLE"},
				ordering: []core.DBOrdering{{Field: "email", Ascending: true}},
				want:     []string{ann.ID, bob.ID},
			},
			{
				name:     "search display name",
				filter:   &user.QueryFilter{Search: "cal"},
				ordering: []core.DBOrdering{{Field: "email", Ascending: true}},
				want:     []string{cal.ID},
			},
			{
				name:     "inactive",
				filter:   &user.QueryFilter{IsActive: &inactive},
				ordering: []core.DBOrdering{{Field: "email", Ascending: true}},
				want:     []string{cal.ID},
			},
			{
				name:     "by role",
				filter:   &user.QueryFilter{Roles: []string{user.RoleStudent}},
				ordering: []core.DBOrdering{{Field: "display_name", Ascending: true}},
				want:     []string{ann.ID, cal.ID},
			},
			{
				name:     "no match",
				filter:   &user.QueryFilter{Search: "zed"},
				ordering: []core.DBOrdering{{Field: "created_at"}},
				want:     []string{},
			},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				users, err := repo.QueryUsers(ctx, tc.filter, tc.ordering)
				require.NoError(t, err)
				ids := make([]string, 0, len(users))
				for _, usr := range users {
					ids = append(ids, usr.ID)
				}
				assert.Equal(t, tc.want, ids)
			})
		}

		users, err := repo.QueryUsers(ctx, &user.QueryFilter{Search: "cal"}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, []string{user.RoleStudent, user.RoleInstructor}, users[0].Roles)
	})

	t.Run("Profile", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		usr := CreateUser(t, repo, "sub-1", "jane@example.com", "Jane", nil, true)
		now := time.Now().UTC()

		p, created, err := repo.GetOrCreateProfile(ctx, usr.ID, now)
		require.NoError(t, err)
		assert.True(t, created)

		p.Bio = "CS student"
		p.TotalQuestions = 2
		p.UpdatedAt = now
		_, err = repo.UpdateProfile(ctx, p)
		require.NoError(t, err)

		p, created, err = repo.GetOrCreateProfile(ctx, usr.ID, now)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "CS student", p.Bio)
		assert.Equal(t, 2, p.TotalQuestions)

		got, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		require.NotNil(t, got.Profile)
		assert.Equal(t, "CS student", got.Profile.Bio)
	})

	t.Run("Roles", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		usr := CreateUser(t, repo, "sub-1", "jane@example.com", "Jane", nil, true)
		now := time.Now().UTC()

		cfg := user.DefaultRoles[user.RoleInstructor]
		role, created, err := repo.GetOrCreateRole(ctx, user.Role{
			Name: user.RoleInstructor, DisplayName: cfg.DisplayName, Description: cfg.Description,
			Permissions: cfg.Permissions, CreatedAt: now,
		})
		require.NoError(t, err)
		assert.True(t, created)

		same, created, err := repo.GetOrCreateRole(ctx, user.Role{Name: user.RoleInstructor, CreatedAt: now})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, role.ID, same.ID)
		assert.Equal(t, cfg.Description, same.Description, "existing role should be left untouched")
		assert.True(t, same.Permissions["can_create_courses"])

		got, err := repo.GetRole(ctx, user.RoleFilter{ID: role.ID})
		require.NoError(t, err)
		assert.Equal(t, user.RoleInstructor, got.Name)
		_, err = repo.GetRole(ctx, user.RoleFilter{Name: user.RoleAdmin})
		assert.True(t, errors.Is(err, user.ErrRoleNotFound))

		ok, err := repo.AssignRole(ctx, usr.ID, role.ID, null.String{}, now)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.AssignRole(ctx, usr.ID, role.ID, null.StringFrom(usr.ID), now)
		require.NoError(t, err)
		assert.False(t, ok, "assignment should be unique per user and role")

		roles, err := repo.UserRoles(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{user.RoleInstructor}, roles)

		ok, err = repo.RevokeRole(ctx, usr.ID, role.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.RevokeRole(ctx, usr.ID, role.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		all, err := repo.QueryRoles(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Transact", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC()

		err := repo.Transact(ctx, func(tx user.Repository) error {
			_, _, err := tx.CreateUserIfNotExist(ctx, user.User{
				ID: newID(t), SupabaseID: "sub-1", Email: "jane@example.com", IsActive: true, CreatedAt: now, UpdatedAt: now,
			})
			require.NoError(t, err)
			return errBoom
		})
		assert.True(t, errors.Is(err, errBoom))

		_, err = repo.GetUser(ctx, user.GetFilter{SupabaseID: "sub-1"})
		assert.True(t, errors.Is(err, user.ErrNotFound), "failed transaction should be rolled back")

		err = repo.Transact(ctx, func(tx user.Repository) error {
			_, _, err := tx.CreateUserIfNotExist(ctx, user.User{
				ID: newID(t), SupabaseID: "sub-1", Email: "jane@example.com", IsActive: true, CreatedAt: now, UpdatedAt: now,
			})
			return err
		})
		require.NoError(t, err)
		_, err = repo.GetUser(ctx, user.GetFilter{SupabaseID: "sub-1"})
		assert.NoError(t, err)
	})

	t.Run("AuditLogs", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		usr := CreateUser(t, repo, "sub-1", "jane@example.com", "Jane", nil, true)
		now := time.Now().UTC()

		for i, action := range []string{user.ActionCreate, user.ActionUpdate} {
			_, err := repo.CreateAuditLog(ctx, user.AuditLog{
				EntityType: user.EntityUser,
				EntityID:   usr.ID,
				Action:     action,
				NewData:    user.AuditData{"n": i},
				CreatedAt:  now.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err)
		}
		_, err := repo.CreateAuditLog(ctx, user.AuditLog{
			EntityType: user.EntityRole, EntityID: user.RoleAdmin, Action: user.ActionCreate, CreatedAt: now,
		})
		require.NoError(t, err)

		logs, err := repo.QueryAuditLogs(ctx, "", usr.ID)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, user.ActionUpdate, logs[0].Action)
		assert.Equal(t, user.ActionCreate, logs[1].Action)
		assert.False(t, logs[0].ActorID.Valid)

		logs, err = repo.QueryAuditLogs(ctx, user.EntityRole, user.RoleAdmin)
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})
}

package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cshub/core/user"
)

const roleColumns = "id, name, display_name, description, permissions, created_at"

func (repo *repository) GetOrCreateRole(ctx context.Context, role user.Role) (user.Role, bool, error) {
	var id int
	created, err := repo.insertReturning(ctx, &id, `
		INSERT INTO roles (name, display_name, description, permissions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`,
		role.Name, role.DisplayName, role.Description, role.Permissions, role.CreatedAt,
	)
	if err != nil {
		return user.Role{}, false, errors.Wrap(err, "creating role")
	}
	if created {
		role.ID = id
		return role, true, nil
	}

	existing, err := repo.GetRole(ctx, user.RoleFilter{Name: role.Name})
	return existing, false, err
}

func (repo *repository) GetRole(ctx context.Context, filter user.RoleFilter) (user.Role, error) {
	var (
		role user.Role
		err  error
	)
	switch {
	case filter.ID != 0:
		err = repo.get(ctx, &role, "SELECT "+roleColumns+" FROM roles WHERE id = ?", filter.ID)
	case filter.Name != "":
		err = repo.get(ctx, &role, "SELECT "+roleColumns+" FROM roles WHERE name = ?", filter.Name)
	default:
		return user.Role{}, user.ErrRoleNotFound
	}
	return role, trapNoRowsErr(err, user.ErrRoleNotFound)
}

func (repo *repository) QueryRoles(ctx context.Context) ([]user.Role, error) {
	roles := make([]user.Role, 0, len(user.AllRoles))
	if err := repo.selectAll(ctx, &roles, "SELECT "+roleColumns+" FROM roles ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "querying roles")
	}
	return roles, nil
}

func (repo *repository) AssignRole(ctx context.Context, userID string, roleID int, assignedBy null.String, at time.Time) (bool, error) {
	n, err := repo.execute(ctx, `
		INSERT INTO user_roles (user_id, role_id, assigned_by, assigned_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID, assignedBy, at,
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (repo *repository) RevokeRole(ctx context.Context, userID string, roleID int) (bool, error) {
	n, err := repo.execute(ctx, "DELETE FROM user_roles WHERE user_id = ? AND role_id = ?", userID, roleID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (repo *repository) UserRoles(ctx context.Context, userID string) ([]string, error) {
	roles := make([]string, 0, 1)
	err := repo.selectAll(ctx, &roles, `
		SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ? ORDER BY r.id`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying user roles")
	}
	return roles, nil
}

package user

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core"
)

var errOnlyAdmins = "only admins can %s roles"

// CanAssignRole reports whether by may assign roles to other users.
func CanAssignRole(by User) bool {
	return by.IsAdmin()
}

// CanRevokeRole reports whether by may revoke roles from other users.
func CanRevokeRole(by User) bool {
	return by.IsAdmin()
}

func invalidRoleError(name string) error {
	return core.NewValidationError(
		errors.Errorf("Invalid role: %s", name),
		core.FieldError{Field: "role", Error: fmt.Sprintf("Invalid role: %s", name)},
	)
}

// AssignRole grants roleName to usr. by is nil for system assignments, otherwise it must be an admin.
// Assigning a role the user already holds is a no-op that returns false.
func (svc *Service) AssignRole(ctx context.Context, usr *User, roleName string, by *User) (bool, error) {
	roleName = core.CleanString(roleName, true /* lower */)
	if !IsValidRole(roleName) {
		return false, invalidRoleError(roleName)
	}
	if by != nil && !CanAssignRole(*by) {
		return false, core.NewPermissionError(fmt.Sprintf(errOnlyAdmins, "assign"))
	}

	var created bool
	err := svc.transact(ctx, func(repo Repository) (err error) {
		if created, err = svc.assignRole(ctx, repo, *usr, roleName, by); err != nil {
			return err
		}
		usr.Roles, err = repo.UserRoles(ctx, usr.ID)
		return errors.Wrap(err, "getting user roles")
	})
	return created, err
}

// assignRole expects a valid roleName and an authorized assigner.
func (svc *Service) assignRole(ctx context.Context, repo Repository, usr User, roleName string, by *User) (bool, error) {
	now := NowFunc()
	role, _, err := repo.GetOrCreateRole(ctx, DefaultRoles[roleName].role(roleName, now))
	if err != nil {
		return false, errors.Wrap(err, "getting role")
	}

	created, err := repo.AssignRole(ctx, usr.ID, role.ID, actorID(by), now)
	if err != nil {
		return false, errors.Wrap(err, "assigning role")
	}
	if !created {
		return false, nil
	}

	err = svc.audit(ctx, repo, AuditLog{
		EntityType: EntityUserRole,
		EntityID:   usr.ID,
		Action:     ActionCreate,
		ActorID:    actorID(by),
		NewData:    AuditData{"role": roleName},
		CreatedAt:  now,
	})
	return true, err
}

// RevokeRole removes roleName from usr and returns false if usr did not hold it.
// by is nil for system revocations, otherwise it must be an admin.
func (svc *Service) RevokeRole(ctx context.Context, usr *User, roleName string, by *User) (bool, error) {
	roleName = core.CleanString(roleName, true /* lower */)
	if !IsValidRole(roleName) {
		return false, invalidRoleError(roleName)
	}
	if by != nil && !CanRevokeRole(*by) {
		return false, core.NewPermissionError(fmt.Sprintf(errOnlyAdmins, "revoke"))
	}

	var revoked bool
	err := svc.transact(ctx, func(repo Repository) error {
		role, err := repo.GetRole(ctx, RoleFilter{Name: roleName})
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				return nil
			}
			return errors.Wrap(err, "getting role")
		}

		if revoked, err = repo.RevokeRole(ctx, usr.ID, role.ID); err != nil {
			return errors.Wrap(err, "revoking role")
		}
		if revoked {
			err = svc.audit(ctx, repo, AuditLog{
				EntityType: EntityUserRole,
				EntityID:   usr.ID,
				Action:     ActionDelete,
				ActorID:    actorID(by),
				OldData:    AuditData{"role": roleName},
			})
			if err != nil {
				return err
			}
		}

		usr.Roles, err = repo.UserRoles(ctx, usr.ID)
		return errors.Wrap(err, "getting user roles")
	})
	return revoked, err
}

func (svc *Service) PromoteToInstructor(ctx context.Context, usr *User, by *User) (bool, error) {
	return svc.promote(ctx, usr, RoleInstructor, by)
}

func (svc *Service) PromoteToAdmin(ctx context.Context, usr *User, by *User) (bool, error) {
	return svc.promote(ctx, usr, RoleAdmin, by)
}

// promote requires an admin assigner; system promotions go through AssignRole.
func (svc *Service) promote(ctx context.Context, usr *User, roleName string, by *User) (bool, error) {
	if by == nil || !by.IsAdmin() {
		return false, core.NewPermissionError(fmt.Sprintf("only admins can promote users to %s", roleName))
	}
	return svc.AssignRole(ctx, usr, roleName, by)
}

func (svc *Service) UsersByRole(ctx context.Context, roleName string) ([]User, error) {
	roleName = core.CleanString(roleName, true /* lower */)
	if !IsValidRole(roleName) {
		return nil, invalidRoleError(roleName)
	}
	return svc.Query(ctx, &QueryFilter{Roles: []string{roleName}}, nil)
}

func (svc *Service) QueryRoles(ctx context.Context) ([]Role, error) {
	return svc.repo.QueryRoles(ctx)
}

func (svc *Service) GetRole(ctx context.Context, id int) (Role, error) {
	return svc.repo.GetRole(ctx, RoleFilter{ID: id})
}

// InitializeDefaultRoles creates the missing default roles. Existing roles are left untouched.
func (svc *Service) InitializeDefaultRoles(ctx context.Context) ([]Role, error) {
	roles := make([]Role, 0, len(AllRoles))
	err := svc.transact(ctx, func(repo Repository) error {
		now := NowFunc()
		for _, name := range AllRoles {
			role, created, err := repo.GetOrCreateRole(ctx, DefaultRoles[name].role(name, now))
			if err != nil {
				return errors.Wrapf(err, "getting role %s", name)
			}
			if created {
				err = svc.audit(ctx, repo, AuditLog{
					EntityType: EntityRole,
					EntityID:   role.Name,
					Action:     ActionCreate,
					NewData:    AuditData{"permissions": role.Permissions},
					CreatedAt:  now,
				})
				if err != nil {
					return err
				}
			}
			roles = append(roles, role)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

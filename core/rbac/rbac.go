// Package rbac answers role and permission questions for the default roles.
// Roles inherit from each other: admin > instructor > student > guest.
package rbac

import (
	_ "embed"
	"sort"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core/user"
)

//go:embed model.conf
var modelContent string

type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewAuthorizer builds the enforcer from user.DefaultRoles: one policy per granted permission,
// and each role of user.AllRoles inherits from the one before it.
func NewAuthorizer() (*Authorizer, error) {
	m, err := model.NewModelFromString(modelContent)
	if err != nil {
		return nil, errors.Wrap(err, "parsing casbin model")
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "creating casbin enforcer")
	}

	var policies [][]string
	for name, cfg := range user.DefaultRoles {
		for perm, granted := range cfg.Permissions {
			if granted {
				policies = append(policies, []string{name, perm})
			}
		}
	}
	if _, err = enforcer.AddPolicies(policies); err != nil {
		return nil, errors.Wrap(err, "adding policies")
	}

	for i := 1; i < len(user.AllRoles); i++ {
		if _, err = enforcer.AddGroupingPolicy(user.AllRoles[i], user.AllRoles[i-1]); err != nil {
			return nil, errors.Wrap(err, "adding role inheritance")
		}
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// HasRole reports whether one of userRoles is minRole or inherits from it.
func (a *Authorizer) HasRole(userRoles []string, minRole string) bool {
	rm := a.enforcer.GetRoleManager()
	for _, role := range userRoles {
		if role == minRole {
			return true
		}
		if ok, err := rm.HasLink(role, minRole); err == nil && ok {
			return true
		}
	}
	return false
}

func (a *Authorizer) IsStudent(userRoles []string) bool {
	return a.HasRole(userRoles, user.RoleStudent)
}

func (a *Authorizer) IsInstructor(userRoles []string) bool {
	return a.HasRole(userRoles, user.RoleInstructor)
}

func (a *Authorizer) IsAdmin(userRoles []string) bool {
	return a.HasRole(userRoles, user.RoleAdmin)
}

// HasPermission reports whether one of userRoles (directly or through inheritance) grants permission.
func (a *Authorizer) HasPermission(userRoles []string, permission string) (bool, error) {
	for _, role := range userRoles {
		ok, err := a.enforcer.Enforce(role, permission)
		if err != nil {
			return false, errors.Wrapf(err, "enforcing %s for %s", permission, role)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Permissions returns the sorted permissions granted to userRoles.
func (a *Authorizer) Permissions(userRoles []string) ([]string, error) {
	set := make(map[string]struct{})
	for _, role := range userRoles {
		perms, err := a.enforcer.GetImplicitPermissionsForUser(role)
		if err != nil {
			return nil, errors.Wrapf(err, "getting permissions of %s", role)
		}
		for _, p := range perms {
			if len(p) > 1 {
				set[p[1]] = struct{}{}
			}
		}
	}

	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms, nil
}

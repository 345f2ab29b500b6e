package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core/user"
)

func (cli *commandLine) initRoles() error {
	roles, err := cli.usrSvc.InitializeDefaultRoles(context.Background())
	if err != nil {
		return errors.Wrap(err, "initializing default roles")
	}
	for _, role := range roles {
		cli.printf("%d\t%s\t%s\n", role.ID, role.Name, role.DisplayName)
	}
	return nil
}

// setRole assigns (or revokes) a role as the system, so that the first admin can be bootstrapped.
func (cli *commandLine) setRole(email, role string, revoke bool) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if revoke {
		revoked, err := cli.usrSvc.RevokeRole(ctx, &usr, role, nil)
		if err != nil {
			return err
		}
		if !revoked {
			return user.ErrRoleNotHeld
		}
		cli.printf("Role %s revoked from %s %v\n", user.RoleDisplay(role), usr.Email, usr.Roles)
		return nil
	}

	if _, err = cli.usrSvc.AssignRole(ctx, &usr, role, nil); err != nil {
		return err
	}
	cli.printf("Role %s assigned to %s %v\n", user.RoleDisplay(role), usr.Email, usr.Roles)
	return nil
}

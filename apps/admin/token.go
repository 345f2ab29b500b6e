package main

import (
	"context"
	"fmt"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

var readPasswordFunc = term.ReadPassword // mockable

func (cli *commandLine) verifyToken(sync bool) error {
	fmt.Print("Enter token:")
	token, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return err
	}
	if len(token) == 0 {
		return errHelp
	}

	claims, err := cli.verifier.Verify(strings.TrimSpace(string(token)))
	if err != nil {
		return err
	}
	cli.printf("subject: %s\nemail: %s\n", claims.Subject, claims.Email)
	if claims.ExpiresAt != nil {
		cli.printf("expires at: %s\n", claims.ExpiresAt.Time.UTC())
	}

	if !sync {
		return nil
	}
	usr, created, err := cli.usrSvc.Sync(context.Background(), claims.Identity())
	if err != nil {
		return errors.Wrap(err, "syncing user")
	}
	cli.printf("synced user %s (created: %t, active: %t, roles: %v)\n", usr.ID, created, usr.IsActive, usr.Roles)
	return nil
}

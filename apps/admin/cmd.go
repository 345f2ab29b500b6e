package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/cshub/core/auth"
	"github.com/trezcool/cshub/core/user"
)

var errHelp = errors.New("help provided")

type tokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type commandLine struct {
	db       *sqlx.DB
	usrSvc   user.ServiceInterface
	verifier tokenVerifier
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a database migration command (up, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Println("  initroles - create the missing default roles")
	fmt.Println("  setrole -email EMAIL -role ROLE [-revoke] - assign (or revoke) a role to a user")
	fmt.Println("  verifytoken [-sync] - verify an access token (prompted next) and optionally sync its user")
	fmt.Println("  auditlog -email EMAIL - print a user's audit trail")
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	setRoleCmd := flag.NewFlagSet("setrole", flag.ContinueOnError)
	setRoleEmail := setRoleCmd.String("email", "", "The user's email.")
	setRoleName := setRoleCmd.String("role", "", "One of guest, student, instructor or admin.")
	setRoleRevoke := setRoleCmd.Bool("revoke", false, "Revoke the role instead of assigning it.")

	verifyTokenCmd := flag.NewFlagSet("verifytoken", flag.ContinueOnError)
	verifyTokenSync := verifyTokenCmd.Bool("sync", false, "Sync the token's user once verified.")

	auditLogCmd := flag.NewFlagSet("auditlog", flag.ContinueOnError)
	auditLogEmail := auditLogCmd.String("email", "", "The user's email.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "initroles":
		return cli.initRoles()
	case "setrole":
		if err := setRoleCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setRoleEmail == "" || *setRoleName == "" {
			setRoleCmd.Usage()
			return errHelp
		}
		return cli.setRole(*setRoleEmail, *setRoleName, *setRoleRevoke)
	case "verifytoken":
		if err := verifyTokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.verifyToken(*verifyTokenSync)
	case "auditlog":
		if err := auditLogCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *auditLogEmail == "" {
			auditLogCmd.Usage()
			return errHelp
		}
		return cli.auditLog(*auditLogEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}

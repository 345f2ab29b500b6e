package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/auth"
	"github.com/trezcool/cshub/core/user"
	inmemdb "github.com/trezcool/cshub/storage/database/inmem"
	testutil "github.com/trezcool/cshub/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()
	usrRepo = inmemdb.NewRepository(inmemdb.NewDB())
	validate, _ := testutil.NewValidator()
	out := new(bytes.Buffer)

	return &commandLine{
		usrSvc:   user.NewService(usrRepo, nil, testutil.NewLogger(), validate),
		verifier: auth.NewVerifier(testutil.NewConfig()),
		out:      out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITest(t *testing.T, cli *commandLine, tt cliTest) error {
	t.Helper()
	args := append([]string{"admin"}, tt.args...)
	err := cli.run(args)
	switch {
	case tt.wantErr != nil:
		assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
	return err
}

func Test_commandLine_run(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "setrole: no args", args: []string{"setrole"}, wantErr: errHelp},
		{name: "setrole: no role", args: []string{"setrole", "-email", "jane@example.com"}, wantErr: errHelp},
		{name: "auditlog: no args", args: []string{"auditlog"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runCLITest(t, cli, tt)
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotCommand string
	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		gotCommand = command
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "courses", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCommand = ""
			if err := runCLITest(t, cli, tt); err == nil {
				assert.Equal(t, tt.args[1], gotCommand)
			}
		})
	}
}

func Test_commandLine_initRoles(t *testing.T) {
	cli, out := setup(t)

	runCLITest(t, cli, cliTest{args: []string{"initroles"}})
	runCLITest(t, cli, cliTest{args: []string{"initroles"}}) // idempotent

	roles, err := usrRepo.QueryRoles(context.Background())
	require.NoError(t, err)
	assert.Len(t, roles, len(user.AllRoles))
	assert.Contains(t, out.String(), "instructor\tInstructor")
}

func Test_commandLine_setRole(t *testing.T) {
	cli, out := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "sub-jane", "jane@example.com", "jane", []string{user.RoleStudent}, true)

	var vErr *core.ValidationError
	tests := []cliTest{
		{name: "user not found", args: []string{"setrole", "-email", "nobody@example.com", "-role", "admin"}, wantErr: user.ErrNotFound},
		{name: "invalid role", args: []string{"setrole", "-email", "jane@example.com", "-role", "wizard"}, extra: &vErr},
		{name: "revoke role not held", args: []string{"setrole", "-email", "jane@example.com", "-role", "admin", "-revoke"}, wantErr: user.ErrRoleNotHeld},
		{name: "assign", args: []string{"setrole", "-email", "Jane@Example.com", "-role", "admin"}},
		{name: "assign again", args: []string{"setrole", "-email", "jane@example.com", "-role", "admin"}},
		{name: "revoke", args: []string{"setrole", "-email", "jane@example.com", "-role", "student", "-revoke"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if target, ok := tt.extra.(**core.ValidationError); ok {
				err := cli.run(append([]string{"admin"}, tt.args...))
				assert.True(t, errors.As(err, target), "cli.run() error = %v, want a validation error", err)
				return
			}
			runCLITest(t, cli, tt)
		})
	}

	refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleAdmin}, refreshed.Roles)
	assert.Contains(t, out.String(), "Role Admin assigned to jane@example.com")
	assert.Contains(t, out.String(), "Role Student revoked from jane@example.com")

	// system assignments have no actor
	logs, err := usrRepo.QueryAuditLogs(context.Background(), user.EntityUserRole, usr.ID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	for _, entry := range logs {
		assert.False(t, entry.ActorID.Valid)
	}
}

func Test_commandLine_verifyToken(t *testing.T) {
	cli, out := setup(t)
	validToken := testutil.NewToken(t, "sub-jane", "jane@example.com", time.Hour)
	expiredToken := testutil.NewToken(t, "sub-jane", "jane@example.com", -time.Hour)

	type extra struct {
		token string
	}
	tests := []cliTest{
		{name: "no token", args: []string{"verifytoken"}, wantErr: errHelp},
		{name: "expired token", args: []string{"verifytoken"}, extra: extra{expiredToken}, wantErr: &auth.Error{Kind: auth.ErrTokenExpired}},
		{name: "invalid token", args: []string{"verifytoken"}, extra: extra{"lol"}, wantErr: &auth.Error{Kind: auth.ErrTokenInvalid}},
		{name: "valid token", args: []string{"verifytoken"}, extra: extra{validToken}},
		{name: "valid token with sync", args: []string{"verifytoken", "-sync"}, extra: extra{validToken + "\n"}},
	}
	for _, tt := range tests {
		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.token), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			runCLITest(t, cli, tt)
		})
	}

	assert.Equal(t, 2, strings.Count(out.String(), "subject: sub-jane"))
	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{SupabaseID: "sub-jane"})
	require.NoError(t, err, "-sync should create the user")
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	assert.Contains(t, out.String(), "synced user "+usr.ID+" (created: true")
}

func Test_commandLine_auditLog(t *testing.T) {
	cli, out := setup(t)
	_, _, err := cli.usrSvc.Sync(context.Background(), user.Identity{SupabaseID: "sub-jane", Email: "jane@example.com"})
	require.NoError(t, err)

	runCLITest(t, cli, cliTest{args: []string{"auditlog", "-email", "nobody@example.com"}, wantErr: user.ErrNotFound})
	runCLITest(t, cli, cliTest{args: []string{"auditlog", "-email", "jane@example.com"}})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2, "user creation and default role assignment")
	for _, line := range lines {
		assert.Contains(t, line, user.ActionCreate)
		assert.Contains(t, line, "system")
	}
}

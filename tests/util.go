package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/auth"
	"github.com/trezcool/cshub/core/user"
	logsvc "github.com/trezcool/cshub/services/logger"
	"github.com/trezcool/cshub/storage/database"
)

const (
	JWTSecret   = "test-secret-with-at-least-32-characters!!"
	JWTAudience = "authenticated"
)

// NewConfig returns a test configuration that does not depend on the environment.
func NewConfig() *core.Config {
	conf := &core.Config{
		Debug:    false,
		TestMode: true,
		AppName:  "Computer Students Hub",
		Env:      "TEST",
		Build:    "test",
	}
	conf.Server.DisableReqLogs = true
	conf.Server.ShutdownTimeout = time.Second
	conf.Supabase.JWTSecret = JWTSecret
	conf.Supabase.JWTAudience = JWTAudience
	conf.Supabase.JWTLeeway = time.Second
	conf.Cache.Engine = "memory"
	conf.Cache.Size = 100
	conf.Cache.TTL = time.Minute
	return conf
}

// NewLogger returns a logger that discards everything.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator with every app validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// NewToken returns a signed Supabase-like access token valid for ttl (expired when ttl is negative).
func NewToken(t *testing.T, sub, email string, ttl time.Duration, meta ...auth.UserMetadata) string {
	t.Helper()
	claims := auth.NewClaims(sub, email, JWTAudience, ttl)
	if len(meta) > 0 {
		claims.UserMetadata = meta[0]
	}
	token, err := auth.NewToken(claims, JWTSecret)
	if err != nil {
		t.Fatalf("NewToken() failed: %v", err)
	}
	return token
}

// CreateUser stores a user holding roles directly in repo.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	supabaseID, email, displayName string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	ctx := context.Background()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr, _, err := repo.CreateUserIfNotExist(ctx, user.User{
		ID:          newID(t),
		SupabaseID:  supabaseID,
		Email:       email,
		DisplayName: displayName,
		IsActive:    isActive,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}

	for _, name := range roles {
		cfg := user.DefaultRoles[name]
		role, _, err := repo.GetOrCreateRole(ctx, user.Role{
			Name:        name,
			DisplayName: cfg.DisplayName,
			Description: cfg.Description,
			Permissions: cfg.Permissions,
			CreatedAt:   tstamp,
		})
		if err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
		if _, err = repo.AssignRole(ctx, usr.ID, role.ID, null.String{}, tstamp); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}

	usr, err = repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// PrepareDB connects to the test database and resets its schema.
// Tests are skipped unless CSHUB_DB_TESTS is set (they need a running Postgres).
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("CSHUB_DB_TESTS") == "" || testing.Short() {
		t.Skip("skipping database tests: set CSHUB_DB_TESTS to run them")
	}

	if os.Getenv("ENV") == "" {
		_ = os.Setenv("ENV", "TEST")
	}
	conf := core.NewConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.RunMigrations(db, "reset"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	// drop the seeded roles: tests create the roles they need
	if _, err = db.Exec("TRUNCATE roles CASCADE"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

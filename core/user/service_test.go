package user_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/user"
	"github.com/trezcool/cshub/storage/cache"
	inmemdb "github.com/trezcool/cshub/storage/database/inmem"
	testutil "github.com/trezcool/cshub/tests"
)

var errBoom = errors.New("boom")

// spyRepo counts user upserts and optionally fails role assignments, also within transactions.
type spyRepo struct {
	user.Repository
	failAssign bool
	upserts    *int
}

func (r spyRepo) Transact(ctx context.Context, fn func(repo user.Repository) error) error {
	return r.Repository.Transact(ctx, func(tx user.Repository) error {
		return fn(spyRepo{Repository: tx, failAssign: r.failAssign, upserts: r.upserts})
	})
}

func (r spyRepo) CreateUserIfNotExist(ctx context.Context, usr user.User) (user.User, bool, error) {
	*r.upserts++
	return r.Repository.CreateUserIfNotExist(ctx, usr)
}

func (r spyRepo) AssignRole(ctx context.Context, userID string, roleID int, by null.String, at time.Time) (bool, error) {
	if r.failAssign {
		return false, errBoom
	}
	return r.Repository.AssignRole(ctx, userID, roleID, by, at)
}

// recordingLogger keeps the info messages it receives.
type recordingLogger struct {
	core.Logger
	infos []string
}

func (l *recordingLogger) Info(msg string, args ...interface{}) {
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) audits() []string {
	var msgs []string
	for _, msg := range l.infos {
		if strings.HasPrefix(msg, "audit: ") {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

type fixture struct {
	db      *inmemdb.DB
	repo    user.Repository
	svc     *user.Service
	logger  *recordingLogger
	upserts *int
}

func newFixture(failAssign bool) fixture {
	db := inmemdb.NewDB()
	upserts := new(int)
	repo := spyRepo{Repository: inmemdb.NewRepository(db), failAssign: failAssign, upserts: upserts}
	validate, _ := testutil.NewValidator()
	logger := &recordingLogger{Logger: testutil.NewLogger()}
	svc := user.NewService(repo, cache.NewLRU(100, time.Minute), logger, validate)
	return fixture{db: db, repo: repo, svc: svc, logger: logger, upserts: upserts}
}

func janeIdentity() user.Identity {
	return user.Identity{SupabaseID: "sub-jane", Email: "Jane@Example.com "}
}

func TestService_Sync(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	usr, created, err := f.svc.Sync(ctx, janeIdentity())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "sub-jane", usr.SupabaseID)
	assert.Equal(t, "jane@example.com", usr.Email)
	assert.Equal(t, "jane", usr.DisplayName, "display name should default to the email local part")
	assert.True(t, usr.IsActive)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	require.NotNil(t, usr.Profile)

	trail, err := f.svc.AuditTrail(ctx, usr)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, user.EntityUserRole, trail[0].EntityType)
	assert.Equal(t, user.EntityUser, trail[1].EntityType)
	assert.False(t, trail[0].ActorID.Valid, "default role is a system assignment")
}

func TestService_Sync_idempotent(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	var id string
	for i := 0; i < 5; i++ {
		usr, created, err := f.svc.Sync(ctx, janeIdentity())
		require.NoError(t, err)
		assert.Equal(t, i == 0, created)
		if id == "" {
			id = usr.ID
		}
		assert.Equal(t, id, usr.ID)
		assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	}

	users, profiles, userRoles := f.db.Counts()
	assert.Equal(t, 1, users)
	assert.Equal(t, 1, profiles)
	assert.Equal(t, 1, userRoles)
}

func TestService_Sync_updates(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	ident := janeIdentity()
	ident.DisplayName = "Jane"
	_, _, err := f.svc.Sync(ctx, ident)
	require.NoError(t, err)

	ident.Email = "jane.doe@example.com"
	ident.DisplayName = "Jane Doe"
	ident.AvatarURL = "https://cdn.example.com/jane.png"
	usr, created, err := f.svc.Sync(ctx, ident)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "jane.doe@example.com", usr.Email)
	assert.Equal(t, "Jane Doe", usr.DisplayName)
	assert.Equal(t, "https://cdn.example.com/jane.png", usr.Profile.AvatarURL)

	// empty claims do not erase local data
	ident.DisplayName = ""
	ident.AvatarURL = ""
	usr, _, err = f.svc.Sync(ctx, ident)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", usr.DisplayName)
	assert.Equal(t, "https://cdn.example.com/jane.png", usr.Profile.AvatarURL)
}

func TestService_Sync_truncatesDisplayName(t *testing.T) {
	f := newFixture(false)
	ident := janeIdentity()
	ident.DisplayName = strings.Repeat("é", 150)

	usr, _, err := f.svc.Sync(context.Background(), ident)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 100), usr.DisplayName)
}

func TestService_Sync_distinctSubjects(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	jane, _, err := f.svc.Sync(ctx, janeIdentity())
	require.NoError(t, err)
	john, created, err := f.svc.Sync(ctx, user.Identity{SupabaseID: "sub-john", Email: "john@example.com"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, jane.ID, john.ID)

	users, _, userRoles := f.db.Counts()
	assert.Equal(t, 2, users)
	assert.Equal(t, 2, userRoles)
}

func TestService_Sync_emailConflict(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	_, _, err := f.svc.Sync(ctx, janeIdentity())
	require.NoError(t, err)

	_, _, err = f.svc.Sync(ctx, user.Identity{SupabaseID: "sub-other", Email: "jane@example.com"})
	require.Error(t, err)
	var conflict *core.ConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.True(t, errors.Is(err, user.ErrEmailExists))
}

func TestService_Sync_rollsBack(t *testing.T) {
	f := newFixture(true)

	_, _, err := f.svc.Sync(context.Background(), janeIdentity())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))

	users, profiles, userRoles := f.db.Counts()
	assert.Zero(t, users, "user insert should be rolled back")
	assert.Zero(t, profiles)
	assert.Zero(t, userRoles)
	assert.Empty(t, f.logger.audits(), "rolled back audit entries should not be logged")
}

func TestService_Sync_logsCommittedAudits(t *testing.T) {
	f := newFixture(false)

	usr, _, err := f.svc.Sync(context.Background(), janeIdentity())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"audit: create user " + usr.ID,
		"audit: create user_role " + usr.ID,
	}, f.logger.audits())
}

func TestService_Sync_invalidIdentity(t *testing.T) {
	f := newFixture(false)
	tests := []struct {
		name  string
		ident user.Identity
		field string
	}{
		{name: "no subject", ident: user.Identity{Email: "jane@example.com"}, field: "sub"},
		{name: "blank email", ident: user.Identity{SupabaseID: "sub-jane", Email: "  "}, field: "email"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.svc.Sync(context.Background(), tc.ident)
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr))
			require.Len(t, vErr.Fields, 1)
			assert.Equal(t, tc.field, vErr.Fields[0].Field)
		})
	}
	users, _, _ := f.db.Counts()
	assert.Zero(t, users)
}

func TestService_Authenticate(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	user.NowFunc = func() time.Time { return now }
	defer func() { user.NowFunc = func() time.Time { return time.Now().UTC() } }()

	usr, err := f.svc.Authenticate(ctx, janeIdentity())
	require.NoError(t, err)
	assert.Equal(t, 1, *f.upserts)
	assert.Equal(t, null.TimeFrom(now), usr.LastLogin)

	// same claims: served from the sync cache
	again, err := f.svc.Authenticate(ctx, janeIdentity())
	require.NoError(t, err)
	assert.Equal(t, 1, *f.upserts)
	assert.Equal(t, usr.ID, again.ID)
	assert.Equal(t, []string{user.RoleStudent}, again.Roles)

	// changed claims: synced again
	ident := janeIdentity()
	ident.DisplayName = "Jane"
	changed, err := f.svc.Authenticate(ctx, ident)
	require.NoError(t, err)
	assert.Equal(t, 2, *f.upserts)
	assert.Equal(t, "Jane", changed.DisplayName)
}

func TestService_Authenticate_noCache(t *testing.T) {
	db := inmemdb.NewDB()
	validate, _ := testutil.NewValidator()
	svc := user.NewService(inmemdb.NewRepository(db), nil, testutil.NewLogger(), validate)

	for i := 0; i < 3; i++ {
		_, err := svc.Authenticate(context.Background(), janeIdentity())
		require.NoError(t, err)
	}
	users, _, userRoles := db.Counts()
	assert.Equal(t, 1, users)
	assert.Equal(t, 1, userRoles)
}

func TestService_UpdateProfile(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	usr, _, err := f.svc.Sync(ctx, janeIdentity())
	require.NoError(t, err)

	bio, site := "  Loves compilers ", "https://jane.dev"
	p, err := f.svc.UpdateProfile(ctx, &usr, user.UpdateProfile{Bio: &bio, Website: &site})
	require.NoError(t, err)
	assert.Equal(t, "Loves compilers", p.Bio)
	assert.Equal(t, "https://jane.dev", p.Website)

	loc := "Kinshasa"
	p, err = f.svc.UpdateProfile(ctx, &usr, user.UpdateProfile{Location: &loc})
	require.NoError(t, err)
	assert.Equal(t, "Loves compilers", p.Bio, "omitted fields should be left untouched")
	assert.Equal(t, "Kinshasa", usr.Profile.Location)

	long, badURL, badHandle := strings.Repeat("x", 501), "not a url", "jane doe"
	_, err = f.svc.UpdateProfile(ctx, &usr, user.UpdateProfile{Bio: &long, LinkedinURL: &badURL, GithubUsername: &badHandle})
	require.Error(t, err)
}

func TestService_Deactivate(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.repo, "sub-admin", "admin@example.com", "Admin", []string{user.RoleAdmin}, true)
	usr, _, err := f.svc.Sync(ctx, janeIdentity())
	require.NoError(t, err)

	err = f.svc.Deactivate(ctx, &admin, &admin)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.True(t, errors.Is(err, user.ErrSelfDeactivate))

	require.NoError(t, f.svc.Deactivate(ctx, &usr, &admin))
	assert.False(t, usr.IsActive)
	got, err := f.svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, f.svc.Activate(ctx, &usr, &admin))
	got, err = f.svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	trail, err := f.svc.AuditTrail(ctx, usr)
	require.NoError(t, err)
	assert.Equal(t, user.ActionUpdate, trail[0].Action)
	assert.Equal(t, null.StringFrom(admin.ID), trail[0].ActorID)
}

func TestService_Statistics(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.repo, "sub-1", "jane@example.com", "Jane", nil, true)

	stats, err := f.svc.Statistics(ctx, usr)
	require.NoError(t, err)
	assert.Equal(t, user.Statistics{}, stats, "no profile yet")

	_, err = f.svc.IncrementStatistic(ctx, usr, "total_likes", 1, nil)
	var fieldErrs validator.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs), "got %v", err)
	assert.Equal(t, "statistic", fieldErrs[0].Field())
	assert.Equal(t, "statistic", fieldErrs[0].Tag())

	stats, err = f.svc.IncrementStatistic(ctx, usr, user.StatQuestions, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalQuestions)
	stats, err = f.svc.IncrementStatistic(ctx, usr, user.StatReputation, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, user.Statistics{TotalQuestions: 1, ReputationScore: 10}, stats)

	stats, err = f.svc.Statistics(ctx, usr)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.ReputationScore)

	// counters cannot drop below zero, the reputation score can
	_, err = f.svc.IncrementStatistic(ctx, usr, user.StatQuestions, -2, nil)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)
	assert.Equal(t, "amount", vErr.Fields[0].Field)

	stats, err = f.svc.IncrementStatistic(ctx, usr, user.StatQuestions, -1, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalQuestions)
	stats, err = f.svc.IncrementStatistic(ctx, usr, user.StatReputation, -15, nil)
	require.NoError(t, err)
	assert.Equal(t, -5, stats.ReputationScore)
}

func TestService_Query(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	now := time.Now().UTC()
	old := testutil.CreateUser(t, f.repo, "sub-1", "b@example.com", "B", nil, true, now.Add(-time.Hour))
	recent := testutil.CreateUser(t, f.repo, "sub-2", "a@example.com", "A", nil, true, now)

	users, err := f.svc.Query(ctx, nil, []core.DBOrdering{{Field: "password", Ascending: true}})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, recent.ID, users[0].ID, "default ordering is -created_at")

	users, err = f.svc.Query(ctx, &user.QueryFilter{}, []core.DBOrdering{{Field: "EMAIL", Ascending: false}})
	require.NoError(t, err)
	assert.Equal(t, old.ID, users[0].ID)
}

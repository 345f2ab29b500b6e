package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/user"
)

const userColumns = "id, supabase_id, email, display_name, is_active, last_login, created_at, updated_at"

var userOrderingFields = []string{"created_at", "email", "display_name"}

func (repo *repository) CreateUserIfNotExist(ctx context.Context, usr user.User) (user.User, bool, error) {
	var id string
	created, err := repo.insertReturning(ctx, &id, `
		INSERT INTO users (id, supabase_id, email, display_name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (supabase_id) DO NOTHING
		RETURNING id`,
		usr.ID, usr.SupabaseID, usr.Email, usr.DisplayName, usr.IsActive, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, false, trapUniqueErr(err)
	}
	if created {
		return usr, true, nil
	}

	existing, err := repo.getUser(ctx, "supabase_id = ?", usr.SupabaseID)
	if err != nil {
		return user.User{}, false, errors.Wrap(err, "finding user by supabase ID")
	}
	return existing, false, nil
}

// getUser returns the user matching cond without its roles and profile.
func (repo *repository) getUser(ctx context.Context, cond string, args ...interface{}) (user.User, error) {
	var usr user.User
	err := repo.get(ctx, &usr, "SELECT "+userColumns+" FROM users WHERE "+cond, args...)
	return usr, trapNoRowsErr(err, user.ErrNotFound)
}

// GetUser returns the user with its roles and profile (nil when missing).
func (repo *repository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		usr user.User
		err error
	)
	switch {
	case filter.ID != "":
		usr, err = repo.getUser(ctx, "id = ?", filter.ID)
	case filter.SupabaseID != "":
		usr, err = repo.getUser(ctx, "supabase_id = ?", filter.SupabaseID)
	case filter.Email != "":
		usr, err = repo.getUser(ctx, "email = ?", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}

	if usr.Roles, err = repo.UserRoles(ctx, usr.ID); err != nil {
		return user.User{}, err
	}

	var profile user.Profile
	err = repo.get(ctx, &profile, "SELECT * FROM user_profiles WHERE user_id = ?", usr.ID)
	switch err = trapNoRowsErr(err, user.ErrNotFound); {
	case err == nil:
		usr.Profile = &profile
	case !errors.Is(err, user.ErrNotFound):
		return user.User{}, errors.Wrap(err, "getting profile")
	}
	return usr, nil
}

func (repo *repository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Search != "" {
			pattern := "%" + escapeLike(filter.Search) + "%"
			where = append(where, "(email ILIKE ? OR display_name ILIKE ?)")
			args = append(args, pattern, pattern)
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = ?")
			args = append(args, *filter.IsActive)
		}
		if len(filter.Roles) > 0 {
			where = append(where, `id IN (
				SELECT ur.user_id FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE r.name IN (?))`)
			args = append(args, filter.Roles)
		}
	}

	q := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if ordering = core.CleanOrderings(ordering, userOrderingFields...); len(ordering) > 0 {
		orderBy := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderBy = append(orderBy, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderBy, ", ")
	}

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "expanding query")
	}
	var users []user.User
	if err = repo.selectAll(ctx, &users, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	if err = repo.loadRoles(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

// loadRoles fetches the roles of all users in a single query.
func (repo *repository) loadRoles(ctx context.Context, users []user.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, len(users))
	for i, usr := range users {
		ids[i] = usr.ID
	}

	q, args, err := sqlx.In(`
		SELECT ur.user_id, r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id IN (?) ORDER BY r.id`, ids)
	if err != nil {
		return errors.Wrap(err, "expanding query")
	}
	var rows []struct {
		UserID string `db:"user_id"`
		Name   string `db:"name"`
	}
	if err = repo.selectAll(ctx, &rows, q, args...); err != nil {
		return errors.Wrap(err, "querying user roles")
	}

	roles := make(map[string][]string, len(users))
	for _, row := range rows {
		roles[row.UserID] = append(roles[row.UserID], row.Name)
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
		if users[i].Roles == nil {
			users[i].Roles = []string{}
		}
	}
	return nil
}

func (repo *repository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	n, err := repo.execute(ctx, `
		UPDATE users SET email = ?, display_name = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		usr.Email, usr.DisplayName, usr.IsActive, usr.UpdatedAt, usr.ID,
	)
	if err != nil {
		return user.User{}, trapUniqueErr(err)
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *repository) SetLastLogin(ctx context.Context, userID string, at time.Time) error {
	n, err := repo.execute(ctx, "UPDATE users SET last_login = ? WHERE id = ?", at, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

// GetOrCreateProfile locks the profile row until the end of the running transaction (if any).
func (repo *repository) GetOrCreateProfile(ctx context.Context, userID string, now time.Time) (user.Profile, bool, error) {
	var id string
	created, err := repo.insertReturning(ctx, &id, `
		INSERT INTO user_profiles (user_id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING user_id`,
		userID, now, now,
	)
	if err != nil {
		return user.Profile{}, false, errors.Wrap(err, "creating profile")
	}

	q := "SELECT * FROM user_profiles WHERE user_id = ?"
	if repo.inTx() {
		q += " FOR UPDATE"
	}
	var profile user.Profile
	if err = repo.get(ctx, &profile, q, userID); err != nil {
		return user.Profile{}, false, errors.Wrap(trapNoRowsErr(err, user.ErrNotFound), "getting profile")
	}
	return profile, created, nil
}

func (repo *repository) UpdateProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	n, err := repo.execute(ctx, `
		UPDATE user_profiles SET
			bio = ?, avatar_url = ?, location = ?, website = ?, github_username = ?, linkedin_url = ?,
			total_bookmarks = ?, total_contributions = ?, total_questions = ?, total_answers = ?,
			reputation_score = ?, updated_at = ?
		WHERE user_id = ?`,
		p.Bio, p.AvatarURL, p.Location, p.Website, p.GithubUsername, p.LinkedinURL,
		p.TotalBookmarks, p.TotalContributions, p.TotalQuestions, p.TotalAnswers,
		p.ReputationScore, p.UpdatedAt,
		p.UserID,
	)
	if err != nil {
		return user.Profile{}, err
	}
	if n == 0 {
		return user.Profile{}, user.ErrNotFound
	}
	return p, nil
}

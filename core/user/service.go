package user

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cshub/core"
)

var (
	// errors
	ErrNotFound        = errors.New("user not found")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrRoleNotFound    = errors.New("role not found")
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrSelfDeactivate  = errors.New("users cannot deactivate themselves")
	ErrRoleNotHeld     = errors.New("user does not have this role")
)

var orderingFields = []string{"created_at", "email", "display_name"}

var defaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}

type (
	Repository interface {
		// Transact runs fn against a Repository bound to a single transaction.
		// The transaction is rolled back when fn returns an error.
		Transact(ctx context.Context, fn func(repo Repository) error) error

		// CreateUserIfNotExist inserts usr unless a user with the same SupabaseID exists,
		// in which case the existing user is returned with created == false.
		CreateUserIfNotExist(ctx context.Context, usr User) (u User, created bool, err error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Email or User.DisplayName.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, userID string, at time.Time) error

		GetOrCreateProfile(ctx context.Context, userID string, now time.Time) (p Profile, created bool, err error)
		UpdateProfile(ctx context.Context, p Profile) (Profile, error)

		GetOrCreateRole(ctx context.Context, role Role) (r Role, created bool, err error)
		GetRole(ctx context.Context, filter RoleFilter) (Role, error)
		QueryRoles(ctx context.Context) ([]Role, error)
		// AssignRole returns false if the user already holds the role.
		AssignRole(ctx context.Context, userID string, roleID int, assignedBy null.String, at time.Time) (bool, error)
		// RevokeRole returns false if the user did not hold the role.
		RevokeRole(ctx context.Context, userID string, roleID int) (bool, error)
		UserRoles(ctx context.Context, userID string) ([]string, error)

		CreateAuditLog(ctx context.Context, log AuditLog) (AuditLog, error)
		QueryAuditLogs(ctx context.Context, entityType, entityID string) ([]AuditLog, error)
	}

	ServiceInterface interface {
		Sync(ctx context.Context, ident Identity) (User, bool, error)
		Authenticate(ctx context.Context, ident Identity) (User, error)

		GetByID(ctx context.Context, id string) (User, error)
		GetBySupabaseID(ctx context.Context, supabaseID string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateProfile(ctx context.Context, usr *User, data UpdateProfile) (Profile, error)
		Deactivate(ctx context.Context, usr *User, by *User) error
		Activate(ctx context.Context, usr *User, by *User) error
		Statistics(ctx context.Context, usr User) (Statistics, error)
		IncrementStatistic(ctx context.Context, usr User, name string, amount int, by *User) (Statistics, error)
		SetLastLogin(ctx context.Context, usr *User) error
		AuditTrail(ctx context.Context, usr User) ([]AuditLog, error)

		AssignRole(ctx context.Context, usr *User, roleName string, by *User) (bool, error)
		RevokeRole(ctx context.Context, usr *User, roleName string, by *User) (bool, error)
		PromoteToInstructor(ctx context.Context, usr *User, by *User) (bool, error)
		PromoteToAdmin(ctx context.Context, usr *User, by *User) (bool, error)
		UsersByRole(ctx context.Context, roleName string) ([]User, error)
		QueryRoles(ctx context.Context) ([]Role, error)
		GetRole(ctx context.Context, id int) (Role, error)
		InitializeDefaultRoles(ctx context.Context) ([]Role, error)
	}

	Service struct {
		repo     Repository
		cache    core.Cache
		logger   core.Logger
		validate *validator.Validate
	}
)

var _ ServiceInterface = (*Service)(nil)

// NewService returns a user Service. cache may be nil, in which case every authentication runs a full sync.
func NewService(repo Repository, cache core.Cache, logger core.Logger, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		logger:   logger,
		validate: validate,
	}
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetBySupabaseID(ctx context.Context, supabaseID string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{SupabaseID: core.CleanString(supabaseID)})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Query filters users. Orderings on unknown fields are dropped; the default ordering is "-created_at".
func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	ordering = core.CleanOrderings(ordering, orderingFields...)
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) UpdateProfile(ctx context.Context, usr *User, data UpdateProfile) (Profile, error) {
	if err := data.Validate(svc.validate); err != nil {
		return Profile{}, err
	}

	var profile Profile
	err := svc.transact(ctx, func(repo Repository) error {
		now := NowFunc()
		old, _, err := repo.GetOrCreateProfile(ctx, usr.ID, now)
		if err != nil {
			return errors.Wrap(err, "getting profile")
		}

		profile = old
		data.apply(&profile)
		profile.UpdatedAt = now
		if profile, err = repo.UpdateProfile(ctx, profile); err != nil {
			return errors.Wrap(err, "updating profile")
		}

		return svc.audit(ctx, repo, AuditLog{
			EntityType: EntityProfile,
			EntityID:   usr.ID,
			Action:     ActionUpdate,
			ActorID:    null.StringFrom(usr.ID),
			OldData:    profileData(old),
			NewData:    profileData(profile),
		})
	})
	if err != nil {
		return Profile{}, err
	}
	usr.Profile = &profile
	return profile, nil
}

// Deactivate marks usr as inactive. by is nil for system actions.
func (svc *Service) Deactivate(ctx context.Context, usr *User, by *User) error {
	if by != nil && by.ID == usr.ID {
		return core.NewValidationError(ErrSelfDeactivate)
	}
	return svc.setActive(ctx, usr, false, by)
}

func (svc *Service) Activate(ctx context.Context, usr *User, by *User) error {
	return svc.setActive(ctx, usr, true, by)
}

func (svc *Service) setActive(ctx context.Context, usr *User, active bool, by *User) error {
	var updated User
	err := svc.transact(ctx, func(repo Repository) error {
		current, err := repo.GetUser(ctx, GetFilter{ID: usr.ID})
		if err != nil {
			return errors.Wrap(err, "finding user by ID")
		}
		oldActive := current.IsActive
		current.IsActive = active
		current.UpdatedAt = NowFunc()
		if updated, err = repo.UpdateUser(ctx, current); err != nil {
			return errors.Wrap(err, "updating user")
		}

		return svc.audit(ctx, repo, AuditLog{
			EntityType: EntityUser,
			EntityID:   usr.ID,
			Action:     ActionUpdate,
			ActorID:    actorID(by),
			OldData:    AuditData{"is_active": oldActive},
			NewData:    AuditData{"is_active": active},
		})
	})
	if err != nil {
		return err
	}
	usr.IsActive = updated.IsActive
	usr.UpdatedAt = updated.UpdatedAt
	return nil
}

// Statistics returns the user's statistics, all zeros when the user has no profile yet.
func (svc *Service) Statistics(ctx context.Context, usr User) (Statistics, error) {
	if usr.Profile != nil {
		return usr.Profile.Statistics, nil
	}
	u, err := svc.repo.GetUser(ctx, GetFilter{ID: usr.ID})
	if err != nil {
		return Statistics{}, errors.Wrap(err, "finding user by ID")
	}
	if u.Profile == nil {
		return Statistics{}, nil
	}
	return u.Profile.Statistics, nil
}

// IncrementStatistic adds amount (possibly negative) to the named statistic, creating the user's profile if missing.
// Counters other than the reputation score cannot drop below zero.
func (svc *Service) IncrementStatistic(ctx context.Context, usr User, name string, amount int, by *User) (Statistics, error) {
	data := StatisticIncrement{Statistic: name, Amount: amount}
	if err := data.Validate(svc.validate); err != nil {
		return Statistics{}, err
	}

	var profile Profile
	err := svc.transact(ctx, func(repo Repository) error {
		now := NowFunc()
		p, _, err := repo.GetOrCreateProfile(ctx, usr.ID, now)
		if err != nil {
			return errors.Wrap(err, "getting profile")
		}
		p.add(data.Statistic, data.Amount)
		if p.Statistics.isNegative(data.Statistic) {
			return core.NewValidationError(
				errors.Errorf("%s cannot be negative", data.Statistic),
				core.FieldError{Field: "amount", Error: negativeStatText},
			)
		}
		p.UpdatedAt = now
		if profile, err = repo.UpdateProfile(ctx, p); err != nil {
			return errors.Wrap(err, "updating profile")
		}

		return svc.audit(ctx, repo, AuditLog{
			EntityType: EntityProfile,
			EntityID:   usr.ID,
			Action:     ActionUpdate,
			ActorID:    actorID(by),
			Metadata:   AuditData{"statistic": data.Statistic, "amount": data.Amount},
		})
	})
	if err != nil {
		return Statistics{}, err
	}
	return profile.Statistics, nil
}

func (svc *Service) SetLastLogin(ctx context.Context, usr *User) error {
	now := NowFunc()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return errors.Wrap(err, "setting last login")
	}
	usr.LastLogin = null.TimeFrom(now)
	return nil
}

// AuditTrail returns the audit entries recorded for usr, newest first.
func (svc *Service) AuditTrail(ctx context.Context, usr User) ([]AuditLog, error) {
	return svc.repo.QueryAuditLogs(ctx, "", usr.ID)
}

// transact runs fn in a single transaction. The audit entries fn creates are logged once committed.
func (svc *Service) transact(ctx context.Context, fn func(repo Repository) error) error {
	var created []AuditLog
	err := svc.repo.Transact(ctx, func(tx Repository) error {
		return fn(auditRecorder{Repository: tx, created: &created})
	})
	if err != nil {
		return err
	}
	for _, log := range created {
		svc.logger.Info(fmt.Sprintf("audit: %s %s %s", log.Action, log.EntityType, log.EntityID), map[string]interface{}{
			"actor":    log.ActorID.String,
			"metadata": log.Metadata,
		})
	}
	return nil
}

// audit persists log within the current transaction.
func (svc *Service) audit(ctx context.Context, repo Repository, log AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = NowFunc()
	}
	if _, err := repo.CreateAuditLog(ctx, log); err != nil {
		return errors.Wrap(err, "creating audit log")
	}
	return nil
}

// auditRecorder keeps track of the audit entries created within a transaction.
type auditRecorder struct {
	Repository
	created *[]AuditLog
}

func (r auditRecorder) Transact(ctx context.Context, fn func(repo Repository) error) error {
	return r.Repository.Transact(ctx, func(tx Repository) error {
		return fn(auditRecorder{Repository: tx, created: r.created})
	})
}

func (r auditRecorder) CreateAuditLog(ctx context.Context, log AuditLog) (AuditLog, error) {
	log, err := r.Repository.CreateAuditLog(ctx, log)
	if err == nil {
		*r.created = append(*r.created, log)
	}
	return log, err
}

func profileData(p Profile) AuditData {
	return AuditData{
		"bio":             p.Bio,
		"avatar_url":      p.AvatarURL,
		"location":        p.Location,
		"website":         p.Website,
		"github_username": p.GithubUsername,
		"linkedin_url":    p.LinkedinURL,
	}
}

package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/user"
)

type repository struct {
	db *DB
	tx bool // the DB is already locked by Transact
}

var _ user.Repository = (*repository)(nil)

func NewRepository(db *DB) *repository {
	return &repository{db: db}
}

func (repo *repository) rlock() func() {
	if repo.tx {
		return func() {}
	}
	repo.db.mutex.RLock()
	return repo.db.mutex.RUnlock
}

func (repo *repository) lock() func() {
	if repo.tx {
		return func() {}
	}
	repo.db.mutex.Lock()
	return repo.db.mutex.Unlock
}

// Transact serializes transactions; the DB is restored to its previous state when fn fails.
func (repo *repository) Transact(ctx context.Context, fn func(repo user.Repository) error) (err error) {
	if repo.tx {
		return fn(repo)
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	snap := repo.db.snapshot()
	defer func() {
		if p := recover(); p != nil {
			repo.db.restore(snap)
			panic(p)
		}
	}()

	if err = ctx.Err(); err == nil {
		err = fn(&repository{db: repo.db, tx: true})
	}
	if err != nil {
		repo.db.restore(snap)
	}
	return err
}

func (repo *repository) rolesOf(userID string) []string {
	ids := make([]int, 0, 1)
	for _, ur := range repo.db.userRoles {
		if ur.userID == userID {
			ids = append(ids, ur.roleID)
		}
	}
	sort.Ints(ids)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, repo.db.roles[id].Name)
	}
	return names
}

func (repo *repository) emailTaken(email, exceptID string) bool {
	for _, usr := range repo.db.users {
		if usr.Email == email && usr.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *repository) CreateUserIfNotExist(_ context.Context, usr user.User) (user.User, bool, error) {
	defer repo.lock()()

	for _, existing := range repo.db.users {
		if existing.SupabaseID == usr.SupabaseID {
			existing.Roles = repo.rolesOf(existing.ID)
			return existing, false, nil
		}
	}
	if repo.emailTaken(usr.Email, "") {
		return user.User{}, false, user.ErrEmailExists
	}

	usr.Roles = nil
	usr.Profile = nil
	repo.db.users[usr.ID] = usr
	return usr, true, nil
}

func (repo *repository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	defer repo.rlock()()

	for _, usr := range repo.db.users {
		var match bool
		switch {
		case filter.ID != "":
			match = usr.ID == filter.ID
		case filter.SupabaseID != "":
			match = usr.SupabaseID == filter.SupabaseID
		case filter.Email != "":
			match = usr.Email == filter.Email
		}
		if match {
			usr.Roles = repo.rolesOf(usr.ID)
			if p, ok := repo.db.profiles[usr.ID]; ok {
				usr.Profile = &p
			}
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *repository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	defer repo.rlock()()

	if filter == nil {
		filter = new(user.QueryFilter)
	}
	search := strings.ToLower(filter.Search)

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if search != "" &&
			!strings.Contains(strings.ToLower(usr.Email), search) &&
			!strings.Contains(strings.ToLower(usr.DisplayName), search) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		usr.Roles = repo.rolesOf(usr.ID)
		if len(filter.Roles) > 0 && !hasAny(usr.Roles, filter.Roles) {
			continue
		}
		users = append(users, usr)
	}

	sortUsers(users, ordering)
	return users, nil
}

func hasAny(roles, wanted []string) bool {
	for _, r := range roles {
		for _, w := range wanted {
			if r == w {
				return true
			}
		}
	}
	return false
}

// sortUsers sorts by the given orderings, ID being the final tie breaker.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "created_at":
				cmp = compareTime(a.CreatedAt, b.CreatedAt)
			case "email":
				cmp = strings.Compare(a.Email, b.Email)
			case "display_name":
				cmp = strings.Compare(a.DisplayName, b.DisplayName)
			}
			if cmp != 0 {
				if ord.Ascending {
					return cmp < 0
				}
				return cmp > 0
			}
		}
		return a.ID < b.ID
	})
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *repository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	defer repo.lock()()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	orig.Email = usr.Email
	orig.DisplayName = usr.DisplayName
	orig.IsActive = usr.IsActive
	orig.UpdatedAt = usr.UpdatedAt
	repo.db.users[usr.ID] = orig
	return usr, nil
}

func (repo *repository) SetLastLogin(_ context.Context, userID string, at time.Time) error {
	defer repo.lock()()

	usr, ok := repo.db.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = null.TimeFrom(at)
	repo.db.users[userID] = usr
	return nil
}

func (repo *repository) GetOrCreateProfile(_ context.Context, userID string, now time.Time) (user.Profile, bool, error) {
	defer repo.lock()()

	if p, ok := repo.db.profiles[userID]; ok {
		return p, false, nil
	}
	if _, ok := repo.db.users[userID]; !ok {
		return user.Profile{}, false, user.ErrNotFound
	}
	p := user.Profile{UserID: userID, CreatedAt: now, UpdatedAt: now}
	repo.db.profiles[userID] = p
	return p, true, nil
}

func (repo *repository) UpdateProfile(_ context.Context, p user.Profile) (user.Profile, error) {
	defer repo.lock()()

	orig, ok := repo.db.profiles[p.UserID]
	if !ok {
		return user.Profile{}, user.ErrNotFound
	}
	p.CreatedAt = orig.CreatedAt
	repo.db.profiles[p.UserID] = p
	return p, nil
}

func (repo *repository) getRole(filter user.RoleFilter) (user.Role, bool) {
	if filter.ID != 0 {
		role, ok := repo.db.roles[filter.ID]
		return role, ok
	}
	for _, role := range repo.db.roles {
		if filter.Name != "" && role.Name == filter.Name {
			return role, true
		}
	}
	return user.Role{}, false
}

func (repo *repository) GetOrCreateRole(_ context.Context, role user.Role) (user.Role, bool, error) {
	defer repo.lock()()

	if existing, ok := repo.getRole(user.RoleFilter{Name: role.Name}); ok {
		return existing, false, nil
	}
	repo.db.roleSeq++
	role.ID = repo.db.roleSeq
	repo.db.roles[role.ID] = role
	return role, true, nil
}

func (repo *repository) GetRole(_ context.Context, filter user.RoleFilter) (user.Role, error) {
	defer repo.rlock()()

	if role, ok := repo.getRole(filter); ok {
		return role, nil
	}
	return user.Role{}, user.ErrRoleNotFound
}

func (repo *repository) QueryRoles(_ context.Context) ([]user.Role, error) {
	defer repo.rlock()()

	roles := make([]user.Role, 0, len(repo.db.roles))
	for _, role := range repo.db.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (repo *repository) AssignRole(_ context.Context, userID string, roleID int, assignedBy null.String, at time.Time) (bool, error) {
	defer repo.lock()()

	if _, ok := repo.db.users[userID]; !ok {
		return false, user.ErrNotFound
	}
	if _, ok := repo.db.roles[roleID]; !ok {
		return false, user.ErrRoleNotFound
	}
	for _, ur := range repo.db.userRoles {
		if ur.userID == userID && ur.roleID == roleID {
			return false, nil
		}
	}
	repo.db.userRoles = append(repo.db.userRoles, userRole{
		userID:     userID,
		roleID:     roleID,
		assignedBy: assignedBy,
		assignedAt: at,
	})
	return true, nil
}

func (repo *repository) RevokeRole(_ context.Context, userID string, roleID int) (bool, error) {
	defer repo.lock()()

	for i, ur := range repo.db.userRoles {
		if ur.userID == userID && ur.roleID == roleID {
			repo.db.userRoles = append(repo.db.userRoles[:i:i], repo.db.userRoles[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (repo *repository) UserRoles(_ context.Context, userID string) ([]string, error) {
	defer repo.rlock()()
	return repo.rolesOf(userID), nil
}

func (repo *repository) CreateAuditLog(_ context.Context, log user.AuditLog) (user.AuditLog, error) {
	defer repo.lock()()

	repo.db.auditSeq++
	log.ID = repo.db.auditSeq
	repo.db.auditLogs = append(repo.db.auditLogs, log)
	return log, nil
}

func (repo *repository) QueryAuditLogs(_ context.Context, entityType, entityID string) ([]user.AuditLog, error) {
	defer repo.rlock()()

	logs := make([]user.AuditLog, 0)
	for i := len(repo.db.auditLogs) - 1; i >= 0; i-- { // newest first
		log := repo.db.auditLogs[i]
		if log.EntityID == entityID && (entityType == "" || log.EntityType == entityType) {
			logs = append(logs, log)
		}
	}
	return logs, nil
}

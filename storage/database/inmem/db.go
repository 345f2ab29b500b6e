// Package inmemdb implements user.Repository in memory, for tests and local runs.
package inmemdb

import (
	"sync"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cshub/core/user"
)

type userRole struct {
	userID     string
	roleID     int
	assignedBy null.String
	assignedAt time.Time
}

// DB holds every table. Transactions lock the whole DB.
type DB struct {
	mutex sync.RWMutex

	users     map[string]user.User // by ID; Roles & Profile are never stored
	profiles  map[string]user.Profile
	roles     map[int]user.Role
	userRoles []userRole
	auditLogs []user.AuditLog

	roleSeq  int
	auditSeq int64
}

func NewDB() *DB {
	return &DB{
		users:    make(map[string]user.User),
		profiles: make(map[string]user.Profile),
		roles:    make(map[int]user.Role),
	}
}

// snapshot copies every table, so that a failed transaction can be rolled back.
func (db *DB) snapshot() *DB {
	snap := &DB{
		users:     make(map[string]user.User, len(db.users)),
		profiles:  make(map[string]user.Profile, len(db.profiles)),
		roles:     make(map[int]user.Role, len(db.roles)),
		userRoles: append([]userRole(nil), db.userRoles...),
		auditLogs: append([]user.AuditLog(nil), db.auditLogs...),
		roleSeq:   db.roleSeq,
		auditSeq:  db.auditSeq,
	}
	for k, v := range db.users {
		snap.users[k] = v
	}
	for k, v := range db.profiles {
		snap.profiles[k] = v
	}
	for k, v := range db.roles {
		snap.roles[k] = v
	}
	return snap
}

func (db *DB) restore(snap *DB) {
	db.users = snap.users
	db.profiles = snap.profiles
	db.roles = snap.roles
	db.userRoles = snap.userRoles
	db.auditLogs = snap.auditLogs
	db.roleSeq = snap.roleSeq
	db.auditSeq = snap.auditSeq
}

// Counts returns the number of users, profiles and user roles (used by tests).
func (db *DB) Counts() (users, profiles, userRoles int) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return len(db.users), len(db.profiles), len(db.userRoles)
}

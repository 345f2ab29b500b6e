package user

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"
)

// Audit actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Audited entity types
const (
	EntityUser     = "user"
	EntityProfile  = "user_profile"
	EntityUserRole = "user_role"
	EntityRole     = "role"
)

// AuditData is a free form JSON object stored along an AuditLog.
type AuditData map[string]interface{}

func (d AuditData) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	return string(b), err
}

func (d *AuditData) Scan(src interface{}) error {
	return scanJSON(src, d)
}

type AuditLog struct {
	ID         int64       `json:"id" db:"id"`
	EntityType string      `json:"entity_type" db:"entity_type"`
	EntityID   string      `json:"entity_id" db:"entity_id"`
	Action     string      `json:"action" db:"action"`
	ActorID    null.String `json:"actor_id" db:"actor_id"` // null for system actions
	OldData    AuditData   `json:"old_data" db:"old_data"`
	NewData    AuditData   `json:"new_data" db:"new_data"`
	Metadata   AuditData   `json:"metadata" db:"metadata"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"` // UTC
}

func actorID(by *User) null.String {
	if by == nil {
		return null.String{}
	}
	return null.StringFrom(by.ID)
}

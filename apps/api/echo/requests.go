package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/user"
)

type (
	RoleRequest struct {
		RoleName string `json:"role_name" validate:"required,role"`
	}

	DetailResponse struct {
		Detail string    `json:"detail"`
		User   user.User `json:"user"`
	}

	RolesResponse struct {
		Detail string      `json:"detail"`
		Roles  []user.Role `json:"roles"`
	}

	SyncedUser struct {
		ID          string   `json:"id"`
		SupabaseID  string   `json:"supabase_id"`
		Email       string   `json:"email"`
		DisplayName string   `json:"display_name"`
		IsActive    bool     `json:"is_active"`
		Roles       []string `json:"roles"`
	}

	SyncResponse struct {
		Success bool       `json:"success"`
		Message string     `json:"message"`
		User    SyncedUser `json:"user"`
	}
)

func (r *RoleRequest) Validate(validate *validator.Validate) error {
	r.RoleName = core.CleanString(r.RoleName, true /* lower */)
	return validate.Struct(r)
}

func newSyncedUser(usr user.User) SyncedUser {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return SyncedUser{
		ID:          usr.ID,
		SupabaseID:  usr.SupabaseID,
		Email:       usr.Email,
		DisplayName: usr.DisplayName,
		IsActive:    usr.IsActive,
		Roles:       roles,
	}
}

package user

import "time"

// Roles
const (
	RoleGuest      = "guest"
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// Permissions checked by the API
const (
	PermManageUsers = "can_manage_users"
	PermAssignRoles = "can_assign_roles"
)

var (
	// AllRoles is ordered from the least to the most privileged role.
	AllRoles = []string{RoleGuest, RoleStudent, RoleInstructor, RoleAdmin}

	// DefaultRole is granted to every newly synced user.
	DefaultRole = RoleStudent

	DefaultRoles = map[string]RoleConfig{
		RoleGuest: {
			DisplayName: "Guest",
			Description: "Guest user with read-only access to public content",
			Permissions: Permissions{
				"can_view_public_content": true,
				"can_view_courses":        true,
				"can_view_resources":      false,
				"can_submit_questions":    false,
				"can_comment":             false,
				"can_bookmark":            false,
				"can_rate":                false,
				"can_submit_improvements": false,
			},
		},
		RoleStudent: {
			DisplayName: "Student",
			Description: "Student user with access to courses, resources, and Q&A",
			Permissions: Permissions{
				"can_view_public_content": true,
				"can_view_courses":        true,
				"can_view_resources":      true,
				"can_submit_questions":    true,
				"can_answer_questions":    true,
				"can_comment":             true,
				"can_bookmark":            true,
				"can_rate":                true,
				"can_submit_improvements": true,
				"can_vote":                true,
			},
		},
		RoleInstructor: {
			DisplayName: "Instructor",
			Description: "Instructor user who can create and manage course content",
			Permissions: Permissions{
				"can_view_public_content": true,
				"can_view_courses":        true,
				"can_view_resources":      true,
				"can_create_courses":      true,
				"can_create_resources":    true,
				"can_edit_own_content":    true,
				"can_publish_content":     true,
				"can_submit_questions":    true,
				"can_answer_questions":    true,
				"can_moderate_qna":        true,
				"can_comment":             true,
				"can_bookmark":            true,
				"can_rate":                true,
				"can_review_submissions":  true,
				"can_vote":                true,
			},
		},
		RoleAdmin: {
			DisplayName: "Admin",
			Description: "Administrator with full access to all platform features",
			Permissions: Permissions{
				"can_view_public_content": true,
				"can_view_courses":        true,
				"can_view_resources":      true,
				"can_create_courses":      true,
				"can_create_resources":    true,
				"can_edit_own_content":    true,
				"can_edit_any_content":    true,
				"can_delete_content":      true,
				"can_publish_content":     true,
				"can_unpublish_content":   true,
				"can_submit_questions":    true,
				"can_answer_questions":    true,
				"can_moderate_qna":        true,
				"can_delete_questions":    true,
				"can_delete_answers":      true,
				"can_comment":             true,
				"can_delete_comments":     true,
				"can_bookmark":            true,
				"can_rate":                true,
				"can_manage_users":        true,
				"can_assign_roles":        true,
				"can_review_submissions":  true,
				"can_approve_submissions": true,
				"can_view_analytics":      true,
				"can_manage_settings":     true,
				"can_vote":                true,
			},
		},
	}
)

// RoleConfig describes a default role.
type RoleConfig struct {
	DisplayName string
	Description string
	Permissions Permissions
}

func (cfg RoleConfig) role(name string, now time.Time) Role {
	perms := make(Permissions, len(cfg.Permissions))
	for perm, granted := range cfg.Permissions {
		perms[perm] = granted
	}
	return Role{
		Name:        name,
		DisplayName: cfg.DisplayName,
		Description: cfg.Description,
		Permissions: perms,
		CreatedAt:   now,
	}
}

func IsValidRole(name string) bool {
	_, ok := DefaultRoles[name]
	return ok
}

// RoleDisplay returns the human readable name of a role, or the name itself for unknown roles.
func RoleDisplay(name string) string {
	if cfg, ok := DefaultRoles[name]; ok {
		return cfg.DisplayName
	}
	return name
}

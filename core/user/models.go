package user

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cshub/core"
)

const (
	displayNameMaxLen = 100
	supabaseIDMaxLen  = 255
)

// NowFunc returns the current UTC time.
var NowFunc = func() time.Time { return time.Now().UTC() } // mockable

type User struct {
	ID          string    `json:"id" db:"id"`
	SupabaseID  string    `json:"supabase_id" db:"supabase_id"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	Roles       []string  `json:"roles" db:"-"`
	LastLogin   null.Time `json:"last_login" db:"last_login"` // UTC
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
	Profile     *Profile  `json:"profile,omitempty" db:"-"`
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// Identity is the set of verified claims a local user is synced from.
type Identity struct {
	SupabaseID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Clean normalizes the identity: email is trimmed and lowered, display name defaults to the email local part.
func (ident Identity) Clean() (Identity, error) {
	ident.SupabaseID = core.CleanString(ident.SupabaseID)
	ident.Email = core.CleanString(ident.Email, true /* lower */)
	ident.DisplayName = core.Truncate(core.CleanString(ident.DisplayName), displayNameMaxLen)
	ident.AvatarURL = core.CleanString(ident.AvatarURL)

	var flds []core.FieldError
	if ident.SupabaseID == "" || len(ident.SupabaseID) > supabaseIDMaxLen {
		flds = append(flds, core.FieldError{Field: "sub", Error: "invalid subject"})
	}
	if ident.Email == "" {
		flds = append(flds, core.FieldError{Field: "email", Error: "this field is required"})
	}
	if flds != nil {
		return ident, core.NewValidationError(ErrInvalidIdentity, flds...)
	}
	return ident, nil
}

func (ident Identity) defaultDisplayName() string {
	if ident.DisplayName != "" {
		return ident.DisplayName
	}
	local := ident.Email
	if i := strings.Index(local, "@"); i >= 0 {
		local = local[:i]
	}
	return core.Truncate(local, displayNameMaxLen)
}

// Fingerprint hashes the mutable claims of the identity.
func (ident Identity) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{ident.Email, ident.DisplayName, ident.AvatarURL} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Statistic names
const (
	StatBookmarks     = "total_bookmarks"
	StatContributions = "total_contributions"
	StatQuestions     = "total_questions"
	StatAnswers       = "total_answers"
	StatReputation    = "reputation_score"
)

var AllStatistics = []string{StatBookmarks, StatContributions, StatQuestions, StatAnswers, StatReputation}

func IsValidStatistic(name string) bool {
	for _, stat := range AllStatistics {
		if stat == name {
			return true
		}
	}
	return false
}

type Statistics struct {
	TotalBookmarks     int `json:"total_bookmarks" db:"total_bookmarks"`
	TotalContributions int `json:"total_contributions" db:"total_contributions"`
	TotalQuestions     int `json:"total_questions" db:"total_questions"`
	TotalAnswers       int `json:"total_answers" db:"total_answers"`
	ReputationScore    int `json:"reputation_score" db:"reputation_score"`
}

func (s *Statistics) add(name string, amount int) {
	switch name {
	case StatBookmarks:
		s.TotalBookmarks += amount
	case StatContributions:
		s.TotalContributions += amount
	case StatQuestions:
		s.TotalQuestions += amount
	case StatAnswers:
		s.TotalAnswers += amount
	case StatReputation:
		s.ReputationScore += amount
	}
}

func (s Statistics) isNegative(name string) bool {
	switch name {
	case StatBookmarks:
		return s.TotalBookmarks < 0
	case StatContributions:
		return s.TotalContributions < 0
	case StatQuestions:
		return s.TotalQuestions < 0
	case StatAnswers:
		return s.TotalAnswers < 0
	}
	return false // the reputation score may go negative
}

// StatisticIncrement is a change to one of the profile statistics.
type StatisticIncrement struct {
	Statistic string `json:"statistic" validate:"required,statistic"`
	Amount    int    `json:"amount"`
}

func (si *StatisticIncrement) Validate(validate *validator.Validate) error {
	si.Statistic = core.CleanString(si.Statistic, true /* lower */)
	return validate.Struct(si)
}

type Profile struct {
	UserID         string    `json:"-" db:"user_id"`
	Bio            string    `json:"bio" db:"bio"`
	AvatarURL      string    `json:"avatar_url" db:"avatar_url"`
	Location       string    `json:"location" db:"location"`
	Website        string    `json:"website" db:"website"`
	GithubUsername string    `json:"github_username" db:"github_username"`
	LinkedinURL    string    `json:"linkedin_url" db:"linkedin_url"`
	Statistics
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// UpdateProfile defines the profile fields a user may change. nil fields are left untouched.
type UpdateProfile struct {
	Bio            *string `json:"bio" validate:"omitempty,max=500"`
	Location       *string `json:"location" validate:"omitempty,max=100"`
	Website        *string `json:"website" validate:"omitempty,url"`
	GithubUsername *string `json:"github_username" validate:"omitempty,max=100,handle"`
	LinkedinURL    *string `json:"linkedin_url" validate:"omitempty,url"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	for _, fld := range []*string{up.Bio, up.Location, up.Website, up.GithubUsername, up.LinkedinURL} {
		if fld != nil {
			*fld = core.CleanString(*fld)
		}
	}
	return validate.Struct(up)
}

func (up *UpdateProfile) apply(p *Profile) {
	if up.Bio != nil {
		p.Bio = *up.Bio
	}
	if up.Location != nil {
		p.Location = *up.Location
	}
	if up.Website != nil {
		p.Website = *up.Website
	}
	if up.GithubUsername != nil {
		p.GithubUsername = *up.GithubUsername
	}
	if up.LinkedinURL != nil {
		p.LinkedinURL = *up.LinkedinURL
	}
}

// Permissions maps a permission name (e.g. "can_manage_users") to whether it is granted.
type Permissions map[string]bool

func (p Permissions) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	return string(b), err
}

func (p *Permissions) Scan(src interface{}) error {
	return scanJSON(src, p)
}

type Role struct {
	ID          int         `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	DisplayName string      `json:"display_name" db:"display_name"`
	Description string      `json:"description" db:"description"`
	Permissions Permissions `json:"permissions" db:"permissions"`
	CreatedAt   time.Time   `json:"-" db:"created_at"` // UTC
}

type (
	GetFilter struct {
		ID         string
		SupabaseID string
		Email      string
	}

	RoleFilter struct {
		ID   int
		Name string
	}

	QueryFilter struct {
		Search   string   `query:"search"`
		Roles    []string `query:"role"`
		IsActive *bool    `query:"is_active"`
	}
)

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	roles := qf.Roles[:0]
	for _, role := range qf.Roles {
		if role = core.CleanString(role, true /* lower */); role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		roles = nil
	}
	qf.Roles = roles
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.Errorf("unsupported JSON source type %T", src)
	}
}

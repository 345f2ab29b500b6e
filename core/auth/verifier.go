package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/user"
)

const bearerPrefix = "Bearer "

var signingMethod = jwt.SigningMethodHS256

// UserMetadata is the user_metadata object Supabase embeds in its access tokens.
type UserMetadata struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Claims represents the claims of a Supabase access token.
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email,omitempty"`
	Role         string       `json:"role,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata,omitempty"`
}

// Identity converts verified claims into the identity a local user is synced from.
func (c *Claims) Identity() user.Identity {
	return user.Identity{
		SupabaseID:  c.Subject,
		Email:       c.Email,
		DisplayName: c.UserMetadata.DisplayName,
		AvatarURL:   c.UserMetadata.AvatarURL,
	}
}

// ExtractBearer returns the token of an "Authorization: Bearer <token>" header value.
func ExtractBearer(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", newError(ErrTokenMissing, "No valid JWT token provided")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", newError(ErrTokenMissing, "No valid JWT token provided")
	}
	return token, nil
}

// Verifier verifies Supabase issued JWTs.
type Verifier struct {
	secret   []byte
	audience string
	leeway   time.Duration
}

func NewVerifier(conf *core.Config) *Verifier {
	return &Verifier{
		secret:   []byte(conf.Supabase.JWTSecret),
		audience: conf.Supabase.JWTAudience,
		leeway:   conf.Supabase.JWTLeeway,
	}
}

// Verify checks the token signature (HS256 only), audience and expiry, then the required claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, newError(ErrTokenMissing, "No valid JWT token provided")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}

	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newError(ErrTokenExpired, "Token has expired")
		}
		return nil, newError(ErrTokenInvalid, "Invalid token: "+err.Error())
	}

	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Email) == "" {
		return nil, newError(ErrInvalidPayload, "Invalid token payload")
	}
	return claims, nil
}

// VerifyHeader extracts the bearer token of an Authorization header and verifies it.
func (v *Verifier) VerifyHeader(header string) (*Claims, error) {
	token, err := ExtractBearer(header)
	if err != nil {
		return nil, err
	}
	return v.Verify(token)
}

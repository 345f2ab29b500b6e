package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cshub/core"
)

const (
	testSecret   = "test-secret-with-at-least-32-characters!!"
	testAudience = "authenticated"
)

func newTestVerifier() *Verifier {
	conf := new(core.Config)
	conf.Supabase.JWTSecret = testSecret
	conf.Supabase.JWTAudience = testAudience
	conf.Supabase.JWTLeeway = time.Second
	return NewVerifier(conf)
}

func signed(t *testing.T, claims *Claims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	ss, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return ss
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "empty header", header: "", wantErr: true},
		{name: "no prefix", header: "abc.def.ghi", wantErr: true},
		{name: "other scheme", header: "Basic dXNlcjpwd2Q=", wantErr: true},
		{name: "empty token", header: "Bearer   ", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractBearer(tc.header)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, &Error{Kind: ErrTokenMissing}))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestVerifier_Verify(t *testing.T) {
	v := newTestVerifier()

	withMeta := NewClaims("sub-1", "jane@example.com", testAudience, time.Hour)
	withMeta.UserMetadata = UserMetadata{DisplayName: "Jane", AvatarURL: "https://cdn.example.com/jane.png"}

	noExp := NewClaims("sub-1", "jane@example.com", testAudience, time.Hour)
	noExp.ExpiresAt = nil

	tests := []struct {
		name     string
		token    string
		wantKind ErrorKind
	}{
		{
			name:  "valid",
			token: signed(t, withMeta, jwt.SigningMethodHS256, []byte(testSecret)),
		},
		{
			name:     "empty",
			token:    "",
			wantKind: ErrTokenMissing,
		},
		{
			name:     "expired",
			token:    signed(t, NewClaims("sub-1", "jane@example.com", testAudience, -time.Hour), jwt.SigningMethodHS256, []byte(testSecret)),
			wantKind: ErrTokenExpired,
		},
		{
			name:     "bad signature",
			token:    signed(t, NewClaims("sub-1", "jane@example.com", testAudience, time.Hour), jwt.SigningMethodHS256, []byte("another-secret")),
			wantKind: ErrTokenInvalid,
		},
		{
			name:     "wrong audience",
			token:    signed(t, NewClaims("sub-1", "jane@example.com", "anon", time.Hour), jwt.SigningMethodHS256, []byte(testSecret)),
			wantKind: ErrTokenInvalid,
		},
		{
			name:     "HS384 not allowed",
			token:    signed(t, NewClaims("sub-1", "jane@example.com", testAudience, time.Hour), jwt.SigningMethodHS384, []byte(testSecret)),
			wantKind: ErrTokenInvalid,
		},
		{
			name:     "none not allowed",
			token:    signed(t, NewClaims("sub-1", "jane@example.com", testAudience, time.Hour), jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType),
			wantKind: ErrTokenInvalid,
		},
		{
			name:     "missing exp",
			token:    signed(t, noExp, jwt.SigningMethodHS256, []byte(testSecret)),
			wantKind: ErrTokenInvalid,
		},
		{
			name:     "malformed",
			token:    "not-a-jwt",
			wantKind: ErrTokenInvalid,
		},
		{
			name:     "missing sub",
			token:    signed(t, NewClaims("", "jane@example.com", testAudience, time.Hour), jwt.SigningMethodHS256, []byte(testSecret)),
			wantKind: ErrInvalidPayload,
		},
		{
			name:     "missing email",
			token:    signed(t, NewClaims("sub-1", "", testAudience, time.Hour), jwt.SigningMethodHS256, []byte(testSecret)),
			wantKind: ErrInvalidPayload,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := v.Verify(tc.token)
			if tc.wantKind != 0 {
				require.Error(t, err)
				var authErr *Error
				require.True(t, errors.As(err, &authErr))
				assert.Equal(t, tc.wantKind, authErr.Kind)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			ident := claims.Identity()
			assert.Equal(t, "sub-1", ident.SupabaseID)
			assert.Equal(t, "jane@example.com", ident.Email)
			assert.Equal(t, "Jane", ident.DisplayName)
			assert.Equal(t, "https://cdn.example.com/jane.png", ident.AvatarURL)
		})
	}
}

func TestVerifier_VerifyHeader(t *testing.T) {
	v := newTestVerifier()
	token, err := NewToken(NewClaims("sub-2", "john@example.com", testAudience, time.Minute), testSecret)
	require.NoError(t, err)

	claims, err := v.VerifyHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "sub-2", claims.Subject)

	_, err = v.VerifyHeader(token)
	assert.True(t, errors.Is(err, &Error{Kind: ErrTokenMissing}))
}

func TestError_Title(t *testing.T) {
	assert.Equal(t, "Authentication required", newError(ErrTokenMissing, "x").Title())
	assert.Equal(t, "Invalid token", newError(ErrTokenExpired, "Token has expired").Title())
	assert.Equal(t, "Invalid token: Token has expired", newError(ErrTokenExpired, "Token has expired").Error())
}

package auth

import "fmt"

// Error kinds
const (
	ErrTokenMissing   ErrorKind = iota + 1 // no bearer token provided
	ErrTokenExpired                        // token signature is valid but it expired
	ErrTokenInvalid                        // bad signature, algorithm, audience, or malformed token
	ErrInvalidPayload                      // token is valid but lacks the required claims
)

type ErrorKind int

// Error is returned for every rejected token.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func newError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Title is a short description of the error kind.
func (err Error) Title() string {
	if err.Kind == ErrTokenMissing {
		return "Authentication required"
	}
	return "Invalid token"
}

func (err Error) Error() string {
	return fmt.Sprintf("%s: %s", err.Title(), err.Detail)
}

// Is matches errors of the same kind, so that errors.Is(err, &Error{Kind: ErrTokenExpired}) works.
func (err Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == err.Kind
}

// Package auth authenticates members against the cloud and scopes each
// request to one member session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Principal is a logged-in cloud user. ID is the cloud user id, which is
// also the key of the member's row access token.
type Principal struct {
	ID          string
	DisplayName string
	Email       string
	Language    string
	// Groups are cloud group ids; project groups are cafevdb-project-<id>.
	Groups []string
}

// IsMember reports whether the principal belongs to group.
func (p *Principal) IsMember(group string) bool {
	return p != nil && slices.Contains(p.Groups, group)
}

// Clone returns a deep copy of p.
func (p *Principal) Clone() *Principal {
	c := *p
	c.Groups = slices.Clone(p.Groups)
	return &c
}

// Credentials are the username and password (or app password) a request
// authenticated with. They are forwarded when acting on the member's behalf.
type Credentials struct {
	Username string
	Password string
}

// ErrorType classifies an *Error
type ErrorType string

const (
	// ErrInvalidCredentials means the cloud rejected the login.
	ErrInvalidCredentials ErrorType = "invalid_credentials"
	// ErrUnauthorized means the request carried no authenticated user.
	ErrUnauthorized ErrorType = "unauthorized"
	ErrForbidden    ErrorType = "forbidden"
	// ErrNoRowAccessToken means the member never stored a row access token.
	ErrNoRowAccessToken ErrorType = "no_row_access_token"
)

// Error is returned by authenticators and the token service
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsErrorType reports whether err is an *Error of the given type.
func IsErrorType(err error, t ErrorType) bool {
	var authErr *Error
	return errors.As(err, &authErr) && authErr.Type == t
}

// Authenticator verifies credentials. Rejected logins are reported as an
// *Error of type ErrInvalidCredentials; any other error means the check
// itself failed.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*Principal, error)
}

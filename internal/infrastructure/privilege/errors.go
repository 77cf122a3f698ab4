package privilege

import (
	"errors"
	"fmt"
)

// AuthKind classifies an AuthError
type AuthKind int

const (
	// Denied means the policy service answered no
	Denied AuthKind = iota + 1
	// Unavailable means the policy service could not be asked
	Unavailable
)

var (
	ErrDenied      = errors.New("authorization denied")
	ErrUnavailable = errors.New("authorization service unavailable")

	ErrNoTicket         = errors.New("privileged operation needs an authorization ticket")
	ErrTicketConsumed   = errors.New("authorization ticket already used")
	ErrTicketExpired    = errors.New("authorization ticket expired")
	ErrTicketMismatch   = errors.New("authorization ticket was issued for another operation")
	ErrForeignTicket    = errors.New("authorization ticket was issued by another broker")
	ErrNotPrivileged    = errors.New("operation does not need authorization")
	ErrUnknownElevation = errors.New("unknown elevation method")
)

// AuthError is returned by Broker.Authorize when no ticket was granted. It is
// terminal for that one request only.
type AuthError struct {
	Kind     AuthKind
	ActionID string
	Err      error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case Denied:
		return fmt.Sprintf("authorization denied for %s", e.ActionID)
	default:
		if e.Err != nil {
			return fmt.Sprintf("authorization service unavailable for %s: %v", e.ActionID, e.Err)
		}
		return fmt.Sprintf("authorization service unavailable for %s", e.ActionID)
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrDenied:
		return e.Kind == Denied
	case ErrUnavailable:
		return e.Kind == Unavailable
	}
	return false
}

package auth

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrBadCredentials  = errors.New("incorrect password")
	ErrLockedOut       = errors.New("locked out")
	ErrDuplicateUser   = errors.New("username already exists")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidToken    = errors.New("invalid token")
)

// LockoutError is returned while a username is locked. Remaining is the time
// left until the lock lifts. Cause is set when this attempt is the one that
// triggered the lock.
type LockoutError struct {
	Remaining time.Duration
	Cause     error
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("Locked out. Try again in %d seconds.", e.Seconds())
}

// Seconds rounds Remaining up so a pending lock never reports zero.
func (e *LockoutError) Seconds() int {
	s := int(math.Ceil(e.Remaining.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func (e *LockoutError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrLockedOut}
	}
	return []error{ErrLockedOut, e.Cause}
}

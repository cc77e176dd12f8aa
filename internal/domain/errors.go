package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBanned             = errors.New("actor is banned")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidPlacement   = errors.New("invalid placement")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrCooldownActive     = errors.New("cooldown active")
	ErrForbidden          = errors.New("forbidden")
	ErrTooManyConnections = errors.New("too many connections")
)

// CooldownError reports how long an actor still has to wait. It matches ErrCooldownActive.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, retry in %ds", CeilSeconds(e.Remaining))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

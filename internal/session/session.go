// Package session implements the shared-secret access gate: login with an
// access code, server-side session state and fixed-window expiry.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrInvalidCode     = errors.New("invalid access code")
	ErrThrottled       = errors.New("too many login attempts")
	ErrUnauthenticated = errors.New("authentication required")
	ErrExpired         = errors.New("session expired")
)

// DefaultTTL is how long a login stays valid.
const DefaultTTL = 15 * time.Minute

// State is the server-side record of one login.
type State struct {
	ID            string    `json:"id"`
	Authenticated bool      `json:"authenticated"`
	LoginTime     time.Time `json:"login_time"`
}

// ExpiresAt is the moment the session stops being valid for ttl.
func (s State) ExpiresAt(ttl time.Duration) time.Time {
	return s.LoginTime.Add(ttl)
}

// Expired reports whether more than ttl has passed since login.
func (s State) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LoginTime) > ttl
}

// Store persists session state. Get returns ErrNotFound for unknown ids.
type Store interface {
	Get(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, state State, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

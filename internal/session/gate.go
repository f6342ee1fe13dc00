package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// maxLimiters bounds the per-client limiter map.
const maxLimiters = 10000

type clientLimiter struct {
	*rate.Limiter
	lastSeen time.Time
}

// Gate checks access codes and validates sessions.
type Gate struct {
	code  []byte
	store Store
	ttl   time.Duration
	rate   rate.Limit
	burst  int
	refill time.Duration // time for an exhausted limiter to fill up again
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

// GateOption customises a Gate.
type GateOption func(*Gate)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// NewGate builds a gate for code. An empty code disables the gate.
// attemptsPerMinute bounds login attempts per client key.
func NewGate(code string, store Store, ttl time.Duration, attemptsPerMinute int, opts ...GateOption) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if attemptsPerMinute <= 0 {
		attemptsPerMinute = 5
	}
	interval := time.Minute / time.Duration(attemptsPerMinute)
	g := &Gate{
		code:     []byte(code),
		store:    store,
		ttl:      ttl,
		rate:     rate.Every(interval),
		burst:    attemptsPerMinute,
		refill:   interval * time.Duration(attemptsPerMinute),
		now:      time.Now,
		limiters: make(map[string]*clientLimiter),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether an access code is configured.
func (g *Gate) Enabled() bool {
	return g != nil && len(g.code) > 0
}

// TTL is the session lifetime.
func (g *Gate) TTL() time.Duration {
	return g.ttl
}

// Login verifies code for the client identified by clientKey and creates a
// session on success.
func (g *Gate) Login(ctx context.Context, clientKey, code string) (State, error) {
	if !g.allow(clientKey) {
		return State{}, ErrThrottled
	}
	if subtle.ConstantTimeCompare([]byte(code), g.code) != 1 {
		return State{}, ErrInvalidCode
	}
	st := State{ID: uuid.NewString(), Authenticated: true, LoginTime: g.now()}
	if err := g.store.Save(ctx, st, g.ttl); err != nil {
		return State{}, err
	}
	return st, nil
}

// Check returns the session for id if it is authenticated and within its TTL.
// An expired session is deleted and reported as ErrExpired.
func (g *Gate) Check(ctx context.Context, id string) (State, error) {
	if id == "" {
		return State{}, ErrUnauthenticated
	}
	st, err := g.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return State{}, ErrUnauthenticated
	}
	if err != nil {
		return State{}, err
	}
	if !st.Authenticated {
		return State{}, ErrUnauthenticated
	}
	if st.Expired(g.now(), g.ttl) {
		if err := g.store.Delete(ctx, id); err != nil {
			return State{}, err
		}
		return State{}, ErrExpired
	}
	return st, nil
}

// Logout removes the session; unknown ids are not an error.
func (g *Gate) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return g.store.Delete(ctx, id)
}

func (g *Gate) allow(clientKey string) bool {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[clientKey]
	if !ok {
		if len(g.limiters) >= maxLimiters {
			g.evict(now)
		}
		l = &clientLimiter{Limiter: rate.NewLimiter(g.rate, g.burst)}
		g.limiters[clientKey] = l
	}
	l.lastSeen = now
	return l.AllowN(now, 1)
}

// evict makes room in a full limiter map. Limiters idle long enough to have
// refilled are dropped first, since a fresh limiter behaves the same. If none
// are idle, the least recently seen client that still has attempts left goes;
// throttled clients are evicted only when every client is throttled.
func (g *Gate) evict(now time.Time) {
	var oldestOpen, oldestAny string
	var openSeen, anySeen time.Time
	for key, l := range g.limiters {
		if now.Sub(l.lastSeen) >= g.refill {
			delete(g.limiters, key)
			continue
		}
		if oldestAny == "" || l.lastSeen.Before(anySeen) {
			oldestAny, anySeen = key, l.lastSeen
		}
		if l.TokensAt(now) >= 1 && (oldestOpen == "" || l.lastSeen.Before(openSeen)) {
			oldestOpen, openSeen = key, l.lastSeen
		}
	}
	if len(g.limiters) < maxLimiters {
		return
	}
	if oldestOpen != "" {
		delete(g.limiters, oldestOpen)
		return
	}
	delete(g.limiters, oldestAny)
}

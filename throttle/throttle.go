// Package throttle slows repeated failed logins for an identifier with a
// lockout window. It is client-side UX friction only: anyone can bypass it by
// clearing local storage, so the authoritative rate limit must live on the
// server. Counters are keyed by an obfuscated form of the identifier so the
// raw email never appears as a storage key.
package throttle

import (
	"encoding/base64"
	"math"
	"time"

	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
	"github.com/pkg/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	// DefaultMaxAttempts is the number of failures that triggers a lockout.
	DefaultMaxAttempts = 5

	// DefaultLockoutWindow is how long an identifier stays locked.
	DefaultLockoutWindow = 15 * time.Minute
)

// LockStatus describes whether an identifier is currently locked out.
type LockStatus struct {
	Locked           bool
	RemainingMinutes int // ceiling-rounded minutes until the lock lifts
}

// FailureStatus is the outcome of recording a failed attempt.
type FailureStatus struct {
	Locked            bool
	Attempts          int
	RemainingAttempts int // attempts left before lockout, when not locked
	RemainingMinutes  int // minutes until the lock lifts, when locked
}

// Throttle tracks per-identifier failure counters over the credential store.
type Throttle struct {
	store         *credentials.Store
	maxAttempts   int
	lockoutWindow time.Duration
	nowTime       func() time.Time
}

// Option defines a function type to modify a Throttle instance.
type Option func(*Throttle)

// WithMaxAttempts overrides the failure count that triggers a lockout.
func WithMaxAttempts(n int) Option {
	return func(t *Throttle) {
		t.maxAttempts = n
	}
}

// WithLockoutWindow overrides the lockout duration.
func WithLockoutWindow(d time.Duration) Option {
	return func(t *Throttle) {
		t.lockoutWindow = d
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(t *Throttle) {
		t.nowTime = nowFunc
	}
}

// New initializes a Throttle backed by the given credential store.
func New(store *credentials.Store, options ...Option) (*Throttle, error) {
	if store == nil {
		return nil, errors.New("[throttle.New] credential store is required")
	}
	t := &Throttle{
		store:         store,
		maxAttempts:   DefaultMaxAttempts,
		lockoutWindow: DefaultLockoutWindow,
		nowTime:       NowTimeFunc,
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// ObfuscateIdentifier derives the storage key form of an identifier. The
// encoding is reversible, which is acceptable for a client-side advisory
// control; it only has to avoid raw identifiers as keys and trivial
// collisions between distinct identifiers.
func ObfuscateIdentifier(identifier string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(identifier))
}

// CheckLock reports whether the identifier is currently locked out.
func (t *Throttle) CheckLock(identifier string) LockStatus {
	key := ObfuscateIdentifier(identifier)
	until := t.store.Lockout(key)
	now := t.nowTime()
	if until.IsZero() || !until.After(now) {
		return LockStatus{}
	}
	return LockStatus{Locked: true, RemainingMinutes: ceilMinutes(until.Sub(now))}
}

// RecordFailure counts a failed attempt. While a lockout is active the
// counter is left untouched. When the incremented count reaches the maximum,
// a new lockout deadline is set.
//
// The counter does not decay when a lockout window merely expires; only Clear
// (after a successful login) resets it. A stale counter therefore re-locks on
// the next failure, matching the shipped product behavior.
func (t *Throttle) RecordFailure(identifier string) FailureStatus {
	key := ObfuscateIdentifier(identifier)
	now := t.nowTime()

	if until := t.store.Lockout(key); until.After(now) {
		return FailureStatus{
			Locked:           true,
			Attempts:         t.store.Attempts(key),
			RemainingMinutes: ceilMinutes(until.Sub(now)),
		}
	}

	attempts := t.store.Attempts(key) + 1
	t.store.StoreAttempts(key, attempts)

	if attempts >= t.maxAttempts {
		t.store.StoreLockout(key, now.Add(t.lockoutWindow))
		return FailureStatus{
			Locked:           true,
			Attempts:         attempts,
			RemainingMinutes: ceilMinutes(t.lockoutWindow),
		}
	}

	return FailureStatus{
		Attempts:          attempts,
		RemainingAttempts: t.maxAttempts - attempts,
	}
}

// Clear removes both the counter and any lockout deadline for the identifier.
// Called after a successful login.
func (t *Throttle) Clear(identifier string) {
	t.store.ClearThrottle(ObfuscateIdentifier(identifier))
}

func ceilMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}

// Package credentials persists the client-side session state: tokens, the
// sanitized user snapshot, activity timestamps, CSRF token mirror and the
// login-throttle counters. All values live under a fixed namespace prefix so
// they never collide with unrelated data in the backing store.
//
// Storage backends can fail (quota exceeded, storage disabled). Every load
// degrades to "no stored session" rather than surfacing the failure to the
// caller; failures are logged.
package credentials

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// KeyValue is the capability interface over the host platform's string store
// (the browser's localStorage/sessionStorage in the original product). Get
// returns "" with a nil error for absent keys; errors are reserved for a
// failing backend.
type KeyValue interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Keys() ([]string, error)
}

const namespace = "cajasdelcampo.auth."

const (
	keyAccessToken   = namespace + "access_token"
	keyRefreshToken  = namespace + "refresh_token"
	keyUser          = namespace + "user"
	keyLastActivity  = namespace + "last_activity"
	keyCSRFToken     = namespace + "csrf_token"
	keyCSRFFetchedAt = namespace + "csrf_fetched_at"
	keyClientID      = namespace + "client_id"

	attemptsPrefix = namespace + "attempts."
	lockoutPrefix  = namespace + "lockout."
)

// Store is the single shared mutable resource of the session core. It is
// written by the session controller and read by the CSRF coordinator, the
// throttle and the inactivity monitor.
type Store struct {
	persistent KeyValue
	transient  KeyValue // optional session-scoped mirror, swept on ClearAll
	nowTime    func() time.Time
}

// StoreOption defines a function type to modify a Store instance.
type StoreOption func(*Store)

// WithTransient adds a session-scoped store that is swept alongside the
// persistent one on ClearAll (defense in depth).
func WithTransient(kv KeyValue) StoreOption {
	return func(s *Store) {
		s.transient = kv
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// NewStore initializes a Store over the given persistent backend.
func NewStore(persistent KeyValue, options ...StoreOption) (*Store, error) {
	if persistent == nil {
		return nil, errors.New("[NewStore] persistent store is required")
	}
	s := &Store{
		persistent: persistent,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// StoreSession writes whichever of the three values are present and stamps
// last-activity. The user record is sanitized before it is persisted. A
// failing backend is logged and reported, but callers are expected to carry
// on with the in-memory session.
func (s *Store) StoreSession(accessToken, refreshToken string, user *User) error {
	var firstErr error
	if accessToken != "" {
		if err := s.set(keyAccessToken, accessToken); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if refreshToken != "" {
		if err := s.set(keyRefreshToken, refreshToken); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if user != nil {
		if err := s.StoreUser(Sanitize(*user)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.TouchActivity()
	return errors.Wrap(firstErr, "[Store.StoreSession]")
}

// StoreUser persists the sanitized user snapshot without touching tokens.
func (s *Store) StoreUser(user User) error {
	data, err := json.Marshal(Sanitize(user))
	if err != nil {
		return errors.Wrap(err, "[Store.StoreUser] marshal")
	}
	return s.set(keyUser, string(data))
}

// LoadAccessToken returns the stored access token, or "" when absent or the
// backend fails.
func (s *Store) LoadAccessToken() string {
	return s.get(keyAccessToken)
}

// LoadRefreshToken returns the stored refresh token, or "" when absent.
func (s *Store) LoadRefreshToken() string {
	return s.get(keyRefreshToken)
}

// LoadUser returns the stored sanitized user, or nil when absent or corrupt.
func (s *Store) LoadUser() *User {
	raw := s.get(keyUser)
	if raw == "" {
		return nil
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		log.Warn().Err(err).Msg("credentials: discarding corrupt stored user")
		return nil
	}
	u = Sanitize(u)
	return &u
}

// TouchActivity stamps the last-activity instant (epoch millis).
func (s *Store) TouchActivity() {
	millis := s.nowTime().UnixMilli()
	if err := s.set(keyLastActivity, strconv.FormatInt(millis, 10)); err != nil {
		log.Warn().Err(err).Msg("credentials: failed to stamp last activity")
	}
}

// LastActivity returns the last-activity instant, or the zero time when no
// activity has ever been recorded.
func (s *Store) LastActivity() time.Time {
	raw := s.get(keyLastActivity)
	if raw == "" {
		return time.Time{}
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn().Err(err).Msg("credentials: discarding corrupt activity timestamp")
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

// StoreCSRFToken persists the CSRF token mirror with its fetch instant. The
// instant comes from the caller so the mirror's age is always measured on the
// clock that performed the fetch.
func (s *Store) StoreCSRFToken(token string, fetchedAt time.Time) error {
	if err := s.set(keyCSRFToken, token); err != nil {
		return errors.Wrap(err, "[Store.StoreCSRFToken]")
	}
	millis := fetchedAt.UnixMilli()
	return errors.Wrap(s.set(keyCSRFFetchedAt, strconv.FormatInt(millis, 10)), "[Store.StoreCSRFToken] fetched-at")
}

// CSRFToken returns the mirrored CSRF token and the instant it was fetched.
// A missing or corrupt record yields "" and the zero time.
func (s *Store) CSRFToken() (string, time.Time) {
	token := s.get(keyCSRFToken)
	if token == "" {
		return "", time.Time{}
	}
	raw := s.get(keyCSRFFetchedAt)
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return token, time.Time{}
	}
	return token, time.UnixMilli(millis)
}

// ClearCSRFToken removes the mirrored CSRF token.
func (s *Store) ClearCSRFToken() {
	s.delete(keyCSRFToken)
	s.delete(keyCSRFFetchedAt)
}

// Attempts returns the failed-login counter for an obfuscated identifier.
func (s *Store) Attempts(obfuscatedID string) int {
	raw := s.get(attemptsPrefix + obfuscatedID)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// StoreAttempts persists the failed-login counter for an obfuscated identifier.
func (s *Store) StoreAttempts(obfuscatedID string, attempts int) {
	if err := s.set(attemptsPrefix+obfuscatedID, strconv.Itoa(attempts)); err != nil {
		log.Warn().Err(err).Msg("credentials: failed to persist attempt counter")
	}
}

// Lockout returns the lockout deadline for an obfuscated identifier, or the
// zero time when none is set.
func (s *Store) Lockout(obfuscatedID string) time.Time {
	raw := s.get(lockoutPrefix + obfuscatedID)
	if raw == "" {
		return time.Time{}
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

// StoreLockout persists a lockout deadline for an obfuscated identifier.
func (s *Store) StoreLockout(obfuscatedID string, until time.Time) {
	if err := s.set(lockoutPrefix+obfuscatedID, strconv.FormatInt(until.UnixMilli(), 10)); err != nil {
		log.Warn().Err(err).Msg("credentials: failed to persist lockout deadline")
	}
}

// ClearThrottle removes both the counter and any lockout deadline for an
// obfuscated identifier.
func (s *Store) ClearThrottle(obfuscatedID string) {
	s.delete(attemptsPrefix + obfuscatedID)
	s.delete(lockoutPrefix + obfuscatedID)
}

// ClientID returns the per-install client identifier, minting and persisting
// one on first use.
func (s *Store) ClientID() string {
	if id := s.get(keyClientID); id != "" {
		return id
	}
	id := uuid.New().String()
	if err := s.set(keyClientID, id); err != nil {
		log.Warn().Err(err).Msg("credentials: failed to persist client id")
	}
	return id
}

// ClearAll removes every key in the namespace from the persistent store and,
// when configured, the transient mirror.
func (s *Store) ClearAll() {
	s.clearBackend(s.persistent)
	if s.transient != nil {
		s.clearBackend(s.transient)
	}
}

func (s *Store) clearBackend(kv KeyValue) {
	keys, err := kv.Keys()
	if err != nil {
		log.Warn().Err(err).Msg("credentials: failed to enumerate keys for clear")
		return
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, namespace) {
			continue
		}
		if err := kv.Delete(key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("credentials: failed to delete key")
		}
	}
}

func (s *Store) get(key string) string {
	value, err := s.persistent.Get(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("credentials: read failed, assuming absent")
		return ""
	}
	return value
}

func (s *Store) set(key, value string) error {
	if err := s.persistent.Set(key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("credentials: write failed")
		return err
	}
	return nil
}

func (s *Store) delete(key string) {
	if err := s.persistent.Delete(key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("credentials: delete failed")
	}
	if s.transient != nil {
		_ = s.transient.Delete(key)
	}
}

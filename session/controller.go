// Package session orchestrates the client-side authentication lifecycle:
// bootstrap restoration, login/register/logout, silent refresh, profile
// updates, and the wiring of the throttle, credential store, inactivity
// monitor and CSRF coordinator. State is owned by a Controller instance and
// surfaced through snapshots and an observer feed - never ambient globals -
// so several independent sessions can coexist in tests.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LucianaVC752/CajasDelCampo-sub000/api"
	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
	"github.com/LucianaVC752/CajasDelCampo-sub000/csrf"
	errs "github.com/LucianaVC752/CajasDelCampo-sub000/internal/errors"
	"github.com/LucianaVC752/CajasDelCampo-sub000/throttle"
	"github.com/LucianaVC752/CajasDelCampo-sub000/tokenpolicy"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// State names the controller's lifecycle phase.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateBootstrapping State = "bootstrapping"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// Backend is the slice of the REST API the controller needs. *api.Client
// satisfies it; tests provide fakes.
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.AuthResponse, error)
	Register(ctx context.Context, registration api.Registration) (*api.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*api.AuthResponse, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, update api.ProfileUpdate) (*credentials.User, error)
}

var _ Backend = (*api.Client)(nil)

// Monitor is the inactivity-watcher capability the controller drives.
type Monitor interface {
	Start(onTimeout func()) (stop func())
}

// Result is the uniform outcome of user-driven operations. Ordinary auth
// failures resolve here instead of surfacing as errors, so UI layers never
// need exception handling for them.
type Result struct {
	Success           bool
	Error             string
	Field             string // populated for field-level validation failures
	RemainingAttempts int    // attempts left before lockout, when relevant
	LockedForMinutes  int    // minutes until the lock lifts, when locked
}

// Snapshot is the observable session state consumed by UI layers.
type Snapshot struct {
	State         State
	User          *credentials.User
	Loading       bool
	Authenticated bool
	Admin         bool
}

// Deps holds all collaborator dependencies for the Controller.
type Deps struct {
	Backend  Backend
	Store    *credentials.Store
	Throttle *throttle.Throttle
	Monitor  Monitor           // optional; no inactivity watching when nil
	CSRF     *csrf.Coordinator // optional; no CSRF cache management when nil
}

// Controller owns the in-memory session and coordinates the security layer.
type Controller struct {
	deps           Deps
	sessionTimeout time.Duration

	mu            sync.Mutex
	state         State
	user          *credentials.User
	accessToken   string
	refreshToken  string
	loading       bool
	loginInFlight bool
	monitorStop   func()
	renewalStop   func()

	refreshMu  sync.Mutex
	refreshing *refreshCall

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObsID int
}

type refreshCall struct {
	done chan struct{}
	err  error
}

// Option defines a function type to modify a Controller instance.
type Option func(*Controller)

// WithSessionTimeout overrides the inactivity window used during bootstrap.
func WithSessionTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.sessionTimeout = d
	}
}

// NewController initializes a Controller with required dependencies.
func NewController(deps Deps, options ...Option) (*Controller, error) {
	if deps.Backend == nil {
		return nil, errors.New("[NewController] Backend is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[NewController] Store is required")
	}
	if deps.Throttle == nil {
		return nil, errors.New("[NewController] Throttle is required")
	}

	c := &Controller{
		deps:           deps,
		sessionTimeout: tokenpolicy.SessionTimeout,
		state:          StateUninitialized,
		observers:      make(map[int]func(Snapshot)),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Bootstrap restores a persisted session, silently refreshing the access
// token when it is close to expiry. It always ends with loading cleared and
// the controller settled in Authenticated or Anonymous.
func (c *Controller) Bootstrap(ctx context.Context) {
	c.mu.Lock()
	c.state = StateBootstrapping
	c.loading = true
	c.mu.Unlock()
	c.notify()

	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
		c.notify()
	}()

	accessToken := c.deps.Store.LoadAccessToken()
	refreshToken := c.deps.Store.LoadRefreshToken()
	user := c.deps.Store.LoadUser()

	if accessToken == "" || user == nil {
		c.clearLocal()
		c.setState(StateAnonymous)
		return
	}

	if tokenpolicy.IsSessionExpired(c.deps.Store.LastActivity(), c.sessionTimeout) {
		log.Info().Msg("session: stored session exceeded the inactivity window")
		c.clearLocal()
		c.setState(StateAnonymous)
		return
	}

	if tokenpolicy.ShouldRefresh(accessToken) {
		c.mu.Lock()
		c.user, c.accessToken, c.refreshToken = user, accessToken, refreshToken
		c.mu.Unlock()

		if err := c.Refresh(ctx); err != nil {
			// Refresh already cleared local state.
			log.Info().Err(err).Msg("session: silent refresh during bootstrap failed")
			c.setState(StateAnonymous)
			return
		}
		c.startWatchers()
		c.setState(StateAuthenticated)
		return
	}

	c.mu.Lock()
	c.user, c.accessToken, c.refreshToken = user, accessToken, refreshToken
	c.mu.Unlock()
	c.startWatchers()
	c.setState(StateAuthenticated)
}

// Login authenticates the user. Input shape is validated and the throttle
// consulted before any network call. A failed attempt is counted; the
// surfaced message prefers lockout over remaining-attempts over the raw
// server error.
func (c *Controller) Login(ctx context.Context, email, password string) Result {
	email = strings.TrimSpace(email)
	if r, ok := validateCredentials(email, password); !ok {
		return r
	}

	c.mu.Lock()
	if c.loginInFlight {
		c.mu.Unlock()
		return Result{Error: errs.ErrLoginInProgress.Error()}
	}
	c.loginInFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loginInFlight = false
		c.mu.Unlock()
	}()

	if ls := c.deps.Throttle.CheckLock(email); ls.Locked {
		return Result{
			Error:            lockoutMessage(ls.RemainingMinutes),
			LockedForMinutes: ls.RemainingMinutes,
		}
	}

	resp, err := c.deps.Backend.Login(ctx, email, password)
	if err != nil {
		return c.loginFailure(email, err)
	}
	if resp == nil || resp.User == nil || resp.AccessToken == "" {
		return c.loginFailure(email, errs.ErrInvalidCredentials)
	}

	c.deps.Throttle.Clear(email)
	c.adoptSession(resp)
	return Result{Success: true}
}

func (c *Controller) loginFailure(email string, cause error) Result {
	fs := c.deps.Throttle.RecordFailure(email)
	switch {
	case fs.Locked:
		return Result{
			Error:            lockoutMessage(fs.RemainingMinutes),
			LockedForMinutes: fs.RemainingMinutes,
		}
	case fs.RemainingAttempts <= 2:
		return Result{
			Error: fmt.Sprintf("invalid credentials, %d attempt(s) remaining before temporary lockout",
				fs.RemainingAttempts),
			RemainingAttempts: fs.RemainingAttempts,
		}
	default:
		return Result{Error: serverMessage(cause), RemainingAttempts: fs.RemainingAttempts}
	}
}

// Register creates an account and, on success, behaves exactly like a
// successful login. No throttle applies to registration.
func (c *Controller) Register(ctx context.Context, registration api.Registration) Result {
	registration.Email = strings.TrimSpace(registration.Email)
	registration.Name = strings.TrimSpace(registration.Name)

	if r, ok := validateCredentials(registration.Email, registration.Password); !ok {
		return r
	}
	if err := validatePasswordStrength(registration.Password); err != nil {
		return Result{Field: "password", Error: err.Error()}
	}
	if registration.Name == "" {
		return Result{Field: "name", Error: "name is required"}
	}

	resp, err := c.deps.Backend.Register(ctx, registration)
	if err != nil {
		return Result{Error: serverMessage(err)}
	}
	if resp == nil || resp.User == nil || resp.AccessToken == "" {
		return Result{Error: errs.ErrInternal.Error()}
	}

	c.adoptSession(resp)
	return Result{Success: true}
}

// Logout notifies the server on a best-effort basis, then unconditionally
// clears all local session state. It never fails.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.deps.Backend.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("session: logout notify failed, clearing locally anyway")
	}
	c.clearLocal()
	c.setState(StateAnonymous)
	c.notify()
}

// Refresh silently mints a new access token. Concurrent triggers coalesce
// into a single backend call whose outcome every waiter shares. Any failure
// performs the same unconditional local clear as Logout before returning the
// error, so callers know the session is gone.
func (c *Controller) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	if call := c.refreshing; call != nil {
		c.refreshMu.Unlock()
		<-call.done
		return call.err
	}
	call := &refreshCall{done: make(chan struct{})}
	c.refreshing = call
	c.refreshMu.Unlock()

	call.err = c.doRefresh(ctx)

	c.refreshMu.Lock()
	c.refreshing = nil
	c.refreshMu.Unlock()
	close(call.done)

	return call.err
}

func (c *Controller) doRefresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()
	if refreshToken == "" {
		refreshToken = c.deps.Store.LoadRefreshToken()
	}
	if refreshToken == "" {
		c.clearLocal()
		c.setState(StateAnonymous)
		return errs.ErrNoRefreshToken
	}

	resp, err := c.deps.Backend.Refresh(ctx, refreshToken)
	if err != nil {
		c.clearLocal()
		c.setState(StateAnonymous)
		return errors.Wrap(err, "[Controller.Refresh] backend refresh")
	}
	if resp == nil || resp.AccessToken == "" {
		c.clearLocal()
		c.setState(StateAnonymous)
		return errs.ErrRefreshFailed
	}

	if err := c.deps.Store.StoreSession(resp.AccessToken, resp.RefreshToken, resp.User); err != nil {
		log.Warn().Err(err).Msg("session: failed to persist refreshed tokens")
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		c.refreshToken = resp.RefreshToken
	}
	if resp.User != nil {
		sanitized := credentials.Sanitize(*resp.User)
		c.user = &sanitized
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// UpdateProfile persists profile changes and updates the in-memory and
// stored user snapshot without touching tokens.
func (c *Controller) UpdateProfile(ctx context.Context, update api.ProfileUpdate) Result {
	c.mu.Lock()
	authenticated := c.user != nil
	c.mu.Unlock()
	if !authenticated {
		return Result{Error: errs.ErrNotAuthenticated.Error()}
	}

	user, err := c.deps.Backend.UpdateProfile(ctx, update)
	if err != nil {
		return Result{Error: serverMessage(err)}
	}
	if user != nil {
		sanitized := credentials.Sanitize(*user)
		if err := c.deps.Store.StoreUser(sanitized); err != nil {
			log.Warn().Err(err).Msg("session: failed to persist updated profile")
		}
		c.mu.Lock()
		c.user = &sanitized
		c.mu.Unlock()
		c.notify()
	}
	return Result{Success: true}
}

// AccessToken returns the current access token for request authorization.
func (c *Controller) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// User returns a copy of the current sanitized user, or nil.
func (c *Controller) User() *credentials.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	user := *c.user
	return &user
}

// Loading reports whether the initial bootstrap is still in progress.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// State returns the controller's lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsAuthenticated reports whether a user is present and the stored access
// token still passes the advisory validity check.
func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()
	if user == nil {
		return false
	}
	token := c.deps.Store.LoadAccessToken()
	return token != "" && !tokenpolicy.IsExpired(token)
}

// IsAdmin reports whether the current user holds the admin role.
func (c *Controller) IsAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user.IsAdmin()
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	authenticated := c.IsAuthenticated()
	c.mu.Lock()
	defer c.mu.Unlock()
	var user *credentials.User
	if c.user != nil {
		u := *c.user
		user = &u
	}
	return Snapshot{
		State:         c.state,
		User:          user,
		Loading:       c.loading,
		Authenticated: authenticated,
		Admin:         c.user.IsAdmin(),
	}
}

// Subscribe registers an observer invoked on every state change. The
// returned function detaches it and is safe to call more than once.
func (c *Controller) Subscribe(observer func(Snapshot)) (unsubscribe func()) {
	c.obsMu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = observer
	c.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.obsMu.Lock()
			defer c.obsMu.Unlock()
			delete(c.observers, id)
		})
	}
}

// Dispose stops the inactivity monitor and the CSRF renewal loop. Called on
// component teardown; Logout performs the same cleanup.
func (c *Controller) Dispose() {
	c.mu.Lock()
	monitorStop, renewalStop := c.monitorStop, c.renewalStop
	c.monitorStop, c.renewalStop = nil, nil
	c.mu.Unlock()
	if monitorStop != nil {
		monitorStop()
	}
	if renewalStop != nil {
		renewalStop()
	}
}

func (c *Controller) adoptSession(resp *api.AuthResponse) {
	sanitized := credentials.Sanitize(*resp.User)
	if err := c.deps.Store.StoreSession(resp.AccessToken, resp.RefreshToken, &sanitized); err != nil {
		log.Warn().Err(err).Msg("session: failed to persist session, continuing in memory")
	}

	c.mu.Lock()
	c.user = &sanitized
	c.accessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		c.refreshToken = resp.RefreshToken
	}
	c.mu.Unlock()

	c.startWatchers()
	c.setState(StateAuthenticated)
	c.notify()
}

// startWatchers (re)starts the inactivity monitor and the CSRF renewal loop.
// Any previous monitor run is disposed first.
func (c *Controller) startWatchers() {
	c.mu.Lock()
	monitorStop := c.monitorStop
	c.mu.Unlock()
	if monitorStop != nil {
		monitorStop()
	}

	var newMonitorStop, newRenewalStop func()
	if c.deps.Monitor != nil {
		newMonitorStop = c.deps.Monitor.Start(c.onInactivityTimeout)
	}

	c.mu.Lock()
	c.monitorStop = newMonitorStop
	if c.renewalStop == nil && c.deps.CSRF != nil {
		newRenewalStop = c.deps.CSRF.StartRenewal()
		c.renewalStop = newRenewalStop
	}
	c.mu.Unlock()
}

func (c *Controller) onInactivityTimeout() {
	log.Info().Msg("session: logging out after inactivity")
	c.Logout(context.Background())
}

// clearLocal wipes in-memory state, persisted credentials, the CSRF cache
// and all watchers. It must succeed regardless of network conditions.
func (c *Controller) clearLocal() {
	c.mu.Lock()
	c.user = nil
	c.accessToken = ""
	c.refreshToken = ""
	monitorStop, renewalStop := c.monitorStop, c.renewalStop
	c.monitorStop, c.renewalStop = nil, nil
	c.mu.Unlock()

	if monitorStop != nil {
		monitorStop()
	}
	if renewalStop != nil {
		renewalStop()
	}

	c.deps.Store.ClearAll()
	if c.deps.CSRF != nil {
		c.deps.CSRF.Clear()
	}
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	snapshot := c.Snapshot()

	c.obsMu.Lock()
	observers := make([]func(Snapshot), 0, len(c.observers))
	for _, observer := range c.observers {
		observers = append(observers, observer)
	}
	c.obsMu.Unlock()

	for _, observer := range observers {
		observer(snapshot)
	}
}

func lockoutMessage(minutes int) string {
	return fmt.Sprintf("%s, try again in %d minute(s)", errs.ErrAccountLocked.Error(), minutes)
}

func serverMessage(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

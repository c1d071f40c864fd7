package hubclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// AdminState is the lifecycle state of the derived admin session.
type AdminState int

const (
	StateBootstrapping AdminState = iota
	StateActive
	StateExpired
	StateIdleTimedOut
	StateErrored
	StateLoggedOut
)

func (s AdminState) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateIdleTimedOut:
		return "idle-timed-out"
	case StateErrored:
		return "errored"
	case StateLoggedOut:
		return "logged-out"
	default:
		return "unknown"
	}
}

const (
	// DefaultInactivityWindow ends the admin session after 30 minutes without
	// a Touch.
	DefaultInactivityWindow = 30 * time.Minute

	// refreshLead is how long before expiry the session is refreshed.
	refreshLead = time.Minute

	adminExchangePath = "/admin-api/api/auth/hub-exchange"
	adminRefreshPath  = "/admin-api/api/auth/refresh"
	adminLogoutPath   = "/admin-api/api/auth/logout"
)

var ErrHubTokenMissing = errors.New("hub token missing")

const (
	msgSessionExpired = "admin session expired"
	msgIdleTimeout    = "admin session ended due to inactivity"
)

// AdminController derives and maintains a short-lived admin session on top of
// an existing hub session. It refreshes itself shortly before expiry, ends
// itself after the inactivity window, and reacts to forced invalidation from
// the admin HTTP layer. All state changes funnel through one guarded
// transition, so the two timers cannot race each other or resurrect a session
// that already ended.
type AdminController struct {
	baseURL string
	http    *http.Client
	hub     *TokenStore
	tokens  *TokenStore
	clk     clock.Clock
	window  time.Duration

	mu           sync.Mutex
	state        AdminState
	errMsg       string
	user         *AdminUser
	refreshTimer *clock.Timer
	idleTimer    *clock.Timer
	lastActive   time.Time
	ctx          context.Context
	closed       bool
}

type AdminOption func(*AdminController)

func WithAdminHTTPClient(httpClient *http.Client) AdminOption {
	return func(c *AdminController) {
		c.http = httpClient
	}
}

// WithClock substitutes the wall clock, so tests can drive both timers with
// simulated time.
func WithClock(clk clock.Clock) AdminOption {
	return func(c *AdminController) {
		c.clk = clk
	}
}

func WithInactivityWindow(window time.Duration) AdminOption {
	return func(c *AdminController) {
		c.window = window
	}
}

// WithAdminTokenStore sets the store holding the admin credential pair
// (default: a fresh one). The admin domain never shares a store with the hub.
func WithAdminTokenStore(store *TokenStore) AdminOption {
	return func(c *AdminController) {
		c.tokens = store
	}
}

func NewAdminController(baseURL string, hubTokens *TokenStore, options ...AdminOption) *AdminController {
	c := &AdminController{
		baseURL: baseURL,
		http:    http.DefaultClient,
		hub:     hubTokens,
		tokens:  NewTokenStore(),
		clk:     clock.New(),
		window:  DefaultInactivityWindow,
		state:   StateBootstrapping,
		ctx:     context.Background(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Start brings the controller to a settled state. A pair already present in
// the admin token store (a remount) activates without a new exchange. A
// missing hub token fails immediately with no network call and no retry.
// Otherwise the hub token is exchanged for the admin credential pair.
func (c *AdminController) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx

	if pair := c.tokens.Pair(); pair.Token != "" {
		c.activateLocked(pair, c.user)
		c.mu.Unlock()
		return nil
	}

	hubToken := c.hub.Token()
	if hubToken == "" {
		c.state = StateErrored
		c.errMsg = ErrHubTokenMissing.Error()
		c.mu.Unlock()
		return ErrHubTokenMissing
	}
	c.mu.Unlock()

	var payload adminSessionPayload
	err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+adminExchangePath, nil,
		map[string]string{"hub_token": hubToken}, &payload)
	if err != nil {
		c.mu.Lock()
		c.state = StateErrored
		c.errMsg = err.Error()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	pair := Pair{Token: payload.Token, CSRF: payload.CSRFToken, ExpiresAt: payload.ExpiresAt}
	c.tokens.SetPair(pair.Token, pair.CSRF, pair.ExpiresAt)
	c.activateLocked(pair, payload.User)
	return nil
}

// Touch records user activity and pushes the idle deadline out by the full
// inactivity window. The UI maps its interaction signals (pointer move, key
// press, click, touch, scroll) to this single entry point.
func (c *AdminController) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return
	}
	c.lastActive = c.clk.Now()
	c.armIdleLocked(c.window)
}

// Invalidate is the forced-invalidation signal: any admin API call that
// receives a 401 reports the server's error text here.
func (c *AdminController) Invalidate(message string) {
	c.terminate(StateErrored, message)
}

// Logout invalidates the admin session server-side on a best-effort basis and
// always clears the local session.
func (c *AdminController) Logout(ctx context.Context) {
	if pair := c.tokens.Pair(); pair.Token != "" {
		_ = doJSON(ctx, c.http, http.MethodPost, c.baseURL+adminLogoutPath,
			c.adminHeaders(pair), nil, nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	c.state = StateLoggedOut
	c.errMsg = ""
}

// Close tears down the timers. Pending callbacks that already fired are
// rejected by the terminal-state check.
func (c *AdminController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimersLocked()
}

func (c *AdminController) State() AdminState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the human-readable failure message for a non-active state.
func (c *AdminController) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

func (c *AdminController) Authenticated() bool {
	return c.State() == StateActive
}

func (c *AdminController) User() *AdminUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Tokens exposes the admin credential store.
func (c *AdminController) Tokens() *TokenStore {
	return c.tokens
}

// Do performs an authenticated admin API call. Mutating methods carry the
// CSRF token. A 401 response triggers Invalidate with the server's message
// before the error is returned.
func (c *AdminController) Do(ctx context.Context, method, path string, body, out any) error {
	pair := c.tokens.Pair()
	if pair.Token == "" {
		return &APIError{Status: http.StatusUnauthorized, Message: "no admin session"}
	}

	err := doJSON(ctx, c.http, method, c.baseURL+path, c.adminHeaders(pair), body, out)
	if err != nil && IsUnauthorized(err) {
		c.Invalidate(err.Error())
	}
	return err
}

// activateLocked enters Active and arms both timers. Callers hold c.mu.
func (c *AdminController) activateLocked(pair Pair, user *AdminUser) {
	c.state = StateActive
	c.errMsg = ""
	c.user = user
	c.lastActive = c.clk.Now()
	c.armRefreshLocked(pair.ExpiresAt)
	c.armIdleLocked(c.window)
}

// terminate is the single transition point for session-ending events. Once
// the session left Active, later events are no-ops: a cleared session is
// never resurrected and never cleared twice.
func (c *AdminController) terminate(to AdminState, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminateLocked(to, message)
}

func (c *AdminController) terminateLocked(to AdminState, message string) {
	if c.state != StateActive {
		return
	}
	c.clearLocked()
	c.state = to
	c.errMsg = message
}

func (c *AdminController) clearLocked() {
	c.tokens.Clear()
	c.user = nil
	c.stopTimersLocked()
}

func (c *AdminController) stopTimersLocked() {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

// armRefreshLocked schedules the pre-expiry refresh: refreshLead before
// expiresAt, but never with a non-positive delay. A deadline already past due
// refreshes immediately.
func (c *AdminController) armRefreshLocked(expiresAt time.Time) {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
	}

	remaining := expiresAt.Sub(c.clk.Now())
	if remaining <= 0 {
		go c.refresh()
		return
	}

	delay := remaining - refreshLead
	if delay < time.Second {
		delay = time.Second
	}
	c.refreshTimer = c.clk.AfterFunc(delay, c.refresh)
}

func (c *AdminController) armIdleLocked(delay time.Duration) {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleTimer = c.clk.AfterFunc(delay, c.idleFired)
}

func (c *AdminController) idleFired() {
	c.mu.Lock()
	if c.state != StateActive || c.closed {
		c.mu.Unlock()
		return
	}

	// A Touch may have landed after this timer was armed; if so, push the
	// deadline out instead of terminating.
	remaining := c.window - c.clk.Now().Sub(c.lastActive)
	if remaining > 0 {
		c.armIdleLocked(remaining)
		c.mu.Unlock()
		return
	}

	c.terminateLocked(StateIdleTimedOut, msgIdleTimeout)
	c.mu.Unlock()
}

// refresh renews the admin session against the refresh endpoint. Success
// replaces token, CSRF, and expiry as one pair and re-arms the timer against
// the new expiry. Failure ends the session.
func (c *AdminController) refresh() {
	c.mu.Lock()
	if c.state != StateActive || c.closed {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	pair := c.tokens.Pair()
	c.mu.Unlock()

	var payload adminSessionPayload
	err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+adminRefreshPath,
		c.adminHeaders(pair), nil, &payload)
	if err != nil {
		c.terminate(StateExpired, msgSessionExpired)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.closed {
		return
	}
	c.tokens.SetPair(payload.Token, payload.CSRFToken, payload.ExpiresAt)
	if payload.User != nil {
		c.user = payload.User
	}
	c.armRefreshLocked(payload.ExpiresAt)
}

func (c *AdminController) adminHeaders(pair Pair) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + pair.Token,
		"X-CSRF-Token":  pair.CSRF,
	}
}

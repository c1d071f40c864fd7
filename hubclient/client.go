// Package hubclient is the Go SDK for the Várzea Prime hub: hub session
// lifecycle, the derived admin session with its refresh and idle timers, and
// the cross-system tenant handoff.
package hubclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/varzeaprime/go-hub-server/hubclient/statestore"
)

// RegisterParams carries the hub registration form.
type RegisterParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname,omitempty"`
	Phone    string `json:"phone,omitempty"`
	CPF      string `json:"cpf,omitempty"`
	CNPJ     string `json:"cnpj,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Client owns the hub session: who the user is and which tenants they can act
// as. At most one session is live per Client; login replaces it wholesale.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenStore
	state   statestore.Store

	mu            sync.RWMutex
	user          *User
	grants        []TenantGrant
	currentTenant string
	isSuperAdmin  bool
	authenticated bool
	loading       bool
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.http = httpClient
	}
}

// WithStateStore sets the persisted state backing (default: fresh in-memory).
func WithStateStore(store statestore.Store) ClientOption {
	return func(c *Client) {
		c.state = store
	}
}

func New(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    http.DefaultClient,
		tokens:  NewTokenStore(),
		state:   statestore.NewMemory(),
		loading: true,
	}
	for _, opt := range options {
		opt(c)
	}

	if token, ok := c.state.Get(statestore.KeyAuthToken); ok && token != "" {
		c.tokens.SetToken(token)
	}
	return c
}

// Bootstrap restores a persisted session. With a stored token it attempts a
// profile refresh; with none it settles immediately. Loading is false after
// Bootstrap returns, whatever the outcome.
func (c *Client) Bootstrap(ctx context.Context) error {
	defer c.setLoading(false)

	if c.tokens.Token() == "" {
		return nil
	}
	if err := c.RefreshUser(ctx); err != nil {
		if IsUnauthorized(err) {
			return nil // session already cleared by RefreshUser
		}
		return err
	}
	return nil
}

// Login authenticates and replaces the hub session wholesale. An empty tenant
// list on success is a valid state, not an error.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var payload sessionPayload
	err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/auth/login", nil,
		map[string]string{"email": email, "password": password}, &payload)
	if err != nil {
		return err
	}

	c.adoptSession(&payload)
	return nil
}

// Register creates a new account and opens a session. Registration never
// auto-joins tenants, so the grant list starts empty.
func (c *Client) Register(ctx context.Context, params RegisterParams) error {
	var payload sessionPayload
	err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/auth/register", nil, params, &payload)
	if err != nil {
		return err
	}

	c.adoptSession(&payload)
	return nil
}

// Logout invalidates the session server-side on a best-effort basis and
// always clears local state. A failed remote call must never leave the client
// believing it is still authenticated.
func (c *Client) Logout(ctx context.Context) {
	if token := c.tokens.Token(); token != "" {
		_ = doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/auth/logout",
			c.bearerHeader(token), nil, nil)
	}
	c.clearSession()
}

// RefreshUser re-fetches the profile and grant list. A 401 clears the session;
// any other error propagates without clearing, it may be a transient network
// failure.
func (c *Client) RefreshUser(ctx context.Context) error {
	token := c.tokens.Token()
	if token == "" {
		return &APIError{Status: http.StatusUnauthorized, Message: "no hub session"}
	}

	var payload profilePayload
	err := doJSON(ctx, c.http, http.MethodGet, c.baseURL+"/api/auth/me",
		c.bearerHeader(token), nil, &payload)
	if err != nil {
		if IsUnauthorized(err) {
			c.clearSession()
		}
		return err
	}

	c.mu.Lock()
	c.user = payload.User
	c.grants = payload.Tenants
	c.currentTenant = payload.CurrentTenantID
	c.isSuperAdmin = payload.IsSuperAdmin
	c.authenticated = true
	c.mu.Unlock()
	return nil
}

// SwitchTenant makes the given tenant current for this session and persists
// the selection snapshot for the next page load. On error nothing local
// changes.
func (c *Client) SwitchTenant(ctx context.Context, tenantID string) (*TenantGrant, error) {
	token := c.tokens.Token()
	if token == "" {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: "no hub session"}
	}

	var response struct {
		Tenant struct {
			ID          string `json:"id"`
			Slug        string `json:"slug"`
			DisplayName string `json:"displayName"`
		} `json:"tenant"`
		Role string `json:"role"`
	}
	err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/auth/switch-tenant",
		c.bearerHeader(token), map[string]string{"tenantId": tenantID}, &response)
	if err != nil {
		return nil, err
	}

	grant := c.grantByID(response.Tenant.ID)
	if grant == nil {
		grant = &TenantGrant{
			ID:          response.Tenant.ID,
			Slug:        response.Tenant.Slug,
			DisplayName: response.Tenant.DisplayName,
			Role:        response.Role,
		}
	}

	c.mu.Lock()
	c.currentTenant = grant.ID
	c.mu.Unlock()
	c.persistTenantSelection(grant)
	return grant, nil
}

// UpdateTenants replaces the grant list locally without a network call. Used
// after a side-channel mutation such as joining a tenant elsewhere.
func (c *Client) UpdateTenants(grants []TenantGrant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grants = grants
}

func (c *Client) CurrentUser() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Client) Grants() []TenantGrant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.grants
}

func (c *Client) IsSuperAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isSuperAdmin
}

func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Client) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// HubTokens exposes the hub token store, used by the admin controller for the
// exchange.
func (c *Client) HubTokens() *TokenStore {
	return c.tokens
}

// State exposes the persisted state store shared with the handoff.
func (c *Client) State() statestore.Store {
	return c.state
}

func (c *Client) adoptSession(payload *sessionPayload) {
	c.tokens.SetToken(payload.Token)
	_ = c.state.Set(statestore.KeyAuthToken, payload.Token)

	c.mu.Lock()
	c.user = payload.User
	c.grants = payload.Tenants
	c.currentTenant = ""
	c.isSuperAdmin = payload.IsSuperAdmin
	c.authenticated = true
	c.mu.Unlock()
}

func (c *Client) clearSession() {
	c.tokens.Clear()
	_ = c.state.Delete(statestore.KeyAuthToken)

	c.mu.Lock()
	c.user = nil
	c.grants = nil
	c.currentTenant = ""
	c.isSuperAdmin = false
	c.authenticated = false
	c.mu.Unlock()
}

func (c *Client) persistTenantSelection(grant *TenantGrant) {
	snapshot, err := json.Marshal(grant)
	if err == nil {
		_ = c.state.Set(statestore.KeyCurrentTenant, string(snapshot))
	}
	_ = c.state.Set(statestore.KeyTenantSlug, grant.Slug)
	if grant.System != nil {
		_ = c.state.Set(statestore.KeySystemSlug, grant.System.Slug)
	}

	theme, err := json.Marshal(Theme{PrimaryColor: grant.PrimaryColor})
	if err == nil {
		_ = c.state.Set(statestore.KeyTenantTheme, string(theme))
	}
}

func (c *Client) grantByID(id string) *TenantGrant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.grants {
		if c.grants[i].ID == id {
			grant := c.grants[i]
			return &grant
		}
	}
	return nil
}

func (c *Client) setLoading(loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = loading
}

func (c *Client) bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

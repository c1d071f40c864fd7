package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/varzeaprime/go-hub-server/audit"
	"github.com/varzeaprime/go-hub-server/sessions"
	"github.com/varzeaprime/go-hub-server/tenants"
	"github.com/varzeaprime/go-hub-server/token"
	"github.com/varzeaprime/go-hub-server/users"
)

// Repos holds all repository dependencies for the hub Service.
type Repos struct {
	Users    users.UserRepo
	Tenants  tenants.Repo
	Sessions sessions.Repo
}

// ClientInfo is what the hub records about the device a session was opened from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// LoginResult is returned by Login and Register: a fresh hub session replaces
// any client-side state wholesale.
type LoginResult struct {
	Token        string
	User         *users.User
	Grants       []*tenants.Grant
	IsSuperAdmin bool
}

// Profile is the answer to "who am I": the current-user payload.
type Profile struct {
	User            *users.User
	Grants          []*tenants.Grant
	CurrentTenantID string
	IsSuperAdmin    bool
}

// SwitchResult reports the new tenant context after a switch.
type SwitchResult struct {
	Tenant *tenants.Tenant
	Role   string
}

// Service is the single source of truth for hub identity: who the user is and
// which tenants they can act as.
type Service struct {
	repos    Repos
	tokens   *token.Manager
	recorder *audit.Recorder
	nowTime  func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func NewService(repos Repos, tokens *token.Manager, recorder *audit.Recorder, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[auth.NewService] Users repo is required")
	}
	if repos.Tenants == nil {
		return nil, errors.New("[auth.NewService] Tenants repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[auth.NewService] Sessions repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[auth.NewService] token manager is required")
	}

	s := &Service{
		repos:    repos,
		tokens:   tokens,
		recorder: recorder,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login checks credentials and opens a fresh hub session.
func (s *Service) Login(email, password string, client ClientInfo) (*LoginResult, error) {
	user, err := s.repos.Users.GetByEmail(email)
	if err != nil {
		return nil, InvalidCredentialsErr
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, InvalidCredentialsErr
	}
	if !user.Active {
		return nil, AccountDisabledErr
	}
	if user.Blocked {
		return nil, AccountBlockedErr
	}

	if err := s.repos.Users.TouchLastLogin(user.ID); err != nil {
		return nil, errors.Wrap(err, "[Service.Login] TouchLastLogin")
	}

	result, err := s.openSession(user, client)
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.Record(user.ID, "hub.login", user.Email, map[string]any{"ip": client.IP})
	}
	return result, nil
}

// Register creates a user and logs them in. New accounts have no tenant
// memberships; joining tenants happens elsewhere.
func (s *Service) Register(params RegisterParams, client ClientInfo) (*LoginResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repos.Users.GetByEmail(params.Email); err == nil {
		return nil, EmailTakenErr
	}

	passwordHash, err := users.HashPassword(params.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] HashPassword")
	}

	user := &users.User{
		ID:           uuid.NewString(),
		Name:         params.Name,
		Nickname:     params.Nickname,
		Email:        params.Email,
		PasswordHash: passwordHash,
		Phone:        params.Phone,
		CPF:          params.CPF,
		CNPJ:         params.CNPJ,
		Address:      params.Address,
		Timezone:     params.Timezone,
		Active:       true,
		CreatedAt:    s.nowTime(),
	}
	if err := s.repos.Users.Upsert(user); err != nil {
		return nil, errors.Wrap(err, "[Service.Register] Upsert")
	}

	result, err := s.openSession(user, client)
	if err != nil {
		return nil, err
	}
	// Registration never auto-joins tenants.
	result.Grants = nil

	if s.recorder != nil {
		s.recorder.Record(user.ID, "hub.register", user.Email, nil)
	}
	return result, nil
}

// Logout revokes the current hub session. A session that is already gone is
// not an error: the caller ends up logged out either way.
func (s *Service) Logout(rawToken string) error {
	hash := sessions.HashToken(rawToken)
	if err := s.repos.Sessions.Revoke(hash, "user_logout"); err != nil {
		return nil
	}
	return nil
}

// LogoutAll revokes every session belonging to the token's user.
func (s *Service) LogoutAll(rawToken string) error {
	user, _, err := s.Authenticate(rawToken)
	if err != nil {
		return err
	}
	if err := s.repos.Sessions.RevokeAllForUser(user.ID, "user_logout_all"); err != nil {
		return errors.Wrap(err, "[Service.LogoutAll] RevokeAllForUser")
	}
	if s.recorder != nil {
		s.recorder.Record(user.ID, "hub.logout_all", user.Email, nil)
	}
	return nil
}

// Authenticate validates a hub bearer token against both the signature and the
// session store. Any failure is UnauthorizedErr: callers map it to HTTP 401.
func (s *Service) Authenticate(rawToken string) (*users.User, *sessions.SessionData, error) {
	session, err := s.repos.Sessions.Get(sessions.HashToken(rawToken))
	if err != nil || !session.ActiveAt(s.nowTime()) {
		return nil, nil, UnauthorizedErr
	}

	claims, err := s.tokens.Parse(rawToken, token.ScopeHub)
	if err != nil {
		return nil, nil, UnauthorizedErr
	}

	user, err := s.repos.Users.GetByID(claims.UserID)
	if err != nil || !user.Active || user.Blocked {
		return nil, nil, UnauthorizedErr
	}

	return user, session, nil
}

// Me re-fetches the current user's profile and memberships.
func (s *Service) Me(rawToken string) (*Profile, error) {
	user, session, err := s.Authenticate(rawToken)
	if err != nil {
		return nil, err
	}

	grants, err := s.repos.Tenants.GrantsForUser(user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Me] GrantsForUser")
	}

	return &Profile{
		User:            user,
		Grants:          grants,
		CurrentTenantID: session.CurrentTenantID,
		IsSuperAdmin:    user.SuperAdmin,
	}, nil
}

// SwitchTenant moves the session's tenant context. The membership check runs
// server-side; failure leaves the session context untouched.
func (s *Service) SwitchTenant(rawToken, tenantID, tenantSlug string) (*SwitchResult, error) {
	user, session, err := s.Authenticate(rawToken)
	if err != nil {
		return nil, err
	}

	var tenant *tenants.Tenant
	if tenantID != "" {
		tenant, err = s.repos.Tenants.GetTenant(tenantID)
	} else {
		tenant, err = s.repos.Tenants.GetTenantBySlug(tenantSlug)
	}
	if err != nil || !tenant.Active {
		return nil, TenantNotFoundErr
	}

	membership, err := s.repos.Tenants.GetMembership(user.ID, tenant.ID)
	if err != nil {
		return nil, NotMemberErr
	}

	if err := s.repos.Sessions.SetCurrentTenant(session.TokenHash, tenant.ID); err != nil {
		return nil, errors.Wrap(err, "[Service.SwitchTenant] SetCurrentTenant")
	}

	if s.recorder != nil {
		s.recorder.Record(user.ID, "hub.switch_tenant", tenant.Slug, nil)
	}
	return &SwitchResult{Tenant: tenant, Role: membership.Role}, nil
}

// JoinTenant enrols the user in a tenant that allows open registration. New
// members join with the default role; rejoining after a leave reactivates the
// membership.
func (s *Service) JoinTenant(rawToken, tenantID, tenantSlug string) (*tenants.Grant, error) {
	user, _, err := s.Authenticate(rawToken)
	if err != nil {
		return nil, err
	}

	var tenant *tenants.Tenant
	if tenantID != "" {
		tenant, err = s.repos.Tenants.GetTenant(tenantID)
	} else {
		tenant, err = s.repos.Tenants.GetTenantBySlug(tenantSlug)
	}
	if err != nil || !tenant.Active {
		return nil, TenantNotFoundErr
	}
	if !tenant.AllowRegistration {
		return nil, RegistrationClosedErr
	}

	if _, err := s.repos.Tenants.GetMembership(user.ID, tenant.ID); err == nil {
		return nil, AlreadyMemberErr
	}

	if err := s.repos.Tenants.UpsertMembership(&tenants.Membership{
		UserID:   user.ID,
		TenantID: tenant.ID,
		Role:     "player",
		Active:   true,
		JoinedAt: s.nowTime(),
	}); err != nil {
		return nil, errors.Wrap(err, "[Service.JoinTenant] UpsertMembership")
	}

	if s.recorder != nil {
		s.recorder.Record(user.ID, "hub.join_tenant", tenant.Slug, nil)
	}
	return &tenants.Grant{Tenant: tenant, System: systemForTenant(s.repos.Tenants, tenant), Role: "player"}, nil
}

// LeaveTenant deactivates the user's membership. The last active admin of a
// tenant cannot leave; they must promote someone first.
func (s *Service) LeaveTenant(rawToken, tenantID string) error {
	user, session, err := s.Authenticate(rawToken)
	if err != nil {
		return err
	}

	membership, err := s.repos.Tenants.GetMembership(user.ID, tenantID)
	if err != nil {
		return NotMemberErr
	}

	if membership.Role == "admin" {
		members, err := s.repos.Tenants.MembersOfTenant(tenantID)
		if err != nil {
			return errors.Wrap(err, "[Service.LeaveTenant] MembersOfTenant")
		}
		admins := 0
		for _, m := range members {
			if m.Active && m.Role == "admin" {
				admins++
			}
		}
		if admins <= 1 {
			return LastAdminErr
		}
	}

	membership.Active = false
	if err := s.repos.Tenants.UpsertMembership(membership); err != nil {
		return errors.Wrap(err, "[Service.LeaveTenant] UpsertMembership")
	}

	// Drop the tenant context if the session was pointing at it.
	if session.CurrentTenantID == tenantID {
		if err := s.repos.Sessions.SetCurrentTenant(session.TokenHash, ""); err != nil {
			return errors.Wrap(err, "[Service.LeaveTenant] SetCurrentTenant")
		}
	}

	if s.recorder != nil {
		s.recorder.Record(user.ID, "hub.leave_tenant", tenantID, nil)
	}
	return nil
}

func systemForTenant(repo tenants.Repo, tenant *tenants.Tenant) *tenants.System {
	systems, err := repo.ListSystems()
	if err != nil {
		return nil
	}
	for _, s := range systems {
		if s.ID == tenant.SystemID {
			return s
		}
	}
	return nil
}

func (s *Service) openSession(user *users.User, client ClientInfo) (*LoginResult, error) {
	issued, err := s.tokens.CreateHubToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.openSession] CreateHubToken")
	}

	if err := s.repos.Sessions.Upsert(&sessions.SessionData{
		TokenHash: sessions.HashToken(issued.Token),
		UserID:    user.ID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		CreatedAt: s.nowTime(),
		ExpiresAt: issued.ExpiresAt,
	}); err != nil {
		return nil, errors.Wrap(err, "[Service.openSession] Upsert session")
	}

	grants, err := s.repos.Tenants.GrantsForUser(user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.openSession] GrantsForUser")
	}

	return &LoginResult{
		Token:        issued.Token,
		User:         user,
		Grants:       grants,
		IsSuperAdmin: user.SuperAdmin,
	}, nil
}

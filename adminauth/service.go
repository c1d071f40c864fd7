package adminauth

import (
	"time"

	"github.com/pkg/errors"
	"github.com/varzeaprime/go-hub-server/audit"
	"github.com/varzeaprime/go-hub-server/sessions"
	"github.com/varzeaprime/go-hub-server/token"
	"github.com/varzeaprime/go-hub-server/users"
)

var (
	ErrHubSessionInvalid = errors.New("hub session invalid or expired")
	ErrNotSuperAdmin     = errors.New("user is not a super admin")
	ErrSessionExpired    = errors.New("admin session expired")
	ErrSessionRevoked    = errors.New("admin session revoked")
	ErrCSRFMismatch      = errors.New("csrf token mismatch")
)

// Session is what the exchange and refresh endpoints return: the token triple
// plus the admin user profile. Token, CSRF, and expiry always come from the
// same issuance.
type Session struct {
	Token     string
	CSRFToken string
	ExpiresAt time.Time
	User      *users.User
}

// Service derives and maintains admin-scoped sessions on top of hub sessions.
// An admin session can only be minted while a live hub session belonging to a
// super admin presents its bearer token.
type Service struct {
	userRepo    users.UserRepo
	hubSessions sessions.Repo
	repo        Repo
	tokens      *token.Manager
	recorder    *audit.Recorder
	nowFunc     func() time.Time
}

type ServiceOption func(*Service)

func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func NewService(userRepo users.UserRepo, hubSessions sessions.Repo, repo Repo, tokens *token.Manager, recorder *audit.Recorder, options ...ServiceOption) (*Service, error) {
	if userRepo == nil {
		return nil, errors.New("[adminauth.NewService] user repo is required")
	}
	if hubSessions == nil {
		return nil, errors.New("[adminauth.NewService] hub session repo is required")
	}
	if repo == nil {
		return nil, errors.New("[adminauth.NewService] admin session repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[adminauth.NewService] token manager is required")
	}

	s := &Service{
		userRepo:    userRepo,
		hubSessions: hubSessions,
		repo:        repo,
		tokens:      tokens,
		recorder:    recorder,
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Exchange converts a live hub token into an admin session. This is the only
// entry point into the admin surface; the raw hub token is never accepted on
// admin endpoints afterwards.
func (s *Service) Exchange(hubToken string) (*Session, error) {
	hubSession, err := s.hubSessions.Get(sessions.HashToken(hubToken))
	if err != nil || !hubSession.ActiveAt(s.nowFunc()) {
		return nil, ErrHubSessionInvalid
	}

	claims, err := s.tokens.Parse(hubToken, token.ScopeHub)
	if err != nil {
		return nil, ErrHubSessionInvalid
	}

	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, ErrHubSessionInvalid
	}
	if !user.Active || user.Blocked {
		return nil, ErrHubSessionInvalid
	}
	if !user.SuperAdmin {
		return nil, ErrNotSuperAdmin
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.Record(user.ID, "admin.exchange", user.Email, nil)
	}
	return session, nil
}

// Refresh rotates an active admin session: the old record is revoked and a
// fresh token + CSRF + expiry triple is issued together.
func (s *Service) Refresh(rawAdminToken string) (*Session, error) {
	user, current, err := s.Authenticate(rawAdminToken, "", false)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Revoke(current.JTI, "rotated"); err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] revoke")
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.Record(user.ID, "admin.refresh", user.Email, nil)
	}
	return session, nil
}

// Authenticate validates an admin bearer token, and for mutating requests the
// paired CSRF token as well.
func (s *Service) Authenticate(rawAdminToken, csrfToken string, mutating bool) (*users.User, *AdminSession, error) {
	claims, err := s.tokens.Parse(rawAdminToken, token.ScopeAdmin)
	if err != nil {
		return nil, nil, ErrSessionExpired
	}

	session, err := s.repo.Get(claims.JTI)
	if err != nil {
		return nil, nil, ErrSessionExpired
	}
	if session.RevokedAt != nil {
		return nil, nil, ErrSessionRevoked
	}
	if !s.nowFunc().Before(session.ExpiresAt) {
		return nil, nil, ErrSessionExpired
	}

	if mutating && session.CSRFToken != csrfToken {
		return nil, nil, ErrCSRFMismatch
	}

	user, err := s.userRepo.GetByID(session.UserID)
	if err != nil || !user.Active || user.Blocked || !user.SuperAdmin {
		return nil, nil, ErrSessionRevoked
	}

	return user, session, nil
}

// Logout revokes the admin session. Unknown or already-revoked sessions are
// not an error: the caller is logging out either way.
func (s *Service) Logout(rawAdminToken string) error {
	claims, err := s.tokens.Parse(rawAdminToken, token.ScopeAdmin)
	if err != nil {
		return nil
	}
	if err := s.repo.Revoke(claims.JTI, "admin_logout"); err != nil {
		return nil
	}
	if s.recorder != nil {
		s.recorder.Record(claims.UserID, "admin.logout", claims.Email, nil)
	}
	return nil
}

func (s *Service) issue(user *users.User) (*Session, error) {
	issued, err := s.tokens.CreateAdminToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issue] create admin token")
	}

	csrf, err := token.NewCSRFToken()
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issue] csrf")
	}

	if err := s.repo.Upsert(&AdminSession{
		JTI:       issued.JTI,
		UserID:    user.ID,
		CSRFToken: csrf,
		CreatedAt: s.nowFunc(),
		ExpiresAt: issued.ExpiresAt,
	}); err != nil {
		return nil, errors.Wrap(err, "[Service.issue] upsert")
	}

	return &Session{
		Token:     issued.Token,
		CSRFToken: csrf,
		ExpiresAt: issued.ExpiresAt,
		User:      user,
	}, nil
}

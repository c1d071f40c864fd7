package adminauth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/varzeaprime/go-hub-server/adminauth"
	adminsessionrepofakes "github.com/varzeaprime/go-hub-server/adminauth/repofakes"
	"github.com/varzeaprime/go-hub-server/sessions"
	fakesessionrepo "github.com/varzeaprime/go-hub-server/sessions/repofakes"
	"github.com/varzeaprime/go-hub-server/token"
	"github.com/varzeaprime/go-hub-server/users"
	fakeuserrepo "github.com/varzeaprime/go-hub-server/users/repofake"
)

const (
	secretStr     = "test-signing-secret"
	issuer        = "http://hub.test"
	adminUserID   = "admin-1"
	adminEmail    = "root@varzea.test"
	regularUserID = "user-1"
	regularEmail  = "maria@varzea.test"
)

type adminFixture struct {
	userRepo    users.UserRepo
	hubSessions sessions.Repo
	adminRepo   *adminsessionrepofakes.FakeAdminSessionRepo
	tokens      *token.Manager
	service     *adminauth.Service
}

func setupAdminFixture(t *testing.T) *adminFixture {
	t.Helper()

	ur := fakeuserrepo.NewFakeUserRepo()
	sr := fakesessionrepo.NewFakeSessionRepo()
	ar := adminsessionrepofakes.NewFakeAdminSessionRepo()

	tokens := token.New([]byte(secretStr), issuer,
		token.WithTokenExpiry(24*time.Hour, 15*time.Minute))

	service, err := adminauth.NewService(ur, sr, ar, tokens, nil)
	require.NoError(t, err)

	return &adminFixture{
		userRepo:    ur,
		hubSessions: sr,
		adminRepo:   ar,
		tokens:      tokens,
		service:     service,
	}
}

func (f *adminFixture) createUser(t *testing.T, id, email string, superAdmin bool) *users.User {
	t.Helper()

	user := &users.User{
		ID:         id,
		Name:       "Test User",
		Email:      email,
		SuperAdmin: superAdmin,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, f.userRepo.Upsert(user))
	return user
}

// openHubSession issues a hub token and the matching session record, the same
// state a hub login leaves behind.
func (f *adminFixture) openHubSession(t *testing.T, user *users.User) string {
	t.Helper()

	issued, err := f.tokens.CreateHubToken(user)
	require.NoError(t, err)

	require.NoError(t, f.hubSessions.Upsert(&sessions.SessionData{
		TokenHash: sessions.HashToken(issued.Token),
		UserID:    user.ID,
		CreatedAt: time.Now(),
		ExpiresAt: issued.ExpiresAt,
	}))
	return issued.Token
}

func TestExchange_Success(t *testing.T) {
	f := setupAdminFixture(t)
	admin := f.createUser(t, adminUserID, adminEmail, true)
	hubToken := f.openHubSession(t, admin)

	session, err := f.service.Exchange(hubToken)
	require.NoError(t, err)

	require.NotEmpty(t, session.Token)
	require.NotEmpty(t, session.CSRFToken)
	require.True(t, session.ExpiresAt.After(time.Now()))
	require.Equal(t, adminUserID, session.User.ID)

	// The issued token is admin scoped, not hub scoped.
	_, err = f.tokens.Parse(session.Token, token.ScopeAdmin)
	require.NoError(t, err)
	_, err = f.tokens.Parse(session.Token, token.ScopeHub)
	require.Error(t, err)
}

func TestExchange_NotSuperAdmin(t *testing.T) {
	f := setupAdminFixture(t)
	user := f.createUser(t, regularUserID, regularEmail, false)
	hubToken := f.openHubSession(t, user)

	_, err := f.service.Exchange(hubToken)
	require.ErrorIs(t, err, adminauth.ErrNotSuperAdmin)
}

func TestExchange_RevokedHubSession(t *testing.T) {
	f := setupAdminFixture(t)
	admin := f.createUser(t, adminUserID, adminEmail, true)
	hubToken := f.openHubSession(t, admin)

	require.NoError(t, f.hubSessions.Revoke(sessions.HashToken(hubToken), "user_logout"))

	_, err := f.service.Exchange(hubToken)
	require.ErrorIs(t, err, adminauth.ErrHubSessionInvalid)
}

func TestExchange_AdminTokenRejected(t *testing.T) {
	f := setupAdminFixture(t)
	admin := f.createUser(t, adminUserID, adminEmail, true)
	hubToken := f.openHubSession(t, admin)

	session, err := f.service.Exchange(hubToken)
	require.NoError(t, err)

	// An admin token cannot be exchanged again as if it were a hub token.
	_, err = f.service.Exchange(session.Token)
	require.ErrorIs(t, err, adminauth.ErrHubSessionInvalid)
}

func TestRefresh_RotatesWholeTriple(t *testing.T) {
	f := setupAdminFixture(t)
	admin := f.createUser(t, adminUserID, adminEmail, true)
	hubToken := f.openHubSession(t, admin)

	first, err := f.service.Exchange(hubToken)
	require.NoError(t, err)

	second, err := f.service.Refresh(first.Token)
	require.NoError(t, err)

	require.NotEqual(t, first.Token, second.Token)
	require.NotEqual(t, first.CSRFToken, second.CSRFToken)

	// The old session is revoked by the rotation.
	_, _, err = f.service.Authenticate(first.Token, "", false)
	require.ErrorIs(t, err, adminauth.ErrSessionRevoked)

	_, _, err = f.service.Authenticate(second.Token, "", false)
	require.NoError(t, err)
}

func TestAuthenticate_MutatingRequiresCSRF(t *testing.T) {
	f := setupAdminFixture(t)
	admin := f.createUser(t, adminUserID, adminEmail, true)
	hubToken := f.openHubSession(t, admin)

	session, err := f.service.Exchange(hubToken)
	require.NoError(t, err)

	_, _, err = f.service.Authenticate(session.Token, "", true)
	require.ErrorIs(t, err, adminauth.ErrCSRFMismatch)

	_, _, err = f.service.Authenticate(session.Token, session.CSRFToken, true)
	require.NoError(t, err)
}

func TestAuthenticate_ReadOnlySkipsCSRF(t *testing.T) {
	f := setupAdminFixture(t)
	admin := f.createUser(t, adminUserID, adminEmail, true)
	hubToken := f.openHubSession(t, admin)

	session, err := f.service.Exchange(hubToken)
	require.NoError(t, err)

	_, _, err = f.service.Authenticate(session.Token, "", false)
	require.NoError(t, err)
}

func TestAuthenticate_ExpiredSession(t *testing.T) {
	f := setupAdminFixture(t)
	admin := f.createUser(t, adminUserID, adminEmail, true)
	hubToken := f.openHubSession(t, admin)

	session, err := f.service.Exchange(hubToken)
	require.NoError(t, err)

	// Re-evaluate the session well past its expiry.
	late, err := adminauth.NewService(f.userRepo, f.hubSessions, f.adminRepo, f.tokens, nil,
		adminauth.WithNowFunc(func() time.Time { return time.Now().Add(16 * time.Minute) }))
	require.NoError(t, err)

	_, _, err = late.Authenticate(session.Token, "", false)
	require.ErrorIs(t, err, adminauth.ErrSessionExpired)
}

func TestAuthenticate_SuperAdminFlagRevokedMidSession(t *testing.T) {
	f := setupAdminFixture(t)
	admin := f.createUser(t, adminUserID, adminEmail, true)
	hubToken := f.openHubSession(t, admin)

	session, err := f.service.Exchange(hubToken)
	require.NoError(t, err)

	admin.SuperAdmin = false
	require.NoError(t, f.userRepo.Upsert(admin))

	_, _, err = f.service.Authenticate(session.Token, "", false)
	require.ErrorIs(t, err, adminauth.ErrSessionRevoked)
}

func TestLogout_RevokesSession(t *testing.T) {
	f := setupAdminFixture(t)
	admin := f.createUser(t, adminUserID, adminEmail, true)
	hubToken := f.openHubSession(t, admin)

	session, err := f.service.Exchange(hubToken)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(session.Token))

	_, _, err = f.service.Authenticate(session.Token, "", false)
	require.ErrorIs(t, err, adminauth.ErrSessionRevoked)
}

func TestLogout_UnknownTokenIsFine(t *testing.T) {
	f := setupAdminFixture(t)

	require.NoError(t, f.service.Logout("not-a-jwt"))
}

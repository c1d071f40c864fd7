package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/varzeaprime/go-hub-server/token"
	"github.com/varzeaprime/go-hub-server/users"
)

const (
	testSecret = "test-signing-secret"
	testIssuer = "http://hub.test"
)

func testUser() *users.User {
	return &users.User{ID: "user-1", Email: "maria@varzea.test"}
}

func TestCreateAndParse_HubToken(t *testing.T) {
	m := token.New([]byte(testSecret), testIssuer)

	issued, err := m.CreateHubToken(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.NotEmpty(t, issued.JTI)

	claims, err := m.Parse(issued.Token, token.ScopeHub)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "maria@varzea.test", claims.Email)
	require.Equal(t, token.ScopeHub, claims.Scope)
	require.Equal(t, issued.JTI, claims.JTI)
	require.Equal(t, issued.ExpiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestParse_ScopeMismatch(t *testing.T) {
	m := token.New([]byte(testSecret), testIssuer)

	hub, err := m.CreateHubToken(testUser())
	require.NoError(t, err)
	admin, err := m.CreateAdminToken(testUser())
	require.NoError(t, err)

	_, err = m.Parse(hub.Token, token.ScopeAdmin)
	require.ErrorIs(t, err, token.ErrWrongScope)
	_, err = m.Parse(admin.Token, token.ScopeHub)
	require.ErrorIs(t, err, token.ErrWrongScope)
}

func TestParse_WrongSecret(t *testing.T) {
	m := token.New([]byte(testSecret), testIssuer)
	other := token.New([]byte("a-different-secret"), testIssuer)

	issued, err := m.CreateHubToken(testUser())
	require.NoError(t, err)

	_, err = other.Parse(issued.Token, token.ScopeHub)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestParse_ExpiredToken(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	m := token.New([]byte(testSecret), testIssuer,
		token.WithTokenExpiry(time.Minute, time.Minute),
		token.WithNowFunc(func() time.Time { return past }))

	issued, err := m.CreateHubToken(testUser())
	require.NoError(t, err)

	// Verify with real time, an hour past issuance.
	verifier := token.New([]byte(testSecret), testIssuer)
	_, err = verifier.Parse(issued.Token, token.ScopeHub)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestParse_EmptyAndGarbage(t *testing.T) {
	m := token.New([]byte(testSecret), testIssuer)

	_, err := m.Parse("", token.ScopeHub)
	require.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = m.Parse("not.a.jwt", token.ScopeHub)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestAdminTokenExpiry(t *testing.T) {
	now := time.Now()
	m := token.New([]byte(testSecret), testIssuer,
		token.WithTokenExpiry(24*time.Hour, 15*time.Minute),
		token.WithNowFunc(func() time.Time { return now }))

	issued, err := m.CreateAdminToken(testUser())
	require.NoError(t, err)
	require.Equal(t, now.Add(15*time.Minute).Unix(), issued.ExpiresAt.Unix())
}

func TestNewCSRFToken_Unique(t *testing.T) {
	first, err := token.NewCSRFToken()
	require.NoError(t, err)
	require.Len(t, first, 64)

	second, err := token.NewCSRFToken()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

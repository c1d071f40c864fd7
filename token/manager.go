package token

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/varzeaprime/go-hub-server/users"
)

// Scope separates the two token domains the hub issues. A hub token can never
// be presented where an admin token is expected and vice versa.
type Scope string

const (
	ScopeHub   Scope = "hub"
	ScopeAdmin Scope = "admin"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongScope   = errors.New("token issued for a different scope")
)

// Claims is the verified content of a hub-issued bearer token.
type Claims struct {
	UserID    string
	Email     string
	Scope     Scope
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Manager struct {
	secret           []byte
	issuer           string
	hubTokenExpiry   time.Duration
	adminTokenExpiry time.Duration
	nowFunc          func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(hubExpiry, adminExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.hubTokenExpiry = hubExpiry
		m.adminTokenExpiry = adminExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(secret []byte, issuer string, options ...ManagerOption) *Manager {
	m := &Manager{
		secret: secret,
		issuer: issuer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.hubTokenExpiry == 0 {
		m.hubTokenExpiry = 24 * 7 * time.Hour
	}
	if m.adminTokenExpiry == 0 {
		m.adminTokenExpiry = 15 * time.Minute
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Issued couples a signed token with the metadata callers persist alongside it.
type Issued struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// CreateHubToken issues the long-lived hub bearer token for a user.
func (m *Manager) CreateHubToken(user *users.User) (*Issued, error) {
	return m.create(user, ScopeHub, m.hubTokenExpiry)
}

// CreateAdminToken issues the short-lived admin-scoped token obtained via the
// hub exchange.
func (m *Manager) CreateAdminToken(user *users.User) (*Issued, error) {
	return m.create(user, ScopeAdmin, m.adminTokenExpiry)
}

func (m *Manager) create(user *users.User, scope Scope, expiry time.Duration) (*Issued, error) {
	now := m.nowFunc()
	jti := uuid.New().String()
	expiresAt := now.Add(expiry)

	claims := jwt.MapClaims{
		"iss":   m.issuer,
		"sub":   user.ID,
		"email": user.Email,
		"scope": string(scope),
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
		"jti":   jti,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.create] sign")
	}

	return &Issued{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// Parse verifies a raw token and checks it was issued for the expected scope.
func (m *Manager) Parse(rawToken string, expected Scope) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.nowFunc))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("[Manager.Parse] error extracting claims")
	}

	sub, _ := mapClaims["sub"].(string)
	email, _ := mapClaims["email"].(string)
	scope, _ := mapClaims["scope"].(string)
	jti, _ := mapClaims["jti"].(string)
	iat, _ := mapClaims["iat"].(float64)
	exp, _ := mapClaims["exp"].(float64)

	if Scope(scope) != expected {
		return nil, ErrWrongScope
	}

	return &Claims{
		UserID:    sub,
		Email:     email,
		Scope:     Scope(scope),
		JTI:       jti,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}

// NewCSRFToken generates the random CSRF token paired with an admin session.
func NewCSRFToken() (string, error) {
	tokenBytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "[NewCSRFToken] rand.Read")
	}
	return hex.EncodeToString(tokenBytes), nil
}

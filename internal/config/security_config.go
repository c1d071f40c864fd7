package config

import "time"

type SecurityConfig interface {
	GetTokenSigningSecret() []byte
	GetHubTokenExpiry() time.Duration
	GetAdminTokenExpiry() time.Duration
	GetAdminInactivityWindow() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetTokenSigningSecret() []byte {
	return []byte(GetEnv("TOKEN_SECRET", "dev-only-secret-change-me"))
}

// GetHubTokenExpiry bounds the hub bearer token. Hub sessions are long lived;
// the token carries identity only and revocation happens against the session store.
func (Security) GetHubTokenExpiry() time.Duration {
	return 24 * 7 * time.Hour
}

// GetAdminTokenExpiry bounds the admin-scoped token obtained via hub exchange.
func (Security) GetAdminTokenExpiry() time.Duration {
	return 15 * time.Minute
}

// GetAdminInactivityWindow is how long an admin session survives without activity.
func (Security) GetAdminInactivityWindow() time.Duration {
	return 30 * time.Minute
}

package sessions

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SessionData is one hub login. The bearer token itself is never stored; only
// its SHA-256 hash, so a leaked session store cannot be replayed.
type SessionData struct {
	TokenHash       string     `json:"token_hash"`
	UserID          string     `json:"user_id"`
	CurrentTenantID string     `json:"current_tenant_id,omitempty"`
	IP              string     `json:"ip,omitempty"`
	UserAgent       string     `json:"user_agent,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	RevokeReason    string     `json:"revoke_reason,omitempty"`
}

// ActiveAt reports whether the session is usable at the given instant.
func (s *SessionData) ActiveAt(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// HashToken derives the storage key for a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

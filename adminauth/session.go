package adminauth

import "time"

// AdminSession is the server-side record of an admin-scoped session created by
// exchanging a hub token. Keyed by the admin token's JTI; refresh rotates the
// whole record.
type AdminSession struct {
	JTI          string     `json:"jti"`
	UserID       string     `json:"user_id"`
	CSRFToken    string     `json:"csrf_token"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason string     `json:"revoke_reason,omitempty"`
}

func (s *AdminSession) ActiveAt(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

type Repo interface {
	Upsert(session *AdminSession) error
	Get(jti string) (*AdminSession, error)
	Revoke(jti, reason string) error
}

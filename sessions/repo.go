package sessions

import "errors"

var ErrNotFound = errors.New("session not found")

type Repo interface {
	Upsert(session *SessionData) error
	Get(tokenHash string) (*SessionData, error)
	SetCurrentTenant(tokenHash, tenantID string) error
	Revoke(tokenHash, reason string) error
	RevokeAllForUser(userID, reason string) error
	CountActive() (int, error)
}

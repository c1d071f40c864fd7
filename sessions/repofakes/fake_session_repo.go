package fakesessionrepo

import (
	"sync"
	"time"

	"github.com/varzeaprime/go-hub-server/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	byHash map[string]*sessions.SessionData
	lock   sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{byHash: make(map[string]*sessions.SessionData)}
}

func (r *FakeSessionRepo) Upsert(session *sessions.SessionData) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.byHash[session.TokenHash] = session
	return nil
}

func (r *FakeSessionRepo) Get(tokenHash string) (*sessions.SessionData, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	s, ok := r.byHash[tokenHash]
	if !ok {
		return nil, sessions.ErrNotFound
	}
	return s, nil
}

func (r *FakeSessionRepo) SetCurrentTenant(tokenHash, tenantID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	s, ok := r.byHash[tokenHash]
	if !ok {
		return sessions.ErrNotFound
	}
	s.CurrentTenantID = tenantID
	return nil
}

func (r *FakeSessionRepo) Revoke(tokenHash, reason string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	s, ok := r.byHash[tokenHash]
	if !ok {
		return sessions.ErrNotFound
	}
	now := time.Now()
	s.RevokedAt = &now
	s.RevokeReason = reason
	return nil
}

func (r *FakeSessionRepo) RevokeAllForUser(userID, reason string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	now := time.Now()
	for _, s := range r.byHash {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			s.RevokeReason = reason
		}
	}
	return nil
}

func (r *FakeSessionRepo) CountActive() (int, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	now := time.Now()
	count := 0
	for _, s := range r.byHash {
		if s.ActiveAt(now) {
			count++
		}
	}
	return count, nil
}

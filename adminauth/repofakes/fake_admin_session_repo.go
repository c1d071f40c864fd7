package adminsessionrepofakes

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/varzeaprime/go-hub-server/adminauth"
)

var _ adminauth.Repo = (*FakeAdminSessionRepo)(nil)

type FakeAdminSessionRepo struct {
	byJTI map[string]*adminauth.AdminSession
	lock  sync.RWMutex
}

func NewFakeAdminSessionRepo() *FakeAdminSessionRepo {
	return &FakeAdminSessionRepo{byJTI: make(map[string]*adminauth.AdminSession)}
}

func (r *FakeAdminSessionRepo) Upsert(session *adminauth.AdminSession) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.byJTI[session.JTI] = session
	return nil
}

func (r *FakeAdminSessionRepo) Get(jti string) (*adminauth.AdminSession, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	s, ok := r.byJTI[jti]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func (r *FakeAdminSessionRepo) Revoke(jti, reason string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	s, ok := r.byJTI[jti]
	if !ok {
		return errors.New("not found")
	}
	now := time.Now()
	s.RevokedAt = &now
	s.RevokeReason = reason
	return nil
}

package tenantrepofakes

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/varzeaprime/go-hub-server/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

type membershipKey struct {
	userID   string
	tenantID string
}

type FakeTenantRepo struct {
	systems     map[string]*tenants.System // keyed by slug
	tenantsByID map[string]*tenants.Tenant
	memberships map[membershipKey]*tenants.Membership
	lock        sync.RWMutex
}

func NewFakeTenantRepo() *FakeTenantRepo {
	return &FakeTenantRepo{
		systems:     make(map[string]*tenants.System),
		tenantsByID: make(map[string]*tenants.Tenant),
		memberships: make(map[membershipKey]*tenants.Membership),
	}
}

func (r *FakeTenantRepo) UpsertSystem(system *tenants.System) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if system.ID == "" {
		system.ID = uuid.New().String()
	}
	r.systems[system.Slug] = system
	return nil
}

func (r *FakeTenantRepo) GetSystem(slug string) (*tenants.System, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	s, ok := r.systems[slug]
	if !ok {
		return nil, tenants.ErrNotFound
	}
	return s, nil
}

func (r *FakeTenantRepo) ListSystems() ([]*tenants.System, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	list := make([]*tenants.System, 0, len(r.systems))
	for _, s := range r.systems {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].DisplayOrder != list[j].DisplayOrder {
			return list[i].DisplayOrder < list[j].DisplayOrder
		}
		return list[i].Slug < list[j].Slug
	})
	return list, nil
}

func (r *FakeTenantRepo) DeleteSystem(slug string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.systems[slug]; !ok {
		return tenants.ErrNotFound
	}
	delete(r.systems, slug)
	return nil
}

func (r *FakeTenantRepo) UpsertTenant(tenant *tenants.Tenant) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now()
	}
	for _, t := range r.tenantsByID {
		if t.Slug == tenant.Slug && t.ID != tenant.ID {
			return tenants.ErrSlugTaken
		}
	}
	r.tenantsByID[tenant.ID] = tenant
	return nil
}

func (r *FakeTenantRepo) GetTenant(id string) (*tenants.Tenant, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.tenantsByID[id]
	if !ok {
		return nil, tenants.ErrNotFound
	}
	return t, nil
}

func (r *FakeTenantRepo) GetTenantBySlug(slug string) (*tenants.Tenant, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, t := range r.tenantsByID {
		if t.Slug == slug {
			return t, nil
		}
	}
	return nil, tenants.ErrNotFound
}

func (r *FakeTenantRepo) ListTenants(offset, limit int) (tenants.TenantListResponse, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	list := make([]*tenants.Tenant, 0, len(r.tenantsByID))
	for _, t := range r.tenantsByID {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Slug < list[j].Slug })

	total := len(list)
	if offset > total {
		return tenants.TenantListResponse{Total: total, Offset: offset, Limit: limit}, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return tenants.TenantListResponse{Tenants: list[offset:end], Total: total, Offset: offset, Limit: limit}, nil
}

func (r *FakeTenantRepo) ListTenantsBySystem(systemSlug string) ([]*tenants.Tenant, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	system, ok := r.systems[systemSlug]
	if !ok {
		return nil, tenants.ErrNotFound
	}
	var list []*tenants.Tenant
	for _, t := range r.tenantsByID {
		if t.SystemID == system.ID {
			list = append(list, t)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Slug < list[j].Slug })
	return list, nil
}

func (r *FakeTenantRepo) DeleteTenant(id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.tenantsByID[id]; !ok {
		return tenants.ErrNotFound
	}
	delete(r.tenantsByID, id)
	for k := range r.memberships {
		if k.tenantID == id {
			delete(r.memberships, k)
		}
	}
	return nil
}

func (r *FakeTenantRepo) UpsertMembership(m *tenants.Membership) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	r.memberships[membershipKey{m.UserID, m.TenantID}] = m
	return nil
}

func (r *FakeTenantRepo) GetMembership(userID, tenantID string) (*tenants.Membership, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	m, ok := r.memberships[membershipKey{userID, tenantID}]
	if !ok || !m.Active {
		return nil, tenants.ErrNotMember
	}
	return m, nil
}

func (r *FakeTenantRepo) GrantsForUser(userID string) ([]*tenants.Grant, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var grants []*tenants.Grant
	for key, m := range r.memberships {
		if key.userID != userID || !m.Active {
			continue
		}
		tenant, ok := r.tenantsByID[m.TenantID]
		if !ok || !tenant.Active {
			continue
		}
		var system *tenants.System
		for _, s := range r.systems {
			if s.ID == tenant.SystemID {
				system = s
				break
			}
		}
		if system == nil {
			continue
		}
		grants = append(grants, &tenants.Grant{Tenant: tenant, System: system, Role: m.Role})
	}

	sort.Slice(grants, func(i, j int) bool {
		if grants[i].System.DisplayOrder != grants[j].System.DisplayOrder {
			return grants[i].System.DisplayOrder < grants[j].System.DisplayOrder
		}
		return grants[i].Tenant.DisplayName < grants[j].Tenant.DisplayName
	})
	return grants, nil
}

func (r *FakeTenantRepo) MembersOfTenant(tenantID string) ([]*tenants.Membership, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var list []*tenants.Membership
	for k, m := range r.memberships {
		if k.tenantID == tenantID {
			list = append(list, m)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list, nil
}

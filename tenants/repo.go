package tenants

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrSlugTaken     = errors.New("slug already in use")
	ErrNotMember     = errors.New("user is not a member of this tenant")
	ErrTenantBlocked = errors.New("tenant is not active")
)

type TenantListResponse struct {
	Tenants []*Tenant
	Total   int
	Offset  int
	Limit   int
}

type Repo interface {
	// Systems
	UpsertSystem(system *System) error
	GetSystem(slug string) (*System, error)
	ListSystems() ([]*System, error)
	DeleteSystem(slug string) error

	// Tenants
	UpsertTenant(tenant *Tenant) error
	GetTenant(id string) (*Tenant, error)
	GetTenantBySlug(slug string) (*Tenant, error)
	ListTenants(offset, limit int) (TenantListResponse, error)
	ListTenantsBySystem(systemSlug string) ([]*Tenant, error)
	DeleteTenant(id string) error

	// Memberships
	UpsertMembership(m *Membership) error
	GetMembership(userID, tenantID string) (*Membership, error)
	GrantsForUser(userID string) ([]*Grant, error)
	MembersOfTenant(tenantID string) ([]*Membership, error)
}

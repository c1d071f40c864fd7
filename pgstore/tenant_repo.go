package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/varzeaprime/go-hub-server/tenants"
)

var _ tenants.Repo = (*TenantRepo)(nil)

type TenantRepo struct {
	pool *pgxpool.Pool
}

const systemColumns = `id, slug, display_name, icon, color, display_order`
const tenantColumns = `id, system_id, slug, display_name, logo_url, primary_color,
	database_name, database_host, active, allow_registration, created_at`

func (r *TenantRepo) UpsertSystem(system *tenants.System) error {
	if system.ID == "" {
		system.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(context.Background(), `
		INSERT INTO hub_systems (`+systemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slug) DO UPDATE SET
			display_name = EXCLUDED.display_name, icon = EXCLUDED.icon,
			color = EXCLUDED.color, display_order = EXCLUDED.display_order`,
		system.ID, system.Slug, system.DisplayName, system.Icon, system.Color, system.DisplayOrder)
	return errors.Wrap(err, "[TenantRepo.UpsertSystem] exec")
}

func (r *TenantRepo) GetSystem(slug string) (*tenants.System, error) {
	row := r.pool.QueryRow(context.Background(),
		`SELECT `+systemColumns+` FROM hub_systems WHERE slug = $1`, slug)
	return scanSystem(row)
}

func (r *TenantRepo) ListSystems() ([]*tenants.System, error) {
	rows, err := r.pool.Query(context.Background(),
		`SELECT `+systemColumns+` FROM hub_systems ORDER BY display_order, display_name`)
	if err != nil {
		return nil, errors.Wrap(err, "[TenantRepo.ListSystems] query")
	}
	defer rows.Close()

	var systems []*tenants.System
	for rows.Next() {
		system, err := scanSystem(rows)
		if err != nil {
			return nil, err
		}
		systems = append(systems, system)
	}
	return systems, errors.Wrap(rows.Err(), "[TenantRepo.ListSystems] rows")
}

func (r *TenantRepo) DeleteSystem(slug string) error {
	_, err := r.pool.Exec(context.Background(), `DELETE FROM hub_systems WHERE slug = $1`, slug)
	return errors.Wrap(err, "[TenantRepo.DeleteSystem] exec")
}

func (r *TenantRepo) UpsertTenant(tenant *tenants.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(context.Background(), `
		INSERT INTO hub_tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			system_id = EXCLUDED.system_id, slug = EXCLUDED.slug,
			display_name = EXCLUDED.display_name, logo_url = EXCLUDED.logo_url,
			primary_color = EXCLUDED.primary_color, database_name = EXCLUDED.database_name,
			database_host = EXCLUDED.database_host, active = EXCLUDED.active,
			allow_registration = EXCLUDED.allow_registration`,
		tenant.ID, tenant.SystemID, tenant.Slug, tenant.DisplayName, tenant.LogoURL,
		tenant.PrimaryColor, tenant.DatabaseName, tenant.DatabaseHost, tenant.Active,
		tenant.AllowRegistration, tenant.CreatedAt)
	return errors.Wrap(err, "[TenantRepo.UpsertTenant] exec")
}

func (r *TenantRepo) GetTenant(id string) (*tenants.Tenant, error) {
	row := r.pool.QueryRow(context.Background(),
		`SELECT `+tenantColumns+` FROM hub_tenants WHERE id = $1`, id)
	return scanTenant(row)
}

func (r *TenantRepo) GetTenantBySlug(slug string) (*tenants.Tenant, error) {
	row := r.pool.QueryRow(context.Background(),
		`SELECT `+tenantColumns+` FROM hub_tenants WHERE slug = $1`, slug)
	return scanTenant(row)
}

func (r *TenantRepo) ListTenants(offset, limit int) (tenants.TenantListResponse, error) {
	ctx := context.Background()
	response := tenants.TenantListResponse{Offset: offset, Limit: limit}

	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM hub_tenants`).Scan(&response.Total); err != nil {
		return response, errors.Wrap(err, "[TenantRepo.ListTenants] count")
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM hub_tenants ORDER BY created_at, id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return response, errors.Wrap(err, "[TenantRepo.ListTenants] query")
	}
	defer rows.Close()

	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return response, err
		}
		response.Tenants = append(response.Tenants, tenant)
	}
	return response, errors.Wrap(rows.Err(), "[TenantRepo.ListTenants] rows")
}

func (r *TenantRepo) ListTenantsBySystem(systemSlug string) ([]*tenants.Tenant, error) {
	rows, err := r.pool.Query(context.Background(), `
		SELECT t.id, t.system_id, t.slug, t.display_name, t.logo_url, t.primary_color,
			t.database_name, t.database_host, t.active, t.allow_registration, t.created_at
		FROM hub_tenants t
		JOIN hub_systems s ON s.id = t.system_id
		WHERE s.slug = $1
		ORDER BY t.display_name`, systemSlug)
	if err != nil {
		return nil, errors.Wrap(err, "[TenantRepo.ListTenantsBySystem] query")
	}
	defer rows.Close()

	var list []*tenants.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, tenant)
	}
	return list, errors.Wrap(rows.Err(), "[TenantRepo.ListTenantsBySystem] rows")
}

func (r *TenantRepo) DeleteTenant(id string) error {
	_, err := r.pool.Exec(context.Background(), `DELETE FROM hub_tenants WHERE id = $1`, id)
	return errors.Wrap(err, "[TenantRepo.DeleteTenant] exec")
}

func (r *TenantRepo) UpsertMembership(m *tenants.Membership) error {
	_, err := r.pool.Exec(context.Background(), `
		INSERT INTO hub_memberships (user_id, tenant_id, role, active, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, tenant_id) DO UPDATE SET
			role = EXCLUDED.role, active = EXCLUDED.active`,
		m.UserID, m.TenantID, m.Role, m.Active, m.JoinedAt)
	return errors.Wrap(err, "[TenantRepo.UpsertMembership] exec")
}

func (r *TenantRepo) GetMembership(userID, tenantID string) (*tenants.Membership, error) {
	var m tenants.Membership
	err := r.pool.QueryRow(context.Background(), `
		SELECT user_id, tenant_id, role, active, joined_at
		FROM hub_memberships WHERE user_id = $1 AND tenant_id = $2 AND active`, userID, tenantID).
		Scan(&m.UserID, &m.TenantID, &m.Role, &m.Active, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenants.ErrNotMember
	}
	if err != nil {
		return nil, errors.Wrap(err, "[TenantRepo.GetMembership] scan")
	}
	return &m, nil
}

func (r *TenantRepo) GrantsForUser(userID string) ([]*tenants.Grant, error) {
	rows, err := r.pool.Query(context.Background(), `
		SELECT t.id, t.system_id, t.slug, t.display_name, t.logo_url, t.primary_color,
			t.database_name, t.database_host, t.active, t.allow_registration, t.created_at,
			s.id, s.slug, s.display_name, s.icon, s.color, s.display_order,
			m.role
		FROM hub_memberships m
		JOIN hub_tenants t ON t.id = m.tenant_id
		JOIN hub_systems s ON s.id = t.system_id
		WHERE m.user_id = $1 AND m.active AND t.active
		ORDER BY s.display_order, t.display_name`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[TenantRepo.GrantsForUser] query")
	}
	defer rows.Close()

	var grants []*tenants.Grant
	for rows.Next() {
		var t tenants.Tenant
		var s tenants.System
		var role string
		if err := rows.Scan(&t.ID, &t.SystemID, &t.Slug, &t.DisplayName, &t.LogoURL,
			&t.PrimaryColor, &t.DatabaseName, &t.DatabaseHost, &t.Active, &t.AllowRegistration,
			&t.CreatedAt, &s.ID, &s.Slug, &s.DisplayName, &s.Icon, &s.Color, &s.DisplayOrder,
			&role); err != nil {
			return nil, errors.Wrap(err, "[TenantRepo.GrantsForUser] scan")
		}
		grants = append(grants, &tenants.Grant{Tenant: &t, System: &s, Role: role})
	}
	return grants, errors.Wrap(rows.Err(), "[TenantRepo.GrantsForUser] rows")
}

func (r *TenantRepo) MembersOfTenant(tenantID string) ([]*tenants.Membership, error) {
	rows, err := r.pool.Query(context.Background(), `
		SELECT user_id, tenant_id, role, active, joined_at
		FROM hub_memberships WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "[TenantRepo.MembersOfTenant] query")
	}
	defer rows.Close()

	var members []*tenants.Membership
	for rows.Next() {
		var m tenants.Membership
		if err := rows.Scan(&m.UserID, &m.TenantID, &m.Role, &m.Active, &m.JoinedAt); err != nil {
			return nil, errors.Wrap(err, "[TenantRepo.MembersOfTenant] scan")
		}
		members = append(members, &m)
	}
	return members, errors.Wrap(rows.Err(), "[TenantRepo.MembersOfTenant] rows")
}

func scanSystem(row pgx.Row) (*tenants.System, error) {
	var s tenants.System
	err := row.Scan(&s.ID, &s.Slug, &s.DisplayName, &s.Icon, &s.Color, &s.DisplayOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenants.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[pgstore scanSystem] scan")
	}
	return &s, nil
}

func scanTenant(row pgx.Row) (*tenants.Tenant, error) {
	var t tenants.Tenant
	err := row.Scan(&t.ID, &t.SystemID, &t.Slug, &t.DisplayName, &t.LogoURL, &t.PrimaryColor,
		&t.DatabaseName, &t.DatabaseHost, &t.Active, &t.AllowRegistration, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenants.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[pgstore scanTenant] scan")
	}
	return &t, nil
}

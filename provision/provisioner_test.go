package provision_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/varzeaprime/go-hub-server/provision"
	"github.com/varzeaprime/go-hub-server/tenants"
	tenantrepofakes "github.com/varzeaprime/go-hub-server/tenants/repofakes"
	"github.com/varzeaprime/go-hub-server/users"
	fakeuserrepo "github.com/varzeaprime/go-hub-server/users/repofake"
)

// fakeConn records every statement and can be told to fail on a substring.
type fakeConn struct {
	dsn      string
	recorder *execRecorder
}

type execRecorder struct {
	mu       sync.Mutex
	execs    []string
	failWhen string
}

func (r *execRecorder) record(sql string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs = append(r.execs, sql)
	if r.failWhen != "" && strings.Contains(sql, r.failWhen) {
		return errors.New("forced failure")
	}
	return nil
}

func (r *execRecorder) statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.execs...)
}

func (c *fakeConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, c.recorder.record(sql)
}

func (c *fakeConn) Close(context.Context) error { return nil }

type provisionFixture struct {
	repo     *tenantrepofakes.FakeTenantRepo
	users    users.UserRepo
	recorder *execRecorder
	prov     *provision.Provisioner
}

func setupProvisionFixture(t *testing.T) *provisionFixture {
	t.Helper()
	repo := tenantrepofakes.NewFakeTenantRepo()
	require.NoError(t, repo.UpsertSystem(&tenants.System{Slug: "quadra", DisplayName: "Quadra"}))

	userRepo := fakeuserrepo.NewFakeUserRepo()
	rec := &execRecorder{}
	connect := func(_ context.Context, dsn string) (provision.Conn, error) {
		return &fakeConn{dsn: dsn, recorder: rec}, nil
	}
	prov := provision.New(repo, userRepo, nil,
		"postgres://postgres@localhost/postgres",
		"postgres://postgres@localhost/%s",
		t.TempDir(), "localhost",
		provision.WithConnector(connect))

	return &provisionFixture{repo: repo, users: userRepo, recorder: rec, prov: prov}
}

func TestProvision_Success(t *testing.T) {
	f := setupProvisionFixture(t)

	result, err := f.prov.Provision(context.Background(), provision.Params{
		Slug:          "arena-x",
		SystemSlug:    "quadra",
		DisplayName:   "Arena X",
		AdminName:     "Maria",
		AdminEmail:    "maria@varzea.test",
		AdminPassword: "Sup3rSecret",
	})
	require.NoError(t, err)
	require.Equal(t, "varzea_arena_x", result.DatabaseName)

	tenant, err := f.repo.GetTenantBySlug("arena-x")
	require.NoError(t, err)
	require.True(t, tenant.Active)
	require.Equal(t, "varzea_arena_x", tenant.DatabaseName)

	stmts := f.recorder.statements()
	require.Contains(t, stmts[0], `CREATE DATABASE "varzea_arena_x"`)
	require.Contains(t, stmts[1], "CREATE TABLE IF NOT EXISTS users")
	require.Contains(t, stmts[2], "INSERT INTO users")
}

// tenantUpsertSpy records the ID each tenant carries when it reaches the
// repo, before any store-side defaulting can kick in.
type tenantUpsertSpy struct {
	*tenantrepofakes.FakeTenantRepo
	incomingIDs []string
}

func (s *tenantUpsertSpy) UpsertTenant(tenant *tenants.Tenant) error {
	s.incomingIDs = append(s.incomingIDs, tenant.ID)
	return s.FakeTenantRepo.UpsertTenant(tenant)
}

func TestProvision_AssignsDistinctTenantIDs(t *testing.T) {
	spy := &tenantUpsertSpy{FakeTenantRepo: tenantrepofakes.NewFakeTenantRepo()}
	require.NoError(t, spy.UpsertSystem(&tenants.System{Slug: "quadra", DisplayName: "Quadra"}))

	rec := &execRecorder{}
	prov := provision.New(spy, fakeuserrepo.NewFakeUserRepo(), nil,
		"postgres://unused", "postgres://unused/%s", t.TempDir(), "localhost",
		provision.WithConnector(func(context.Context, string) (provision.Conn, error) {
			return &fakeConn{recorder: rec}, nil
		}))

	first, err := prov.Provision(context.Background(), provision.Params{Slug: "arena-x", SystemSlug: "quadra"})
	require.NoError(t, err)
	second, err := prov.Provision(context.Background(), provision.Params{Slug: "arena-y", SystemSlug: "quadra"})
	require.NoError(t, err)

	require.Len(t, spy.incomingIDs, 2)
	require.NotEmpty(t, spy.incomingIDs[0])
	require.NotEmpty(t, spy.incomingIDs[1])
	require.NotEqual(t, spy.incomingIDs[0], spy.incomingIDs[1])
	require.Equal(t, first.Tenant.ID, spy.incomingIDs[0])
	require.Equal(t, second.Tenant.ID, spy.incomingIDs[1])

	// Both master records survive side by side.
	for _, slug := range []string{"arena-x", "arena-y"} {
		tenant, err := spy.GetTenantBySlug(slug)
		require.NoError(t, err)
		require.NotEmpty(t, tenant.ID)
	}
}

func TestProvision_LinksAdminHubAccount(t *testing.T) {
	f := setupProvisionFixture(t)

	result, err := f.prov.Provision(context.Background(), provision.Params{
		Slug:          "arena-x",
		SystemSlug:    "quadra",
		AdminEmail:    "Maria@Varzea.Test",
		AdminPassword: "Sup3rSecret",
	})
	require.NoError(t, err)

	hubUser, err := f.users.GetByEmail("maria@varzea.test")
	require.NoError(t, err)
	require.True(t, hubUser.Active)
	require.True(t, users.CheckPasswordHash("Sup3rSecret", hubUser.PasswordHash))

	membership, err := f.repo.GetMembership(hubUser.ID, result.Tenant.ID)
	require.NoError(t, err)
	require.Equal(t, "admin", membership.Role)
	require.True(t, membership.Active)
}

func TestProvision_LinkReusesExistingHubAccount(t *testing.T) {
	f := setupProvisionFixture(t)

	existing := &users.User{
		ID:     "user-1",
		Name:   "Maria",
		Email:  "maria@varzea.test",
		Active: true,
	}
	require.NoError(t, f.users.Upsert(existing))

	result, err := f.prov.Provision(context.Background(), provision.Params{
		Slug:          "arena-x",
		SystemSlug:    "quadra",
		AdminEmail:    "maria@varzea.test",
		AdminPassword: "Sup3rSecret",
	})
	require.NoError(t, err)

	// No second account; the membership hangs off the existing one.
	hubUser, err := f.users.GetByEmail("maria@varzea.test")
	require.NoError(t, err)
	require.Equal(t, "user-1", hubUser.ID)

	_, err = f.repo.GetMembership("user-1", result.Tenant.ID)
	require.NoError(t, err)
}

func TestProvision_SlugTaken(t *testing.T) {
	f := setupProvisionFixture(t)

	_, err := f.prov.Provision(context.Background(), provision.Params{Slug: "arena-x", SystemSlug: "quadra"})
	require.NoError(t, err)

	_, err = f.prov.Provision(context.Background(), provision.Params{Slug: "arena-x", SystemSlug: "quadra"})
	require.ErrorIs(t, err, tenants.ErrSlugTaken)
}

func TestProvision_UnknownSystem(t *testing.T) {
	f := setupProvisionFixture(t)

	_, err := f.prov.Provision(context.Background(), provision.Params{Slug: "arena-x", SystemSlug: "nope"})
	require.ErrorIs(t, err, tenants.ErrNotFound)
}

func TestProvision_TemplateFailureRollsBack(t *testing.T) {
	f := setupProvisionFixture(t)
	f.recorder.failWhen = "CREATE TABLE"

	_, err := f.prov.Provision(context.Background(), provision.Params{Slug: "arena-x", SystemSlug: "quadra"})
	require.Error(t, err)

	// Master record removed and the half-created database dropped.
	_, err = f.repo.GetTenantBySlug("arena-x")
	require.ErrorIs(t, err, tenants.ErrNotFound)

	stmts := f.recorder.statements()
	require.Contains(t, stmts[len(stmts)-1], `DROP DATABASE IF EXISTS "varzea_arena_x"`)
}

func TestProvision_CreateDatabaseFailureRemovesMasterRecord(t *testing.T) {
	f := setupProvisionFixture(t)
	f.recorder.failWhen = "CREATE DATABASE"

	_, err := f.prov.Provision(context.Background(), provision.Params{Slug: "arena-x", SystemSlug: "quadra"})
	require.Error(t, err)

	_, err = f.repo.GetTenantBySlug("arena-x")
	require.ErrorIs(t, err, tenants.ErrNotFound)

	// No DROP issued since the database never came into being.
	for _, sql := range f.recorder.statements() {
		require.NotContains(t, sql, "DROP DATABASE")
	}
}

func TestDeprovision(t *testing.T) {
	f := setupProvisionFixture(t)

	result, err := f.prov.Provision(context.Background(), provision.Params{Slug: "arena-x", SystemSlug: "quadra"})
	require.NoError(t, err)

	require.NoError(t, f.prov.Deprovision(context.Background(), result.Tenant.ID))

	_, err = f.repo.GetTenantBySlug("arena-x")
	require.ErrorIs(t, err, tenants.ErrNotFound)

	stmts := f.recorder.statements()
	require.Contains(t, stmts[len(stmts)-1], `DROP DATABASE IF EXISTS "varzea_arena_x"`)
}

func TestDeprovision_UnknownTenant(t *testing.T) {
	f := setupProvisionFixture(t)

	err := f.prov.Deprovision(context.Background(), "no-such-id")
	require.ErrorIs(t, err, tenants.ErrNotFound)
}

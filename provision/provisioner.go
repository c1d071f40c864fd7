package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/varzeaprime/go-hub-server/audit"
	"github.com/varzeaprime/go-hub-server/tenants"
	"github.com/varzeaprime/go-hub-server/users"
)

// Conn is the slice of pgx.Conn the provisioner needs; injectable in tests.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// Connector opens a connection to the given DSN.
type Connector func(ctx context.Context, dsn string) (Conn, error)

// PgxConnector is the production Connector.
func PgxConnector(ctx context.Context, dsn string) (Conn, error) {
	return pgx.Connect(ctx, dsn)
}

// Params describes a new tenant to provision.
type Params struct {
	Slug          string
	SystemSlug    string
	DisplayName   string
	PrimaryColor  string
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// Result reports what was created.
type Result struct {
	Tenant       *tenants.Tenant
	DatabaseName string
}

// Provisioner creates tenant databases: a record in the hub master, a physical
// database on the tenant host, the per-system schema template, and a seeded
// admin user inside the new database. Every step that succeeded is rolled
// back if a later one fails.
type Provisioner struct {
	repo         tenants.Repo
	users        users.UserRepo
	recorder     *audit.Recorder
	connect      Connector
	adminDSN     string // points at the tenant DB host with CREATE DATABASE rights
	tenantDSNFmt string // fmt with %s placeholder for the database name
	templatesDir string
	dbHost       string
}

type Option func(*Provisioner)

// WithConnector replaces the pgx connector (for tests).
func WithConnector(c Connector) Option {
	return func(p *Provisioner) {
		p.connect = c
	}
}

func New(repo tenants.Repo, userRepo users.UserRepo, recorder *audit.Recorder, adminDSN, tenantDSNFmt, templatesDir, dbHost string, options ...Option) *Provisioner {
	p := &Provisioner{
		repo:         repo,
		users:        userRepo,
		recorder:     recorder,
		connect:      PgxConnector,
		adminDSN:     adminDSN,
		tenantDSNFmt: tenantDSNFmt,
		templatesDir: templatesDir,
		dbHost:       dbHost,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Provision creates a tenant end to end. On failure the master record is
// removed and the physical database dropped if it had been created.
func (p *Provisioner) Provision(ctx context.Context, params Params) (result *Result, err error) {
	slug, err := tenants.ValidateSlug(params.Slug)
	if err != nil {
		return nil, err
	}

	system, err := p.repo.GetSystem(params.SystemSlug)
	if err != nil {
		return nil, errors.Wrapf(tenants.ErrNotFound, "system %q", params.SystemSlug)
	}

	if _, err := p.repo.GetTenantBySlug(slug); err == nil {
		return nil, tenants.ErrSlugTaken
	}

	displayName := params.DisplayName
	if displayName == "" {
		displayName = slug
	}
	primaryColor := params.PrimaryColor
	if primaryColor == "" {
		primaryColor = "#ef4444"
	}

	dbName := tenants.DatabaseNameForSlug(slug)
	tenant := &tenants.Tenant{
		ID:                uuid.NewString(),
		SystemID:          system.ID,
		Slug:              slug,
		DisplayName:       displayName,
		PrimaryColor:      primaryColor,
		DatabaseName:      dbName,
		DatabaseHost:      p.dbHost,
		Active:            true,
		AllowRegistration: true,
	}

	var (
		insertedMaster bool
		createdDB      bool
	)
	defer func() {
		if err == nil {
			return
		}
		p.rollback(ctx, tenant, dbName, insertedMaster, createdDB)
	}()

	// 1) master record
	if err = p.repo.UpsertTenant(tenant); err != nil {
		return nil, errors.Wrap(err, "[Provisioner.Provision] master insert")
	}
	insertedMaster = true

	// 2) physical database
	log.Info().Str("database", dbName).Str("host", p.dbHost).Msg("creating tenant database")
	if err = p.createDatabase(ctx, dbName); err != nil {
		return nil, err
	}
	createdDB = true

	// 3) schema template + 4) seeded admin
	if err = p.applyTemplateAndSeed(ctx, dbName, params); err != nil {
		return nil, err
	}

	// 5) the seeded admin also gets a hub account and an admin membership,
	// so the new tenant shows up in their grant list on next login.
	if err = p.linkHubAdmin(tenant, params); err != nil {
		return nil, err
	}

	if p.recorder != nil {
		p.recorder.Record("", "tenant.provision", slug, map[string]any{
			"system":   system.Slug,
			"database": dbName,
		})
	}
	return &Result{Tenant: tenant, DatabaseName: dbName}, nil
}

// Deprovision removes a tenant and drops its database.
func (p *Provisioner) Deprovision(ctx context.Context, tenantID string) error {
	tenant, err := p.repo.GetTenant(tenantID)
	if err != nil {
		return tenants.ErrNotFound
	}

	if err := p.dropDatabase(ctx, tenant.DatabaseName); err != nil {
		return err
	}
	if err := p.repo.DeleteTenant(tenant.ID); err != nil {
		return errors.Wrap(err, "[Provisioner.Deprovision] delete master record")
	}

	if p.recorder != nil {
		p.recorder.Record("", "tenant.deprovision", tenant.Slug, nil)
	}
	return nil
}

func (p *Provisioner) rollback(ctx context.Context, tenant *tenants.Tenant, dbName string, insertedMaster, createdDB bool) {
	if createdDB {
		if dropErr := p.dropDatabase(ctx, dbName); dropErr != nil {
			log.Err(dropErr).Str("database", dbName).Msg("rollback: drop database failed")
		}
	}
	if insertedMaster {
		if delErr := p.repo.DeleteTenant(tenant.ID); delErr != nil {
			log.Err(delErr).Str("tenant", tenant.Slug).Msg("rollback: master delete failed")
		}
	}
}

func (p *Provisioner) createDatabase(ctx context.Context, dbName string) error {
	conn, err := p.connect(ctx, p.adminDSN)
	if err != nil {
		return errors.Wrap(err, "[Provisioner.createDatabase] connect")
	}
	defer conn.Close(ctx)

	// CREATE DATABASE cannot be parameterized; the name is derived from a
	// validated slug and sanitized as an identifier.
	quoted := pgx.Identifier{dbName}.Sanitize()
	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", quoted)); err != nil {
		return errors.Wrap(err, "[Provisioner.createDatabase] exec")
	}
	return nil
}

func (p *Provisioner) dropDatabase(ctx context.Context, dbName string) error {
	conn, err := p.connect(ctx, p.adminDSN)
	if err != nil {
		return errors.Wrap(err, "[Provisioner.dropDatabase] connect")
	}
	defer conn.Close(ctx)

	quoted := pgx.Identifier{dbName}.Sanitize()
	if _, err := conn.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", quoted)); err != nil {
		return errors.Wrap(err, "[Provisioner.dropDatabase] exec")
	}
	return nil
}

func (p *Provisioner) applyTemplateAndSeed(ctx context.Context, dbName string, params Params) error {
	conn, err := p.connect(ctx, fmt.Sprintf(p.tenantDSNFmt, dbName))
	if err != nil {
		return errors.Wrap(err, "[Provisioner.applyTemplateAndSeed] connect tenant db")
	}
	defer conn.Close(ctx)

	schema, err := p.loadTemplate(params.SystemSlug)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "[Provisioner.applyTemplateAndSeed] apply template")
	}

	if params.AdminEmail != "" {
		passwordHash, err := users.HashPassword(params.AdminPassword)
		if err != nil {
			return errors.Wrap(err, "[Provisioner.applyTemplateAndSeed] hash admin password")
		}
		adminName := params.AdminName
		if adminName == "" {
			adminName = "Administrador"
		}
		if _, err := conn.Exec(ctx,
			`INSERT INTO users (name, email, password_hash, role) VALUES ($1, $2, $3, 'admin')`,
			adminName, users.NormalizeEmail(params.AdminEmail), passwordHash,
		); err != nil {
			return errors.Wrap(err, "[Provisioner.applyTemplateAndSeed] seed admin")
		}
	}
	return nil
}

// linkHubAdmin creates or finds the hub account for the seeded tenant admin
// and grants them an active admin membership in the new tenant.
func (p *Provisioner) linkHubAdmin(tenant *tenants.Tenant, params Params) error {
	if params.AdminEmail == "" {
		return nil
	}

	email := users.NormalizeEmail(params.AdminEmail)
	hubUser, err := p.users.GetByEmail(email)
	if err != nil {
		passwordHash, err := users.HashPassword(params.AdminPassword)
		if err != nil {
			return errors.Wrap(err, "[Provisioner.linkHubAdmin] hash password")
		}
		adminName := params.AdminName
		if adminName == "" {
			adminName = "Administrador"
		}
		hubUser = &users.User{
			ID:           uuid.NewString(),
			Name:         adminName,
			Email:        email,
			PasswordHash: passwordHash,
			Active:       true,
			CreatedAt:    time.Now().UTC(),
		}
		if err := p.users.Upsert(hubUser); err != nil {
			return errors.Wrap(err, "[Provisioner.linkHubAdmin] create hub user")
		}
	}

	if err := p.repo.UpsertMembership(&tenants.Membership{
		UserID:   hubUser.ID,
		TenantID: tenant.ID,
		Role:     "admin",
		Active:   true,
		JoinedAt: time.Now().UTC(),
	}); err != nil {
		return errors.Wrap(err, "[Provisioner.linkHubAdmin] membership")
	}
	return nil
}

// loadTemplate reads the per-system schema; missing templates fall back to the
// minimal generic schema so provisioning still completes.
func (p *Provisioner) loadTemplate(systemSlug string) (string, error) {
	path := filepath.Join(p.templatesDir, fmt.Sprintf("model_%s.sql", systemSlug))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("template", path).Msg("schema template not found, using generic schema")
			return genericSchema, nil
		}
		return "", errors.Wrap(err, "[Provisioner.loadTemplate] read")
	}
	return string(data), nil
}

const genericSchema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	name VARCHAR(100),
	email VARCHAR(100) UNIQUE,
	password_hash VARCHAR(255),
	role VARCHAR(20) DEFAULT 'admin',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Package pgstore implements the hub's persistent repositories on PostgreSQL.
// Hub sessions live in redis instead; this package covers the master data:
// users, systems, tenants, memberships, and the audit trail.
package pgstore

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps a pgx pool and hands out the repository views over it.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[pgstore.New] create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "[pgstore.New] ping")
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema applies the idempotent schema. Every statement is
// CREATE ... IF NOT EXISTS so repeated startups are safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "[Store.EnsureSchema] apply schema")
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Users() *UserRepo     { return &UserRepo{pool: s.pool} }
func (s *Store) Tenants() *TenantRepo { return &TenantRepo{pool: s.pool} }
func (s *Store) Audit() *AuditRepo    { return &AuditRepo{pool: s.pool} }

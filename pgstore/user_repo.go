package pgstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/varzeaprime/go-hub-server/users"
)

var _ users.UserRepo = (*UserRepo)(nil)

var UserNotFoundErr = errors.New("user not found")

type UserRepo struct {
	pool *pgxpool.Pool
}

const userColumns = `id, name, nickname, email, password_hash, phone, cpf, cnpj,
	address, timezone, super_admin, active, blocked, blocked_reason, created_at, last_login_at`

func (r *UserRepo) Upsert(user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	ctx := context.Background()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO hub_users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, nickname = EXCLUDED.nickname, email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash, phone = EXCLUDED.phone,
			cpf = EXCLUDED.cpf, cnpj = EXCLUDED.cnpj, address = EXCLUDED.address,
			timezone = EXCLUDED.timezone, super_admin = EXCLUDED.super_admin,
			active = EXCLUDED.active, blocked = EXCLUDED.blocked,
			blocked_reason = EXCLUDED.blocked_reason, last_login_at = EXCLUDED.last_login_at`,
		user.ID, user.Name, user.Nickname, users.NormalizeEmail(user.Email), user.PasswordHash,
		user.Phone, user.CPF, user.CNPJ, user.Address, user.Timezone, user.SuperAdmin,
		user.Active, user.Blocked, user.BlockedReason, user.CreatedAt, user.LastLoginAt)
	return errors.Wrap(err, "[UserRepo.Upsert] exec")
}

func (r *UserRepo) Delete(email string) error {
	_, err := r.pool.Exec(context.Background(),
		`DELETE FROM hub_users WHERE email = $1`, users.NormalizeEmail(email))
	return errors.Wrap(err, "[UserRepo.Delete] exec")
}

func (r *UserRepo) GetByEmail(email string) (*users.User, error) {
	row := r.pool.QueryRow(context.Background(),
		`SELECT `+userColumns+` FROM hub_users WHERE email = $1`, users.NormalizeEmail(email))
	return scanUser(row)
}

func (r *UserRepo) GetByID(id string) (*users.User, error) {
	row := r.pool.QueryRow(context.Background(),
		`SELECT `+userColumns+` FROM hub_users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepo) List(offset, limit int) (users.UsersListResponse, error) {
	ctx := context.Background()
	response := users.UsersListResponse{Offset: offset, Limit: limit}

	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM hub_users`).Scan(&response.Total); err != nil {
		return response, errors.Wrap(err, "[UserRepo.List] count")
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM hub_users ORDER BY created_at, id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return response, errors.Wrap(err, "[UserRepo.List] query")
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return response, err
		}
		response.Users = append(response.Users, user)
	}
	return response, errors.Wrap(rows.Err(), "[UserRepo.List] rows")
}

func (r *UserRepo) SetBlocked(email string, blocked bool, reason string) error {
	_, err := r.pool.Exec(context.Background(),
		`UPDATE hub_users SET blocked = $2, blocked_reason = $3 WHERE email = $1`,
		users.NormalizeEmail(email), blocked, reason)
	return errors.Wrap(err, "[UserRepo.SetBlocked] exec")
}

func (r *UserRepo) SetActive(email string, active bool) error {
	_, err := r.pool.Exec(context.Background(),
		`UPDATE hub_users SET active = $2 WHERE email = $1`, users.NormalizeEmail(email), active)
	return errors.Wrap(err, "[UserRepo.SetActive] exec")
}

func (r *UserRepo) TouchLastLogin(id string) error {
	_, err := r.pool.Exec(context.Background(),
		`UPDATE hub_users SET last_login_at = now() WHERE id = $1`, id)
	return errors.Wrap(err, "[UserRepo.TouchLastLogin] exec")
}

func scanUser(row pgx.Row) (*users.User, error) {
	var user users.User
	err := row.Scan(&user.ID, &user.Name, &user.Nickname, &user.Email, &user.PasswordHash,
		&user.Phone, &user.CPF, &user.CNPJ, &user.Address, &user.Timezone, &user.SuperAdmin,
		&user.Active, &user.Blocked, &user.BlockedReason, &user.CreatedAt, &user.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, UserNotFoundErr
	}
	if err != nil {
		return nil, errors.Wrap(err, "[pgstore scanUser] scan")
	}
	return &user, nil
}

package redisrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/varzeaprime/go-hub-server/adminauth"
	"github.com/varzeaprime/go-hub-server/internal/utils"
)

const keyPrefix = "hub:admin-session:"

var _ adminauth.Repo = (*RedisAdminSessionRepo)(nil)

// RedisAdminSessionRepo keeps admin sessions in redis, keyed by JTI. Revoked
// records stay until their natural expiry so revocation checks keep working.
type RedisAdminSessionRepo struct {
	client *redis.Client
}

func New(client *redis.Client) *RedisAdminSessionRepo {
	return &RedisAdminSessionRepo{client: client}
}

func (r *RedisAdminSessionRepo) Upsert(session *adminauth.AdminSession) error {
	ctx := context.Background()
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[RedisAdminSessionRepo.Upsert] marshal")
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := r.client.Set(ctx, keyPrefix+session.JTI, data, ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisAdminSessionRepo.Upsert] set")
	}
	return nil
}

func (r *RedisAdminSessionRepo) Get(jti string) (*adminauth.AdminSession, error) {
	ctx := context.Background()
	data, err := r.client.Get(ctx, keyPrefix+jti).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, adminauth.ErrSessionExpired
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisAdminSessionRepo.Get] get")
	}

	var session adminauth.AdminSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, "[RedisAdminSessionRepo.Get] unmarshal")
	}
	return &session, nil
}

func (r *RedisAdminSessionRepo) Revoke(jti, reason string) error {
	session, err := r.Get(jti)
	if err != nil {
		return err
	}
	session.RevokedAt = utils.Ptr(time.Now().UTC())
	session.RevokeReason = reason
	return r.Upsert(session)
}

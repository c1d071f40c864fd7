package redisrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/varzeaprime/go-hub-server/internal/utils"
	"github.com/varzeaprime/go-hub-server/sessions"
)

const (
	sessionKeyPrefix = "hub:session:"
	userIndexPrefix  = "hub:user-sessions:"
)

var _ sessions.Repo = (*RedisSessionRepo)(nil)

// RedisSessionRepo keeps hub sessions in redis so revocation is visible to
// every hub instance behind the load balancer. Entries expire together with
// the session so the store cleans itself.
type RedisSessionRepo struct {
	client *redis.Client
}

func New(client *redis.Client) *RedisSessionRepo {
	return &RedisSessionRepo{client: client}
}

func (r *RedisSessionRepo) Upsert(session *sessions.SessionData) error {
	ctx := context.Background()
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[RedisSessionRepo.Upsert] marshal")
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.TokenHash, data, ttl)
	pipe.SAdd(ctx, userIndexPrefix+session.UserID, session.TokenHash)
	pipe.Expire(ctx, userIndexPrefix+session.UserID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "[RedisSessionRepo.Upsert] exec")
	}
	return nil
}

func (r *RedisSessionRepo) Get(tokenHash string) (*sessions.SessionData, error) {
	ctx := context.Background()
	data, err := r.client.Get(ctx, sessionKeyPrefix+tokenHash).Bytes()
	if err == redis.Nil {
		return nil, sessions.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisSessionRepo.Get] get")
	}

	var session sessions.SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, "[RedisSessionRepo.Get] unmarshal")
	}
	return &session, nil
}

func (r *RedisSessionRepo) SetCurrentTenant(tokenHash, tenantID string) error {
	session, err := r.Get(tokenHash)
	if err != nil {
		return err
	}
	session.CurrentTenantID = tenantID
	return r.Upsert(session)
}

func (r *RedisSessionRepo) Revoke(tokenHash, reason string) error {
	session, err := r.Get(tokenHash)
	if err != nil {
		return err
	}
	session.RevokedAt = utils.Ptr(time.Now())
	session.RevokeReason = reason
	return r.Upsert(session)
}

func (r *RedisSessionRepo) RevokeAllForUser(userID, reason string) error {
	ctx := context.Background()
	hashes, err := r.client.SMembers(ctx, userIndexPrefix+userID).Result()
	if err != nil {
		return errors.Wrap(err, "[RedisSessionRepo.RevokeAllForUser] smembers")
	}
	for _, hash := range hashes {
		if err := r.Revoke(hash, reason); err != nil && err != sessions.ErrNotFound {
			return err
		}
	}
	return nil
}

func (r *RedisSessionRepo) CountActive() (int, error) {
	ctx := context.Background()
	now := time.Now()
	count := 0

	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return 0, errors.Wrap(err, "[RedisSessionRepo.CountActive] get")
		}
		var session sessions.SessionData
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}
		if session.ActiveAt(now) {
			count++
		}
	}
	if err := iter.Err(); err != nil {
		return 0, errors.Wrap(err, "[RedisSessionRepo.CountActive] scan")
	}
	return count, nil
}

package redisrepo_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/varzeaprime/go-hub-server/adminauth"
	"github.com/varzeaprime/go-hub-server/adminauth/redisrepo"
)

func setupRepo(t *testing.T) *redisrepo.RedisAdminSessionRepo {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisrepo.New(client)
}

func newSession(jti string) *adminauth.AdminSession {
	now := time.Now().UTC()
	return &adminauth.AdminSession{
		JTI:       jti,
		UserID:    "user-1",
		CSRFToken: "csrf-1",
		CreatedAt: now,
		ExpiresAt: now.Add(15 * time.Minute),
	}
}

func TestRedisAdminSessionRepo_UpsertAndGet(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Upsert(newSession("jti-1")))

	got, err := repo.Get("jti-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
	require.Equal(t, "csrf-1", got.CSRFToken)
	require.True(t, got.ActiveAt(time.Now()))
}

func TestRedisAdminSessionRepo_GetUnknownJTI(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.Get("jti-missing")
	require.ErrorIs(t, err, adminauth.ErrSessionExpired)
}

func TestRedisAdminSessionRepo_Revoke(t *testing.T) {
	repo := setupRepo(t)
	require.NoError(t, repo.Upsert(newSession("jti-1")))

	require.NoError(t, repo.Revoke("jti-1", "logout"))

	got, err := repo.Get("jti-1")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	require.Equal(t, "logout", got.RevokeReason)
	require.False(t, got.ActiveAt(time.Now()))
}

func TestRedisAdminSessionRepo_RevokeUnknownJTI(t *testing.T) {
	repo := setupRepo(t)

	err := repo.Revoke("jti-missing", "logout")
	require.ErrorIs(t, err, adminauth.ErrSessionExpired)
}

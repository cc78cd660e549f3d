package settings

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/storebot/core/config"
)

func newRedisStore(t *testing.T, defaults Defaults) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	s := NewRedisStoreWithClient(client, "storebot:", defaults)
	t.Cleanup(func() { _ = s.Close() })
	return s, srv
}

func TestRedisStoreReadWrite(t *testing.T) {
	ctx := context.Background()
	s, srv := newRedisStore(t, Defaults{})

	_, ok, err := s.Read(ctx, "welcome")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Write(ctx, "welcome", "Привіт"))
	v, ok, err := s.Read(ctx, "welcome")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Привіт", v)
	assert.Equal(t, "Привіт", srv.HGet("storebot:settings", "welcome"))
}

func TestRedisStoreSecretFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t, Defaults{SecretWord: "sesame"})

	ok, err := s.IsAdminSecret(ctx, " sesame ")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Write(ctx, KeySecretWord, "open"))
	ok, err = s.IsAdminSecret(ctx, "sesame")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.IsAdminSecret(ctx, "open")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStoreAdminsMergeDefaults(t *testing.T) {
	ctx := context.Background()
	s, srv := newRedisStore(t, Defaults{Admins: []int64{7, 3}})

	added, err := s.RegisterAdmin(ctx, 42)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.RegisterAdmin(ctx, 42)
	require.NoError(t, err)
	assert.False(t, added)
	_, err = s.RegisterAdmin(ctx, 7)
	require.NoError(t, err)

	_, err = srv.SAdd("storebot:admins", "not-a-number")
	require.NoError(t, err)

	ids, err := s.AdminChatIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7, 42}, ids)
}

func TestRedisStoreReportsServerErrors(t *testing.T) {
	ctx := context.Background()
	s, srv := newRedisStore(t, Defaults{})
	srv.Close()

	_, _, err := s.Read(ctx, "k")
	assert.Error(t, err)
	_, err = s.AdminChatIDs(ctx)
	assert.Error(t, err)
	_, err = s.RegisterAdmin(ctx, 1)
	assert.Error(t, err)
}

func TestNewRedisStorePings(t *testing.T) {
	srv := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), coreconfig.RedisConfig{Addr: srv.Addr(), Prefix: "x:"}, Defaults{})
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), "k", "v"))
	assert.Equal(t, "v", srv.HGet("x:settings", "k"))
	require.NoError(t, s.Close())

	srv.Close()
	_, err = NewRedisStore(context.Background(), coreconfig.RedisConfig{Addr: srv.Addr()}, Defaults{})
	assert.Error(t, err)
}

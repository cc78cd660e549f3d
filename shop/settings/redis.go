package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	coreconfig "github.com/m3rciful/storebot/core/config"
	"github.com/m3rciful/storebot/core/logger"
)

const redisPingTimeout = 5 * time.Second

// RedisStore keeps settings in a hash and admins in a set so several bot
// processes share them.
type RedisStore struct {
	client   redis.UniversalClient
	prefix   string
	defaults Defaults
}

// NewRedisStore connects to cfg.Addr and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg coreconfig.RedisConfig, defaults Defaults) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.LogEvent(ctx, logger.Settings, slog.LevelError, "redis.connect",
			slog.String("addr", cfg.Addr),
			slog.String("status", "fail"),
			logger.ErrAttr(err),
		)
		return nil, fmt.Errorf("settings: connect redis %s: %w", cfg.Addr, err)
	}
	logger.LogEvent(ctx, logger.Settings, slog.LevelInfo, "redis.connect",
		slog.String("addr", cfg.Addr),
		slog.Int("db", cfg.DB),
		slog.String("status", "ok"),
	)
	return NewRedisStoreWithClient(client, cfg.Prefix, defaults), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string, defaults Defaults) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, defaults: defaults}
}

func (s *RedisStore) valuesKey() string { return s.prefix + "settings" }
func (s *RedisStore) adminsKey() string { return s.prefix + "admins" }

// Read returns the hash field for key.
func (s *RedisStore) Read(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.valuesKey(), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings: redis hget %s: %w", key, err)
	}
	return v, true, nil
}

// Write sets the hash field for key.
func (s *RedisStore) Write(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.valuesKey(), key, value).Err(); err != nil {
		return fmt.Errorf("settings: redis hset %s: %w", key, err)
	}
	return nil
}

// IsAdminSecret compares text with the stored or default secret word.
func (s *RedisStore) IsAdminSecret(ctx context.Context, text string) (bool, error) {
	return secretMatches(ctx, s, s.defaults.SecretWord, text)
}

// RegisterAdmin adds chatID to the admin set.
func (s *RedisStore) RegisterAdmin(ctx context.Context, chatID int64) (bool, error) {
	n, err := s.client.SAdd(ctx, s.adminsKey(), strconv.FormatInt(chatID, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("settings: redis sadd: %w", err)
	}
	logAdminRegistered(ctx, "redis", chatID, n > 0)
	return n > 0, nil
}

// AdminChatIDs returns default and registered admins, sorted. Malformed members are skipped.
func (s *RedisStore) AdminChatIDs(ctx context.Context) ([]int64, error) {
	members, err := s.client.SMembers(ctx, s.adminsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("settings: redis smembers: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			logger.LogEvent(ctx, logger.Settings, slog.LevelWarn, "admin.skip",
				slog.String("member", logger.SanitizeLimit(m, 32)),
			)
			continue
		}
		ids = append(ids, id)
	}
	return mergeAdmins(s.defaults.Admins, ids), nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

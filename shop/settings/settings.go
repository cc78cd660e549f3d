// Package settings persists small bot settings and the registered admin chats.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	coreconfig "github.com/m3rciful/storebot/core/config"
	"github.com/m3rciful/storebot/core/logger"
)

// KeySecretWord holds the phrase that registers a chat as admin.
const KeySecretWord = "secret_word"

// Store is the settings collaborator used by the session layer.
type Store interface {
	Read(ctx context.Context, key string) (string, bool, error)
	Write(ctx context.Context, key, value string) error
	// IsAdminSecret reports whether text equals the configured secret word.
	IsAdminSecret(ctx context.Context, text string) (bool, error)
	// RegisterAdmin adds chatID to the admin list and reports whether it was new.
	RegisterAdmin(ctx context.Context, chatID int64) (bool, error)
	AdminChatIDs(ctx context.Context) ([]int64, error)
	Close() error
}

// Defaults are used when the store holds no value of its own.
type Defaults struct {
	SecretWord string
	// Admins are always reported by AdminChatIDs.
	Admins []int64
}

// Open builds the store selected by cfg.Settings.Backend.
func Open(ctx context.Context, cfg *coreconfig.Config) (Store, error) {
	defaults := Defaults{SecretWord: cfg.Settings.SecretWord, Admins: cfg.Telegram.AdminIDs}
	switch cfg.Settings.Backend {
	case coreconfig.SettingsBackendRedis:
		s, err := NewRedisStore(ctx, cfg.Redis, defaults)
		if err != nil {
			return nil, err
		}
		return s, nil
	case coreconfig.SettingsBackendFile, "":
		s, err := OpenFile(cfg.Settings.File, defaults)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("settings: unknown backend %q", cfg.Settings.Backend)
}

func secretMatches(ctx context.Context, s Store, fallback, text string) (bool, error) {
	secret, ok, err := s.Read(ctx, KeySecretWord)
	if err != nil {
		return false, err
	}
	if !ok {
		secret = fallback
	}
	secret = strings.TrimSpace(secret)
	return secret != "" && strings.TrimSpace(text) == secret, nil
}

func mergeAdmins(static, stored []int64) []int64 {
	out := make([]int64, 0, len(static)+len(stored))
	for _, id := range append(slices.Clone(static), stored...) {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func logAdminRegistered(ctx context.Context, backend string, chatID int64, added bool) {
	logger.LogEvent(ctx, logger.Settings, slog.LevelInfo, "admin.register",
		slog.String("backend", backend),
		slog.Int64("chat_id", chatID),
		slog.Bool("added", added),
	)
}

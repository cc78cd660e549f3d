package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

type fileData struct {
	Values map[string]string `yaml:"values"`
	Admins []int64           `yaml:"admins"`
}

// FileStore keeps settings in a YAML file rewritten on every change.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	data     fileData
	defaults Defaults
}

// OpenFile loads path, starting empty when the file does not exist yet.
func OpenFile(path string, defaults Defaults) (*FileStore, error) {
	s := &FileStore{path: path, defaults: defaults, data: fileData{Values: map[string]string{}}}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	if s.data.Values == nil {
		s.data.Values = map[string]string{}
	}
	return s, nil
}

// Read returns the stored value for key.
func (s *FileStore) Read(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.Values[key]
	return v, ok, nil
}

// Write stores value under key and saves the file.
func (s *FileStore) Write(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data.Values[key]
	s.data.Values[key] = value
	if err := s.saveLocked(); err != nil {
		if had {
			s.data.Values[key] = prev
		} else {
			delete(s.data.Values, key)
		}
		return err
	}
	return nil
}

// IsAdminSecret compares text with the stored or default secret word.
func (s *FileStore) IsAdminSecret(ctx context.Context, text string) (bool, error) {
	return secretMatches(ctx, s, s.defaults.SecretWord, text)
}

// RegisterAdmin appends chatID to the admin list once.
func (s *FileStore) RegisterAdmin(ctx context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.data.Admins, chatID) {
		logAdminRegistered(ctx, "file", chatID, false)
		return false, nil
	}
	s.data.Admins = append(s.data.Admins, chatID)
	if err := s.saveLocked(); err != nil {
		s.data.Admins = s.data.Admins[:len(s.data.Admins)-1]
		return false, err
	}
	logAdminRegistered(ctx, "file", chatID, true)
	return true, nil
}

// AdminChatIDs returns default and registered admins, sorted.
func (s *FileStore) AdminChatIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mergeAdmins(s.defaults.Admins, s.data.Admins), nil
}

// Close is a no-op; every change is already on disk.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) saveLocked() error {
	raw, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("settings: create dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("settings: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("settings: replace %s: %w", s.path, err)
	}
	return nil
}

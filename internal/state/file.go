package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "jirabell/pkg/logx"
)

// fileStore keeps the notified set in a single flat JSON array of strings,
// e.g. ["PROJ-101","PROJ-104"]. The format is deliberately boring so an
// operator can inspect or reset it with a text editor.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "./notified_state.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Load(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return []string{}, err
	}
	var keys []string
	if err := json.Unmarshal(b, &keys); err != nil {
		// Corrupt state: start over rather than crash or re-notify forever.
		return []string{}, fmt.Errorf("state file %s is corrupt: %w", s.path, err)
	}
	return Normalize(keys), nil
}

// Save writes the full set atomically (temp file + rename) so a crash
// mid-write never leaves a truncated state file behind.
func (s *fileStore) Save(ctx context.Context, keys []string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	keys = Normalize(keys)

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(keys); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error { return nil }

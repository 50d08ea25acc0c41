package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	logx "jirabell/pkg/logx"
)

// ErrUnknownDriver is returned by Open for a driver name it does not know.
var ErrUnknownDriver = errors.New("unknown state driver")

// Store holds the notified set between checks and across restarts.
//
// Load returns the persisted keys. A missing backing file is not an error:
// it yields an empty set. A corrupt one yields an empty set AND an error so
// the caller can log it; the daemon keeps running either way.
type Store interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, keys []string) error
	Close() error
}

type Config struct {
	// Driver is "file" or "sqlite". Empty means "file".
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store. Unlike optional subsystems, state
// is mandatory here, so an empty driver falls back to the file backend.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

// Normalize trims keys, drops empties, dedupes, and sorts. Both drivers run
// it on Save so persisted state is deterministic regardless of input order.
func Normalize(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

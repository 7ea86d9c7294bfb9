package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists one JSON document per agent id under a state directory.
// Writes go through a temp file and rename so a crash mid-write cannot leave
// a truncated ledger behind.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("ledger state dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(agentID string) string {
	return filepath.Join(s.dir, sanitizeAgentID(agentID)+".json")
}

func (s *FileStore) Load(ctx context.Context, agentID string) (State, error) {
	data, err := os.ReadFile(s.path(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("read ledger state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode ledger state: %w", err)
	}
	return st, nil
}

func (s *FileStore) Save(ctx context.Context, agentID string, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger state: %w", err)
	}

	path := s.path(agentID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write ledger state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace ledger state: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// sanitizeAgentID keeps agent ids filesystem-safe.
func sanitizeAgentID(agentID string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, agentID)
	if mapped == "" {
		return "default"
	}
	return mapped
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Ledger    LedgerConfig    `json:"ledger"`
	Ranker    RankerConfig    `json:"ranker"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	mu        sync.RWMutex
}

type AgentConfig struct {
	ID        string `json:"id" env:"RATI_AGENT_ID"`
	Workspace string `json:"workspace" env:"RATI_AGENT_WORKSPACE"`
	Persona   string `json:"persona" env:"RATI_AGENT_PERSONA"`
}

// LedgerConfig selects the persistence backend and tunes the bounded windows.
type LedgerConfig struct {
	Backend         string `json:"backend" env:"RATI_LEDGER_BACKEND"` // file, sqlite, memory
	HistoryLimit    int    `json:"history_limit" env:"RATI_LEDGER_HISTORY_LIMIT"`
	CooldownMinutes int    `json:"cooldown_minutes" env:"RATI_LEDGER_COOLDOWN_MINUTES"`
	HashWindow      int    `json:"hash_window" env:"RATI_LEDGER_HASH_WINDOW"`
}

type RankerConfig struct {
	MaxMemories          int     `json:"max_memories" env:"RATI_RANKER_MAX_MEMORIES"`
	MinRelevanceScore    float64 `json:"min_relevance_score" env:"RATI_RANKER_MIN_RELEVANCE_SCORE"`
	IncludeRecent        bool    `json:"include_recent" env:"RATI_RANKER_INCLUDE_RECENT"`
	PreferHighImportance bool    `json:"prefer_high_importance" env:"RATI_RANKER_PREFER_HIGH_IMPORTANCE"`
	CacheSeconds         int     `json:"cache_seconds" env:"RATI_RANKER_CACHE_SECONDS"`
}

type HeartbeatConfig struct {
	Enabled  bool   `json:"enabled" env:"RATI_HEARTBEAT_ENABLED"`
	Schedule string `json:"schedule" env:"RATI_HEARTBEAT_SCHEDULE"` // cron expression
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			ID:        "rati",
			Workspace: "~/.rati/workspace",
			Persona:   "",
		},
		Ledger: LedgerConfig{
			Backend:         "file",
			HistoryLimit:    20,
			CooldownMinutes: 15,
			HashWindow:      50,
		},
		Ranker: RankerConfig{
			MaxMemories:          5,
			MinRelevanceScore:    0.1,
			IncludeRecent:        true,
			PreferHighImportance: true,
			CacheSeconds:         20,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:  true,
			Schedule: "*/30 * * * *",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Agent.Workspace)
}

// StatePath is where the ledger backends keep their files.
func (c *Config) StatePath() string {
	return filepath.Join(c.WorkspacePath(), "state")
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}

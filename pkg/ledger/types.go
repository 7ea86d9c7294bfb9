package ledger

import (
	"encoding/json"
	"time"
)

// Status is the outcome classification of an attempted action.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusRateLimited Status = "failure:rate_limited"
	StatusDuplicate   Status = "failure:duplicate_check"
	StatusAPIError    Status = "failure:api_error"
	StatusValidation  Status = "failure:validation"
)

// ActionRecord is one entry in the agent's action history.
type ActionRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Action    string          `json:"action"`
	Target    string          `json:"target"`
	Data      string          `json:"data,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Status    Status          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Sequence  int64           `json:"sequence"`
}

// CooldownEntry is a flat serialization of one cooldown map entry.
type CooldownEntry struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ActivitySnapshot tracks the most recent successful action per action name,
// plus the timestamp of the most recent success of any kind. Updated only on
// StatusSuccess.
type ActivitySnapshot struct {
	LastActions   map[string]ActionRecord `json:"last_actions,omitempty"`
	LastSuccessAt time.Time               `json:"last_success_at"`
}

// State is the persisted form of a ledger. Map and set collections are
// flattened into ordered slices so every backend can round-trip them.
type State struct {
	ActionHistory       []ActionRecord      `json:"action_history"`
	Activity            ActivitySnapshot    `json:"bot_activity_context"`
	ProcessedMessages   []string            `json:"processed_messages"`
	DuplicatePrevention DuplicatePrevention `json:"duplicate_prevention"`
	NextSequence        int64               `json:"next_sequence"`
}

// DuplicatePrevention holds the dedup window and active cooldowns.
type DuplicatePrevention struct {
	RecentContentHashes []int32         `json:"recent_content_hashes"`
	CooldownActions     []CooldownEntry `json:"cooldown_actions"`
}

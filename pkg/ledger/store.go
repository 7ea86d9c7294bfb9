package ledger

import (
	"context"
	"sync"
)

// Store provides durable persistence for ledger state, keyed by agent id.
// A missing agent must load as an empty State, not an error.
type Store interface {
	Load(ctx context.Context, agentID string) (State, error)
	Save(ctx context.Context, agentID string, state State) error
	Close() error
}

// MemoryStore keeps ledger state in process memory. Used by tests and
// ephemeral runs where durability is not wanted.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Load(ctx context.Context, agentID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.states[agentID]), nil
}

func (s *MemoryStore) Save(ctx context.Context, agentID string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[agentID] = cloneState(state)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneState(st State) State {
	out := st
	out.ActionHistory = append([]ActionRecord(nil), st.ActionHistory...)
	out.ProcessedMessages = append([]string(nil), st.ProcessedMessages...)
	out.DuplicatePrevention.RecentContentHashes = append([]int32(nil), st.DuplicatePrevention.RecentContentHashes...)
	out.DuplicatePrevention.CooldownActions = append([]CooldownEntry(nil), st.DuplicatePrevention.CooldownActions...)
	if st.Activity.LastActions != nil {
		out.Activity.LastActions = make(map[string]ActionRecord, len(st.Activity.LastActions))
		for k, v := range st.Activity.LastActions {
			out.Activity.LastActions[k] = v
		}
	}
	return out
}

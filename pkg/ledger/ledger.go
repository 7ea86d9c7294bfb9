package ledger

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/atimics/rati-sub002/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	defaultCooldown     = 15 * time.Minute
	defaultHashWindow   = 50

	// GlobalTarget is the cooldown scope used when an action has no target.
	GlobalTarget = "global"

	maxDataSnapshot = 200
)

// Options tunes a ledger. Zero values fall back to defaults.
type Options struct {
	HistoryLimit int           // max persisted action records (default 20)
	Cooldown     time.Duration // rate-limit backoff window (default 15m)
	HashWindow   int           // dedup window capacity (default 50)
	Clock        func() time.Time
}

// Ledger is the single source of truth for what an agent has recently tried
// and whether it is allowed to try again. One instance owns one agent's
// persisted state; methods are safe for concurrent use within a process, but
// two processes sharing a backend race last-writer-wins.
type Ledger struct {
	agentID string
	store   Store
	opts    Options

	mu             sync.Mutex
	history        []ActionRecord
	activity       ActivitySnapshot
	processed      map[string]struct{}
	processedOrder []string
	hashes         []int32
	hashSet        map[int32]struct{}
	cooldowns      map[string]time.Time
	nextSeq        int64
}

// New loads the agent's ledger from store. An unreadable or corrupt state is
// absorbed: the ledger starts empty and logs a warning, per the recovery
// contract. Callers never see persistence faults.
func New(agentID string, store Store, opts Options) *Ledger {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = defaultCooldown
	}
	if opts.HashWindow <= 0 {
		opts.HashWindow = defaultHashWindow
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	l := &Ledger{
		agentID:   agentID,
		store:     store,
		opts:      opts,
		processed: make(map[string]struct{}),
		hashSet:   make(map[int32]struct{}),
		cooldowns: make(map[string]time.Time),
	}

	state, err := store.Load(context.Background(), agentID)
	if err != nil {
		logger.WarnCF("ledger", "Failed to load ledger state, starting empty",
			map[string]interface{}{"agent_id": agentID, "error": err.Error()})
		return l
	}
	l.restore(state)
	return l
}

func (l *Ledger) restore(state State) {
	l.history = append(l.history[:0], state.ActionHistory...)
	l.activity = state.Activity
	l.nextSeq = state.NextSequence
	for _, id := range state.ProcessedMessages {
		if _, ok := l.processed[id]; ok {
			continue
		}
		l.processed[id] = struct{}{}
		l.processedOrder = append(l.processedOrder, id)
	}
	for _, h := range state.DuplicatePrevention.RecentContentHashes {
		if _, ok := l.hashSet[h]; ok {
			continue
		}
		l.hashSet[h] = struct{}{}
		l.hashes = append(l.hashes, h)
	}
	for _, entry := range state.DuplicatePrevention.CooldownActions {
		l.cooldowns[entry.Key] = entry.ExpiresAt
	}
}

// RecordAction appends an attempt to the history and updates derived state.
// It always succeeds from the caller's point of view; persistence failures
// are logged and absorbed.
func (l *Ledger) RecordAction(ctx context.Context, action, target, data string, result json.RawMessage, status Status, errMsg string) ActionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.opts.Clock()
	rec := ActionRecord{
		Timestamp: now,
		Action:    action,
		Target:    target,
		Data:      truncateData(data),
		Result:    result,
		Status:    status,
		Error:     errMsg,
		Sequence:  l.nextSeq,
	}
	l.nextSeq++

	l.history = append(l.history, rec)
	if len(l.history) > l.opts.HistoryLimit {
		l.history = l.history[len(l.history)-l.opts.HistoryLimit:]
	}

	switch status {
	case StatusSuccess:
		if l.activity.LastActions == nil {
			l.activity.LastActions = make(map[string]ActionRecord)
		}
		l.activity.LastActions[action] = rec
		l.activity.LastSuccessAt = now
	case StatusRateLimited:
		l.cooldowns[cooldownKey(action, target)] = now.Add(l.opts.Cooldown)
	}

	l.persist(ctx)
	return rec
}

// InCooldown reports whether action/target is still backing off after a
// rate-limit failure. Expired entries are purged on lookup.
func (l *Ledger) InCooldown(ctx context.Context, action, target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := cooldownKey(action, target)
	expiry, ok := l.cooldowns[key]
	if !ok {
		return false
	}
	if !l.opts.Clock().Before(expiry) {
		delete(l.cooldowns, key)
		l.persist(ctx)
		return false
	}
	return true
}

// IsDuplicateContent reports whether normalized content was already attempted
// within the dedup window. First sight marks the content as seen, so call
// this at most once per attempted action.
func (l *Ledger) IsDuplicateContent(ctx context.Context, content string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := ContentHash(content)
	if _, ok := l.hashSet[h]; ok {
		return true
	}

	l.hashes = append(l.hashes, h)
	l.hashSet[h] = struct{}{}
	if len(l.hashes) > l.opts.HashWindow {
		evicted := l.hashes[0]
		l.hashes = l.hashes[1:]
		delete(l.hashSet, evicted)
	}
	l.persist(ctx)
	return false
}

// Activity returns the snapshot of last successful actions.
func (l *Ledger) Activity() ActivitySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := ActivitySnapshot{LastSuccessAt: l.activity.LastSuccessAt}
	if l.activity.LastActions != nil {
		out.LastActions = make(map[string]ActionRecord, len(l.activity.LastActions))
		for k, v := range l.activity.LastActions {
			out.LastActions[k] = v
		}
	}
	return out
}

// RecentHistory returns up to limit most recent records, oldest first.
func (l *Ledger) RecentHistory(limit int) []ActionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.history) {
		limit = len(l.history)
	}
	out := make([]ActionRecord, limit)
	copy(out, l.history[len(l.history)-limit:])
	return out
}

// HasSucceeded reports whether any retained record for the exact
// action/target pair succeeded. Used for like/reaction idempotence checks.
func (l *Ledger) HasSucceeded(action, target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, rec := range l.history {
		if rec.Action == action && rec.Target == target && rec.Status == StatusSuccess {
			return true
		}
	}
	if rec, ok := l.activity.LastActions[action]; ok && rec.Target == target {
		return true
	}
	return false
}

// MarkProcessed records a platform message id as handled.
func (l *Ledger) MarkProcessed(ctx context.Context, messageID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.processed[messageID]; ok {
		return
	}
	l.processed[messageID] = struct{}{}
	l.processedOrder = append(l.processedOrder, messageID)
	l.persist(ctx)
}

// IsProcessed reports whether a platform message id was already handled.
func (l *Ledger) IsProcessed(messageID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.processed[messageID]
	return ok
}

// Snapshot returns the current state in its persisted form.
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() State {
	st := State{
		ActionHistory:     append([]ActionRecord(nil), l.history...),
		Activity:          l.activity,
		ProcessedMessages: append([]string(nil), l.processedOrder...),
		NextSequence:      l.nextSeq,
	}
	st.DuplicatePrevention.RecentContentHashes = append([]int32(nil), l.hashes...)

	keys := make([]string, 0, len(l.cooldowns))
	for k := range l.cooldowns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		st.DuplicatePrevention.CooldownActions = append(st.DuplicatePrevention.CooldownActions,
			CooldownEntry{Key: k, ExpiresAt: l.cooldowns[k]})
	}
	return st
}

func (l *Ledger) persist(ctx context.Context) {
	if err := l.store.Save(ctx, l.agentID, l.snapshotLocked()); err != nil {
		logger.WarnCF("ledger", "Failed to persist ledger state",
			map[string]interface{}{"agent_id": l.agentID, "error": err.Error()})
	}
}

func cooldownKey(action, target string) string {
	if target == "" {
		target = GlobalTarget
	}
	return action + "_" + target
}

func truncateData(data string) string {
	if len(data) <= maxDataSnapshot {
		return data
	}
	runes := []rune(data)
	if len(runes) <= maxDataSnapshot {
		return data
	}
	return string(runes[:maxDataSnapshot])
}

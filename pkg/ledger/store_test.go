package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() State {
	base := time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)
	post := ActionRecord{
		Timestamp: base,
		Action:    "send_post",
		Target:    "global",
		Data:      "gm farcaster",
		Result:    json.RawMessage(`{"cast_hash":"0xabc"}`),
		Status:    StatusSuccess,
		Sequence:  7,
	}
	limited := ActionRecord{
		Timestamp: base.Add(time.Minute),
		Action:    "send_chat_message",
		Target:    "room-9",
		Status:    StatusRateLimited,
		Error:     "429 too many requests",
		Sequence:  8,
	}

	st := State{
		ActionHistory:     []ActionRecord{post, limited},
		ProcessedMessages: []string{"evt-1", "evt-2"},
		NextSequence:      9,
	}
	st.Activity.LastActions = map[string]ActionRecord{"send_post": post}
	st.Activity.LastSuccessAt = base
	st.DuplicatePrevention.RecentContentHashes = []int32{2044077676, -555645776}
	st.DuplicatePrevention.CooldownActions = []CooldownEntry{
		{Key: "send_chat_message_room-9", ExpiresAt: base.Add(16 * time.Minute)},
	}
	return st
}

func assertStateEquivalent(t *testing.T, want, got State) {
	t.Helper()

	require.Len(t, got.ActionHistory, len(want.ActionHistory))
	for i := range want.ActionHistory {
		w, g := want.ActionHistory[i], got.ActionHistory[i]
		assert.True(t, w.Timestamp.Equal(g.Timestamp), "record %d timestamp", i)
		assert.Equal(t, w.Action, g.Action)
		assert.Equal(t, w.Target, g.Target)
		assert.Equal(t, w.Data, g.Data)
		assert.Equal(t, w.Status, g.Status)
		assert.Equal(t, w.Error, g.Error)
		assert.Equal(t, w.Sequence, g.Sequence)
		assert.JSONEq(t, orEmptyJSON(w.Result), orEmptyJSON(g.Result))
	}
	assert.Equal(t, want.ProcessedMessages, got.ProcessedMessages)
	assert.Equal(t, want.DuplicatePrevention.RecentContentHashes, got.DuplicatePrevention.RecentContentHashes)
	require.Len(t, got.DuplicatePrevention.CooldownActions, len(want.DuplicatePrevention.CooldownActions))
	for i := range want.DuplicatePrevention.CooldownActions {
		assert.Equal(t, want.DuplicatePrevention.CooldownActions[i].Key, got.DuplicatePrevention.CooldownActions[i].Key)
		assert.True(t, want.DuplicatePrevention.CooldownActions[i].ExpiresAt.Equal(got.DuplicatePrevention.CooldownActions[i].ExpiresAt))
	}
	assert.Equal(t, want.NextSequence, got.NextSequence)
	assert.True(t, want.Activity.LastSuccessAt.Equal(got.Activity.LastSuccessAt))
	assert.Len(t, got.Activity.LastActions, len(want.Activity.LastActions))
}

func orEmptyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	defer store.Close()

	want := sampleState()
	require.NoError(t, store.Save(ctx, "a1", want))

	got, err := store.Load(ctx, "a1")
	require.NoError(t, err)
	assertStateEquivalent(t, want, got)
}

func TestFileStoreMissingAgentLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	got, err := store.Load(ctx, "never-seen")
	require.NoError(t, err)
	assert.Empty(t, got.ActionHistory)
	assert.Zero(t, got.NextSequence)
}

func TestFileStoreCorruptFileFailsLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a1.json"), []byte("{not json"), 0o600))
	_, err = store.Load(ctx, "a1")
	assert.Error(t, err)

	// The ledger absorbs that error and starts empty.
	led := New("a1", store, Options{})
	assert.Empty(t, led.RecentHistory(0))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	defer store.Close()

	want := sampleState()
	require.NoError(t, store.Save(ctx, "a1", want))

	got, err := store.Load(ctx, "a1")
	require.NoError(t, err)
	assertStateEquivalent(t, want, got)
}

func TestSQLiteStoreIsolatesAgents(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, "a1", sampleState()))

	got, err := store.Load(ctx, "a2")
	require.NoError(t, err)
	assert.Empty(t, got.ActionHistory)
	assert.Empty(t, got.ProcessedMessages)
}

func TestSQLiteStoreSaveReplacesPriorState(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, "a1", sampleState()))

	smaller := State{NextSequence: 12}
	smaller.DuplicatePrevention.RecentContentHashes = []int32{42}
	require.NoError(t, store.Save(ctx, "a1", smaller))

	got, err := store.Load(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, got.ActionHistory)
	assert.Equal(t, []int32{42}, got.DuplicatePrevention.RecentContentHashes)
	assert.Equal(t, int64(12), got.NextSequence)
}

func TestLedgerRoundTripThroughFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	clock := newFakeClock()
	led := New("a1", store, Options{HistoryLimit: 5, Clock: clock.Now})
	led.RecordAction(ctx, "send_post", "global", "gm", nil, StatusSuccess, "")
	led.RecordAction(ctx, "send_post", "global", "", nil, StatusRateLimited, "429")
	led.IsDuplicateContent(ctx, "gm")
	led.MarkProcessed(ctx, "evt-7")

	reloaded := New("a1", store, Options{HistoryLimit: 5, Clock: clock.Now})
	assertStateEquivalent(t, led.Snapshot(), reloaded.Snapshot())
	assert.True(t, reloaded.InCooldown(ctx, "send_post", ""))
	assert.True(t, reloaded.IsDuplicateContent(ctx, "GM"))
	assert.True(t, reloaded.IsProcessed("evt-7"))
}

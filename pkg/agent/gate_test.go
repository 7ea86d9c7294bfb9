package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atimics/rati-sub002/pkg/ledger"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGate(t *testing.T) (*Gate, *ledger.Ledger, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := ledger.New("a1", ledger.NewMemoryStore(), ledger.Options{Clock: clk.Now})
	return NewGate(l), l, clk
}

func TestGatePermitsFreshAction(t *testing.T) {
	g, _, _ := newTestGate(t)

	d := g.Permit(context.Background(), "send_post", "", "gm farcaster")
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reason)
}

func TestGateDeniesDuringCooldown(t *testing.T) {
	g, _, clk := newTestGate(t)
	ctx := context.Background()

	_, err := g.Report(ctx, "send_post", "", "gm", nil, ledger.StatusRateLimited, assert.AnError)
	require.NoError(t, err)

	d := g.Permit(ctx, "send_post", "", "different content entirely")
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyCooldown, d.Reason)

	clk.Advance(16 * time.Minute)
	d = g.Permit(ctx, "send_post", "", "different content entirely")
	assert.True(t, d.Allowed)
}

func TestGateDeniesDuplicateContent(t *testing.T) {
	g, _, _ := newTestGate(t)
	ctx := context.Background()

	d := g.Permit(ctx, "send_post", "", "Hello World")
	require.True(t, d.Allowed)

	// normalization: case and whitespace do not make content new
	d = g.Permit(ctx, "send_post", "", "  hello   world ")
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyDuplicate, d.Reason)
}

func TestGateDeniesRepeatedIdempotentAction(t *testing.T) {
	g, _, _ := newTestGate(t)
	ctx := context.Background()

	_, err := g.Report(ctx, "mint_nft", "token-7", "", map[string]string{"tx": "0xabc"}, ledger.StatusSuccess, nil)
	require.NoError(t, err)

	d := g.Permit(ctx, "mint_nft", "token-7", "")
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyDone, d.Reason)

	// other targets and non-idempotent actions stay open
	assert.True(t, g.Permit(ctx, "mint_nft", "token-8", "").Allowed)

	_, err = g.Report(ctx, "send_post", "", "gm", nil, ledger.StatusSuccess, nil)
	require.NoError(t, err)
	assert.True(t, g.Permit(ctx, "send_post", "", "gm again").Allowed)
}

func TestGateReportRecordsOutcome(t *testing.T) {
	g, l, _ := newTestGate(t)
	ctx := context.Background()

	rec, err := g.Report(ctx, "send_chat_message", "room-1", "hello", map[string]int{"id": 42}, ledger.StatusSuccess, nil)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, rec.Status)
	assert.JSONEq(t, `{"id":42}`, string(rec.Result))
	assert.Empty(t, rec.Error)

	rec, err = g.Report(ctx, "send_post", "", "gm", nil, ledger.StatusAPIError, assert.AnError)
	require.NoError(t, err)
	assert.Equal(t, assert.AnError.Error(), rec.Error)
	assert.Nil(t, rec.Result)

	history := l.RecentHistory(0)
	require.Len(t, history, 2)
}

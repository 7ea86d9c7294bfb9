package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atimics/rati-sub002/pkg/ledger"
	"github.com/atimics/rati-sub002/pkg/ranker"
)

func TestAssembleIncludesAllSections(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := ledger.New("a1", ledger.NewMemoryStore(), ledger.Options{Clock: clk.Now})
	ctx := context.Background()

	l.RecordAction(ctx, "send_post", "", "gm farcaster", nil, ledger.StatusSuccess, "")
	clk.Advance(5 * time.Minute)
	l.RecordAction(ctx, "send_post", "", "gm again", nil, ledger.StatusRateLimited, "429 too many requests")

	a := NewAssembler("rati", "Curious digital artist.", l)
	recalled := ranker.Result{
		Memories:      []ranker.RankedMemory{{Memory: ranker.MemoryRecord{Title: "Gallery opening"}}},
		ContextString: "Relevant memories (1 of 3 considered):\n- [excited] Gallery opening",
	}

	prompt := a.Assemble(recalled, "what should I post today?", clk.now)

	assert.Contains(t, prompt, "You are rati")
	assert.Contains(t, prompt, "Curious digital artist.")
	assert.Contains(t, prompt, "## Recent Activity")
	assert.Contains(t, prompt, "Last successful action: 5m ago.")
	assert.Contains(t, prompt, "- send_post success")
	assert.Contains(t, prompt, "- send_post failure:rate_limited error=429 too many requests")
	assert.Contains(t, prompt, "Active cooldowns:")
	assert.Contains(t, prompt, "send_post_global expires in 15m")
	assert.Contains(t, prompt, "## Recalled Memories")
	assert.Contains(t, prompt, "Gallery opening")
	assert.Contains(t, prompt, "## Current Message")
	assert.Contains(t, prompt, "what should I post today?")
}

func TestAssembleWithEmptyLedger(t *testing.T) {
	l := ledger.New("a1", ledger.NewMemoryStore(), ledger.Options{})
	a := NewAssembler("", "", l)

	prompt := a.Assemble(ranker.Result{}, "", time.Now())

	assert.Contains(t, prompt, "You are rati")
	assert.Contains(t, prompt, "No actions taken yet.")
	assert.NotContains(t, prompt, "## Recalled Memories")
	assert.NotContains(t, prompt, "## Current Message")
	assert.NotContains(t, prompt, "## Persona")
}

func TestAssembleOmitsExpiredCooldowns(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := ledger.New("a1", ledger.NewMemoryStore(), ledger.Options{Clock: clk.Now})
	ctx := context.Background()

	l.RecordAction(ctx, "send_post", "", "gm", nil, ledger.StatusRateLimited, "429")
	clk.Advance(20 * time.Minute)

	a := NewAssembler("rati", "", l)
	prompt := a.Assemble(ranker.Result{}, "", clk.now)

	assert.NotContains(t, prompt, "expires in")
}

func TestHumanDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{90 * time.Minute, "1h30m"},
		{-time.Minute, "0s"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, humanDuration(tc.d))
	}
}

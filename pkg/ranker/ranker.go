package ranker

import (
	"fmt"
	"sort"
	"time"

	"github.com/atimics/rati-sub002/pkg/logger"
)

// NoMemoriesMessage is the fixed synthesis output when nothing is relevant.
const NoMemoriesMessage = "No relevant memories found."

// Ranker selects the memories most relevant to the current conversation.
// It is a pure computation over supplied inputs; the optional cache only
// memoizes results.
type Ranker struct {
	cache   *resultCache
	scoreFn func(cx Context, m MemoryRecord, now time.Time) float64
}

// New returns an uncached ranker.
func New() *Ranker {
	return &Ranker{scoreFn: relevanceScore}
}

// NewWithCache returns a ranker that memoizes results for ttl. Identical
// (messages, pool, options) inputs within the window return the same Result
// without rescoring.
func NewWithCache(ttl time.Duration) (*Ranker, error) {
	cache, err := newResultCache(ttl)
	if err != nil {
		return nil, fmt.Errorf("create ranking cache: %w", err)
	}
	return &Ranker{cache: cache, scoreFn: relevanceScore}, nil
}

// Close releases cache resources, if any.
func (r *Ranker) Close() {
	if r.cache != nil {
		r.cache.close()
	}
}

// RelevantContext runs the full pipeline: context extraction, candidate
// scoring, threshold filtering, re-ranking, truncation to MaxMemories, and
// synthesis. It never returns an error: empty inputs yield an empty valid
// result, and any internal scoring fault falls back to an importance/recency
// ordering with neutral scores.
func (r *Ranker) RelevantContext(messages []Message, pool []MemoryRecord, opts Options) Result {
	if opts.MaxMemories <= 0 {
		opts.MaxMemories = 5
	}
	if opts.MinRelevanceScore <= 0 {
		opts.MinRelevanceScore = 0.1
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	if r.cache != nil {
		key := cacheKey(messages, pool, opts)
		if res, ok := r.cache.get(key); ok {
			return res
		}
		res := r.rank(messages, pool, opts, now)
		r.cache.put(key, res)
		return res
	}
	return r.rank(messages, pool, opts, now)
}

func (r *Ranker) rank(messages []Message, pool []MemoryRecord, opts Options, now time.Time) (res Result) {
	res.TotalConsidered = len(pool)

	defer func() {
		if rec := recover(); rec != nil {
			logger.WarnCF("ranker", "Relevance scoring failed, using importance fallback",
				map[string]interface{}{"panic": fmt.Sprint(rec), "pool_size": len(pool)})
			res = fallbackResult(pool, opts)
		}
	}()

	cx := ExtractContext(messages)
	if len(pool) == 0 || cx.empty() {
		res.ContextString = NoMemoriesMessage
		return res
	}

	scored := make([]RankedMemory, 0, len(pool))
	for _, m := range pool {
		s := clamp01(r.scoreFn(cx, m, now))
		if s < opts.MinRelevanceScore {
			continue
		}
		scored = append(scored, RankedMemory{Memory: m, Score: s})
	}
	if len(scored) == 0 {
		res.ContextString = NoMemoriesMessage
		return res
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score == scored[j].Score {
			return scored[i].Memory.Timestamp.After(scored[j].Memory.Timestamp)
		}
		return scored[i].Score > scored[j].Score
	})
	// Keep headroom beyond the final cut so re-ranking can promote
	// candidates past the initial ordering.
	if headroom := 2 * opts.MaxMemories; len(scored) > headroom {
		scored = scored[:headroom]
	}

	for i := range scored {
		final := scored[i].Score
		if opts.PreferHighImportance {
			final += importanceBonus * clamp01(scored[i].Memory.Importance)
		}
		if opts.IncludeRecent {
			final += recencyBonus * recencyScore(now, scored[i].Memory.Timestamp)
		}
		final += moodBonus * moodSimilarity(cx.Sentiment, scored[i].Memory.Mood)
		scored[i].FinalScore = clamp01(final)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})
	if len(scored) > opts.MaxMemories {
		scored = scored[:opts.MaxMemories]
	}

	res.Memories = scored
	res.RelevanceScores = make([]float64, len(scored))
	for i, rm := range scored {
		res.RelevanceScores[i] = rm.FinalScore
	}
	res.ContextString = synthesize(scored, len(pool))
	return res
}

// fallbackResult orders the full pool by importance then recency, assigns a
// neutral relevance to each selected memory, and builds a simplified
// synthesis. Callers treat this as fully valid output.
func fallbackResult(pool []MemoryRecord, opts Options) Result {
	sorted := append([]MemoryRecord(nil), pool...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Importance == sorted[j].Importance {
			return sorted[i].Timestamp.After(sorted[j].Timestamp)
		}
		return sorted[i].Importance > sorted[j].Importance
	})
	if len(sorted) > opts.MaxMemories {
		sorted = sorted[:opts.MaxMemories]
	}

	res := Result{
		TotalConsidered: len(pool),
		Fallback:        true,
		Memories:        make([]RankedMemory, 0, len(sorted)),
		RelevanceScores: make([]float64, 0, len(sorted)),
	}
	for _, m := range sorted {
		res.Memories = append(res.Memories, RankedMemory{Memory: m, Score: 0.5, FinalScore: 0.5})
		res.RelevanceScores = append(res.RelevanceScores, 0.5)
	}
	res.ContextString = synthesizeFallback(sorted)
	return res
}

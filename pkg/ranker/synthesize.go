package ranker

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// synthesize builds the human-readable memory block handed to the context
// assembler: one line per memory plus the dominant mood and common topics
// across the selection.
func synthesize(selected []RankedMemory, totalConsidered int) string {
	if len(selected) == 0 {
		return NoMemoriesMessage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Relevant memories (%d of %d considered):\n", len(selected), totalConsidered)
	for _, rm := range selected {
		m := rm.Memory
		fmt.Fprintf(&b, "- [%s] %s — %s", orUnknown(m.Mood), m.Title, m.Summary)
		if len(m.Insights.Learnings) > 0 {
			fmt.Fprintf(&b, " Learned: %s.", m.Insights.Learnings[0])
		}
		if len(m.Keywords) > 0 {
			kws := m.Keywords
			if len(kws) > 3 {
				kws = kws[:3]
			}
			fmt.Fprintf(&b, " Keywords: %s.", strings.Join(kws, ", "))
		}
		fmt.Fprintf(&b, " Relevance: %d%%.\n", int(math.Round(rm.FinalScore*100)))
	}

	mood := dominantMood(selected)
	topics := commonTopics(selected, 3)
	if mood != "" {
		fmt.Fprintf(&b, "Dominant mood: %s.", mood)
		if len(topics) > 0 {
			b.WriteString(" ")
		}
	}
	if len(topics) > 0 {
		fmt.Fprintf(&b, "Common topics: %s.", strings.Join(topics, ", "))
	}
	return strings.TrimSpace(b.String())
}

// synthesizeFallback is the simplified single-line-per-memory form used by
// the fallback path.
func synthesizeFallback(selected []MemoryRecord) string {
	if len(selected) == 0 {
		return NoMemoriesMessage
	}
	var b strings.Builder
	b.WriteString("Recalled memories:\n")
	for _, m := range selected {
		fmt.Fprintf(&b, "- %s: %s\n", m.Title, m.Summary)
	}
	return strings.TrimSpace(b.String())
}

// dominantMood returns the single most frequent mood across the selection,
// ties broken alphabetically.
func dominantMood(selected []RankedMemory) string {
	counts := map[string]int{}
	for _, rm := range selected {
		mood := strings.ToLower(strings.TrimSpace(rm.Memory.Mood))
		if mood == "" {
			continue
		}
		counts[mood]++
	}
	best := ""
	for mood, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && mood < best) {
			best = mood
		}
	}
	return best
}

// commonTopics returns the up-to-limit most frequent topics across the
// selection, ordered by frequency then alphabetically.
func commonTopics(selected []RankedMemory, limit int) []string {
	counts := map[string]int{}
	for _, rm := range selected {
		for _, t := range rm.Memory.Insights.Topics {
			counts[strings.ToLower(t)]++
		}
	}
	if len(counts) == 0 {
		return nil
	}
	topics := make([]string, 0, len(counts))
	for t := range counts {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] == counts[topics[j]] {
			return topics[i] < topics[j]
		}
		return counts[topics[i]] > counts[topics[j]]
	})
	if len(topics) > limit {
		topics = topics[:limit]
	}
	return topics
}

func orUnknown(mood string) string {
	if strings.TrimSpace(mood) == "" {
		return "unknown"
	}
	return strings.ToLower(mood)
}

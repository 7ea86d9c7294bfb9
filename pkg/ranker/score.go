package ranker

import (
	"math"
	"strings"
	"time"
)

const (
	keywordWeight = 0.3
	topicWeight   = 0.4
	entityWeight  = 0.2
	recencyWeight = 0.1

	keywordSimilarityThreshold = 0.7
	recencyHalfLifeDays        = 7.0 // decay constant, not a strict half-life

	importanceBonus = 0.2
	recencyBonus    = 0.1
	moodBonus       = 0.1
)

// relevanceScore is the first-pass weighted blend of keyword, topic, entity,
// and recency signals, clamped to [0,1].
func relevanceScore(cx Context, m MemoryRecord, now time.Time) float64 {
	score := keywordWeight*keywordScore(cx.Keywords, m.Keywords) +
		topicWeight*topicScore(cx.Topics, m.Insights.Topics) +
		entityWeight*entityScore(cx.Entities, m) +
		recencyWeight*recencyScore(now, m.Timestamp)
	return clamp01(score)
}

// keywordScore counts context/memory keyword pairs whose normalized edit
// distance similarity clears the threshold, sums those similarities, and
// divides by the larger list length.
func keywordScore(contextKeywords, memoryKeywords []string) float64 {
	if len(contextKeywords) == 0 || len(memoryKeywords) == 0 {
		return 0
	}
	sum := 0.0
	for _, ck := range contextKeywords {
		for _, mk := range memoryKeywords {
			sim := similarity(strings.ToLower(ck), strings.ToLower(mk))
			if sim > keywordSimilarityThreshold {
				sum += sim
			}
		}
	}
	return clamp01(sum / float64(max(len(contextKeywords), len(memoryKeywords))))
}

// topicScore blends direct overlap (case-insensitive substring match either
// direction, weight 0.8) with adjacency through a shared umbrella (weight
// 0.2), divided by the number of context topics.
func topicScore(contextTopics, memoryTopics []string) float64 {
	if len(contextTopics) == 0 || len(memoryTopics) == 0 {
		return 0
	}
	score := 0.0
	for _, ct := range contextTopics {
		for _, mt := range memoryTopics {
			switch {
			case topicsOverlap(ct, mt):
				score += 0.8
			case topicsRelated(ct, mt):
				score += 0.2
			}
		}
	}
	return clamp01(score / float64(len(contextTopics)))
}

func topicsOverlap(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

// topicsRelated reports whether two topics share an umbrella term.
func topicsRelated(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, members := range topicUmbrellas {
		foundA, foundB := false, false
		for _, m := range members {
			if m == la {
				foundA = true
			}
			if m == lb {
				foundB = true
			}
		}
		if foundA && foundB {
			return true
		}
	}
	return false
}

// entityScore is the fraction of context entities that appear in the
// memory's searchable text. Monotonic in raw overlap count.
func entityScore(ents Entities, m MemoryRecord) float64 {
	all := ents.all()
	if len(all) == 0 {
		return 0
	}
	searchable := strings.ToLower(m.Title + " " + m.Summary + " " + strings.Join(m.Keywords, " "))
	matched := 0
	for _, e := range all {
		if strings.Contains(searchable, strings.ToLower(e)) {
			matched++
		}
	}
	return clamp01(float64(matched) / float64(len(all)))
}

// recencyScore decays exponentially with the memory's age in days.
func recencyScore(now, ts time.Time) float64 {
	days := now.Sub(ts).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-days / recencyHalfLifeDays)
}

// moodSimilarity is 1 when the context sentiment maps to the memory's mood
// through the sentiment table, else 0.
func moodSimilarity(sentiment, mood string) float64 {
	mood = strings.ToLower(strings.TrimSpace(mood))
	if mood == "" {
		return 0
	}
	for _, m := range sentimentMoods[sentiment] {
		if m == mood {
			return 1
		}
	}
	return 0
}

// levenshtein is the classic two-row edit distance over runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// similarity converts edit distance into a 0..1 normalized score.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

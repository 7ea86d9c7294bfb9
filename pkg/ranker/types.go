package ranker

import "time"

// Insights carries the structured annotations attached to a memory by the
// external memory store.
type Insights struct {
	Topics    []string `json:"topics,omitempty"`
	Learnings []string `json:"learnings,omitempty"`
}

// MemoryRecord is a candidate memory owned by an external store. The ranker
// only reads records and annotates copies with scores; it never creates,
// persists, or deletes them.
type MemoryRecord struct {
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Timestamp  time.Time `json:"timestamp"`
	Importance float64   `json:"importance"` // 0..1
	Mood       string    `json:"mood"`
	Keywords   []string  `json:"keywords,omitempty"` // ordered by frequency
	Insights   Insights  `json:"insights"`
}

// Message is one recent conversational message.
type Message struct {
	Sender    string    `json:"sender,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Entities are the regex-extracted references found in the conversation.
type Entities struct {
	People   []string
	URLs     []string
	Mentions []string
	Hashtags []string
}

func (e Entities) all() []string {
	out := make([]string, 0, len(e.People)+len(e.URLs)+len(e.Mentions)+len(e.Hashtags))
	out = append(out, e.People...)
	out = append(out, e.URLs...)
	out = append(out, e.Mentions...)
	out = append(out, e.Hashtags...)
	return out
}

// Context is the aggregate view of the current conversation, derived fresh
// on every ranking call.
type Context struct {
	Text       string
	Keywords   []string
	Topics     []string
	Entities   Entities
	Sentiment  string // positive, negative, neutral
	Urgent     bool
	Categories []string // per-message, parallel to the input
}

func (c Context) empty() bool {
	return len(c.Keywords) == 0 && len(c.Topics) == 0 && len(c.Entities.all()) == 0
}

// Options controls a ranking call. DefaultOptions supplies the standard
// configuration; zero numeric fields fall back to defaults.
type Options struct {
	MaxMemories          int
	MinRelevanceScore    float64
	IncludeRecent        bool
	PreferHighImportance bool
	Now                  time.Time // ranking reference time; zero means now
}

func DefaultOptions() Options {
	return Options{
		MaxMemories:          5,
		MinRelevanceScore:    0.1,
		IncludeRecent:        true,
		PreferHighImportance: true,
	}
}

// RankedMemory is a scored view over a candidate memory.
type RankedMemory struct {
	Memory     MemoryRecord
	Score      float64 // first-pass relevance, 0..1
	FinalScore float64 // after re-ranking, 0..1
}

// Result is the output of one ranking call. A fallback result is fully valid
// output, not an error.
type Result struct {
	Memories        []RankedMemory
	ContextString   string
	RelevanceScores []float64
	TotalConsidered int
	Fallback        bool
}

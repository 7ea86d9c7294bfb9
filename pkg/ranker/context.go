package ranker

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const maxContextKeywords = 15

var (
	urlPattern     = regexp.MustCompile(`https?://[^\s]+`)
	mentionPattern = regexp.MustCompile(`@[A-Za-z0-9_]+`)
	hashtagPattern = regexp.MustCompile(`#[A-Za-z0-9_]+`)
	personPattern  = regexp.MustCompile(`\b[A-Z][a-z]{2,}\b`)
)

// ExtractContext derives the aggregate conversational context from recent
// messages: keyword frequencies, detected topics, entities, sentiment,
// urgency, and a per-message category.
func ExtractContext(messages []Message) Context {
	parts := make([]string, 0, len(messages))
	categories := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
		categories = append(categories, categorize(m.Content))
	}
	text := strings.Join(parts, "\n")
	lowered := strings.ToLower(text)

	return Context{
		Text:       text,
		Keywords:   extractKeywords(lowered),
		Topics:     detectTopics(lowered),
		Entities:   extractEntities(text),
		Sentiment:  detectSentiment(lowered),
		Urgent:     detectUrgency(lowered),
		Categories: categories,
	}
}

func tokenize(lowered string) []string {
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// extractKeywords builds a frequency table over non-stop-word tokens and
// returns the most frequent terms, ties broken alphabetically so output is
// deterministic.
func extractKeywords(lowered string) []string {
	freq := map[string]int{}
	for _, tok := range tokenize(lowered) {
		if len(tok) < 3 {
			continue
		}
		if _, ok := stopWords[tok]; ok {
			continue
		}
		freq[tok]++
	}
	if len(freq) == 0 {
		return nil
	}

	keywords := make([]string, 0, len(freq))
	for w := range freq {
		keywords = append(keywords, w)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if freq[keywords[i]] == freq[keywords[j]] {
			return keywords[i] < keywords[j]
		}
		return freq[keywords[i]] > freq[keywords[j]]
	})
	if len(keywords) > maxContextKeywords {
		keywords = keywords[:maxContextKeywords]
	}
	return keywords
}

// detectTopics counts keyword-table hits per topic and returns topics with at
// least one hit, ordered by hit count descending.
func detectTopics(lowered string) []string {
	freq := map[string]int{}
	for _, tok := range tokenize(lowered) {
		freq[tok]++
	}

	hits := map[string]int{}
	for topic, words := range topicKeywords {
		count := 0
		for _, w := range words {
			count += freq[w]
		}
		if count > 0 {
			hits[topic] = count
		}
	}
	if len(hits) == 0 {
		return nil
	}

	topics := make([]string, 0, len(hits))
	for t := range hits {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if hits[topics[i]] == hits[topics[j]] {
			return topics[i] < topics[j]
		}
		return hits[topics[i]] > hits[topics[j]]
	})
	return topics
}

func extractEntities(text string) Entities {
	ents := Entities{
		URLs:     dedupe(urlPattern.FindAllString(text, -1)),
		Mentions: dedupe(mentionPattern.FindAllString(text, -1)),
		Hashtags: dedupe(hashtagPattern.FindAllString(text, -1)),
	}

	people := []string{}
	for _, candidate := range personPattern.FindAllString(text, -1) {
		lowered := strings.ToLower(candidate)
		if _, ok := stopWords[lowered]; ok {
			continue
		}
		people = append(people, candidate)
	}
	ents.People = dedupe(people)
	return ents
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// detectSentiment counts positive and negative tokens; majority wins and
// ties resolve to neutral.
func detectSentiment(lowered string) string {
	pos, neg := 0, 0
	for _, tok := range tokenize(lowered) {
		if _, ok := positiveWords[tok]; ok {
			pos++
		}
		if _, ok := negativeWords[tok]; ok {
			neg++
		}
	}
	switch {
	case pos > neg:
		return "positive"
	case neg > pos:
		return "negative"
	default:
		return "neutral"
	}
}

func detectUrgency(lowered string) bool {
	for _, phrase := range urgentPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func categorize(content string) string {
	trimmed := strings.TrimSpace(content)
	lowered := strings.ToLower(trimmed)
	switch {
	case strings.Contains(trimmed, "?"):
		return "question"
	case strings.HasPrefix(lowered, "please ") ||
		strings.Contains(lowered, "can you") ||
		strings.Contains(lowered, "could you") ||
		strings.Contains(lowered, "would you"):
		return "request"
	case strings.HasSuffix(trimmed, "!"):
		return "exclamation"
	default:
		return "statement"
	}
}

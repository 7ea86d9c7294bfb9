package ranker

// Fixed vocabularies used by context extraction and scoring. These tables are
// part of the ranking contract: changing them changes which memories surface.

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "and", "for", "are", "but", "not", "you", "all", "any", "can",
		"had", "has", "have", "her", "him", "his", "how", "its", "may", "our",
		"out", "she", "they", "them", "this", "that", "was", "were", "what",
		"when", "where", "which", "who", "why", "will", "with", "would",
		"about", "been", "being", "could", "did", "does", "doing", "from",
		"into", "just", "like", "more", "most", "only", "over", "same",
		"some", "such", "than", "then", "there", "these", "those", "very",
		"your", "yours", "also", "because", "should", "while", "after",
		"before", "between", "here", "each",
	} {
		stopWords[w] = struct{}{}
	}
}

// topicKeywords maps each detectable topic to the keyword hits that count
// toward it.
var topicKeywords = map[string][]string{
	"technology": {"computer", "software", "code", "programming", "digital", "internet", "data", "algorithm", "model", "server", "bot"},
	"art":        {"art", "painting", "drawing", "creative", "canvas", "gallery", "sketch", "color", "glyph", "aesthetic", "design"},
	"music":      {"music", "song", "melody", "rhythm", "sound", "album", "beat", "harmony"},
	"crypto":     {"blockchain", "nft", "mint", "token", "wallet", "onchain", "contract", "crypto", "arweave", "ethereum", "cast"},
	"community":  {"friend", "community", "people", "chat", "room", "social", "follower", "reply", "conversation", "welcome"},
	"nature":     {"tree", "sky", "ocean", "weather", "garden", "river", "sun", "rain", "forest", "bloom"},
	"philosophy": {"meaning", "existence", "consciousness", "thought", "mind", "dream", "memory", "identity", "soul"},
	"work":       {"project", "task", "deadline", "plan", "goal", "build", "ship", "launch", "deploy"},
	"emotions":   {"happy", "sad", "love", "feel", "mood", "excited", "angry", "fear", "joy"},
}

// topicUmbrellas groups topics that count as related for adjacency scoring:
// two topics are related when they share an umbrella.
var topicUmbrellas = map[string][]string{
	"creative":   {"art", "music"},
	"digital":    {"technology", "crypto"},
	"social":     {"community", "emotions"},
	"reflective": {"philosophy", "nature"},
	"making":     {"work", "art", "technology"},
}

var positiveWords = map[string]struct{}{}
var negativeWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"good", "great", "love", "happy", "excited", "awesome", "beautiful",
		"wonderful", "amazing", "fun", "joy", "glad", "nice", "cool", "thanks",
		"thank", "best", "brilliant", "lovely", "yay",
	} {
		positiveWords[w] = struct{}{}
	}
	for _, w := range []string{
		"bad", "sad", "hate", "angry", "terrible", "awful", "broken", "worst",
		"annoying", "frustrated", "fail", "failed", "wrong", "ugly", "fear",
		"worried", "anxious", "sorry", "pain", "lost",
	} {
		negativeWords[w] = struct{}{}
	}
}

var urgentPhrases = []string{
	"urgent", "asap", "right now", "immediately", "emergency", "hurry",
	"as soon as possible", "time sensitive", "deadline",
}

// sentimentMoods maps a context sentiment to the memory moods it matches for
// the re-ranking mood bonus.
var sentimentMoods = map[string][]string{
	"positive": {"happy", "excited", "joyful", "optimistic", "playful", "grateful", "inspired"},
	"negative": {"sad", "angry", "frustrated", "anxious", "melancholy", "fearful", "lonely"},
	"neutral":  {"calm", "neutral", "reflective", "curious", "focused", "contemplative"},
}

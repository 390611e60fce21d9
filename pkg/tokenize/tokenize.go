// Package tokenize provides the single deterministic tokeniser shared by
// the metadata text index (C5) and the local embedder (C7): lowercase the
// input, extract maximal runs of word characters of length >= 3, and drop
// a fixed English stopword list.
package tokenize

import "regexp"

var wordRE = regexp.MustCompile(`[a-z0-9]{3,}`)

// Stopwords is the fixed English stopword list dropped from every
// tokenisation pass.
var Stopwords = buildStopwordSet([]string{
	"the", "and", "for", "are", "but", "not", "you", "all", "can", "had",
	"her", "was", "one", "our", "out", "day", "get", "has", "him", "his",
	"how", "man", "new", "now", "old", "see", "two", "way", "who", "boy",
	"did", "its", "let", "put", "say", "she", "too", "use", "that", "with",
	"have", "this", "will", "your", "from", "they", "know", "want", "been",
	"good", "much", "some", "time", "very", "when", "come", "here", "just",
	"like", "long", "make", "many", "over", "such", "take", "than", "them",
	"well", "were", "what", "about", "after", "again", "could", "every",
	"first", "found", "great", "house", "large", "learn", "never", "other",
	"place", "plant", "point", "right", "small", "sound", "spell", "still",
	"study", "their", "there", "these", "thing", "think", "three", "water",
	"where", "which", "world", "would", "write",
})

func buildStopwordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Tokenize lowercases text, extracts word-character runs of length >= 3,
// and filters stopwords. Token order is preserved (not deduplicated);
// callers that need a set should dedupe themselves.
func Tokenize(text string) []string {
	lower := toLower(text)
	matches := wordRE.FindAllString(lower, -1)
	out := make([]string, 0, len(matches))
	for _, tok := range matches {
		if _, stop := Stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

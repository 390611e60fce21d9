package responder

import (
	"sort"
	"strings"
)

// categoryOrder fixes the scan order over categories so that, after the
// confidence sort, actions tied on confidence still come out in a stable,
// deterministic order.
var categoryOrder = []string{"create", "update", "delete", "search", "help", "schedule"}

// categoryKeywords maps each action category to the keywords that trigger
// it. Scans are case-insensitive.
var categoryKeywords = map[string][]string{
	"create":   {"create", "add", "make", "new"},
	"update":   {"update", "change", "modify", "edit"},
	"delete":   {"delete", "remove", "cancel"},
	"search":   {"search", "find", "look up", "lookup"},
	"help":     {"help", "assist", "support"},
	"schedule": {"schedule", "remind", "calendar", "appointment"},
}

// affirmativePatterns each add 0.3 to a candidate action's confidence.
var affirmativePatterns = []string{
	"i can help", "let me", "i'll", "i will", "would you like",
}

// uncertainPatterns each subtract 0.2 from a candidate action's confidence.
var uncertainPatterns = []string{
	"might", "maybe", "perhaps", "could", "possibly",
}

const windowRadius = 50

// ParseActions scans reply for action-category keywords and returns at
// most one action per category, deduplicated by (type, keyword), sorted by
// confidence descending.
func ParseActions(reply string) []Action {
	lower := strings.ToLower(reply)

	seen := make(map[string]bool)
	var actions []Action

	for _, category := range categoryOrder {
		for _, kw := range categoryKeywords[category] {
			idx := strings.Index(lower, kw)
			if idx < 0 {
				continue
			}
			key := category + "|" + kw
			if seen[key] {
				continue
			}
			seen[key] = true

			actions = append(actions, Action{
				Type:       category,
				Keyword:    kw,
				Window:     window(reply, idx, len(kw)),
				Confidence: confidence(lower),
			})
			break // at most one action per category
		}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Confidence > actions[j].Confidence
	})
	return actions
}

// window captures the ±50-character neighbourhood of a match at
// [start, start+length) in s.
func window(s string, start, length int) string {
	from := start - windowRadius
	if from < 0 {
		from = 0
	}
	to := start + length + windowRadius
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}

// confidence scores a reply: base 0.5, +0.3 per affirmative pattern match,
// -0.2 per uncertain pattern match, clamped to [0, 1].
func confidence(lowerReply string) float64 {
	score := 0.5
	for _, p := range affirmativePatterns {
		if strings.Contains(lowerReply, p) {
			score += 0.3
		}
	}
	for _, p := range uncertainPatterns {
		if strings.Contains(lowerReply, p) {
			score -= 0.2
		}
	}
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	return score
}

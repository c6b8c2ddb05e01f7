// Package classifier decides how a question is routed: greeting, contextual
// follow-up, or cacheable data question.
package classifier

import "strings"

// Kind is the routing decision for a question.
type Kind string

const (
	// KindGreeting short-circuits SQL generation entirely.
	KindGreeting Kind = "greeting"
	// KindContextual marks follow-ups that must never be cache-served,
	// since pronoun resolution depends on the immediately preceding turn.
	KindContextual Kind = "contextual"
	// KindCacheable covers everything else, eligible for cache lookup.
	KindCacheable Kind = "cacheable"
)

var greetings = map[string]struct{}{
	"hi":        {},
	"hello":     {},
	"hey":       {},
	"greetings": {},
}

// contextualWords are the interrogatives/pronoun triggers for short
// follow-up questions. The word-count boundary is load-bearing: cache
// correctness depends on it, so longer contextual questions are
// deliberately classified as cacheable.
var contextualWords = []string{"why", "how", "what", "explain", "analyze"}

// Classify routes a question. Pure function: identical input always yields
// the identical kind, and unmatched input defaults to cacheable.
func Classify(question string) Kind {
	normalized := strings.ToLower(strings.TrimSpace(question))

	if _, ok := greetings[normalized]; ok {
		return KindGreeting
	}

	words := strings.Fields(normalized)
	if len(words) <= 4 {
		for _, w := range contextualWords {
			if strings.Contains(normalized, w) {
				return KindContextual
			}
		}
	}

	return KindCacheable
}

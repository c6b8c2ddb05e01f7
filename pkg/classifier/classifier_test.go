package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		question string
		expected Kind
	}{
		{
			name:     "greeting hi",
			question: "hi",
			expected: KindGreeting,
		},
		{
			name:     "greeting with casing and whitespace",
			question: "  HELLO ",
			expected: KindGreeting,
		},
		{
			name:     "greeting hey",
			question: "hey",
			expected: KindGreeting,
		},
		{
			name:     "greetings word",
			question: "greetings",
			expected: KindGreeting,
		},
		{
			name:     "greeting embedded in sentence is not a greeting",
			question: "hi there show me revenue",
			expected: KindCacheable,
		},
		{
			name:     "short why question is contextual",
			question: "why does it do that",
			expected: KindContextual,
		},
		{
			name:     "short explain question is contextual",
			question: "explain this trend",
			expected: KindContextual,
		},
		{
			name:     "short analyze question is contextual",
			question: "analyze it",
			expected: KindContextual,
		},
		{
			name:     "why question over four words is cacheable",
			question: "why does the revenue decline here",
			expected: KindCacheable,
		},
		{
			name:     "short question without trigger word is cacheable",
			question: "revenue by client",
			expected: KindCacheable,
		},
		{
			name:     "data question",
			question: "show me revenue for Brown Ltd in 2024",
			expected: KindCacheable,
		},
		{
			name:     "empty question is cacheable",
			question: "",
			expected: KindCacheable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.question))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	questions := []string{"hi", "why does it do that", "show me revenue", "explain"}
	for _, q := range questions {
		first := Classify(q)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Classify(q), "classification must be stable for %q", q)
		}
	}
}

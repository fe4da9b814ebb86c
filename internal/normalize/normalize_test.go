package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanPreambles(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "here is the improved prompt",
			input: "Here is the improved prompt:\nWrite a haiku about rain.",
			want:  "Write a haiku about rain.",
		},
		{
			name:  "here's a prompt",
			input: "Here's a prompt for your idea: Describe a sunset over the sea.",
			want:  "Describe a sunset over the sea.",
		},
		{
			name:  "sure lead-in",
			input: "Sure! Here is your prompt: Paint a cyberpunk city at night.",
			want:  "Paint a cyberpunk city at night.",
		},
		{
			name:  "french voici",
			input: "Voici le prompt amélioré : Décris un paysage d'automne.",
			want:  "Décris un paysage d'automne.",
		},
		{
			name:  "labelled prefix",
			input: "Prompt: Summarise this article in three sentences.",
			want:  "Summarise this article in three sentences.",
		},
		{
			name:  "improved prompt label",
			input: "Improved prompt: Explain recursion to a child.",
			want:  "Explain recursion to a child.",
		},
		{
			name:  "leading blank lines",
			input: "\n\n  \nWrite a limerick.",
			want:  "Write a limerick.",
		},
		{
			name:  "no preamble untouched",
			input: "Write a short story about a lighthouse keeper.",
			want:  "Write a short story about a lighthouse keeper.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestCleanEnclosingQuotes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "double quotes",
			input: `"Write a haiku about rain."`,
			want:  "Write a haiku about rain.",
		},
		{
			name:  "curly quotes",
			input: "“Write a haiku about rain.”",
			want:  "Write a haiku about rain.",
		},
		{
			name:  "guillemets",
			input: "«Décris un paysage.»",
			want:  "Décris un paysage.",
		},
		{
			name:  "interior quotes kept",
			input: `Use "vivid" and "concise" wording.`,
			want:  `Use "vivid" and "concise" wording.`,
		},
		{
			name:  "repeated guillemets kept",
			input: "«a» et «b»",
			want:  "«a» et «b»",
		},
		{
			name:  "preamble then quotes",
			input: "Here is the prompt: \"Write a villanelle about tides.\"",
			want:  "Write a villanelle about tides.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"Here is the improved prompt:\n\"Write a haiku about rain.\"",
		"Sure! Here's the prompt: Paint a mountain pass.",
		"Voici : «Décris la mer.»",
		"Prompt: Prompt: nested label",
		"plain text with no boilerplate",
		"",
		"   \n\t  ",
		// A labelled prefix strips one occurrence per pass, so deep nesting
		// needs many passes to settle.
		strings.Repeat("Prompt: ", 12) + "core",
		strings.Repeat("“", 20) + "core" + strings.Repeat("”", 20),
	}

	for _, input := range inputs {
		once := Clean(input)
		assert.Equal(t, once, Clean(once), "Clean must be idempotent for %q", input)
	}
}

func TestCleanDeeplyNestedLabels(t *testing.T) {
	assert.Equal(t, "core", Clean(strings.Repeat("Prompt: ", 12)+"core"))
}

func TestCleanIsTotal(t *testing.T) {
	// Worst case is the trimmed input, never a panic or an error.
	assert.Equal(t, "", Clean(""))
	assert.Equal(t, "x", Clean("  x  "))
}

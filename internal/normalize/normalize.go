// Package normalize strips the conversational boilerplate language models
// prepend to their output. The rules are best-effort heuristics: they are
// applied in order, each one sees the output of the previous, and the worst
// case is returning the input trimmed.
package normalize

import (
	"regexp"
	"strings"
)

// preambleRules remove lead-in sentences anchored to the start of the text.
// More specific patterns run before generic ones so a broad rule never eats
// half of a phrase a narrower rule would have removed whole.
var preambleRules = []*regexp.Regexp{
	// English lead-ins ending in a colon, e.g. "Here is the improved prompt:".
	regexp.MustCompile(`(?i)^here(?:'s| is| are)\s+(?:the |an? |your )?(?:improved |rewritten |refined |better )?prompts?[^:\n]*:\s*`),
	regexp.MustCompile(`(?i)^(?:sure|certainly|of course|absolutely)[!.,]?\s+(?:here(?:'s| is| are)[^:\n]*:)?\s*`),
	// French lead-ins, e.g. "Voici le prompt amélioré :".
	regexp.MustCompile(`(?i)^voici\s+(?:le |la |un |une |votre )?(?:prompt|proposition|version)[^:\n]*:\s*`),
	regexp.MustCompile(`(?i)^voici\s*:\s*`),
	// Labelled prefixes.
	regexp.MustCompile(`(?i)^(?:improved |final |generated |new )?prompt\s*:\s*`),
	regexp.MustCompile(`(?i)^(?:réponse|résultat)\s*:\s*`),
}

// enclosingQuotes lists quote pairs stripped when they wrap the whole text.
var enclosingQuotes = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"}, // curly double quotes
	{"«", "»"}, // guillemets
	{"`", "`"},
}

// Clean normalises raw model output into the bare generated text. It is
// pure, total and idempotent: the rule set is applied until the text stops
// changing, so cleaning already-clean text changes nothing. The loop
// terminates because every rewrite strictly shrinks the text; real outputs
// settle in one or two passes.
func Clean(raw string) string {
	text := strings.TrimSpace(raw)

	for {
		next := cleanOnce(text)
		if next == text {
			return text
		}
		text = next
	}
}

func cleanOnce(text string) string {
	for _, rule := range preambleRules {
		text = rule.ReplaceAllString(text, "")
		text = strings.TrimLeft(text, " \t\r\n")
	}

	text = stripEnclosingQuotes(text)
	return strings.TrimSpace(text)
}

// stripEnclosingQuotes removes a single pair of quote characters, and only
// when the quotes enclose the entire text rather than appearing inside it.
func stripEnclosingQuotes(text string) string {
	for _, pair := range enclosingQuotes {
		opening, closing := pair[0], pair[1]
		if len(text) <= len(opening)+len(closing) {
			continue
		}
		if !strings.HasPrefix(text, opening) || !strings.HasSuffix(text, closing) {
			continue
		}

		inner := text[len(opening) : len(text)-len(closing)]
		// A closing quote earlier in the text means the pair does not wrap
		// the whole string, e.g. `"a" and "b"` or «a» et «b».
		if strings.Contains(inner, closing) {
			continue
		}
		return strings.TrimSpace(inner)
	}
	return text
}

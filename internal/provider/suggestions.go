package provider

import (
	"encoding/json"
	"errors"
	"strings"

	"promptforge/internal/models"
)

// ErrMalformedSuggestions indicates the model did not return the requested
// JSON envelope.
var ErrMalformedSuggestions = errors.New("malformed suggestion payload")

// ParseSuggestions decodes the JSON envelope requested by the suggestion
// system prompt. Models frequently wrap JSON in Markdown code fences despite
// instructions, so a single fence is tolerated and stripped first.
func ParseSuggestions(raw string) (models.SuggestionSet, error) {
	text := strings.TrimSpace(raw)
	text = stripCodeFence(text)

	var set models.SuggestionSet
	if err := json.Unmarshal([]byte(text), &set); err != nil {
		return models.SuggestionSet{}, errors.Join(ErrMalformedSuggestions, err)
	}
	if len(set.Categories) == 0 {
		return models.SuggestionSet{}, ErrMalformedSuggestions
	}

	for i := range set.Categories {
		if strings.TrimSpace(set.Categories[i].Name) == "" {
			return models.SuggestionSet{}, ErrMalformedSuggestions
		}
		for j, suggestion := range set.Categories[i].Suggestions {
			set.Categories[i].Suggestions[j] = strings.TrimSpace(suggestion)
		}
	}
	return set, nil
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	rest := strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(rest, '\n'); newline >= 0 {
		// Drop a language tag such as ```json on the fence line.
		rest = rest[newline+1:]
	}
	rest = strings.TrimSuffix(strings.TrimSpace(rest), "```")
	return strings.TrimSpace(rest)
}

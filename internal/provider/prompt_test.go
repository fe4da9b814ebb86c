package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"promptforge/internal/models"
)

func TestBuildPromptLanguageDirective(t *testing.T) {
	tests := []struct {
		name     string
		language string
		want     string
	}{
		{
			name:     "explicit target language",
			language: "Spanish",
			want:     "Respond strictly in Spanish.",
		},
		{
			name:     "auto-detect when unset",
			language: "",
			want:     "Detect the language of the input and respond in that same language.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := BuildPrompt(models.GenerationRequest{
				Op:             models.OpGenerate,
				Input:          "a poem about rain",
				TargetLanguage: tt.language,
			}, "gpt-4o-mini")

			assert.Contains(t, spec.User, tt.want)
		})
	}
}

func TestBuildPromptPerOperation(t *testing.T) {
	tests := []struct {
		op         models.OperationKind
		wantSystem string
		wantUser   string
	}{
		{models.OpGenerate, "turn rough ideas into precise", "Write a prompt for the following idea"},
		{models.OpImprove, "rewrite draft prompts", "Improve the following prompt"},
		{models.OpSuggest, "Respond with JSON only", "Suggest keywords"},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			spec := BuildPrompt(models.GenerationRequest{Op: tt.op, Input: "x"}, "m")
			assert.Contains(t, spec.System, tt.wantSystem)
			assert.Contains(t, spec.User, tt.wantUser)
		})
	}
}

func TestBuildPromptConstraints(t *testing.T) {
	spec := BuildPrompt(models.GenerationRequest{
		Op:          models.OpGenerate,
		Input:       "a poem",
		Constraints: "at most 40 words",
	}, "m")

	assert.Contains(t, spec.User, "Additional requirements: at most 40 words")

	withoutConstraints := BuildPrompt(models.GenerationRequest{
		Op:    models.OpGenerate,
		Input: "a poem",
	}, "m")
	assert.False(t, strings.Contains(withoutConstraints.User, "Additional requirements"))
}

func TestBuildPromptCarriesModelAndTokens(t *testing.T) {
	spec := BuildPrompt(models.GenerationRequest{Op: models.OpGenerate, Input: "x"}, "claude-sonnet")
	assert.Equal(t, "claude-sonnet", spec.Model)
	assert.Equal(t, defaultMaxTokens, spec.MaxTokens)
}

package provider

import (
	"fmt"
	"strings"

	"promptforge/internal/models"
)

const defaultMaxTokens = 4096

const generateSystem = "You are an expert prompt engineer. You turn rough ideas into precise, " +
	"effective prompts for generative AI tools. Return only the prompt itself, " +
	"with no introduction, commentary or surrounding quotes."

const improveSystem = "You are an expert prompt engineer. You rewrite draft prompts to be " +
	"clearer, more specific and more effective for generative AI tools. Return " +
	"only the rewritten prompt, with no introduction, commentary or surrounding quotes."

const suggestSystem = "You are an expert prompt engineer. You suggest keywords and phrases " +
	"that strengthen a prompt. Respond with JSON only, using the shape " +
	`{"categories":[{"category":"...","suggestions":["...","..."]}]}` +
	", with 3 to 5 suggestions per category and no text outside the JSON."

// BuildPrompt renders a canonical request into the system/user instruction
// pair every adapter sends. The language directive is built here so the
// policy is identical across providers: an explicit target language when the
// caller set one, otherwise detect-and-match.
func BuildPrompt(req models.GenerationRequest, modelID string) PromptSpec {
	var system string
	switch req.Op {
	case models.OpImprove:
		system = improveSystem
	case models.OpSuggest:
		system = suggestSystem
	default:
		system = generateSystem
	}

	var user strings.Builder
	switch req.Op {
	case models.OpImprove:
		user.WriteString("Improve the following prompt:\n\n")
	case models.OpSuggest:
		user.WriteString("Suggest keywords for the following prompt idea:\n\n")
	default:
		user.WriteString("Write a prompt for the following idea:\n\n")
	}
	user.WriteString(req.Input)

	if req.Constraints != "" {
		user.WriteString("\n\nAdditional requirements: ")
		user.WriteString(req.Constraints)
	}

	user.WriteString("\n\n")
	user.WriteString(languageDirective(req.TargetLanguage))

	return PromptSpec{
		Model:     modelID,
		System:    system,
		User:      user.String(),
		MaxTokens: defaultMaxTokens,
	}
}

func languageDirective(targetLanguage string) string {
	if targetLanguage != "" {
		return fmt.Sprintf("Respond strictly in %s.", targetLanguage)
	}
	return "Detect the language of the input and respond in that same language."
}

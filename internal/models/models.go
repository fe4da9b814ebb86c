package models

// OperationKind identifies what the caller wants done with the input text.
type OperationKind string

const (
	// OpGenerate builds a fresh prompt from a natural-language idea.
	OpGenerate OperationKind = "generate"
	// OpImprove rewrites draft prompt text the caller already has.
	OpImprove OperationKind = "improve"
	// OpSuggest produces categorised keyword suggestions for the input.
	OpSuggest OperationKind = "suggest"
)

// Valid reports whether the operation kind is one of the known values.
func (k OperationKind) Valid() bool {
	switch k {
	case OpGenerate, OpImprove, OpSuggest:
		return true
	}
	return false
}

// ProviderKind identifies an upstream language-model vendor. The set is
// closed; adding a provider means adding a value here plus one adapter.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderGemini    ProviderKind = "gemini"
	ProviderMistral   ProviderKind = "mistral"
	ProviderDeepSeek  ProviderKind = "deepseek"
)

// Valid reports whether the provider kind is one of the known vendors.
func (p ProviderKind) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderMistral, ProviderDeepSeek:
		return true
	}
	return false
}

// GenerationRequest is the canonical, provider-agnostic representation of a
// single pipeline call. It is constructed once per incoming request and never
// mutated afterwards.
type GenerationRequest struct {
	Op        OperationKind
	AccountID string
	Input     string
	// Constraints carries optional free-text requirements (style, length,
	// format) appended to the instruction. Empty means none.
	Constraints string
	// TargetLanguage forces the response language when set. Empty means the
	// model should detect the input's language and answer in it.
	TargetLanguage string
	// ModelID selects a configured model. Empty means the account tier's
	// default model.
	ModelID string
}

// ModelDescriptor is the pipeline's read-only view of one configured model.
type ModelDescriptor struct {
	ID                  string
	Provider            ProviderKind
	CreditCost          int
	SupportsSuggestions bool
}

// GenerationResult is returned to the caller only once the ledger debit for
// the request has been committed.
type GenerationResult struct {
	Text           string
	CreditsCharged int
	Provider       ProviderKind
}

// SuggestionCategory groups related keyword suggestions under one label.
type SuggestionCategory struct {
	Name        string   `json:"category"`
	Suggestions []string `json:"suggestions"`
}

// SuggestionSet is the ordered set of categorised suggestions produced by a
// suggestion-capable model.
type SuggestionSet struct {
	Categories []SuggestionCategory `json:"categories"`
}

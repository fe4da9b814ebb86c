package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"promptforge/internal/config"
	"promptforge/internal/models"
	"promptforge/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "promptforge/0.1"
)

// Adapter implements the provider contract for the Gemini generateContent
// API. Gemini takes a single combined prompt per content entry and carries
// the API key in the query string rather than a header.
type Adapter struct {
	apiKey  string
	client  *http.Client
	baseURL string
}

// New creates a Gemini adapter from provider configuration.
func New(cfg config.ProviderConfig, client *http.Client) (*Adapter, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	return &Adapter{
		apiKey:  cfg.ResolveAPIKey(),
		client:  client,
		baseURL: baseURL,
	}, nil
}

func (a *Adapter) Kind() models.ProviderKind {
	return models.ProviderGemini
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	GenerationConfig  *genCfg   `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type genCfg struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Invoke issues a single generateContent call and returns the first
// candidate's text.
func (a *Adapter) Invoke(ctx context.Context, spec provider.PromptSpec) (string, error) {
	payload := generateRequest{
		Contents: []content{
			{Parts: []part{{Text: spec.User}}},
		},
	}
	if spec.System != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: spec.System}}}
	}
	if spec.MaxTokens > 0 {
		payload.GenerationConfig = &genCfg{MaxOutputTokens: spec.MaxTokens}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", a.baseURL, spec.Model, a.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("construct request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set("User-Agent", userAgent)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return "", provider.WrapTransportError(models.ProviderGemini, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return "", parseAPIError(httpResp)
	}

	var providerResp generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&providerResp); err != nil {
		return "", provider.NewError(models.ProviderGemini, provider.KindUnknown, fmt.Sprintf("decode response: %v", err))
	}
	if len(providerResp.Candidates) == 0 || len(providerResp.Candidates[0].Content.Parts) == 0 {
		return "", provider.NewError(models.ProviderGemini, provider.KindUnknown, "response returned no candidates")
	}

	text := strings.Builder{}
	for _, p := range providerResp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return provider.NewError(models.ProviderGemini, provider.ClassifyStatus(resp.StatusCode, false),
			fmt.Sprintf("status %d and failed to read body: %v", resp.StatusCode, err))
	}

	var apiErr apiErrorResponse
	raw := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		raw = fmt.Sprintf("%s: %s", apiErr.Error.Status, apiErr.Error.Message)
	}

	kind := provider.ClassifyStatus(resp.StatusCode, false)
	// A bad key surfaces as 400 INVALID_ARGUMENT rather than a 401.
	if strings.Contains(apiErr.Error.Message, "API key not valid") {
		return provider.NewError(models.ProviderGemini, provider.KindInvalidCredentials, raw)
	}
	switch apiErr.Error.Status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		kind = provider.KindInvalidCredentials
	case "RESOURCE_EXHAUSTED":
		// Gemini uses RESOURCE_EXHAUSTED for both throttling and a spent
		// daily quota; a mention of "quota" marks the latter.
		if strings.Contains(strings.ToLower(apiErr.Error.Message), "quota") {
			kind = provider.KindQuotaExhausted
		} else {
			kind = provider.KindRateLimited
		}
	case "NOT_FOUND":
		kind = provider.KindUnsupportedModel
	case "UNAVAILABLE", "INTERNAL", "DEADLINE_EXCEEDED":
		kind = provider.KindUpstreamUnavailable
	}

	return provider.NewError(models.ProviderGemini, kind, raw)
}

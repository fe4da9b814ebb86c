package openai

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

// Adapter implements the provider contract for the OpenAI chat completions API.
type Adapter struct {
	apiKey  string
	client  *http.Client
	chatURL string
}

// New creates an OpenAI adapter from provider configuration.
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
		chatURL: baseURL + "/chat/completions",
	}, nil
}

func (a *Adapter) Kind() models.ProviderKind {
	return models.ProviderOpenAI
}

type chatPayload struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Invoke issues a single chat completion call and returns the assistant text.
func (a *Adapter) Invoke(ctx context.Context, spec provider.PromptSpec) (string, error) {
	payload := chatPayload{
		Model: spec.Model,
		Messages: []chatMessage{
			{Role: "system", Content: spec.System},
			{Role: "user", Content: spec.User},
		},
		MaxTokens: spec.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.chatURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("construct request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return "", provider.WrapTransportError(models.ProviderOpenAI, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return "", parseAPIError(httpResp)
	}

	var providerResp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&providerResp); err != nil {
		return "", provider.NewError(models.ProviderOpenAI, provider.KindUnknown, fmt.Sprintf("decode response: %v", err))
	}
	if len(providerResp.Choices) == 0 {
		return "", provider.NewError(models.ProviderOpenAI, provider.KindUnknown, "response did not include choices")
	}

	return providerResp.Choices[0].Message.Content, nil
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return provider.NewError(models.ProviderOpenAI, provider.ClassifyStatus(resp.StatusCode, false),
			fmt.Sprintf("status %d and failed to read body: %v", resp.StatusCode, err))
	}

	var apiErr apiErrorResponse
	raw := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		raw = fmt.Sprintf("%s: %s", apiErr.Error.Type, apiErr.Error.Message)
	}

	// OpenAI signals an exhausted quota as a 429 with a dedicated error type
	// rather than a distinct status.
	quotaExhausted := apiErr.Error.Type == "insufficient_quota" || errorCodeIs(apiErr.Error.Code, "insufficient_quota")
	kind := provider.ClassifyStatus(resp.StatusCode, quotaExhausted)
	if apiErr.Error.Code != nil && errorCodeIs(apiErr.Error.Code, "model_not_found") {
		kind = provider.KindUnsupportedModel
	}

	return provider.NewError(models.ProviderOpenAI, kind, raw)
}

func errorCodeIs(code any, want string) bool {
	str, ok := code.(string)
	return ok && str == want
}

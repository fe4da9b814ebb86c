package mistral

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

// Adapter implements the provider contract for the Mistral chat completions
// API. The wire format follows the OpenAI shape but error bodies and
// rate-limit signalling differ.
type Adapter struct {
	apiKey  string
	client  *http.Client
	chatURL string
}

// New creates a Mistral adapter from provider configuration.
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
		chatURL: baseURL + "/v1/chat/completions",
	}, nil
}

func (a *Adapter) Kind() models.ProviderKind {
	return models.ProviderMistral
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

// Mistral errors come either as a bare {message, type} object or nested the
// OpenAI way; both shapes are decoded.
type apiErrorResponse struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
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
		return "", provider.WrapTransportError(models.ProviderMistral, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return "", parseAPIError(httpResp)
	}

	var providerResp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&providerResp); err != nil {
		return "", provider.NewError(models.ProviderMistral, provider.KindUnknown, fmt.Sprintf("decode response: %v", err))
	}
	if len(providerResp.Choices) == 0 {
		return "", provider.NewError(models.ProviderMistral, provider.KindUnknown, "response did not include choices")
	}

	return providerResp.Choices[0].Message.Content, nil
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return provider.NewError(models.ProviderMistral, provider.ClassifyStatus(resp.StatusCode, false),
			fmt.Sprintf("status %d and failed to read body: %v", resp.StatusCode, err))
	}

	var apiErr apiErrorResponse
	raw := strings.TrimSpace(string(body))
	message, errType := "", ""
	if err := json.Unmarshal(body, &apiErr); err == nil {
		message, errType = apiErr.Message, apiErr.Type
		if apiErr.Error != nil && apiErr.Error.Message != "" {
			message, errType = apiErr.Error.Message, apiErr.Error.Type
		}
	}
	if message != "" {
		raw = fmt.Sprintf("%s: %s", errType, message)
	}

	quotaExhausted := strings.Contains(strings.ToLower(message), "quota") ||
		strings.Contains(strings.ToLower(message), "capacity exceeded")
	kind := provider.ClassifyStatus(resp.StatusCode, quotaExhausted)
	if errType == "invalid_model" {
		kind = provider.KindUnsupportedModel
	}

	return provider.NewError(models.ProviderMistral, kind, raw)
}

package anthropic

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
	apiVersion      = "2023-06-01"
)

// Adapter implements the provider contract for the Anthropic Messages API.
type Adapter struct {
	apiKey      string
	client      *http.Client
	messagesURL string
}

// New creates an Anthropic adapter from provider configuration.
func New(cfg config.ProviderConfig, client *http.Client) (*Adapter, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	return &Adapter{
		apiKey:      cfg.ResolveAPIKey(),
		client:      client,
		messagesURL: baseURL + "/v1/messages",
	}, nil
}

func (a *Adapter) Kind() models.ProviderKind {
	return models.ProviderAnthropic
}

type messagePayload struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messageResponse struct {
	Content []contentBlock `json:"content"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke issues a single messages call and returns the joined text blocks.
func (a *Adapter) Invoke(ctx context.Context, spec provider.PromptSpec) (string, error) {
	payload := messagePayload{
		Model:  spec.Model,
		System: spec.System,
		Messages: []message{
			{Role: "user", Content: spec.User},
		},
		MaxTokens: spec.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.messagesURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("construct request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return "", provider.WrapTransportError(models.ProviderAnthropic, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return "", parseAPIError(httpResp)
	}

	var providerResp messageResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&providerResp); err != nil {
		return "", provider.NewError(models.ProviderAnthropic, provider.KindUnknown, fmt.Sprintf("decode response: %v", err))
	}
	if len(providerResp.Content) == 0 {
		return "", provider.NewError(models.ProviderAnthropic, provider.KindUnknown, "response missing content blocks")
	}

	text := strings.Builder{}
	for _, block := range providerResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return provider.NewError(models.ProviderAnthropic, provider.ClassifyStatus(resp.StatusCode, false),
			fmt.Sprintf("status %d and failed to read body: %v", resp.StatusCode, err))
	}

	var apiErr apiErrorResponse
	raw := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		raw = fmt.Sprintf("%s: %s", apiErr.Error.Type, apiErr.Error.Message)
	}

	kind := provider.ClassifyStatus(resp.StatusCode, false)
	switch apiErr.Error.Type {
	case "authentication_error", "permission_error":
		kind = provider.KindInvalidCredentials
	case "rate_limit_error":
		// Anthropic reports both throttling and an exhausted spend limit as
		// rate_limit_error; the message distinguishes them.
		if strings.Contains(strings.ToLower(apiErr.Error.Message), "credit") ||
			strings.Contains(strings.ToLower(apiErr.Error.Message), "quota") {
			kind = provider.KindQuotaExhausted
		} else {
			kind = provider.KindRateLimited
		}
	case "not_found_error":
		kind = provider.KindUnsupportedModel
	case "overloaded_error":
		kind = provider.KindUpstreamUnavailable
	}

	return provider.NewError(models.ProviderAnthropic, kind, raw)
}

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptforge/internal/config"
	"promptforge/internal/provider"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := New(config.ProviderConfig{APIKey: "sk-test", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	return adapter, srv
}

func TestInvokeSuccess(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"A generated prompt."}}]}`))
	})

	text, err := adapter.Invoke(context.Background(), provider.PromptSpec{
		Model:     "gpt-4o-mini",
		System:    "You are an expert prompt engineer.",
		User:      "Write a prompt. Respond strictly in Spanish.",
		MaxTokens: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, "A generated prompt.", text)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Contains(t, captured.Messages[1].Content, "Respond strictly in Spanish.")
	assert.Equal(t, "gpt-4o-mini", captured.Model)
}

func TestInvokeErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind provider.ErrorKind
	}{
		{
			name:     "invalid key",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			wantKind: provider.KindInvalidCredentials,
		},
		{
			name:     "quota exhausted",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`,
			wantKind: provider.KindQuotaExhausted,
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`,
			wantKind: provider.KindRateLimited,
		},
		{
			name:     "unknown model",
			status:   http.StatusNotFound,
			body:     `{"error":{"message":"The model does not exist","type":"invalid_request_error","code":"model_not_found"}}`,
			wantKind: provider.KindUnsupportedModel,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"message":"The server had an error","type":"server_error"}}`,
			wantKind: provider.KindUpstreamUnavailable,
		},
		{
			name:     "unclassified",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"something odd","type":"invalid_request_error"}}`,
			wantKind: provider.KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := adapter.Invoke(context.Background(), provider.PromptSpec{Model: "m", User: "u"})
			provErr, ok := provider.AsError(err)
			require.True(t, ok, "expected a canonical provider error, got %v", err)
			assert.Equal(t, tt.wantKind, provErr.Kind)
		})
	}
}

func TestInvokeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	client := srv.Client()
	client.Timeout = 20 * time.Millisecond
	adapter, err := New(config.ProviderConfig{APIKey: "sk-test", BaseURL: srv.URL}, client)
	require.NoError(t, err)

	_, err = adapter.Invoke(context.Background(), provider.PromptSpec{Model: "m", User: "u"})
	provErr, ok := provider.AsError(err)
	require.True(t, ok)
	assert.Equal(t, provider.KindUpstreamUnavailable, provErr.Kind)
}

func TestInvokeEmptyChoices(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := adapter.Invoke(context.Background(), provider.PromptSpec{Model: "m", User: "u"})
	provErr, ok := provider.AsError(err)
	require.True(t, ok)
	assert.Equal(t, provider.KindUnknown, provErr.Kind)
}

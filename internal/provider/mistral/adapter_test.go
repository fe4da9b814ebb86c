package mistral

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptforge/internal/config"
	"promptforge/internal/provider"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := New(config.ProviderConfig{APIKey: "m-key", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	return adapter
}

func TestInvokeSuccess(t *testing.T) {
	var captured struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer m-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Réponse générée."}}]}`))
	})

	text, err := adapter.Invoke(context.Background(), provider.PromptSpec{
		Model:  "mistral-small",
		System: "system text",
		User:   "Write a prompt. Respond strictly in French.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Réponse générée.", text)
	require.Len(t, captured.Messages, 2)
	assert.Contains(t, captured.Messages[1].Content, "Respond strictly in French.")
}

func TestInvokeErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind provider.ErrorKind
	}{
		{
			name:     "bare error object unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"message":"Unauthorized","type":"invalid_api_key"}`,
			wantKind: provider.KindInvalidCredentials,
		},
		{
			name:     "nested error rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"Requests rate limit exceeded","type":"too_many_requests"}}`,
			wantKind: provider.KindRateLimited,
		},
		{
			name:     "capacity exceeded quota",
			status:   http.StatusTooManyRequests,
			body:     `{"message":"Service tier capacity exceeded for this model","type":"too_many_requests"}`,
			wantKind: provider.KindQuotaExhausted,
		},
		{
			name:     "invalid model",
			status:   http.StatusBadRequest,
			body:     `{"message":"Invalid model: no-such","type":"invalid_model"}`,
			wantKind: provider.KindUnsupportedModel,
		},
		{
			name:     "upstream down",
			status:   http.StatusBadGateway,
			body:     `bad gateway`,
			wantKind: provider.KindUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
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

package gemini

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

	adapter, err := New(config.ProviderConfig{APIKey: "g-key", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	return adapter
}

func TestInvokeSuccess(t *testing.T) {
	var captured struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		SystemInstruction *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"system_instruction"`
	}

	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", r.URL.Path)
		// The key travels in the query string, not a header.
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Una respuesta."}]}}]}`))
	})

	text, err := adapter.Invoke(context.Background(), provider.PromptSpec{
		Model:     "gemini-pro",
		System:    "You are an expert prompt engineer.",
		User:      "Write a prompt. Respond strictly in Spanish.",
		MaxTokens: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, "Una respuesta.", text)

	require.Len(t, captured.Contents, 1)
	require.Len(t, captured.Contents[0].Parts, 1)
	assert.Contains(t, captured.Contents[0].Parts[0].Text, "Respond strictly in Spanish.")
	require.NotNil(t, captured.SystemInstruction)
	assert.Contains(t, captured.SystemInstruction.Parts[0].Text, "expert prompt engineer")
}

func TestInvokeErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind provider.ErrorKind
	}{
		{
			name:     "bad key",
			status:   http.StatusBadRequest,
			body:     `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`,
			wantKind: provider.KindInvalidCredentials,
		},
		{
			name:     "unauthenticated",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"code":401,"message":"Request had invalid authentication credentials","status":"UNAUTHENTICATED"}}`,
			wantKind: provider.KindInvalidCredentials,
		},
		{
			name:     "daily quota spent",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"code":429,"message":"Quota exceeded for quota metric","status":"RESOURCE_EXHAUSTED"}}`,
			wantKind: provider.KindQuotaExhausted,
		},
		{
			name:     "throttled",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"code":429,"message":"Resource has been exhausted (e.g. check rate limits)","status":"RESOURCE_EXHAUSTED"}}`,
			wantKind: provider.KindRateLimited,
		},
		{
			name:     "unknown model",
			status:   http.StatusNotFound,
			body:     `{"error":{"code":404,"message":"models/no-such is not found","status":"NOT_FOUND"}}`,
			wantKind: provider.KindUnsupportedModel,
		},
		{
			name:     "unavailable",
			status:   http.StatusServiceUnavailable,
			body:     `{"error":{"code":503,"message":"The service is currently unavailable","status":"UNAVAILABLE"}}`,
			wantKind: provider.KindUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
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

func TestInvokeNoCandidates(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := adapter.Invoke(context.Background(), provider.PromptSpec{Model: "m", User: "u"})
	provErr, ok := provider.AsError(err)
	require.True(t, ok)
	assert.Equal(t, provider.KindUnknown, provErr.Kind)
}

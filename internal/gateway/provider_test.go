package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProvider(t *testing.T) {
	t.Run("mock by default", func(t *testing.T) {
		p, err := NewProvider(ProviderConfig{}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "mock", p.Name())
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		_, err := NewProvider(ProviderConfig{Kind: "telepathy"}, zap.NewNop())
		require.Error(t, err)
	})

	t.Run("http kinds need base url and model", func(t *testing.T) {
		_, err := NewProvider(ProviderConfig{Kind: "openai"}, zap.NewNop())
		require.Error(t, err)
		_, err = NewProvider(ProviderConfig{Kind: "openai", BaseURL: "http://x"}, zap.NewNop())
		require.Error(t, err)
	})
}

func TestOpenAIProvider(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var payload struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Messages, 1)

		json.NewEncoder(w).Encode(map[string]any{
			"model": payload.Model,
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "réponse"}},
			},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	}))
	defer srv.Close()

	p, err := NewProvider(ProviderConfig{
		Kind: "openai", BaseURL: srv.URL, Model: "gpt-4o-mini", APIKey: "sk-test",
	}, zap.NewNop())
	require.NoError(t, err)

	resp, err := p.Invoke(context.Background(), &Request{TenantID: "tenantA", Prompt: "bonjour"})
	require.NoError(t, err)

	assert.Equal(t, "réponse", resp.Text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestOllamaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "llama3",
			"message": map[string]string{"role": "assistant", "content": "ok"},
		})
	}))
	defer srv.Close()

	p, err := NewProvider(ProviderConfig{Kind: "ollama", BaseURL: srv.URL, Model: "llama3"}, zap.NewNop())
	require.NoError(t, err)

	resp, err := p.Invoke(context.Background(), &Request{TenantID: "tenantA", Prompt: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "llama3", resp.Model)
}

func TestHTTPProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewProvider(ProviderConfig{Kind: "anthropic", BaseURL: srv.URL, Model: "claude"}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.Invoke(context.Background(), &Request{TenantID: "tenantA", Prompt: "ping"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

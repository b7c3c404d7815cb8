package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roofdocs/nexus/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.AI.GroqAPIKey = "gsk_test"
	cfg.AI.TogetherAPIKey = "tk_test"
	return cfg
}

func completionHandler(content string, tokens int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
			"usage": map[string]int{"total_tokens": tokens},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestChatSuccess(t *testing.T) {
	srv := httptest.NewServer(completionHandler("hello from groq", 120))
	defer srv.Close()

	m := NewManager(testConfig(t), nil)
	require.Len(t, m.providers, 2)
	m.providers[0].BaseURL = srv.URL
	m.providers[1].BaseURL = srv.URL

	resp, err := m.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Feature:  "susan_chat",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from groq", resp.Content)
	assert.Equal(t, "groq", resp.Provider)
	assert.Equal(t, 120, resp.TokensUsed)
	assert.InDelta(t, 120.0/1000*0.00059, resp.Cost, 1e-9)

	stats := m.Stats()
	assert.Equal(t, 1, stats["groq"].Successes)
	assert.Equal(t, 0, stats["together"].Requests)
}

func TestChatFailover(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer failing.Close()
	working := httptest.NewServer(completionHandler("hello from together", 80))
	defer working.Close()

	m := NewManager(testConfig(t), nil)
	m.providers[0].BaseURL = failing.URL
	m.providers[1].BaseURL = working.URL

	resp, err := m.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Feature:  "susan_chat",
	})
	require.NoError(t, err)
	assert.Equal(t, "together", resp.Provider)

	stats := m.Stats()
	assert.Equal(t, 1, stats["groq"].Failures)
	assert.Equal(t, 1, stats["groq"].ConsecutiveFailures)
	assert.Equal(t, 1, stats["together"].Successes)
}

func TestChatAllProvidersFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()

	m := NewManager(testConfig(t), nil)
	m.providers[0].BaseURL = failing.URL
	m.providers[1].BaseURL = failing.URL

	_, err := m.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Feature:  "susan_chat",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestUnhealthyProviderSkipped(t *testing.T) {
	var firstCalls int
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		firstCalls++
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer failing.Close()
	working := httptest.NewServer(completionHandler("ok", 10))
	defer working.Close()

	m := NewManager(testConfig(t), nil)
	m.providers[0].BaseURL = failing.URL
	m.providers[1].BaseURL = working.URL

	req := ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}, Feature: "test"}

	// Three failures mark the first provider unhealthy.
	for i := 0; i < 3; i++ {
		_, err := m.Chat(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, firstCalls)
	assert.False(t, m.Stats()["groq"].Healthy)

	// The next call skips it entirely.
	resp, err := m.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "together", resp.Provider)
	assert.Equal(t, 3, firstCalls)
}

func TestMaxTokensCappedPerProvider(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		completionHandler("capped", 5)(w, r)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.AI.GroqAPIKey = ""
	cfg.AI.TogetherAPIKey = ""
	cfg.AI.OpenRouterAPIKey = "or_test"
	m := NewManager(cfg, nil)
	require.Len(t, m.providers, 1)
	m.providers[0].BaseURL = srv.URL

	_, err := m.Chat(context.Background(), ChatRequest{
		Messages:  []Message{{Role: "user", Content: "hi"}},
		Feature:   "test",
		MaxTokens: 9000,
	})
	require.NoError(t, err)
	// OpenRouter caps at 4096 even when more is requested.
	assert.Equal(t, 4096, got.MaxTokens)
}

func TestNoProvidersConfigured(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.AI.GroqAPIKey = ""
	cfg.AI.TogetherAPIKey = ""
	cfg.AI.OpenRouterAPIKey = ""

	m := NewManager(cfg, nil)
	assert.False(t, m.Available())
	_, err = m.Chat(context.Background(), ChatRequest{Feature: "test"})
	require.Error(t, err)
}

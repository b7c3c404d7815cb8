package ai

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/pkg/logger"
)

// ErrAllProvidersFailed is returned when no provider produced a completion.
var ErrAllProvidersFailed = errors.New("all AI providers failed")

// unhealthyThreshold marks a provider down after this many consecutive
// failures; probeCooldown is how long we wait before trying it again.
const (
	unhealthyThreshold = 3
	probeCooldown      = time.Minute
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Response struct {
	Content    string  `json:"content"`
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
	TokensUsed int     `json:"tokens_used"`
	Cost       float64 `json:"cost"`
	LatencyMs  int     `json:"latency_ms"`
}

type ChatRequest struct {
	Messages    []Message
	Feature     string
	UserID      string
	Temperature float64 // 0 uses the configured default
	MaxTokens   int     // 0 uses the configured default
}

type provider struct {
	Name         string
	BaseURL      string
	APIKey       string
	Model        string
	Priority     int
	CostPer1K    float64
	MaxTokens    int
	ExtraHeaders map[string]string
}

// ProviderStats is a snapshot of a provider's runtime counters.
type ProviderStats struct {
	Requests            int     `json:"requests"`
	Successes           int     `json:"successes"`
	Failures            int     `json:"failures"`
	TotalTokens         int     `json:"total_tokens"`
	TotalCost           float64 `json:"total_cost"`
	AvgLatencyMs        float64 `json:"avg_latency_ms"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	Healthy             bool    `json:"healthy"`
}

type providerState struct {
	requests            int
	successes           int
	failures            int
	totalTokens         int
	totalCost           float64
	totalLatencyMs      int64
	consecutiveFailures int
	lastFailure         time.Time
}

// Manager fans chat completions out to OpenAI-compatible providers in
// priority order, failing over on errors.
type Manager struct {
	cfg        *config.Config
	db         *sql.DB
	httpClient *http.Client
	providers  []*provider

	mu    sync.Mutex
	state map[string]*providerState
}

func NewManager(cfg *config.Config, database *sql.DB) *Manager {
	m := &Manager{
		cfg:        cfg,
		db:         database,
		httpClient: &http.Client{Timeout: cfg.AITimeout()},
		state:      make(map[string]*providerState),
	}

	if cfg.AI.GroqAPIKey != "" {
		m.providers = append(m.providers, &provider{
			Name:      "groq",
			BaseURL:   "https://api.groq.com/openai/v1",
			APIKey:    cfg.AI.GroqAPIKey,
			Model:     cfg.AI.GroqModel,
			Priority:  1,
			CostPer1K: 0.00059,
			MaxTokens: 8192,
		})
	}
	if cfg.AI.TogetherAPIKey != "" {
		m.providers = append(m.providers, &provider{
			Name:      "together",
			BaseURL:   "https://api.together.xyz/v1",
			APIKey:    cfg.AI.TogetherAPIKey,
			Model:     cfg.AI.TogetherModel,
			Priority:  2,
			CostPer1K: 0.0009,
			MaxTokens: 8192,
		})
	}
	if cfg.AI.OpenRouterAPIKey != "" {
		m.providers = append(m.providers, &provider{
			Name:      "openrouter",
			BaseURL:   "https://openrouter.ai/api/v1",
			APIKey:    cfg.AI.OpenRouterAPIKey,
			Model:     cfg.AI.OpenRouterModel,
			Priority:  3,
			CostPer1K: 0.001,
			MaxTokens: 4096,
			ExtraHeaders: map[string]string{
				"HTTP-Referer": "https://nexus.roofdocs.com",
				"X-Title":      "NEXUS Backend",
			},
		})
	}

	sort.Slice(m.providers, func(i, j int) bool {
		return m.providers[i].Priority < m.providers[j].Priority
	})
	for _, p := range m.providers {
		m.state[p.Name] = &providerState{}
	}

	logger.Info("AI provider manager initialized", "providers", len(m.providers))
	return m
}

// Available reports whether any provider is configured.
func (m *Manager) Available() bool {
	return len(m.providers) > 0
}

// ProviderNames returns configured provider names in priority order.
func (m *Manager) ProviderNames() []string {
	names := make([]string, 0, len(m.providers))
	for _, p := range m.providers {
		names = append(names, p.Name)
	}
	return names
}

// Chat tries each healthy provider in priority order until one succeeds.
func (m *Manager) Chat(ctx context.Context, req ChatRequest) (*Response, error) {
	if len(m.providers) == 0 {
		return nil, errors.New("no AI providers configured")
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = m.cfg.AI.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = m.cfg.AI.MaxTokens
	}

	var errs []string
	for _, p := range m.providers {
		if !m.shouldTry(p.Name) {
			logger.Debug("Skipping unhealthy provider", "provider", p.Name)
			continue
		}

		capped := maxTokens
		if capped > p.MaxTokens {
			capped = p.MaxTokens
		}

		start := time.Now()
		resp, err := m.callProvider(ctx, p, req.Messages, temperature, capped)
		latency := int(time.Since(start).Milliseconds())

		if err != nil {
			logger.Warn("AI provider call failed", "provider", p.Name, "error", err)
			m.recordFailure(p.Name)
			m.logRequest(req, p, 0, 0, latency, err)
			recordMetrics(p.Name, "failure", 0, 0)
			errs = append(errs, fmt.Sprintf("%s: %v", p.Name, err))
			continue
		}

		resp.LatencyMs = latency
		m.recordSuccess(p.Name, resp.TokensUsed, resp.Cost, latency)
		m.logRequest(req, p, resp.TokensUsed, resp.Cost, latency, nil)
		recordMetrics(p.Name, "success", resp.TokensUsed, resp.Cost)
		return resp, nil
	}

	if len(errs) == 0 {
		return nil, ErrAllProvidersFailed
	}
	return nil, fmt.Errorf("%w: %v", ErrAllProvidersFailed, errs)
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (m *Manager) callProvider(ctx context.Context, p *provider, messages []Message, temperature float64, maxTokens int) (*Response, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       p.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	for k, v := range p.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, detail)
	}

	var cc chatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&cc); err != nil {
		return nil, fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, errors.New("completion returned no choices")
	}

	tokens := cc.Usage.TotalTokens
	return &Response{
		Content:    cc.Choices[0].Message.Content,
		Provider:   p.Name,
		Model:      p.Model,
		TokensUsed: tokens,
		Cost:       float64(tokens) / 1000 * p.CostPer1K,
	}, nil
}

// shouldTry reports whether a provider is healthy or due for a re-probe.
func (m *Manager) shouldTry(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state[name]
	if s.consecutiveFailures < unhealthyThreshold {
		return true
	}
	return time.Since(s.lastFailure) >= probeCooldown
}

func (m *Manager) recordSuccess(name string, tokens int, cost float64, latencyMs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state[name]
	s.requests++
	s.successes++
	s.totalTokens += tokens
	s.totalCost += cost
	s.totalLatencyMs += int64(latencyMs)
	s.consecutiveFailures = 0
}

func (m *Manager) recordFailure(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state[name]
	s.requests++
	s.failures++
	s.consecutiveFailures++
	s.lastFailure = time.Now()
	if s.consecutiveFailures == unhealthyThreshold {
		logger.Warn("AI provider marked unhealthy", "provider", name)
	}
}

func (m *Manager) logRequest(req ChatRequest, p *provider, tokens int, cost float64, latencyMs int, callErr error) {
	if m.db == nil {
		return
	}
	row := &db.AIRequest{
		Provider:   p.Name,
		Model:      p.Model,
		Feature:    req.Feature,
		TokensUsed: tokens,
		Cost:       cost,
		LatencyMs:  latencyMs,
		Success:    callErr == nil,
	}
	if req.UserID != "" {
		row.UserID = sql.NullString{String: req.UserID, Valid: true}
	}
	if callErr != nil {
		row.Error = sql.NullString{String: callErr.Error(), Valid: true}
	}
	if err := queries.RecordAIRequest(m.db, row); err != nil {
		logger.Error("Failed to record AI request", "error", err)
	}
}

// Stats returns a snapshot of per-provider counters.
func (m *Manager) Stats() map[string]ProviderStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ProviderStats, len(m.state))
	for name, s := range m.state {
		view := ProviderStats{
			Requests:            s.requests,
			Successes:           s.successes,
			Failures:            s.failures,
			TotalTokens:         s.totalTokens,
			TotalCost:           s.totalCost,
			ConsecutiveFailures: s.consecutiveFailures,
			Healthy:             s.consecutiveFailures < unhealthyThreshold,
		}
		if s.successes > 0 {
			view.AvgLatencyMs = float64(s.totalLatencyMs) / float64(s.successes)
		}
		out[name] = view
	}
	return out
}

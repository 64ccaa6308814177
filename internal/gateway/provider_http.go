package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// httpProvider speaks the chat APIs of the three supported upstreams.
type httpProvider struct {
	kind    string
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

func newHTTPProvider(cfg ProviderConfig, logger *zap.Logger) (*httpProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %s requires a base_url", cfg.Kind)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("provider %s requires a model", cfg.Kind)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpProvider{
		kind:    cfg.Kind,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

func (p *httpProvider) Name() string { return p.kind }

func (p *httpProvider) messages(req *Request) []Message {
	if req.Prompt != "" {
		return []Message{{Role: "user", Content: req.Prompt}}
	}
	return req.Messages
}

// Invoke implements Provider.
func (p *httpProvider) Invoke(ctx context.Context, req *Request) (*Response, error) {
	switch p.kind {
	case "openai":
		return p.invokeOpenAI(ctx, req)
	case "anthropic":
		return p.invokeAnthropic(ctx, req)
	case "ollama":
		return p.invokeOllama(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", p.kind)
	}
}

func (p *httpProvider) post(ctx context.Context, url string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error("provider returned error status",
			zap.String("provider", p.kind),
			zap.Int("status_code", resp.StatusCode),
		)
		return nil, fmt.Errorf("provider %s returned HTTP %d", p.kind, resp.StatusCode)
	}
	return data, nil
}

func (p *httpProvider) invokeOpenAI(ctx context.Context, req *Request) (*Response, error) {
	payload := map[string]any{
		"model":    p.model,
		"messages": p.messages(req),
	}
	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	data, err := p.post(ctx, p.baseURL+"/v1/chat/completions", payload, headers)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai response carried no choices")
	}

	resp := &Response{
		Text:     parsed.Choices[0].Message.Content,
		Provider: p.kind,
		Model:    parsed.Model,
	}
	if parsed.Usage != nil {
		resp.Usage = &Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		}
	}
	return resp, nil
}

func (p *httpProvider) invokeAnthropic(ctx context.Context, req *Request) (*Response, error) {
	payload := map[string]any{
		"model":      p.model,
		"max_tokens": 1024,
		"messages":   p.messages(req),
	}
	headers := map[string]string{
		"anthropic-version": "2023-06-01",
	}
	if p.apiKey != "" {
		headers["x-api-key"] = p.apiKey
	}

	data, err := p.post(ctx, p.baseURL+"/v1/messages", payload, headers)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode anthropic response: %w", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	resp := &Response{
		Text:     text.String(),
		Provider: p.kind,
		Model:    parsed.Model,
	}
	if parsed.Usage != nil {
		resp.Usage = &Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		}
	}
	return resp, nil
}

func (p *httpProvider) invokeOllama(ctx context.Context, req *Request) (*Response, error) {
	payload := map[string]any{
		"model":    p.model,
		"messages": p.messages(req),
		"stream":   false,
	}

	data, err := p.post(ctx, p.baseURL+"/api/chat", payload, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Model   string `json:"model"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}

	return &Response{
		Text:     parsed.Message.Content,
		Provider: p.kind,
		Model:    parsed.Model,
	}, nil
}

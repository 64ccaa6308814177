package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider is the opaque, possibly slow upstream the gateway
// dispatches to. Selection happens once at startup from configuration.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, req *Request) (*Response, error)
}

// ProviderConfig selects and configures the upstream backend.
type ProviderConfig struct {
	Kind    string        `yaml:"kind" mapstructure:"kind"` // openai, anthropic, ollama or mock
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Model   string        `yaml:"model" mapstructure:"model"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// NewProvider resolves the configured backend.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Kind {
	case "openai", "anthropic", "ollama":
		return newHTTPProvider(cfg, logger)
	case "mock", "":
		return NewMockProvider(nil), nil
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", cfg.Kind)
	}
}

// MockProvider echoes the redacted input back, or delegates to a
// caller-supplied reply function. Used in tests and local development.
type MockProvider struct {
	ReplyFn func(req *Request) (string, error)
}

// NewMockProvider returns a mock. A nil reply function echoes the
// extracted input text.
func NewMockProvider(reply func(req *Request) (string, error)) *MockProvider {
	return &MockProvider{ReplyFn: reply}
}

// Name implements Provider.
func (p *MockProvider) Name() string { return "mock" }

// Invoke implements Provider.
func (p *MockProvider) Invoke(_ context.Context, req *Request) (*Response, error) {
	if p.ReplyFn != nil {
		text, err := p.ReplyFn(req)
		if err != nil {
			return nil, err
		}
		return &Response{Text: text, Provider: "mock", Model: "mock"}, nil
	}
	text, _ := extractText(req)
	return &Response{Text: text, Provider: "mock", Model: "mock"}, nil
}

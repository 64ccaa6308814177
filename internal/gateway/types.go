package gateway

import (
	"time"

	"github.com/dataveil/rgpd-gateway/internal/pii"
	"github.com/dataveil/rgpd-gateway/internal/policy"
)

// Message is one turn of a multi-turn payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the gateway invocation payload. Either Prompt or Messages
// carries the text; when both are set, Prompt wins.
type Request struct {
	Purpose  string                   `json:"purpose"`
	TenantID string                   `json:"tenantId"`
	ActorID  string                   `json:"actorId,omitempty"`
	Policy   *policy.ValidationResult `json:"policy,omitempty"`
	Prompt   string                   `json:"prompt,omitempty"`
	Messages []Message                `json:"messages,omitempty"`
}

// Usage reports provider token accounting when available.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Response is the provider result handed back to the caller.
type Response struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Usage    *Usage `json:"usage,omitempty"`
}

// Context is the redaction state passed opaquely from input redaction
// to output restoration within one request's lifetime. It holds the
// only bridge between redacted and real data and is never serialized
// beyond that lifetime.
type Context struct {
	TenantID    string
	PIIDetected bool
	Table       *pii.MappingTable
	RedactedAt  time.Time
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dataveil/rgpd-gateway/internal/audit"
	"github.com/dataveil/rgpd-gateway/internal/pii"
	"go.uber.org/zap"
)

// FailMode decides what happens when redaction itself fails or blows
// its time budget.
type FailMode string

const (
	// FailOpen forwards the original unredacted input with a warning
	// log. Availability over the redaction safety net; every
	// occurrence is auditable through the warning.
	FailOpen FailMode = "open"
	// FailClosed rejects the call instead of sending unredacted text.
	FailClosed FailMode = "closed"
)

// DefaultRedactionBudget is the soft deadline around detect+mask.
const DefaultRedactionBudget = 50 * time.Millisecond

// ErrRedactionAborted is returned in fail-closed mode when redaction
// failed or exceeded its budget.
var ErrRedactionAborted = errors.New("gateway: pii redaction aborted")

// Detector is the detection capability the redactor depends on. The
// rule-based pii.Detector is the production implementation; anything
// honoring the entity shape can stand in.
type Detector interface {
	Detect(text string) pii.DetectionResult
}

// Redactor brackets the provider call: detect+mask on the way in,
// restore on the way out. It owns the time budget, the fail-safe
// policy and audit-event emission.
type Redactor struct {
	detector Detector
	logger   *zap.Logger
	sink     audit.Sink
	budget   time.Duration
	failMode FailMode
}

// NewRedactor wires a redactor. A zero budget falls back to
// DefaultRedactionBudget; an empty fail mode falls back to FailOpen.
func NewRedactor(detector Detector, logger *zap.Logger, sink audit.Sink, budget time.Duration, failMode FailMode) *Redactor {
	if budget <= 0 {
		budget = DefaultRedactionBudget
	}
	if failMode == "" {
		failMode = FailOpen
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Redactor{
		detector: detector,
		logger:   logger,
		sink:     sink,
		budget:   budget,
		failMode: failMode,
	}
}

// RedactInput masks PII in the request before it may leave the system
// boundary. It always returns a usable request in fail-open mode; the
// error is non-nil only in fail-closed mode.
func (r *Redactor) RedactInput(ctx context.Context, req *Request) (*Request, *Context, error) {
	rctx := &Context{TenantID: req.TenantID, RedactedAt: time.Now()}

	text, found := extractText(req)
	if !found || strings.TrimSpace(text) == "" {
		return req, rctx, nil
	}

	start := time.Now()
	result, err := r.detectAndMask(text)
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Warn("pii_redaction_error",
			zap.String("tenant_id", req.TenantID),
			zap.String("error", err.Error()),
		)
		return r.failSafe(req, rctx, err)
	}
	if elapsed > r.budget {
		r.logger.Warn("pii redaction budget exceeded, skipping redaction",
			zap.String("tenant_id", req.TenantID),
			zap.Duration("elapsed", elapsed),
			zap.Duration("budget", r.budget),
		)
		return r.failSafe(req, rctx, fmt.Errorf("redaction exceeded %s budget", r.budget))
	}

	if result.MaskCount == 0 {
		return req, rctx, nil
	}

	summary := result.Table.Summary()
	if !pii.ValidateMaskedText(result.MaskedText, result.Table) {
		r.logger.Warn("pii residual leak in masked text",
			zap.String("tenant_id", req.TenantID),
			zap.String("pii_types", typeNames(summary.PIITypes)),
			zap.Int("pii_count", summary.PIICount),
		)
		return r.failSafe(req, rctx, errors.New("masked text still carries an original value"))
	}
	r.sink.Emit(ctx, audit.Event{
		Event:    "pii_detected",
		TenantID: req.TenantID,
		ActorID:  req.ActorID,
		Meta: map[string]any{
			"pii_types": typeNames(summary.PIITypes),
			"pii_count": summary.PIICount,
		},
		Time: time.Now(),
	})
	r.sink.Emit(ctx, audit.Event{
		Event:    "pii_redaction_completed",
		TenantID: req.TenantID,
		ActorID:  req.ActorID,
		Meta: map[string]any{
			"duration_ms": elapsed.Milliseconds(),
			"pii_count":   summary.PIICount,
		},
		Time: time.Now(),
	})

	rctx.PIIDetected = true
	rctx.Table = result.Table
	return replaceText(req, result.MaskedText), rctx, nil
}

// detectAndMask runs the pure detection+masking sequence, converting a
// panic from a faulty detector into an error instead of letting it
// escape to the caller.
func (r *Redactor) detectAndMask(text string) (result pii.MaskResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("detection panic: %v", rec)
		}
	}()
	detection := r.detector.Detect(text)
	return pii.Mask(text, detection.Entities), nil
}

// failSafe applies the configured fail mode: forward the original
// input with an empty context, or abort the call.
func (r *Redactor) failSafe(req *Request, rctx *Context, cause error) (*Request, *Context, error) {
	if r.failMode == FailClosed {
		return nil, nil, fmt.Errorf("%w: %v", ErrRedactionAborted, cause)
	}
	return req, rctx, nil
}

// RestoreOutput substitutes tokens in the provider response back to
// the values only the authorized caller may see. Without a detection
// context it is a no-op.
func (r *Redactor) RestoreOutput(outputText string, rctx *Context) string {
	if rctx == nil || !rctx.PIIDetected || rctx.Table == nil || rctx.Table.Len() == 0 {
		return outputText
	}
	return pii.Restore(outputText, rctx.Table)
}

// extractText picks the single text to analyze: the dedicated prompt
// field, or the content of the most recent "user" message. Earlier
// turns are not scanned.
func extractText(req *Request) (string, bool) {
	if req.Prompt != "" {
		return req.Prompt, true
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content, true
		}
	}
	return "", false
}

// replaceText mirrors extractText exactly, writing the masked text
// back into the shape it was read from.
func replaceText(req *Request, masked string) *Request {
	out := *req
	if req.Prompt != "" {
		out.Prompt = masked
		return &out
	}
	out.Messages = make([]Message, len(req.Messages))
	copy(out.Messages, req.Messages)
	for i := len(out.Messages) - 1; i >= 0; i-- {
		if out.Messages[i].Role == "user" {
			out.Messages[i].Content = masked
			break
		}
	}
	return &out
}

func typeNames(types []pii.EntityType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ",")
}

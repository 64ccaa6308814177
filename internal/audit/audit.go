// Package audit carries the gateway's observability contract: every
// event is a flat map of primitives describing what happened, never
// what the data was. No sink may ever receive a PII original value, a
// mapping, or raw prompt/response content; counts, category names and
// durations only.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event is one structured audit record.
type Event struct {
	Event    string         `json:"event"`
	TenantID string         `json:"tenant_id"`
	ActorID  string         `json:"actor_id,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	Time     time.Time      `json:"time"`
}

// Sink accepts audit events. Implementations must tolerate concurrent
// callers and must never block the request path for long.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// ZapSink writes audit events to the structured log.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink returns a sink logging at info level.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

// Emit implements Sink.
func (s *ZapSink) Emit(_ context.Context, e Event) {
	fields := []zap.Field{
		zap.String("event", e.Event),
		zap.String("tenant_id", e.TenantID),
	}
	if e.ActorID != "" {
		fields = append(fields, zap.String("actor_id", e.ActorID))
	}
	for k, v := range e.Meta {
		fields = append(fields, zap.Any(k, v))
	}
	s.logger.Info("audit", fields...)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}

// NopSink discards every event.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(context.Context, Event) {}

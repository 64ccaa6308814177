package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Emit(_ context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	sink := MultiSink{a, b}

	sink.Emit(context.Background(), Event{
		Event:    "pii_detected",
		TenantID: "tenantA",
		Meta:     map[string]any{"pii_count": 2},
		Time:     time.Now(),
	})

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Equal(t, "pii_detected", a.events[0].Event)
}

func TestZapSinkFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{
		Event:    "pii_redaction_completed",
		TenantID: "tenantA",
		ActorID:  "user1",
		Meta:     map[string]any{"duration_ms": int64(3), "pii_count": 1},
	})

	entries := logs.All()
	assert.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "pii_redaction_completed", fields["event"])
	assert.Equal(t, "tenantA", fields["tenant_id"])
	assert.Equal(t, "user1", fields["actor_id"])
	assert.EqualValues(t, 1, fields["pii_count"])
}

func TestNopSink(t *testing.T) {
	// Must not panic and must accept any event.
	NopSink{}.Emit(context.Background(), Event{Event: "anything"})
}

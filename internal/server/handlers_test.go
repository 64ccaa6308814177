package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dataveil/rgpd-gateway/internal/audit"
	"github.com/dataveil/rgpd-gateway/internal/config"
	"github.com/dataveil/rgpd-gateway/internal/consent"
	"github.com/dataveil/rgpd-gateway/internal/gateway"
	"github.com/dataveil/rgpd-gateway/internal/logger"
	"github.com/dataveil/rgpd-gateway/internal/pii"
)

type captureSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *captureSink) Emit(_ context.Context, e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) all() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}

type testEnv struct {
	server   *Server
	consents *consent.MemoryRepo
	provider *gateway.MockProvider
	sink     *captureSink
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	zl := zaptest.NewLogger(t)
	log := &logger.Logger{Logger: zl}

	detector, err := pii.NewDetector([]string{"all"}, zl)
	require.NoError(t, err)
	sink := &captureSink{}
	redactor := gateway.NewRedactor(detector, zl, sink, 0, gateway.FailOpen)

	provider := gateway.NewMockProvider(nil)
	consents := consent.NewMemoryRepo()
	gw := gateway.New(provider, consents, zl)

	return &testEnv{
		server:   New(cfg, log, gw, redactor, nil),
		consents: consents,
		provider: provider,
		sink:     sink,
	}
}

func (e *testEnv) invoke(t *testing.T, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/invoke", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestInvokeAllowedUseCaseRedactsAndRestores(t *testing.T) {
	env := newTestEnv(t, nil)
	env.consents.Grant("tenant-a", "user-1", "summarization")

	rec := env.invoke(t, map[string]any{
		"tenantId": "tenant-a",
		"actorId":  "user-1",
		"useCase":  "summarization",
		"prompt":   "Contactez Jean Dupont au 06 12 34 56 78",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out invokeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))

	// The mock echoes the redacted prompt; restoration must put the
	// original values back before the response leaves the gateway.
	assert.Contains(t, out.Text, "Jean Dupont")
	assert.Contains(t, out.Text, "06 12 34 56 78")
	assert.True(t, out.PIIDetected)
	assert.Equal(t, "mock", out.Provider)
	assert.Equal(t, "low", string(out.RiskLevel))
	assert.False(t, out.HumanValidationRequired)
}

func TestInvokeProviderOnlySeesTokens(t *testing.T) {
	var seenPrompt string
	env := newTestEnv(t, nil)
	env.provider.ReplyFn = func(req *gateway.Request) (string, error) {
		seenPrompt = req.Prompt
		return "ok", nil
	}

	rec := env.invoke(t, map[string]any{
		"tenantId": "tenant-a",
		"useCase":  "reformulation",
		"prompt":   "Écrire à jean.dupont@example.fr",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotContains(t, seenPrompt, "jean.dupont@example.fr")
	assert.Contains(t, seenPrompt, "[EMAIL_1]")
}

func TestInvokeForbiddenUseCase(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.invoke(t, map[string]any{
		"tenantId": "tenant-a",
		"useCase":  "credit_scoring",
		"prompt":   "hello",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "use_case_rejected", out.Error)
}

func TestInvokeUnknownUseCaseFailsClosed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.invoke(t, map[string]any{
		"tenantId": "tenant-a",
		"useCase":  "brand_new_thing",
		"prompt":   "hello",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "use_case_rejected", out.Error)
	assert.Contains(t, out.Reason, "not in allowlist")
}

func TestInvokeWithoutConsent(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.invoke(t, map[string]any{
		"tenantId": "tenant-a",
		"actorId":  "user-1",
		"useCase":  "summarization",
		"prompt":   "hello",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "consent_violation", out.Error)
	assert.Equal(t, string(consent.ReasonNeverGranted), out.Reason)
}

func TestInvokeConsentPrecedesRedaction(t *testing.T) {
	env := newTestEnv(t, nil)

	body := map[string]any{
		"tenantId": "tenant-a",
		"actorId":  "user-1",
		"useCase":  "summarization",
		"prompt":   "Contactez Jean Dupont, jean.dupont@example.fr",
	}

	// A non-consenting call is rejected before any detection work, so
	// it must leave no pii_* audit events behind.
	rec := env.invoke(t, body)
	require.Equal(t, http.StatusForbidden, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "consent_violation", out.Error)
	assert.Empty(t, env.sink.all())

	// The same call with consent granted runs the full redaction
	// bracket and emits its events.
	env.consents.Grant("tenant-a", "user-1", "summarization")
	rec = env.invoke(t, body)
	require.Equal(t, http.StatusOK, rec.Code)

	names := make([]string, 0, 2)
	for _, e := range env.sink.all() {
		names = append(names, e.Event)
	}
	assert.Contains(t, names, "pii_detected")
	assert.Contains(t, names, "pii_redaction_completed")
}

func TestInvokeAfterRevocation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.consents.Grant("tenant-a", "user-1", "summarization")
	env.consents.Revoke("tenant-a", "user-1", "summarization")

	rec := env.invoke(t, map[string]any{
		"tenantId": "tenant-a",
		"actorId":  "user-1",
		"useCase":  "summarization",
		"prompt":   "hello",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, string(consent.ReasonRevoked), out.Reason)
}

func TestInvokeBadPayload(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/invoke", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.invoke(t, map[string]any{"prompt": "missing tenant and use case"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvokeProviderFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.ReplyFn = func(req *gateway.Request) (string, error) {
		return "", fmt.Errorf("upstream unavailable")
	}

	rec := env.invoke(t, map[string]any{
		"tenantId": "tenant-a",
		"useCase":  "reformulation",
		"prompt":   "hello",
	})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "provider_error", out.Error)
}

func TestInvokeAssistedGenerationFlagsHumanValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.invoke(t, map[string]any{
		"tenantId": "tenant-a",
		"useCase":  "writing_assistance",
		"prompt":   "draft a reply",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out invokeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "high", string(out.RiskLevel))
	assert.True(t, out.HumanValidationRequired)
}

func TestInvokePrivacyDisabledSkipsRedaction(t *testing.T) {
	var seenPrompt string
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Privacy.Enabled = false
	})
	env.provider.ReplyFn = func(req *gateway.Request) (string, error) {
		seenPrompt = req.Prompt
		return "ok", nil
	}

	rec := env.invoke(t, map[string]any{
		"tenantId": "tenant-a",
		"useCase":  "reformulation",
		"prompt":   "Écrire à jean.dupont@example.fr",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, seenPrompt, "jean.dupont@example.fr")
}

func TestInvokeRateLimited(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RPS = 1
		cfg.RateLimit.Burst = 1
	})

	body := map[string]any{
		"tenantId": "tenant-a",
		"useCase":  "reformulation",
		"prompt":   "hello",
	}

	first := env.invoke(t, body)
	require.Equal(t, http.StatusOK, first.Code)

	second := env.invoke(t, body)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	out := decodeError(t, second)
	assert.Equal(t, "rate_limited", out.Error)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestDashboardEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Audit Stream")
}

func TestInvokeLatencyStaysLow(t *testing.T) {
	env := newTestEnv(t, nil)

	body := map[string]any{
		"tenantId": "tenant-a",
		"useCase":  "reformulation",
		"prompt":   "Jean Dupont habite 12 rue de la Paix, 75002 Paris, joignable au 06 12 34 56 78 ou jean.dupont@example.fr",
	}

	start := time.Now()
	rec := env.invoke(t, body)
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, elapsed, 100*time.Millisecond)
}

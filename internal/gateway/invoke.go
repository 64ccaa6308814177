package gateway

import (
	"context"
	"time"

	"github.com/dataveil/rgpd-gateway/internal/consent"
	"go.uber.org/zap"
)

// Gateway is the single legitimate path to the LLM provider. Within
// one invocation the order is fixed: consent check, then provider
// dispatch. Use-case policy enforcement and PII redaction are
// mandatory brackets applied by the caller around Invoke.
type Gateway struct {
	provider Provider
	consents consent.Repo
	logger   *zap.Logger
}

// New wires the gateway. A nil consent repo disables the consent check
// for deployments where the caller enforces it upstream.
func New(provider Provider, consents consent.Repo, logger *zap.Logger) *Gateway {
	return &Gateway{provider: provider, consents: consents, logger: logger}
}

// CheckConsent runs the live consent check for the request's actor
// without dispatching. The HTTP layer front-runs it before any
// redaction work so a non-consenting call costs nothing; Invoke still
// re-checks on every dispatch. A call without an actor, or a gateway
// without a repo, has no consent to check.
func (g *Gateway) CheckConsent(ctx context.Context, req *Request) error {
	if req.ActorID == "" || g.consents == nil {
		return nil
	}
	return consent.Check(ctx, g.consents, req.TenantID, req.ActorID, req.Purpose)
}

// Invoke runs one gateway call. The consent check happens strictly
// before provider dispatch and re-evaluates live state on every call;
// its violation error is propagated untouched.
func (g *Gateway) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if err := g.CheckConsent(ctx, req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := g.provider.Invoke(ctx, req)
	if err != nil {
		g.logger.Error("provider call failed",
			zap.String("provider", g.provider.Name()),
			zap.String("tenant_id", req.TenantID),
			zap.Error(err),
		)
		return nil, err
	}

	g.logger.Debug("provider call completed",
		zap.String("provider", g.provider.Name()),
		zap.String("tenant_id", req.TenantID),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

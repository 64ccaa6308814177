package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dataveil/rgpd-gateway/internal/consent"
	"github.com/dataveil/rgpd-gateway/internal/gateway"
	"github.com/dataveil/rgpd-gateway/internal/policy"
)

type invokeRequest struct {
	TenantID string            `json:"tenantId"`
	ActorID  string            `json:"actorId,omitempty"`
	UseCase  string            `json:"useCase"`
	Purpose  string            `json:"purpose,omitempty"`
	Prompt   string            `json:"prompt,omitempty"`
	Messages []gateway.Message `json:"messages,omitempty"`
}

type invokeResponse struct {
	Text                    string           `json:"text"`
	Provider                string           `json:"provider"`
	Model                   string           `json:"model"`
	Usage                   *gateway.Usage   `json:"usage,omitempty"`
	RiskLevel               policy.RiskLevel `json:"riskLevel"`
	HumanValidationRequired bool             `json:"humanValidationRequired"`
	PIIDetected             bool             `json:"piiDetected"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleInvoke is the only route that reaches the LLM provider. The
// bracket order is fixed: use-case policy, consent, PII redaction,
// dispatch, restoration. Policy and consent violations surface as 403;
// redaction failures do not surface at all in fail-open mode.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	var in invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_payload", Reason: "body is not valid JSON"})
		return
	}
	if in.TenantID == "" || in.UseCase == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_payload", Reason: "tenantId and useCase are required"})
		return
	}
	if in.Purpose == "" {
		in.Purpose = in.UseCase
	}

	result, err := policy.EnforceUseCasePolicy(in.UseCase)
	if err != nil {
		var violation *policy.ViolationError
		if errors.As(err, &violation) {
			log.Info("use case rejected",
				zap.String("use_case", violation.UseCase),
				zap.String("reason", violation.Reason),
			)
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "use_case_rejected", Reason: violation.Reason})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "policy_error"})
		return
	}

	req := &gateway.Request{
		Purpose:  in.Purpose,
		TenantID: in.TenantID,
		ActorID:  in.ActorID,
		Policy:   &result,
		Prompt:   in.Prompt,
		Messages: in.Messages,
	}

	// Consent comes before any redaction work: a non-consenting call
	// pays no detection cost and leaves no pii_* audit events behind.
	// Invoke re-checks live state again at dispatch time.
	if err := s.gateway.CheckConsent(r.Context(), req); err != nil {
		var violation *consent.ViolationError
		if errors.As(err, &violation) {
			log.Info("consent violation",
				zap.String("purpose", violation.Purpose),
				zap.String("reason", string(violation.Reason)),
			)
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "consent_violation", Reason: string(violation.Reason)})
			return
		}
		log.Error("consent check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "consent_unavailable"})
		return
	}

	rctx := &gateway.Context{TenantID: in.TenantID}
	if s.config.Privacy.Enabled {
		var redactErr error
		req, rctx, redactErr = s.redactor.RedactInput(r.Context(), req)
		if redactErr != nil {
			// Fail-closed mode only: the call is rejected rather than
			// sending unredacted content upstream.
			log.Warn("invocation aborted by redaction policy", zap.Error(redactErr))
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "redaction_aborted"})
			return
		}
	}

	start := time.Now()
	resp, err := s.gateway.Invoke(r.Context(), req)
	if err != nil {
		var violation *consent.ViolationError
		if errors.As(err, &violation) {
			log.Info("consent violation",
				zap.String("purpose", violation.Purpose),
				zap.String("reason", string(violation.Reason)),
			)
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "consent_violation", Reason: string(violation.Reason)})
			return
		}
		log.Error("provider dispatch failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "provider_error"})
		return
	}

	restored := s.redactor.RestoreOutput(resp.Text, rctx)

	log.Info("invocation completed",
		zap.String("use_case", in.UseCase),
		zap.String("provider", resp.Provider),
		zap.Duration("provider_duration", time.Since(start)),
		zap.Bool("pii_detected", rctx.PIIDetected),
	)

	writeJSON(w, http.StatusOK, invokeResponse{
		Text:                    restored,
		Provider:                resp.Provider,
		Model:                   resp.Model,
		Usage:                   resp.Usage,
		RiskLevel:               result.RiskLevel,
		HumanValidationRequired: result.HumanValidationRequired,
		PIIDetected:             rctx.PIIDetected,
	})
}

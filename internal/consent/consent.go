// Package consent enforces per-purpose user consent in front of every
// provider call. The repository is a read-only oracle keyed by the
// (tenant, user, purpose) triple and is queried live on every check:
// a revocation must take effect on the very next call, so no caching
// layer is ever placed in between.
package consent

import (
	"context"
	"fmt"
)

// Status is the current grant state of one (tenant, user, purpose)
// triple.
type Status int

const (
	// StatusNone means consent was never granted for the triple.
	StatusNone Status = iota
	// StatusGranted means consent is currently granted.
	StatusGranted
	// StatusRevoked means consent was granted once and later revoked.
	StatusRevoked
)

func (s Status) String() string {
	switch s {
	case StatusGranted:
		return "granted"
	case StatusRevoked:
		return "revoked"
	default:
		return "none"
	}
}

// Repo is the consent capability consumed by the gateway. It must be
// safe for concurrent readers and must reflect the latest grant or
// revoke state.
type Repo interface {
	Status(ctx context.Context, tenantID, userID, purpose string) (Status, error)
}

// Reason distinguishes the two consent failure modes.
type Reason string

const (
	ReasonNeverGranted Reason = "never_granted"
	ReasonRevoked      Reason = "revoked"
)

// ViolationError aborts a gateway call before any provider cost or
// PII exposure is incurred.
type ViolationError struct {
	TenantID string
	UserID   string
	Purpose  string
	Reason   Reason
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("consent %s for purpose %q (tenant=%s user=%s)",
		e.Reason, e.Purpose, e.TenantID, e.UserID)
}

// Check queries the live consent state and returns a ViolationError
// unless consent is currently granted. Repository failures are wrapped
// and surfaced as-is; the check never degrades to allowing the call.
func Check(ctx context.Context, repo Repo, tenantID, userID, purpose string) error {
	status, err := repo.Status(ctx, tenantID, userID, purpose)
	if err != nil {
		return fmt.Errorf("consent lookup failed: %w", err)
	}
	switch status {
	case StatusGranted:
		return nil
	case StatusRevoked:
		return &ViolationError{TenantID: tenantID, UserID: userID, Purpose: purpose, Reason: ReasonRevoked}
	default:
		return &ViolationError{TenantID: tenantID, UserID: userID, Purpose: purpose, Reason: ReasonNeverGranted}
	}
}

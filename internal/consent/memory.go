package consent

import (
	"context"
	"sync"
	"time"
)

type record struct {
	granted   bool
	grantedAt time.Time
	revokedAt time.Time
}

// MemoryRepo is an in-process consent store for tests and local
// development. It honors the same semantics as the Postgres repo:
// keyed by the (tenant, user, purpose) triple, latest state wins.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]record
}

// NewMemoryRepo returns an empty in-memory consent store.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]record)}
}

func key(tenantID, userID, purpose string) string {
	return tenantID + "\x00" + userID + "\x00" + purpose
}

// Grant records consent for the triple.
func (r *MemoryRepo) Grant(tenantID, userID, purpose string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key(tenantID, userID, purpose)] = record{granted: true, grantedAt: time.Now()}
}

// Revoke withdraws a previously granted consent.
func (r *MemoryRepo) Revoke(tenantID, userID, purpose string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(tenantID, userID, purpose)
	rec, ok := r.records[k]
	if !ok {
		return
	}
	rec.granted = false
	rec.revokedAt = time.Now()
	r.records[k] = rec
}

// Status implements Repo.
func (r *MemoryRepo) Status(_ context.Context, tenantID, userID, purpose string) (Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key(tenantID, userID, purpose)]
	if !ok {
		return StatusNone, nil
	}
	if rec.granted {
		return StatusGranted, nil
	}
	return StatusRevoked, nil
}

// Package ledger defines the idempotency guard for bonus grants.
package ledger

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/podium/internal/domain/model"
)

// Outcome is the result of a reservation attempt.
type Outcome int

const (
	// Reserved means this call created the grant record.
	Reserved Outcome = iota + 1
	// AlreadyGranted means a record for the key already existed.
	AlreadyGranted
)

func (o Outcome) String() string {
	switch o {
	case Reserved:
		return "reserved"
	case AlreadyGranted:
		return "already_granted"
	default:
		return "unknown"
	}
}

// Ledger records bonus grants, at most one per key.
type Ledger interface {
	// Reserve atomically inserts g. The insert attempt is the decision:
	// a conflicting key yields AlreadyGranted, never a read-then-write.
	Reserve(ctx context.Context, g model.BonusGrant) (Outcome, error)

	// Release deletes the record for key if it is still the grant with
	// grantID, so a corrected retry can succeed. A record written by a later
	// reservation is left alone. Only used to compensate a reservation whose
	// score update failed. Releasing an absent key is not an error.
	Release(ctx context.Context, key model.GrantKey, grantID string) error
}

// InMemoryLedger implements Ledger with a mutex-guarded map.
// Grants live for the lifetime of the process.
type InMemoryLedger struct {
	mu     sync.Mutex
	grants map[model.GrantKey]model.BonusGrant
	size   atomic.Int64
}

// NewInMemoryLedger creates an empty in-memory ledger.
func NewInMemoryLedger(opts ...Option) *InMemoryLedger {
	l := &InMemoryLedger{}
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	l.grants = make(map[model.GrantKey]model.BonusGrant, cfg.capacity)
	return l
}

// Reserve implements Ledger.
func (l *InMemoryLedger) Reserve(ctx context.Context, g model.BonusGrant) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return 0, model.WrapKind("ledger.reserve", model.ErrDataSource, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := g.Key()
	if _, exists := l.grants[key]; exists {
		return AlreadyGranted, nil
	}
	l.grants[key] = g
	l.size.Add(1)
	return Reserved, nil
}

// Release implements Ledger.
func (l *InMemoryLedger) Release(_ context.Context, key model.GrantKey, grantID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if g, exists := l.grants[key]; exists && g.ID == grantID {
		delete(l.grants, key)
		l.size.Add(-1)
	}
	return nil
}

// Lookup returns the grant stored for key, if any.
func (l *InMemoryLedger) Lookup(key model.GrantKey) (model.BonusGrant, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.grants[key]
	return g, ok
}

// Ping always succeeds.
func (l *InMemoryLedger) Ping(context.Context) error { return nil }

// Size returns the number of grants held.
func (l *InMemoryLedger) Size() int64 {
	return l.size.Load()
}

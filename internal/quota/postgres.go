package quota

import (
	"context"
	"fmt"
	"time"
)

// Store is the storage contract the Postgres ledger needs. Implemented by
// *storage.DB; the indirection keeps this package free of a pgx dependency
// and lets tests substitute a fake.
type Store interface {
	AdmitQuota(ctx context.Context, action, scopeKey string, limit int, window time.Duration) (admitted bool, count int, windowStart time.Time, err error)
}

// PostgresLedger persists quota windows in Postgres. The admission decision
// happens inside a single conditional upsert, so concurrent requests for the
// same key serialize on the row and cannot over-admit.
type PostgresLedger struct {
	store Store
}

// NewPostgresLedger creates a ledger backed by the given store.
func NewPostgresLedger(store Store) *PostgresLedger {
	return &PostgresLedger{store: store}
}

// Admit attempts one admission for (rule.Action, scopeKey).
func (l *PostgresLedger) Admit(ctx context.Context, rule Rule, scopeKey string) (Result, error) {
	admitted, count, windowStart, err := l.store.AdmitQuota(ctx, rule.Action, scopeKey, rule.Limit, rule.Window)
	if err != nil {
		return Result{}, fmt.Errorf("quota: admit %s/%s: %w", rule.Action, scopeKey, err)
	}

	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   admitted,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(rule.Window),
	}, nil
}

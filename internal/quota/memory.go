package quota

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count       int
	windowStart time.Time
	lastAttempt time.Time
}

// MemoryLedger implements Ledger with in-process windows. Used in tests and
// single-instance development deployments; production uses PostgresLedger so
// windows survive restarts and are shared across instances.
type MemoryLedger struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Admit attempts one admission for (rule.Action, scopeKey). The whole
// reset-or-increment decision runs under one lock, mirroring the atomicity
// of the Postgres upsert.
func (l *MemoryLedger) Admit(_ context.Context, rule Rule, scopeKey string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := rule.Action + "\x00" + scopeKey

	w, ok := l.windows[key]
	if !ok || now.Sub(w.windowStart) > rule.Window {
		l.windows[key] = &window{count: 1, windowStart: now, lastAttempt: now}
		return l.result(rule, true, 1, now), nil
	}

	if w.count >= rule.Limit {
		// Rejected without mutation.
		return l.result(rule, false, w.count, w.windowStart), nil
	}

	w.count++
	w.lastAttempt = now
	return l.result(rule, true, w.count, w.windowStart), nil
}

func (l *MemoryLedger) result(rule Rule, allowed bool, count int, windowStart time.Time) Result {
	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   allowed,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(rule.Window),
	}
}

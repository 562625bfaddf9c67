// Package quota enforces persistent fixed-window usage ceilings on
// generation actions, keyed by (action, scope). The window is reset
// wholesale on expiry rather than continuously rolling, which means a
// caller can spend a full ceiling at the end of one window and another
// immediately after rollover. That boundary straddle is an accepted
// property of the algorithm, not a defect.
//
// Unlike the HTTP-layer request limiter (internal/ratelimit), which fails
// open on malfunction, quota admission fails closed: if the ledger cannot
// be consulted, the generation is refused, because every admission spends
// real provider budget.
package quota

import (
	"context"
	"strconv"
	"time"
)

// Rule describes one quota: the action label stored in the ledger, the
// admission ceiling, and the window duration.
type Rule struct {
	Action string
	Limit  int
	Window time.Duration
}

// Result reports the outcome of one admission attempt.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// FormatHeaders returns standard rate-limit headers for HTTP responses.
func (r Result) FormatHeaders() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(r.ResetAt.Unix(), 10),
	}
}

// Ledger admits or rejects actions against persistent quota windows.
// Implementations must make the reset-or-increment decision atomically with
// respect to concurrent admissions for the same key: two requests racing on
// the last slot must not both be admitted.
type Ledger interface {
	Admit(ctx context.Context, rule Rule, scopeKey string) (Result, error)
}

// DocumentGenerationRule is the per-organization quota for document
// generation actions.
var DocumentGenerationRule = Rule{
	Action: "document_generation",
	Limit:  100,
	Window: time.Hour,
}

// TrainingGenerationRule builds the per-subject quota for one training
// content action. Each action gets its own window so a quiz burst does not
// starve flashcard generation.
func TrainingGenerationRule(action string) Rule {
	return Rule{
		Action: "training_" + action,
		Limit:  50,
		Window: time.Hour,
	}
}

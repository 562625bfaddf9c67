// Package conversation maintains the append-only message history of each
// document's assistant dialogue.
package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen/internal/model"
)

// DefaultTailLimit bounds how many turns of history are injected into a
// completion request. This is the primary token-budget control on the
// "memory" axis, independent of how much history exists.
const DefaultTailLimit = 20

// Store is the storage contract for conversation turns.
// Implemented by *storage.DB.
type Store interface {
	AppendTurn(ctx context.Context, t model.Turn) (model.Turn, error)
	RecentTurns(ctx context.Context, documentID uuid.UUID, limit int) ([]model.Turn, error)
}

// Log reads and appends conversation turns for documents.
type Log struct {
	store Store
}

// NewLog creates a Log over the given store.
func NewLog(store Store) *Log {
	return &Log{store: store}
}

// Append persists one turn. The orchestrator must not report success to the
// caller until Append has returned, so a crash between completion and
// persistence cannot lose the turn.
func (l *Log) Append(ctx context.Context, t model.Turn) (model.Turn, error) {
	turn, err := l.store.AppendTurn(ctx, t)
	if err != nil {
		return model.Turn{}, fmt.Errorf("conversation: append: %w", err)
	}
	return turn, nil
}

// Tail returns the most recent limit turns for a document in chronological
// order (oldest first), so the sequence reconstructs a valid dialogue.
// limit <= 0 uses DefaultTailLimit.
func (l *Log) Tail(ctx context.Context, documentID uuid.UUID, limit int) ([]model.Turn, error) {
	if limit <= 0 {
		limit = DefaultTailLimit
	}

	turns, err := l.store.RecentTurns(ctx, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: tail: %w", err)
	}

	// Storage returns newest-first; reverse to chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

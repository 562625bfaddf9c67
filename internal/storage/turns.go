package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen/internal/model"
)

// AppendTurn inserts a conversation turn. Turns are append-only: there is
// deliberately no update or delete method for this table.
func (db *DB) AppendTurn(ctx context.Context, t model.Turn) (model.Turn, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	var promptTokens, completionTokens *int
	if t.Usage != nil {
		promptTokens = &t.Usage.PromptTokens
		completionTokens = &t.Usage.CompletionTokens
	}

	var snapshot []byte
	if t.ContextSnapshot != nil {
		var err error
		snapshot, err = json.Marshal(t.ContextSnapshot)
		if err != nil {
			return model.Turn{}, fmt.Errorf("storage: marshal context snapshot: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO conversation_turns
		 (id, document_id, role, content, prompt_tokens, completion_tokens, context_snapshot, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.DocumentID, t.Role, t.Content, promptTokens, completionTokens, snapshot, t.CreatedAt,
	)
	if err != nil {
		return model.Turn{}, fmt.Errorf("storage: append turn: %w", err)
	}
	return t, nil
}

// RecentTurns returns up to limit turns for a document, newest first.
// The conversation package reverses them to chronological order.
func (db *DB) RecentTurns(ctx context.Context, documentID uuid.UUID, limit int) ([]model.Turn, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, document_id, role, content, prompt_tokens, completion_tokens,
		 context_snapshot, created_at
		 FROM conversation_turns WHERE document_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		documentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: recent turns: %w", err)
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		var t model.Turn
		var promptTokens, completionTokens *int
		var snapshot []byte
		if err := rows.Scan(&t.ID, &t.DocumentID, &t.Role, &t.Content,
			&promptTokens, &completionTokens, &snapshot, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan turn: %w", err)
		}
		if promptTokens != nil && completionTokens != nil {
			t.Usage = &model.TokenUsage{
				PromptTokens:     *promptTokens,
				CompletionTokens: *completionTokens,
			}
		}
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &t.ContextSnapshot); err != nil {
				return nil, fmt.Errorf("storage: unmarshal context snapshot: %w", err)
			}
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen/internal/model"
)

// OrgTokenUsage aggregates token consumption across all conversations in an
// organization. Turns without usage (user turns) contribute to message
// count but not to token totals.
func (db *DB) OrgTokenUsage(ctx context.Context, orgID uuid.UUID) (model.OrgUsage, error) {
	var u model.OrgUsage
	err := db.pool.QueryRow(ctx,
		`SELECT
		   COALESCE(SUM(t.prompt_tokens), 0),
		   COALESCE(SUM(t.completion_tokens), 0),
		   COUNT(t.id),
		   COUNT(DISTINCT t.document_id)
		 FROM conversation_turns t
		 JOIN documents d ON d.id = t.document_id
		 WHERE d.org_id = $1`,
		orgID,
	).Scan(&u.PromptTokens, &u.CompletionTokens, &u.MessageCount, &u.DocumentCount)
	if err != nil {
		return model.OrgUsage{}, fmt.Errorf("storage: org token usage: %w", err)
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u, nil
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen/internal/model"
)

// RecentKnowledgeDocs returns up to limit knowledge-base entries for an org,
// newest first. This is the candidate-fetch stage of retrieval: the bound is
// a deliberate scalability ceiling, and scoring happens in-process so the
// ranking stays transparent.
func (db *DB) RecentKnowledgeDocs(ctx context.Context, orgID uuid.UUID, limit int) ([]model.KnowledgeDoc, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, org_id, title, content, tags, created_at
		 FROM knowledge_docs WHERE org_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		orgID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: recent knowledge docs: %w", err)
	}
	defer rows.Close()

	var docs []model.KnowledgeDoc
	for rows.Next() {
		var d model.KnowledgeDoc
		if err := rows.Scan(&d.ID, &d.OrgID, &d.Title, &d.Content, &d.Tags, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan knowledge doc: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// CreateKnowledgeDoc inserts a knowledge-base entry.
func (db *DB) CreateKnowledgeDoc(ctx context.Context, d model.KnowledgeDoc) (model.KnowledgeDoc, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO knowledge_docs (id, org_id, title, content, tags, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.OrgID, d.Title, d.Content, d.Tags, d.CreatedAt,
	)
	if err != nil {
		return model.KnowledgeDoc{}, fmt.Errorf("storage: create knowledge doc: %w", err)
	}
	return d, nil
}

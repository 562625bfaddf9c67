package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lumenlearn/lumen/internal/model"
)

// GetDocument retrieves a document by ID. Returns ErrNotFound if absent.
func (db *DB) GetDocument(ctx context.Context, id uuid.UUID) (model.Document, error) {
	var d model.Document
	err := db.pool.QueryRow(ctx,
		`SELECT id, org_id, project_id, doc_type, title, version, status,
		 COALESCE(local_context, ''), created_at, updated_at
		 FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.OrgID, &d.ProjectID, &d.Type, &d.Title, &d.Version,
		&d.Status, &d.LocalContext, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, ErrNotFound
		}
		return model.Document{}, fmt.Errorf("storage: get document: %w", err)
	}
	return d, nil
}

// GetSections returns a document's sections ordered by position.
func (db *DB) GetSections(ctx context.Context, documentID uuid.UUID) ([]model.Section, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, position, content
		 FROM document_sections WHERE document_id = $1 ORDER BY position`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get sections: %w", err)
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.Title, &s.Position, &s.Content); err != nil {
			return nil, fmt.Errorf("storage: scan section: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// GetSection returns one section of a document. Returns ErrNotFound if absent.
func (db *DB) GetSection(ctx context.Context, documentID uuid.UUID, sectionID string) (model.Section, error) {
	var s model.Section
	err := db.pool.QueryRow(ctx,
		`SELECT id, title, position, content
		 FROM document_sections WHERE document_id = $1 AND id = $2`,
		documentID, sectionID,
	).Scan(&s.ID, &s.Title, &s.Position, &s.Content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Section{}, ErrNotFound
		}
		return model.Section{}, fmt.Errorf("storage: get section: %w", err)
	}
	return s, nil
}

// UpdateSectionContent writes generated content into a section and touches
// the parent document's updated_at. Returns ErrNotFound if the section
// does not exist.
func (db *DB) UpdateSectionContent(ctx context.Context, documentID uuid.UUID, sectionID, content string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE document_sections SET content = $3
		 WHERE document_id = $1 AND id = $2`,
		documentID, sectionID, content,
	)
	if err != nil {
		return fmt.Errorf("storage: update section content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := db.pool.Exec(ctx,
		`UPDATE documents SET updated_at = $2 WHERE id = $1`,
		documentID, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("storage: touch document: %w", err)
	}
	return nil
}

// GetCrossRefs returns the document-to-document references for a document.
func (db *DB) GetCrossRefs(ctx context.Context, documentID uuid.UUID) ([]model.CrossRef, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT document_id, ref_document_id, COALESCE(description, '')
		 FROM document_refs WHERE document_id = $1`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get cross refs: %w", err)
	}
	defer rows.Close()

	var refs []model.CrossRef
	for rows.Next() {
		var r model.CrossRef
		if err := rows.Scan(&r.DocumentID, &r.RefDocumentID, &r.Description); err != nil {
			return nil, fmt.Errorf("storage: scan cross ref: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// CreateDocument inserts a document. Used by the import hook and tests;
// document authoring itself lives in the editor service.
func (db *DB) CreateDocument(ctx context.Context, d model.Document) (model.Document, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO documents (id, org_id, project_id, doc_type, title, version,
		 status, local_context, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.OrgID, d.ProjectID, d.Type, d.Title, d.Version,
		d.Status, d.LocalContext, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return model.Document{}, fmt.Errorf("storage: create document: %w", err)
	}
	return d, nil
}

// CreateSection inserts a section row for a document.
func (db *DB) CreateSection(ctx context.Context, documentID uuid.UUID, s model.Section) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO document_sections (id, document_id, position, title, content)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, documentID, s.Position, s.Title, s.Content,
	)
	if err != nil {
		return fmt.Errorf("storage: create section: %w", err)
	}
	return nil
}

// CreateCrossRef inserts a document cross reference.
func (db *DB) CreateCrossRef(ctx context.Context, r model.CrossRef) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO document_refs (document_id, ref_document_id, description)
		 VALUES ($1, $2, $3)`,
		r.DocumentID, r.RefDocumentID, r.Description,
	)
	if err != nil {
		return fmt.Errorf("storage: create cross ref: %w", err)
	}
	return nil
}

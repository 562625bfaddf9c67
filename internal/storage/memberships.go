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

// GetMembership retrieves a membership by its composite key.
// Returns ErrNotFound when the subject has no membership in the org.
func (db *DB) GetMembership(ctx context.Context, subjectID string, orgID uuid.UUID) (model.Membership, error) {
	var m model.Membership
	err := db.pool.QueryRow(ctx,
		`SELECT subject_id, org_id, role, status, created_at
		 FROM memberships WHERE subject_id = $1 AND org_id = $2`,
		subjectID, orgID,
	).Scan(&m.SubjectID, &m.OrgID, &m.Role, &m.Status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Membership{}, ErrNotFound
		}
		return model.Membership{}, fmt.Errorf("storage: get membership: %w", err)
	}
	return m, nil
}

// UpsertMembership inserts or replaces a membership row. Memberships are
// owned by the account service; this method exists for the sync hook that
// mirrors them into Lumen's database, and for test fixtures.
func (db *DB) UpsertMembership(ctx context.Context, m model.Membership) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO memberships (subject_id, org_id, role, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (subject_id, org_id) DO UPDATE SET role = $3, status = $4`,
		m.SubjectID, m.OrgID, m.Role, m.Status, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert membership: %w", err)
	}
	return nil
}

// CreateOrganization inserts a new organization.
func (db *DB) CreateOrganization(ctx context.Context, id uuid.UUID, name string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO organizations (id, name, created_at) VALUES ($1, $2, $3)`,
		id, name, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: create organization: %w", err)
	}
	return nil
}

// Package authz resolves whether a subject may run generation actions
// against a document. It is shared by the HTTP handlers and the MCP server
// without creating a circular dependency (both import this package).
//
// The guard runs before any quota admission, so an unauthorized caller can
// never burn another tenant's quota.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen/internal/model"
	"github.com/lumenlearn/lumen/internal/storage"
)

// Denial reasons. Stable machine-readable strings surfaced to callers;
// deliberately free of tenant internals.
const (
	ReasonDocumentNotFound        = "document not found"
	ReasonNotAMember              = "not a member"
	ReasonMembershipNotActive     = "membership not active"
	ReasonInsufficientPermissions = "insufficient permissions"
)

// Store is the read-only storage contract the guard needs.
// Implemented by *storage.DB.
type Store interface {
	GetDocument(ctx context.Context, id uuid.UUID) (model.Document, error)
	GetMembership(ctx context.Context, subjectID string, orgID uuid.UUID) (model.Membership, error)
}

// Verdict is the outcome of an authorization check. On success Document and
// Membership are populated so the orchestrator does not re-fetch them.
type Verdict struct {
	Authorized bool
	Reason     string
	Document   model.Document
	Membership model.Membership
}

// Authorize resolves subject → document → organization → membership → role.
// A missing document or membership yields an unauthorized verdict, not an
// error; errors are reserved for storage failures. No side effects.
func Authorize(ctx context.Context, store Store, subjectID string, documentID uuid.UUID) (Verdict, error) {
	doc, err := store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Verdict{Reason: ReasonDocumentNotFound}, nil
		}
		return Verdict{}, fmt.Errorf("authz: get document: %w", err)
	}

	membership, err := store.GetMembership(ctx, subjectID, doc.OrgID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Verdict{Reason: ReasonNotAMember}, nil
		}
		return Verdict{}, fmt.Errorf("authz: get membership: %w", err)
	}

	if membership.Status != model.MembershipActive {
		return Verdict{Reason: ReasonMembershipNotActive}, nil
	}
	if !membership.Role.CanGenerate() {
		return Verdict{Reason: ReasonInsufficientPermissions}, nil
	}

	return Verdict{Authorized: true, Document: doc, Membership: membership}, nil
}

// AuthorizeOrg checks that a subject holds an active membership in an
// organization, for org-scoped reads such as the usage endpoint. Any active
// role qualifies — reading aggregate usage is not a generation action.
func AuthorizeOrg(ctx context.Context, store Store, subjectID string, orgID uuid.UUID) (Verdict, error) {
	membership, err := store.GetMembership(ctx, subjectID, orgID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Verdict{Reason: ReasonNotAMember}, nil
		}
		return Verdict{}, fmt.Errorf("authz: get membership: %w", err)
	}
	if membership.Status != model.MembershipActive {
		return Verdict{Reason: ReasonMembershipNotActive}, nil
	}
	return Verdict{Authorized: true, Membership: membership}, nil
}

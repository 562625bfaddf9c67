// Package model defines the domain types shared across the Lumen service:
// memberships and roles, documents and sections, knowledge-base entries,
// conversation turns, and the HTTP API envelope.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's role within an organization.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManagement Role = "management"
	RoleOperator   Role = "operator"
	RoleViewer     Role = "viewer"
)

// CanGenerate reports whether the role may invoke AI generation endpoints.
// Viewers can read documents but never spend the organization's quota.
func (r Role) CanGenerate() bool {
	switch r {
	case RoleAdmin, RoleManagement, RoleOperator:
		return true
	default:
		return false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManagement, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// MembershipStatus is the lifecycle state of an organization membership.
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipInvited   MembershipStatus = "invited"
	MembershipSuspended MembershipStatus = "suspended"
)

// Membership links a subject to an organization with a role.
// Memberships are owned by the account service; Lumen only reads them.
type Membership struct {
	SubjectID string           `json:"subject_id"`
	OrgID     uuid.UUID        `json:"org_id"`
	Role      Role             `json:"role"`
	Status    MembershipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// DocumentType classifies a generatable document. The set is closed; the
// prompt assembler falls back to a generic instruction for anything else.
type DocumentType string

const (
	DocTypePolicy         DocumentType = "policy"
	DocTypeProcedure      DocumentType = "procedure"
	DocTypeRiskAssessment DocumentType = "risk_assessment"
	DocTypeToolboxTalk    DocumentType = "toolbox_talk"
	DocTypeTrainingModule DocumentType = "training_module"
)

// Document is a generatable compliance document. Lumen reads document state
// for prompt assembly and writes section content produced by the assistant;
// everything else is owned by the document editor.
type Document struct {
	ID           uuid.UUID    `json:"id"`
	OrgID        uuid.UUID    `json:"org_id"`
	ProjectID    *uuid.UUID   `json:"project_id,omitempty"`
	Type         DocumentType `json:"type"`
	Title        string       `json:"title"`
	Version      string       `json:"version"`
	Status       string       `json:"status"`
	LocalContext string       `json:"local_context,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Section is one section of a document. Content is nil until something
// (a human or the assistant) has written it.
type Section struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Position int     `json:"position"`
	Content  *string `json:"content,omitempty"`
}

// HasContent reports whether the section has non-empty content.
func (s Section) HasContent() bool {
	return s.Content != nil && *s.Content != ""
}

// CrossRef describes a relationship from one document to another,
// rendered into the prompt so the model can keep documents consistent.
type CrossRef struct {
	DocumentID    uuid.UUID `json:"document_id"`
	RefDocumentID uuid.UUID `json:"ref_document_id"`
	Description   string    `json:"description"`
}

// Project carries organization-level shared context injected into prompts.
// All fields except Name are optional; empty fields are elided from the
// rendered prompt rather than emitted as blank placeholders.
type Project struct {
	ID                uuid.UUID `json:"id"`
	OrgID             uuid.UUID `json:"org_id"`
	Name              string    `json:"name"`
	Industry          string    `json:"industry,omitempty"`
	CompanySize       string    `json:"company_size,omitempty"`
	RiskProfile       string    `json:"risk_profile,omitempty"`
	RegulatoryContext string    `json:"regulatory_context,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// KnowledgeDoc is one entry in an organization's reference corpus.
type KnowledgeDoc struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnRole tags a conversation turn.
type TurnRole string

const (
	TurnUser      TurnRole = "user"
	TurnAssistant TurnRole = "assistant"
	TurnSystem    TurnRole = "system"
)

// TokenUsage records provider token counts for one completion.
// Attached to assistant and system turns; never to user turns.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u TokenUsage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Turn is one message in a document's conversation. Turns are append-only:
// created once, never mutated or deleted.
type Turn struct {
	ID              uuid.UUID      `json:"id"`
	DocumentID      uuid.UUID      `json:"document_id"`
	Role            TurnRole       `json:"role"`
	Content         string         `json:"content"`
	Usage           *TokenUsage    `json:"usage,omitempty"`
	ContextSnapshot map[string]any `json:"context_snapshot,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// OrgUsage aggregates token consumption across an organization's
// conversations for the usage endpoint.
type OrgUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	MessageCount     int `json:"message_count"`
	DocumentCount    int `json:"document_count"`
}

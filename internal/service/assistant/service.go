// Package assistant provides the shared business logic for AI generation
// operations.
//
// Both the HTTP API and MCP server delegate to this service, eliminating
// duplicated logic and ensuring consistent behavior (authorization, quota
// admission, retrieval, prompt assembly, persistence) across all interfaces.
//
// Every operation runs the same linear pipeline: validate input, authorize,
// admit against the quota ledger, gather context, render the prompt, invoke
// the provider, interpret the response, persist turns. Quota is charged per
// admitted attempt: a provider failure after admission does not refund the
// window, because the provider call was made and cost real budget.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lumenlearn/lumen/internal/authz"
	"github.com/lumenlearn/lumen/internal/conversation"
	"github.com/lumenlearn/lumen/internal/extract"
	"github.com/lumenlearn/lumen/internal/model"
	"github.com/lumenlearn/lumen/internal/prompt"
	"github.com/lumenlearn/lumen/internal/provider"
	"github.com/lumenlearn/lumen/internal/quota"
	"github.com/lumenlearn/lumen/internal/retrieval"
	"github.com/lumenlearn/lumen/internal/storage"
	"github.com/lumenlearn/lumen/internal/telemetry"
)

// Service-level sentinel errors, mapped to API error codes by the HTTP and
// MCP layers.
var (
	ErrInvalidInput        = errors.New("assistant: invalid input")
	ErrPermissionDenied    = errors.New("assistant: permission denied")
	ErrNotFound            = errors.New("assistant: not found")
	ErrQuotaExceeded       = errors.New("assistant: quota exceeded")
	ErrProviderUnavailable = errors.New("assistant: provider not configured")
)

// QuotaError carries the admission details of a rejected generation so the
// transport can surface the ceiling and reset time. Matches ErrQuotaExceeded
// under errors.Is.
type QuotaError struct {
	Result quota.Result
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("assistant: quota exceeded: resets at %s", e.Result.ResetAt.UTC().Format(time.RFC3339))
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// wrongAnswerFallback is returned when feedback generation fails. The
// feedback endpoint never surfaces a hard failure to the learner.
const wrongAnswerFallback = "That's not quite right. Review the correct answer above and compare it " +
	"with your choice; the difference is where the key point lives. Take another look at the related " +
	"lesson material before moving on."

const defaultMaxTokens = 4096

// Store is the storage contract the orchestrator needs beyond what its
// component packages already wrap. Implemented by *storage.DB.
type Store interface {
	authz.Store
	GetSections(ctx context.Context, documentID uuid.UUID) ([]model.Section, error)
	GetSection(ctx context.Context, documentID uuid.UUID, sectionID string) (model.Section, error)
	UpdateSectionContent(ctx context.Context, documentID uuid.UUID, sectionID, content string) error
	GetCrossRefs(ctx context.Context, documentID uuid.UUID) ([]model.CrossRef, error)
	GetProject(ctx context.Context, id uuid.UUID) (model.Project, error)
	OrgTokenUsage(ctx context.Context, orgID uuid.UUID) (model.OrgUsage, error)
}

// Service composes the generation pipeline. A nil client puts the service in
// degraded mode: every generation operation fails fast with
// ErrProviderUnavailable before any quota or retrieval work.
type Service struct {
	store  Store
	ledger quota.Ledger
	index  *retrieval.Index
	log    *conversation.Log
	client provider.Client
	logger *slog.Logger

	completionDuration metric.Float64Histogram
	tokensConsumed     metric.Int64Counter
}

// New creates the assistant Service. client may be nil when no provider
// credential is configured.
func New(store Store, ledger quota.Ledger, index *retrieval.Index, log *conversation.Log, client provider.Client, logger *slog.Logger) *Service {
	meter := telemetry.Meter("lumen/assistant")
	compDur, _ := meter.Float64Histogram("lumen.completion.duration",
		metric.WithDescription("Time spent in provider completion calls (ms)"),
		metric.WithUnit("ms"),
	)
	tokens, _ := meter.Int64Counter("lumen.completion.tokens",
		metric.WithDescription("Total provider tokens consumed"),
	)
	return &Service{
		store:              store,
		ledger:             ledger,
		index:              index,
		log:                log,
		client:             client,
		logger:             logger,
		completionDuration: compDur,
		tokensConsumed:     tokens,
	}
}

// Configured reports whether a completion provider is available.
func (s *Service) Configured() bool { return s.client != nil }

// modelName is safe to call in degraded mode.
func (s *Service) modelName() string {
	if s.client == nil {
		return ""
	}
	return s.client.ModelName()
}

func (s *Service) complete(ctx context.Context, req provider.Request) (provider.Completion, error) {
	start := time.Now()
	comp, err := s.client.Complete(ctx, req)
	s.completionDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return provider.Completion{}, err
	}
	s.tokensConsumed.Add(ctx, int64(comp.Usage.Total()))
	return comp, nil
}

// guardDocument authorizes and quota-admits a document-scoped generation.
// Order matters: authorization first, so an unauthorized caller can never
// create or increment a quota window for someone else's organization.
func (s *Service) guardDocument(ctx context.Context, subjectID string, documentID uuid.UUID) (authz.Verdict, error) {
	if s.client == nil {
		return authz.Verdict{}, ErrProviderUnavailable
	}

	verdict, err := authz.Authorize(ctx, s.store, subjectID, documentID)
	if err != nil {
		return authz.Verdict{}, err
	}
	if !verdict.Authorized {
		if verdict.Reason == authz.ReasonDocumentNotFound {
			return authz.Verdict{}, fmt.Errorf("%w: %s", ErrNotFound, verdict.Reason)
		}
		return authz.Verdict{}, fmt.Errorf("%w: %s", ErrPermissionDenied, verdict.Reason)
	}

	res, err := s.ledger.Admit(ctx, quota.DocumentGenerationRule, verdict.Document.OrgID.String())
	if err != nil {
		// Fail closed: an unreachable ledger refuses the generation.
		return authz.Verdict{}, fmt.Errorf("assistant: quota admission: %w", err)
	}
	if !res.Allowed {
		return authz.Verdict{}, &QuotaError{Result: res}
	}
	return verdict, nil
}

// guardTraining quota-admits a training-content generation, keyed by subject.
func (s *Service) guardTraining(ctx context.Context, subjectID, action string) error {
	if s.client == nil {
		return ErrProviderUnavailable
	}
	res, err := s.ledger.Admit(ctx, quota.TrainingGenerationRule(action), subjectID)
	if err != nil {
		return fmt.Errorf("assistant: quota admission: %w", err)
	}
	if !res.Allowed {
		return &QuotaError{Result: res}
	}
	return nil
}

// documentContext is everything gathered for prompt assembly.
type documentContext struct {
	sections  []model.Section
	crossRefs []model.CrossRef
	project   *model.Project
	refs      []model.KnowledgeDoc
	history   []model.Turn
}

// gatherContext fetches sections, cross references, project context,
// retrieval matches, and the conversation tail. Retrieval and the history
// tail run concurrently; both are read-only.
func (s *Service) gatherContext(ctx context.Context, doc model.Document, query string) (documentContext, error) {
	var dc documentContext

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sections, err := s.store.GetSections(gctx, doc.ID)
		if err != nil {
			return fmt.Errorf("assistant: sections: %w", err)
		}
		dc.sections = sections
		return nil
	})
	g.Go(func() error {
		refs, err := s.store.GetCrossRefs(gctx, doc.ID)
		if err != nil {
			return fmt.Errorf("assistant: cross refs: %w", err)
		}
		dc.crossRefs = refs
		return nil
	})
	g.Go(func() error {
		// Search never fails; a broken knowledge base degrades quality,
		// not availability.
		matches := s.index.Search(gctx, doc.OrgID, query, prompt.MaxReferenceDocs)
		docs := make([]model.KnowledgeDoc, len(matches))
		for i, m := range matches {
			docs[i] = m.Doc
		}
		dc.refs = docs
		return nil
	})
	g.Go(func() error {
		history, err := s.log.Tail(gctx, doc.ID, conversation.DefaultTailLimit)
		if err != nil {
			return fmt.Errorf("assistant: history: %w", err)
		}
		dc.history = history
		return nil
	})
	if doc.ProjectID != nil {
		g.Go(func() error {
			project, err := s.store.GetProject(gctx, *doc.ProjectID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("assistant: project: %w", err)
			}
			dc.project = &project
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return documentContext{}, err
	}
	return dc, nil
}

func knowledgeDocIDs(refs []model.KnowledgeDoc) []string {
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID.String()
	}
	return ids
}

func historyTurns(history []model.Turn) []provider.Turn {
	out := make([]provider.Turn, 0, len(history))
	for _, t := range history {
		// System turns record generation events, not dialogue; they are
		// not replayed to the provider.
		if t.Role == model.TurnSystem {
			continue
		}
		out = append(out, provider.Turn{Role: t.Role, Content: t.Content})
	}
	return out
}

// SendMessage runs one document chat exchange for the subject.
func (s *Service) SendMessage(ctx context.Context, subjectID string, documentID uuid.UUID, message string) (model.SendMessageResponse, error) {
	if err := model.ValidateMessage(message); err != nil {
		return model.SendMessageResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("lumen.document_id", documentID.String()),
		attribute.String("lumen.operation", "send_message"),
	)

	verdict, err := s.guardDocument(ctx, subjectID, documentID)
	if err != nil {
		return model.SendMessageResponse{}, err
	}
	doc := verdict.Document

	dc, err := s.gatherContext(ctx, doc, message)
	if err != nil {
		return model.SendMessageResponse{}, err
	}

	// The user turn is appended before the completion is requested so the
	// log never shows an assistant reply without the message it answers.
	if _, err := s.log.Append(ctx, model.Turn{
		DocumentID: doc.ID,
		Role:       model.TurnUser,
		Content:    message,
	}); err != nil {
		return model.SendMessageResponse{}, err
	}

	system := prompt.Render(doc, dc.sections, dc.project, dc.refs, dc.crossRefs)
	turns := append(historyTurns(dc.history), provider.Turn{Role: model.TurnUser, Content: message})

	comp, err := s.complete(ctx, provider.Request{System: system, Turns: turns, MaxTokens: defaultMaxTokens})
	if err != nil {
		return model.SendMessageResponse{}, err
	}

	answer := extract.TextOrFallback(comp.Text, "I wasn't able to generate a response. Please try again.")
	usage := comp.Usage
	docsUsed := knowledgeDocIDs(dc.refs)

	if _, err := s.log.Append(ctx, model.Turn{
		DocumentID:      doc.ID,
		Role:            model.TurnAssistant,
		Content:         answer,
		Usage:           &usage,
		ContextSnapshot: map[string]any{"knowledge_doc_ids": docsUsed},
	}); err != nil {
		return model.SendMessageResponse{}, err
	}

	return model.SendMessageResponse{
		Message:               answer,
		Usage:                 usage,
		KnowledgeBaseDocsUsed: docsUsed,
	}, nil
}

// GenerateSectionContent generates or revises one section of a document and
// persists the result.
func (s *Service) GenerateSectionContent(ctx context.Context, subjectID string, documentID uuid.UUID, sectionID, userPrompt string) (model.GenerateSectionResponse, error) {
	if err := model.ValidatePrompt(userPrompt); err != nil {
		return model.GenerateSectionResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := model.ValidateIdentifier("section_id", sectionID); err != nil {
		return model.GenerateSectionResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("lumen.document_id", documentID.String()),
		attribute.String("lumen.section_id", sectionID),
		attribute.String("lumen.operation", "generate_section"),
	)

	verdict, err := s.guardDocument(ctx, subjectID, documentID)
	if err != nil {
		return model.GenerateSectionResponse{}, err
	}
	doc := verdict.Document

	section, err := s.store.GetSection(ctx, documentID, sectionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.GenerateSectionResponse{}, fmt.Errorf("%w: section %s", ErrNotFound, sectionID)
		}
		return model.GenerateSectionResponse{}, fmt.Errorf("assistant: section: %w", err)
	}

	dc, err := s.gatherContext(ctx, doc, section.Title+" "+userPrompt)
	if err != nil {
		return model.GenerateSectionResponse{}, err
	}

	system := prompt.Render(doc, dc.sections, dc.project, dc.refs, dc.crossRefs)
	request := prompt.SectionGeneration(section, userPrompt)

	comp, err := s.complete(ctx, provider.Request{
		System:    system,
		Turns:     []provider.Turn{{Role: model.TurnUser, Content: request}},
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return model.GenerateSectionResponse{}, err
	}
	if comp.Text == "" {
		return model.GenerateSectionResponse{}, &provider.ProviderError{Err: errors.New("empty section completion")}
	}

	if err := s.store.UpdateSectionContent(ctx, documentID, sectionID, comp.Text); err != nil {
		return model.GenerateSectionResponse{}, fmt.Errorf("assistant: persist section: %w", err)
	}

	usage := comp.Usage
	if _, err := s.log.Append(ctx, model.Turn{
		DocumentID: doc.ID,
		Role:       model.TurnSystem,
		Content:    fmt.Sprintf("Generated content for section %q", section.Title),
		Usage:      &usage,
		ContextSnapshot: map[string]any{
			"section_id":        sectionID,
			"knowledge_doc_ids": knowledgeDocIDs(dc.refs),
		},
	}); err != nil {
		return model.GenerateSectionResponse{}, err
	}

	return model.GenerateSectionResponse{
		Content:   comp.Text,
		SectionID: sectionID,
		Usage:     usage,
	}, nil
}

// KnowledgeSearch runs a knowledge-base search for any active member of the
// organization. Read-only and quota-free, like the usage endpoint.
func (s *Service) KnowledgeSearch(ctx context.Context, subjectID string, orgID uuid.UUID, query string, limit int) ([]retrieval.Match, error) {
	verdict, err := authz.AuthorizeOrg(ctx, s.store, subjectID, orgID)
	if err != nil {
		return nil, err
	}
	if !verdict.Authorized {
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, verdict.Reason)
	}
	if limit <= 0 {
		limit = prompt.MaxReferenceDocs
	}
	return s.index.Search(ctx, orgID, query, limit), nil
}

// OrgTokenUsage aggregates an organization's token consumption. Read-only:
// any active membership qualifies and no quota is spent.
func (s *Service) OrgTokenUsage(ctx context.Context, subjectID string, orgID uuid.UUID) (model.OrgUsage, error) {
	verdict, err := authz.AuthorizeOrg(ctx, s.store, subjectID, orgID)
	if err != nil {
		return model.OrgUsage{}, err
	}
	if !verdict.Authorized {
		return model.OrgUsage{}, fmt.Errorf("%w: %s", ErrPermissionDenied, verdict.Reason)
	}

	usage, err := s.store.OrgTokenUsage(ctx, orgID)
	if err != nil {
		return model.OrgUsage{}, fmt.Errorf("assistant: org usage: %w", err)
	}
	return usage, nil
}

package assistant_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen/internal/conversation"
	"github.com/lumenlearn/lumen/internal/model"
	"github.com/lumenlearn/lumen/internal/provider"
	"github.com/lumenlearn/lumen/internal/quota"
	"github.com/lumenlearn/lumen/internal/retrieval"
	"github.com/lumenlearn/lumen/internal/service/assistant"
	"github.com/lumenlearn/lumen/internal/storage"
)

type fakeStore struct {
	doc        model.Document
	docErr     error
	membership model.Membership
	memberErr  error
	sections   []model.Section
	section    model.Section
	sectionErr error
	crossRefs  []model.CrossRef
	project    *model.Project
	knowledge  []model.KnowledgeDoc
	usage      model.OrgUsage

	updatedSectionID string
	updatedContent   string

	turns []model.Turn
}

func (f *fakeStore) GetDocument(ctx context.Context, id uuid.UUID) (model.Document, error) {
	if f.docErr != nil {
		return model.Document{}, f.docErr
	}
	return f.doc, nil
}

func (f *fakeStore) GetMembership(ctx context.Context, subjectID string, orgID uuid.UUID) (model.Membership, error) {
	if f.memberErr != nil {
		return model.Membership{}, f.memberErr
	}
	return f.membership, nil
}

func (f *fakeStore) GetSections(ctx context.Context, documentID uuid.UUID) ([]model.Section, error) {
	return f.sections, nil
}

func (f *fakeStore) GetSection(ctx context.Context, documentID uuid.UUID, sectionID string) (model.Section, error) {
	if f.sectionErr != nil {
		return model.Section{}, f.sectionErr
	}
	return f.section, nil
}

func (f *fakeStore) UpdateSectionContent(ctx context.Context, documentID uuid.UUID, sectionID, content string) error {
	f.updatedSectionID = sectionID
	f.updatedContent = content
	return nil
}

func (f *fakeStore) GetCrossRefs(ctx context.Context, documentID uuid.UUID) ([]model.CrossRef, error) {
	return f.crossRefs, nil
}

func (f *fakeStore) GetProject(ctx context.Context, id uuid.UUID) (model.Project, error) {
	if f.project == nil {
		return model.Project{}, storage.ErrNotFound
	}
	return *f.project, nil
}

func (f *fakeStore) OrgTokenUsage(ctx context.Context, orgID uuid.UUID) (model.OrgUsage, error) {
	return f.usage, nil
}

// conversation.Store
func (f *fakeStore) AppendTurn(ctx context.Context, t model.Turn) (model.Turn, error) {
	t.ID = uuid.New()
	f.turns = append(f.turns, t)
	return t, nil
}

func (f *fakeStore) RecentTurns(ctx context.Context, documentID uuid.UUID, limit int) ([]model.Turn, error) {
	return nil, nil
}

// retrieval.CandidateSource
func (f *fakeStore) RecentKnowledgeDocs(ctx context.Context, orgID uuid.UUID, limit int) ([]model.KnowledgeDoc, error) {
	return f.knowledge, nil
}

type fakeLedger struct {
	admits  int
	allowed bool
	err     error
}

func (f *fakeLedger) Admit(ctx context.Context, rule quota.Rule, scopeKey string) (quota.Result, error) {
	f.admits++
	if f.err != nil {
		return quota.Result{}, f.err
	}
	return quota.Result{Allowed: f.allowed, Limit: rule.Limit}, nil
}

type fakeClient struct {
	text  string
	usage model.TokenUsage
	err   error
	calls int
}

func (f *fakeClient) Complete(ctx context.Context, req provider.Request) (provider.Completion, error) {
	f.calls++
	if f.err != nil {
		return provider.Completion{}, f.err
	}
	return provider.Completion{Text: f.text, Usage: f.usage}, nil
}

func (f *fakeClient) ModelName() string { return "test-model" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeStore() *fakeStore {
	orgID := uuid.New()
	return &fakeStore{
		doc: model.Document{
			ID:      uuid.New(),
			OrgID:   orgID,
			Type:    model.DocTypePolicy,
			Title:   "Working at Height Policy",
			Version: "1.0",
			Status:  "draft",
		},
		membership: model.Membership{
			SubjectID: "subject-1",
			OrgID:     orgID,
			Role:      model.RoleOperator,
			Status:    model.MembershipActive,
		},
	}
}

func newService(store *fakeStore, ledger *fakeLedger, client *fakeClient) *assistant.Service {
	index := retrieval.New(store, 0, discardLogger())
	log := conversation.NewLog(store)
	var c provider.Client
	if client != nil {
		c = client
	}
	return assistant.New(store, ledger, index, log, c, discardLogger())
}

func TestSendMessage_Success(t *testing.T) {
	store := activeStore()
	ledger := &fakeLedger{allowed: true}
	client := &fakeClient{text: "Here is my answer.", usage: model.TokenUsage{PromptTokens: 100, CompletionTokens: 20}}
	svc := newService(store, ledger, client)

	resp, err := svc.SendMessage(context.Background(), "subject-1", store.doc.ID, "what does this policy cover?")
	require.NoError(t, err)
	assert.Equal(t, "Here is my answer.", resp.Message)
	assert.Equal(t, 120, resp.Usage.Total())
	assert.Empty(t, resp.KnowledgeBaseDocsUsed)

	// User turn first, then assistant turn with usage and snapshot.
	require.Len(t, store.turns, 2)
	assert.Equal(t, model.TurnUser, store.turns[0].Role)
	assert.Equal(t, "what does this policy cover?", store.turns[0].Content)
	assert.Nil(t, store.turns[0].Usage)
	assert.Equal(t, model.TurnAssistant, store.turns[1].Role)
	require.NotNil(t, store.turns[1].Usage)
	assert.Equal(t, 100, store.turns[1].Usage.PromptTokens)
	assert.Equal(t, []string{}, store.turns[1].ContextSnapshot["knowledge_doc_ids"])
}

func TestSendMessage_InactiveMembershipTouchesNoQuota(t *testing.T) {
	store := activeStore()
	store.membership.Status = model.MembershipSuspended
	ledger := &fakeLedger{allowed: true}
	client := &fakeClient{text: "unused"}
	svc := newService(store, ledger, client)

	_, err := svc.SendMessage(context.Background(), "subject-1", store.doc.ID, "hello")
	require.ErrorIs(t, err, assistant.ErrPermissionDenied)
	assert.Zero(t, ledger.admits, "denied caller must not create or increment a quota window")
	assert.Zero(t, client.calls)
	assert.Empty(t, store.turns)
}

func TestSendMessage_DocumentNotFound(t *testing.T) {
	store := activeStore()
	store.docErr = storage.ErrNotFound
	svc := newService(store, &fakeLedger{allowed: true}, &fakeClient{text: "x"})

	_, err := svc.SendMessage(context.Background(), "subject-1", uuid.New(), "hello")
	require.ErrorIs(t, err, assistant.ErrNotFound)
}

func TestSendMessage_OversizedMessage(t *testing.T) {
	store := activeStore()
	ledger := &fakeLedger{allowed: true}
	svc := newService(store, ledger, &fakeClient{text: "x"})

	_, err := svc.SendMessage(context.Background(), "subject-1", store.doc.ID, strings.Repeat("a", model.MaxMessageLen+1))
	require.ErrorIs(t, err, assistant.ErrInvalidInput)
	assert.Zero(t, ledger.admits)
}

func TestSendMessage_QuotaExceeded(t *testing.T) {
	store := activeStore()
	svc := newService(store, &fakeLedger{allowed: false}, &fakeClient{text: "x"})

	_, err := svc.SendMessage(context.Background(), "subject-1", store.doc.ID, "hello")
	require.ErrorIs(t, err, assistant.ErrQuotaExceeded)

	var qerr *assistant.QuotaError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, quota.DocumentGenerationRule.Limit, qerr.Result.Limit)
	assert.Empty(t, store.turns)
}

func TestSendMessage_LedgerErrorFailsClosed(t *testing.T) {
	store := activeStore()
	svc := newService(store, &fakeLedger{err: errors.New("connection refused")}, &fakeClient{text: "x"})

	_, err := svc.SendMessage(context.Background(), "subject-1", store.doc.ID, "hello")
	require.Error(t, err)
	assert.NotErrorIs(t, err, assistant.ErrQuotaExceeded)
	assert.Empty(t, store.turns)
}

func TestSendMessage_DegradedMode(t *testing.T) {
	store := activeStore()
	ledger := &fakeLedger{allowed: true}
	index := retrieval.New(store, 0, discardLogger())
	svc := assistant.New(store, ledger, index, conversation.NewLog(store), nil, discardLogger())

	_, err := svc.SendMessage(context.Background(), "subject-1", store.doc.ID, "hello")
	require.ErrorIs(t, err, assistant.ErrProviderUnavailable)
	assert.Zero(t, ledger.admits, "degraded rejection must precede quota admission")
	assert.False(t, svc.Configured())
}

func TestSendMessage_UsesKnowledgeBase(t *testing.T) {
	store := activeStore()
	kbID := uuid.New()
	store.knowledge = []model.KnowledgeDoc{
		{ID: kbID, OrgID: store.doc.OrgID, Title: "Harness guide", Content: "inspect the harness before each use"},
	}
	svc := newService(store, &fakeLedger{allowed: true}, &fakeClient{text: "answer"})

	resp, err := svc.SendMessage(context.Background(), "subject-1", store.doc.ID, "harness inspection rules")
	require.NoError(t, err)
	assert.Equal(t, []string{kbID.String()}, resp.KnowledgeBaseDocsUsed)
}

func TestGenerateSectionContent_EmptySectionEndToEnd(t *testing.T) {
	store := activeStore()
	store.section = model.Section{ID: "intro", Title: "Introduction", Position: 1}
	store.sections = []model.Section{store.section}
	client := &fakeClient{text: "Generated intro text.", usage: model.TokenUsage{PromptTokens: 50, CompletionTokens: 30}}
	svc := newService(store, &fakeLedger{allowed: true}, client)

	resp, err := svc.GenerateSectionContent(context.Background(), "subject-1", store.doc.ID, "intro", "draft safety policy intro")
	require.NoError(t, err)
	assert.Equal(t, "Generated intro text.", resp.Content)
	assert.Equal(t, "intro", resp.SectionID)
	assert.Equal(t, 80, resp.Usage.Total())

	assert.Equal(t, "intro", store.updatedSectionID)
	assert.Equal(t, "Generated intro text.", store.updatedContent)

	require.Len(t, store.turns, 1)
	turn := store.turns[0]
	assert.Equal(t, model.TurnSystem, turn.Role)
	assert.Equal(t, []string{}, turn.ContextSnapshot["knowledge_doc_ids"])
	assert.Equal(t, "intro", turn.ContextSnapshot["section_id"])
}

func TestGenerateSectionContent_SectionNotFound(t *testing.T) {
	store := activeStore()
	store.sectionErr = storage.ErrNotFound
	svc := newService(store, &fakeLedger{allowed: true}, &fakeClient{text: "x"})

	_, err := svc.GenerateSectionContent(context.Background(), "subject-1", store.doc.ID, "missing", "write it")
	require.ErrorIs(t, err, assistant.ErrNotFound)
}

func TestOrgTokenUsage(t *testing.T) {
	store := activeStore()
	store.membership.Role = model.RoleViewer // viewers may read usage
	store.usage = model.OrgUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, MessageCount: 3, DocumentCount: 2}
	svc := newService(store, &fakeLedger{allowed: true}, &fakeClient{text: "x"})

	usage, err := svc.OrgTokenUsage(context.Background(), "subject-1", store.membership.OrgID)
	require.NoError(t, err)
	assert.Equal(t, 15, usage.TotalTokens)
}

func TestOrgTokenUsage_NotAMember(t *testing.T) {
	store := activeStore()
	store.memberErr = storage.ErrNotFound
	svc := newService(store, &fakeLedger{allowed: true}, &fakeClient{text: "x"})

	_, err := svc.OrgTokenUsage(context.Background(), "stranger", store.membership.OrgID)
	require.ErrorIs(t, err, assistant.ErrPermissionDenied)
}

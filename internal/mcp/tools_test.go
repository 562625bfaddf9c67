package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen/internal/auth"
	"github.com/lumenlearn/lumen/internal/conversation"
	"github.com/lumenlearn/lumen/internal/ctxutil"
	"github.com/lumenlearn/lumen/internal/model"
	"github.com/lumenlearn/lumen/internal/provider"
	"github.com/lumenlearn/lumen/internal/quota"
	"github.com/lumenlearn/lumen/internal/retrieval"
	"github.com/lumenlearn/lumen/internal/service/assistant"
	"github.com/lumenlearn/lumen/internal/storage"
)

type fakeStore struct {
	doc        model.Document
	membership model.Membership
	knowledge  []model.KnowledgeDoc
	turns      []model.Turn
}

func (f *fakeStore) GetDocument(ctx context.Context, id uuid.UUID) (model.Document, error) {
	if id != f.doc.ID {
		return model.Document{}, storage.ErrNotFound
	}
	return f.doc, nil
}

func (f *fakeStore) GetMembership(ctx context.Context, subjectID string, orgID uuid.UUID) (model.Membership, error) {
	if subjectID != f.membership.SubjectID || orgID != f.membership.OrgID {
		return model.Membership{}, storage.ErrNotFound
	}
	return f.membership, nil
}

func (f *fakeStore) GetSections(ctx context.Context, documentID uuid.UUID) ([]model.Section, error) {
	return nil, nil
}

func (f *fakeStore) GetSection(ctx context.Context, documentID uuid.UUID, sectionID string) (model.Section, error) {
	return model.Section{}, storage.ErrNotFound
}

func (f *fakeStore) UpdateSectionContent(ctx context.Context, documentID uuid.UUID, sectionID, content string) error {
	return nil
}

func (f *fakeStore) GetCrossRefs(ctx context.Context, documentID uuid.UUID) ([]model.CrossRef, error) {
	return nil, nil
}

func (f *fakeStore) GetProject(ctx context.Context, id uuid.UUID) (model.Project, error) {
	return model.Project{}, storage.ErrNotFound
}

func (f *fakeStore) OrgTokenUsage(ctx context.Context, orgID uuid.UUID) (model.OrgUsage, error) {
	return model.OrgUsage{}, nil
}

func (f *fakeStore) AppendTurn(ctx context.Context, t model.Turn) (model.Turn, error) {
	t.ID = uuid.New()
	f.turns = append(f.turns, t)
	return t, nil
}

func (f *fakeStore) RecentTurns(ctx context.Context, documentID uuid.UUID, limit int) ([]model.Turn, error) {
	return nil, nil
}

func (f *fakeStore) RecentKnowledgeDocs(ctx context.Context, orgID uuid.UUID, limit int) ([]model.KnowledgeDoc, error) {
	return f.knowledge, nil
}

type allowLedger struct{}

func (allowLedger) Admit(ctx context.Context, rule quota.Rule, scopeKey string) (quota.Result, error) {
	return quota.Result{Allowed: true, Limit: rule.Limit}, nil
}

type fakeClient struct{ text string }

func (c fakeClient) Complete(ctx context.Context, req provider.Request) (provider.Completion, error) {
	return provider.Completion{Text: c.text, Usage: model.TokenUsage{PromptTokens: 5, CompletionTokens: 3}}, nil
}

func (fakeClient) ModelName() string { return "test-model" }

func newTestServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orgID := uuid.New()
	store := &fakeStore{
		doc: model.Document{
			ID: uuid.New(), OrgID: orgID, Type: model.DocTypePolicy,
			Title: "Policy", Version: "1.0", Status: "draft",
		},
		membership: model.Membership{
			SubjectID: "subject-1", OrgID: orgID,
			Role: model.RoleOperator, Status: model.MembershipActive,
		},
		knowledge: []model.KnowledgeDoc{
			{ID: uuid.New(), OrgID: orgID, Title: "Harness guide", Content: "harness inspection steps", Tags: []string{"ppe"}},
		},
	}
	index := retrieval.New(store, 0, logger)
	svc := assistant.New(store, allowLedger{}, index, conversation.NewLog(store), fakeClient{text: "the answer"}, logger)
	return New(svc, index, "test", logger), store
}

func subjectCtx(subject string) context.Context {
	return ctxutil.WithClaims(context.Background(), &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	})
}

func callRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	}
}

func textContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(mcplib.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleAsk_Unauthenticated(t *testing.T) {
	s, _ := newTestServer(t)
	result, err := s.handleAsk(context.Background(), callRequest("lumen_ask", map[string]any{
		"document_id": uuid.NewString(),
		"message":     "hi",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleAsk_BadDocumentID(t *testing.T) {
	s, _ := newTestServer(t)
	result, err := s.handleAsk(subjectCtx("subject-1"), callRequest("lumen_ask", map[string]any{
		"document_id": "nope",
		"message":     "hi",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "UUID")
}

func TestHandleAsk_Success(t *testing.T) {
	s, store := newTestServer(t)
	result, err := s.handleAsk(subjectCtx("subject-1"), callRequest("lumen_ask", map[string]any{
		"document_id": store.doc.ID.String(),
		"message":     "what does this policy cover?",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp model.SendMessageResponse
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &resp))
	assert.Equal(t, "the answer", resp.Message)
	assert.Len(t, store.turns, 2, "user and assistant turns persisted")
}

func TestHandleKnowledgeSearch_Success(t *testing.T) {
	s, store := newTestServer(t)
	result, err := s.handleKnowledgeSearch(subjectCtx("subject-1"), callRequest("lumen_knowledge_search", map[string]any{
		"org_id": store.membership.OrgID.String(),
		"query":  "harness",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp struct {
		Matches []struct {
			Title string `json:"title"`
			Score int    `json:"score"`
		} `json:"matches"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Harness guide", resp.Matches[0].Title)
}

func TestHandleKnowledgeSearch_StrangerDenied(t *testing.T) {
	s, store := newTestServer(t)
	result, err := s.handleKnowledgeSearch(subjectCtx("stranger"), callRequest("lumen_knowledge_search", map[string]any{
		"org_id": store.membership.OrgID.String(),
		"query":  "harness",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

package storage_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen/internal/model"
	"github.com/lumenlearn/lumen/internal/storage"
	"github.com/lumenlearn/lumen/internal/testutil"
)

// testDB holds a shared test database connection for all tests in this package.
var testDB *storage.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tc := testutil.MustStartPostgres()

	var err error
	testDB, err = tc.NewTestDB(ctx, testutil.TestLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create test DB: %v\n", err)
		tc.Terminate()
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	tc.Terminate()
	os.Exit(code)
}

// newOrg creates an organization and returns its id.
func newOrg(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, testDB.CreateOrganization(context.Background(), id, "org-"+id.String()[:8]))
	return id
}

// newDocument creates a document with three sections under the given org.
func newDocument(t *testing.T, orgID uuid.UUID) model.Document {
	t.Helper()
	ctx := context.Background()

	doc, err := testDB.CreateDocument(ctx, model.Document{
		OrgID:        orgID,
		Type:         model.DocTypePolicy,
		Title:        "Working at Height Policy",
		Version:      "1.0",
		Status:       "draft",
		LocalContext: "Warehouse operations, two mezzanine levels.",
	})
	require.NoError(t, err)

	intro := "Falls from height remain the leading cause of serious injury."
	sections := []model.Section{
		{ID: "purpose", Title: "Purpose", Position: 1, Content: &intro},
		{ID: "scope", Title: "Scope", Position: 2},
		{ID: "responsibilities", Title: "Responsibilities", Position: 3},
	}
	for _, s := range sections {
		require.NoError(t, testDB.CreateSection(ctx, doc.ID, s))
	}
	return doc
}

func TestMembershipUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	orgID := newOrg(t)
	subjectID := uuid.New().String()

	_, err := testDB.GetMembership(ctx, subjectID, orgID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, testDB.UpsertMembership(ctx, model.Membership{
		SubjectID: subjectID,
		OrgID:     orgID,
		Role:      model.RoleOperator,
		Status:    model.MembershipActive,
	}))

	got, err := testDB.GetMembership(ctx, subjectID, orgID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOperator, got.Role)
	assert.Equal(t, model.MembershipActive, got.Status)

	// Upsert replaces role and status for the same (subject, org) pair.
	require.NoError(t, testDB.UpsertMembership(ctx, model.Membership{
		SubjectID: subjectID,
		OrgID:     orgID,
		Role:      model.RoleViewer,
		Status:    model.MembershipSuspended,
	}))

	got, err = testDB.GetMembership(ctx, subjectID, orgID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleViewer, got.Role)
	assert.Equal(t, model.MembershipSuspended, got.Status)
}

func TestDocumentSectionsAndContent(t *testing.T) {
	ctx := context.Background()
	orgID := newOrg(t)
	doc := newDocument(t, orgID)

	got, err := testDB.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, model.DocTypePolicy, got.Type)
	assert.Equal(t, "Warehouse operations, two mezzanine levels.", got.LocalContext)

	sections, err := testDB.GetSections(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, sections, 3)
	// Ordered by position, not insertion or id.
	assert.Equal(t, "purpose", sections[0].ID)
	assert.Equal(t, "scope", sections[1].ID)
	assert.Equal(t, "responsibilities", sections[2].ID)
	assert.True(t, sections[0].HasContent())
	assert.False(t, sections[1].HasContent())

	require.NoError(t, testDB.UpdateSectionContent(ctx, doc.ID, "scope", "This policy applies to all staff and contractors."))

	section, err := testDB.GetSection(ctx, doc.ID, "scope")
	require.NoError(t, err)
	require.NotNil(t, section.Content)
	assert.Equal(t, "This policy applies to all staff and contractors.", *section.Content)

	err = testDB.UpdateSectionContent(ctx, doc.ID, "no-such-section", "content")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = testDB.GetSection(ctx, doc.ID, "no-such-section")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = testDB.GetDocument(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCrossRefs(t *testing.T) {
	ctx := context.Background()
	orgID := newOrg(t)
	doc := newDocument(t, orgID)
	other := newDocument(t, orgID)

	require.NoError(t, testDB.CreateCrossRef(ctx, model.CrossRef{
		DocumentID:    doc.ID,
		RefDocumentID: other.ID,
		Description:   "Ladder inspection procedure referenced by section 4.",
	}))

	refs, err := testDB.GetCrossRefs(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, other.ID, refs[0].RefDocumentID)
	assert.Equal(t, "Ladder inspection procedure referenced by section 4.", refs[0].Description)

	// Refs are directional: the target document sees nothing.
	refs, err = testDB.GetCrossRefs(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestProjectRoundtrip(t *testing.T) {
	ctx := context.Background()
	orgID := newOrg(t)

	p, err := testDB.CreateProject(ctx, model.Project{
		OrgID:             orgID,
		Name:              "Site A",
		Industry:          "construction",
		RegulatoryContext: "CDM 2015",
	})
	require.NoError(t, err)

	got, err := testDB.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Site A", got.Name)
	assert.Equal(t, "construction", got.Industry)
	assert.Equal(t, "CDM 2015", got.RegulatoryContext)
	assert.Empty(t, got.CompanySize)

	_, err = testDB.GetProject(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKnowledgeDocsRecency(t *testing.T) {
	ctx := context.Background()
	orgID := newOrg(t)
	otherOrg := newOrg(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		_, err := testDB.CreateKnowledgeDoc(ctx, model.KnowledgeDoc{
			OrgID:     orgID,
			Title:     fmt.Sprintf("HSE guidance %d", i),
			Content:   "Guidance body text.",
			Tags:      []string{"hse", "guidance"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := testDB.CreateKnowledgeDoc(ctx, model.KnowledgeDoc{
		OrgID:   otherOrg,
		Title:   "Unrelated corpus entry",
		Content: "Should never leak across organizations.",
	})
	require.NoError(t, err)

	docs, err := testDB.RecentKnowledgeDocs(ctx, orgID, 3)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "HSE guidance 3", docs[0].Title)
	assert.Equal(t, "HSE guidance 2", docs[1].Title)
	assert.Equal(t, "HSE guidance 1", docs[2].Title)
	assert.Equal(t, []string{"hse", "guidance"}, docs[0].Tags)
}

func TestTurnsAppendOnlyOrdering(t *testing.T) {
	ctx := context.Background()
	orgID := newOrg(t)
	doc := newDocument(t, orgID)

	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		turn := model.Turn{
			DocumentID: doc.ID,
			Role:       model.TurnUser,
			Content:    fmt.Sprintf("message %d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		if i%2 == 1 {
			turn.Role = model.TurnAssistant
			turn.Usage = &model.TokenUsage{PromptTokens: 100 + i, CompletionTokens: 50 + i}
			turn.ContextSnapshot = map[string]any{"knowledge_doc_ids": []any{uuid.New().String()}}
		}
		_, err := testDB.AppendTurn(ctx, turn)
		require.NoError(t, err)
	}

	turns, err := testDB.RecentTurns(ctx, doc.ID, 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	// Newest first.
	assert.Equal(t, "message 4", turns[0].Content)
	assert.Equal(t, "message 3", turns[1].Content)
	assert.Equal(t, "message 2", turns[2].Content)

	// Usage and snapshot survive the roundtrip on assistant turns only.
	require.NotNil(t, turns[1].Usage)
	assert.Equal(t, 103, turns[1].Usage.PromptTokens)
	assert.Contains(t, turns[1].ContextSnapshot, "knowledge_doc_ids")
	assert.Nil(t, turns[0].Usage)
	assert.Nil(t, turns[0].ContextSnapshot)
}

func TestOrgTokenUsageAggregation(t *testing.T) {
	ctx := context.Background()
	orgID := newOrg(t)
	docA := newDocument(t, orgID)
	docB := newDocument(t, orgID)

	appendTurn := func(docID uuid.UUID, role model.TurnRole, usage *model.TokenUsage) {
		t.Helper()
		_, err := testDB.AppendTurn(ctx, model.Turn{
			DocumentID: docID,
			Role:       role,
			Content:    "turn",
			Usage:      usage,
		})
		require.NoError(t, err)
	}

	appendTurn(docA.ID, model.TurnUser, nil)
	appendTurn(docA.ID, model.TurnAssistant, &model.TokenUsage{PromptTokens: 200, CompletionTokens: 80})
	appendTurn(docB.ID, model.TurnUser, nil)
	appendTurn(docB.ID, model.TurnAssistant, &model.TokenUsage{PromptTokens: 300, CompletionTokens: 120})

	usage, err := testDB.OrgTokenUsage(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, 500, usage.PromptTokens)
	assert.Equal(t, 200, usage.CompletionTokens)
	assert.Equal(t, 700, usage.TotalTokens)
	assert.Equal(t, 4, usage.MessageCount)
	assert.Equal(t, 2, usage.DocumentCount)

	// An org with no conversations reports zeros, not an error.
	empty, err := testDB.OrgTokenUsage(ctx, newOrg(t))
	require.NoError(t, err)
	assert.Zero(t, empty.TotalTokens)
	assert.Zero(t, empty.MessageCount)
}

func TestAdmitQuotaFixedWindow(t *testing.T) {
	ctx := context.Background()
	scope := "org-" + uuid.New().String()

	for i := 1; i <= 3; i++ {
		admitted, count, _, err := testDB.AdmitQuota(ctx, "doc_generation", scope, 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, admitted)
		assert.Equal(t, i, count)
	}

	// Over the ceiling: rejected, and the stored count is untouched.
	admitted, count, _, err := testDB.AdmitQuota(ctx, "doc_generation", scope, 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, admitted)
	assert.Equal(t, 3, count)

	admitted, count, _, err = testDB.AdmitQuota(ctx, "doc_generation", scope, 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, admitted)
	assert.Equal(t, 3, count)
}

func TestAdmitQuotaWindowReset(t *testing.T) {
	ctx := context.Background()
	scope := "org-" + uuid.New().String()

	admitted, _, firstStart, err := testDB.AdmitQuota(ctx, "training_generation", scope, 1, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, admitted)

	admitted, _, _, err = testDB.AdmitQuota(ctx, "training_generation", scope, 1, 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, admitted)

	time.Sleep(300 * time.Millisecond)

	admitted, count, secondStart, err := testDB.AdmitQuota(ctx, "training_generation", scope, 1, 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, admitted)
	assert.Equal(t, 1, count)
	assert.True(t, secondStart.After(firstStart))
}

func TestAdmitQuotaActionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	scope := "org-" + uuid.New().String()

	admitted, _, _, err := testDB.AdmitQuota(ctx, "doc_generation", scope, 1, time.Hour)
	require.NoError(t, err)
	require.True(t, admitted)

	admitted, _, _, err = testDB.AdmitQuota(ctx, "doc_generation", scope, 1, time.Hour)
	require.NoError(t, err)
	require.False(t, admitted)

	// Exhausting one action leaves the other's window untouched.
	admitted, count, _, err := testDB.AdmitQuota(ctx, "training_generation", scope, 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, admitted)
	assert.Equal(t, 1, count)

	n, err := testDB.CountQuotaWindows(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAdmitQuotaConcurrent(t *testing.T) {
	ctx := context.Background()
	scope := "org-" + uuid.New().String()
	const limit = 10
	const attempts = 2 * limit

	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted, _, _, err := testDB.AdmitQuota(ctx, "doc_generation", scope, limit, time.Hour)
			if err != nil {
				errs <- err
				return
			}
			results <- admitted
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	admittedCount := 0
	for admitted := range results {
		if admitted {
			admittedCount++
		}
	}
	assert.Equal(t, limit, admittedCount)

	_, count, _, err := testDB.AdmitQuota(ctx, "doc_generation", scope, limit, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, limit, count)
}

func TestTurnRoleConstraint(t *testing.T) {
	ctx := context.Background()
	orgID := newOrg(t)
	doc := newDocument(t, orgID)

	_, err := testDB.AppendTurn(ctx, model.Turn{
		DocumentID: doc.ID,
		Role:       model.TurnRole("moderator"),
		Content:    "rejected by the check constraint",
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, storage.ErrNotFound))
}

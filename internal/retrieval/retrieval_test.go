package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen/internal/model"
)

func kdoc(title, content string, tags ...string) model.KnowledgeDoc {
	return model.KnowledgeDoc{
		ID:      uuid.New(),
		Title:   title,
		Content: content,
		Tags:    tags,
	}
}

func TestScoreCandidatesEmptyQuery(t *testing.T) {
	candidates := []model.KnowledgeDoc{kdoc("Ladder safety", "Inspect before use")}

	assert.Empty(t, ScoreCandidates("", candidates), "no terms means no overlap")
	assert.Empty(t, ScoreCandidates("   \t ", candidates))
}

func TestScoreCandidatesTagMatch(t *testing.T) {
	tagged := kdoc("Generic title", "generic body", "forklift")
	other := kdoc("Another doc", "nothing relevant here")

	matches := ScoreCandidates("forklift inspection", []model.KnowledgeDoc{other, tagged})
	require.Len(t, matches, 1, "zero-score candidates are dropped")
	assert.Equal(t, tagged.ID, matches[0].Doc.ID, "tag-only hit must rank")
	assert.Equal(t, 1, matches[0].Score)
}

func TestScoreCandidatesDistinctTermsOnly(t *testing.T) {
	doc := kdoc("Fire safety", "fire drills and fire extinguishers")

	// Repeated query terms count once; frequency in the haystack is ignored.
	matches := ScoreCandidates("fire fire fire", []model.KnowledgeDoc{doc})
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Score)
}

func TestScoreCandidatesOrderingAndStability(t *testing.T) {
	two := kdoc("Chemical storage", "acid handling procedures")
	oneA := kdoc("Acid disposal", "general notes")
	oneB := kdoc("Acid neutralization", "general notes")

	matches := ScoreCandidates("acid handling", []model.KnowledgeDoc{oneA, two, oneB})
	require.Len(t, matches, 3)
	assert.Equal(t, two.ID, matches[0].Doc.ID, "two-term match first")
	// Ties keep candidate order.
	assert.Equal(t, oneA.ID, matches[1].Doc.ID)
	assert.Equal(t, oneB.ID, matches[2].Doc.ID)
}

func TestScoreCandidatesCaseInsensitive(t *testing.T) {
	doc := kdoc("LOCKOUT Tagout", "Energy isolation")

	matches := ScoreCandidates("lockout TAGOUT", []model.KnowledgeDoc{doc})
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Score)
}

type fakeSource struct {
	docs  []model.KnowledgeDoc
	err   error
	calls int
}

func (f *fakeSource) RecentKnowledgeDocs(_ context.Context, _ uuid.UUID, limit int) ([]model.KnowledgeDoc, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.docs) > limit {
		return f.docs[:limit], nil
	}
	return f.docs, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestIndexSearchLimit(t *testing.T) {
	var docs []model.KnowledgeDoc
	for i := 0; i < 10; i++ {
		docs = append(docs, kdoc(fmt.Sprintf("welding guide %d", i), "arc welding basics"))
	}
	ix := New(&fakeSource{docs: docs}, 0, testLogger())

	matches := ix.Search(context.Background(), uuid.New(), "welding", 3)
	assert.Len(t, matches, 3, "result length never exceeds limit")
}

func TestIndexSearchSourceFailure(t *testing.T) {
	ix := New(&fakeSource{err: fmt.Errorf("connection reset")}, 0, testLogger())

	matches := ix.Search(context.Background(), uuid.New(), "welding", 5)
	assert.Empty(t, matches, "retrieval failure degrades to empty, never errors")
}

func TestIndexSearchEmptyCorpus(t *testing.T) {
	ix := New(&fakeSource{}, 0, testLogger())

	matches := ix.Search(context.Background(), uuid.New(), "anything at all", 5)
	assert.Empty(t, matches)
}

func TestIndexSearchZeroLimit(t *testing.T) {
	ix := New(&fakeSource{docs: []model.KnowledgeDoc{kdoc("a", "b")}}, 0, testLogger())
	assert.Nil(t, ix.Search(context.Background(), uuid.New(), "a", 0))
}

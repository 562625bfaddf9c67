package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen/internal/model"
)

// fakeStore keeps turns in append order and serves RecentTurns newest-first,
// matching the storage contract.
type fakeStore struct {
	turns []model.Turn
	err   error
}

func (f *fakeStore) AppendTurn(_ context.Context, t model.Turn) (model.Turn, error) {
	if f.err != nil {
		return model.Turn{}, f.err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	f.turns = append(f.turns, t)
	return t, nil
}

func (f *fakeStore) RecentTurns(_ context.Context, documentID uuid.UUID, limit int) ([]model.Turn, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Turn
	for i := len(f.turns) - 1; i >= 0 && len(out) < limit; i-- {
		if f.turns[i].DocumentID == documentID {
			out = append(out, f.turns[i])
		}
	}
	return out, nil
}

func TestTailChronologicalOrder(t *testing.T) {
	docID := uuid.New()
	store := &fakeStore{}
	log := NewLog(store)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		_, err := log.Append(context.Background(), model.Turn{
			DocumentID: docID,
			Role:       model.TurnUser,
			Content:    fmt.Sprintf("message %d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	tail, err := log.Tail(context.Background(), docID, 5)
	require.NoError(t, err)
	require.Len(t, tail, 5)

	assert.Equal(t, "message 3", tail[0].Content, "tail starts at the oldest of the newest 5")
	assert.Equal(t, "message 7", tail[4].Content)
	for i := 1; i < len(tail); i++ {
		assert.False(t, tail[i].CreatedAt.Before(tail[i-1].CreatedAt),
			"created_at must be non-decreasing")
	}
}

func TestTailDefaultLimit(t *testing.T) {
	docID := uuid.New()
	store := &fakeStore{}
	log := NewLog(store)

	for i := 0; i < DefaultTailLimit+10; i++ {
		_, err := log.Append(context.Background(), model.Turn{
			DocumentID: docID,
			Role:       model.TurnUser,
			Content:    fmt.Sprintf("m%d", i),
		})
		require.NoError(t, err)
	}

	tail, err := log.Tail(context.Background(), docID, 0)
	require.NoError(t, err)
	assert.Len(t, tail, DefaultTailLimit)
}

func TestTailScopedToDocument(t *testing.T) {
	docA, docB := uuid.New(), uuid.New()
	store := &fakeStore{}
	log := NewLog(store)

	_, _ = log.Append(context.Background(), model.Turn{DocumentID: docA, Role: model.TurnUser, Content: "a"})
	_, _ = log.Append(context.Background(), model.Turn{DocumentID: docB, Role: model.TurnUser, Content: "b"})

	tail, err := log.Tail(context.Background(), docA, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "a", tail[0].Content)
}

func TestAppendPropagatesError(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("disk full")}
	log := NewLog(store)

	_, err := log.Append(context.Background(), model.Turn{DocumentID: uuid.New()})
	require.Error(t, err, "append failures must surface so the orchestrator does not report success")
}

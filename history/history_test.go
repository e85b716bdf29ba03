package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warmline/warmline/types"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func terminalSnap(id string, state types.TransferState) types.TransferSnapshot {
	return types.TransferSnapshot{
		ID:              id,
		SourceRoom:      "support-1",
		DestinationRoom: "support-1-transfer-42",
		AgentAIdentity:  "agent-a",
		AgentBIdentity:  "agent-b",
		SummaryText:     "Customer reported a billing issue.",
		State:           state,
		CreatedAt:       time.Now().Add(-time.Minute).UTC(),
	}
}

func TestStore_ArchiveAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Archive(ctx, terminalSnap("tr-1", types.StateCompleted)))

	rec, err := s.Get(ctx, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, "support-1", rec.SourceRoom)
	assert.Equal(t, string(types.StateCompleted), rec.FinalState)
	assert.Equal(t, "Customer reported a billing issue.", rec.Summary)
	assert.False(t, rec.ArchivedAt.IsZero())
}

func TestStore_RejectsNonTerminal(t *testing.T) {
	s := setupStore(t)
	err := s.Archive(context.Background(), terminalSnap("tr-1", types.StateSpeaking))
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestStore_ArchiveIsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	snap := terminalSnap("tr-1", types.StateFailed)
	snap.Reason = "source room lost"
	require.NoError(t, s.Archive(ctx, snap))
	snap.Reason = "source room lost (final)"
	require.NoError(t, s.Archive(ctx, snap))

	rec, err := s.Get(ctx, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, "source room lost (final)", rec.Reason)

	recs, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestStore_GetMissing(t *testing.T) {
	s := setupStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.Equal(t, types.ErrTransferNotFound, types.GetErrorCode(err))
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for i, id := range []string{"tr-1", "tr-2", "tr-3"} {
		snap := terminalSnap(id, types.StateCompleted)
		require.NoError(t, s.Archive(ctx, snap))
		// SQLite timestamps need a visible gap to order deterministically.
		time.Sleep(5 * time.Millisecond)
		_ = i
	}

	recs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "tr-3", recs[0].ID)
	assert.Equal(t, "tr-2", recs[1].ID)
}

func TestStore_BySourceRoom(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	a := terminalSnap("tr-1", types.StateCompleted)
	b := terminalSnap("tr-2", types.StateCancelled)
	b.SourceRoom = "support-2"
	require.NoError(t, s.Archive(ctx, a))
	require.NoError(t, s.Archive(ctx, b))

	recs, err := s.BySourceRoom(ctx, "support-2", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "tr-2", recs[0].ID)
	assert.Equal(t, string(types.StateCancelled), recs[0].FinalState)
}

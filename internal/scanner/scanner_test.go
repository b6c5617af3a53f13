package scanner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundscope/fundscope/internal/matcher"
	"github.com/fundscope/fundscope/internal/merge"
	"github.com/fundscope/fundscope/internal/storage"
	"github.com/fundscope/fundscope/internal/storage/sqlite"
	"github.com/fundscope/fundscope/internal/types"
)

// failingMergeStore refuses every merge execution after the rollback,
// the shape a mid-merge constraint violation leaves behind.
type failingMergeStore struct {
	*sqlite.Store
	calls int
}

func (f *failingMergeStore) ExecuteMerge(ctx context.Context, req storage.MergeRequest) error {
	f.calls++
	return &types.MergeExecutionError{
		CanonicalID: req.CanonicalID,
		DuplicateID: req.DuplicateID,
		Err:         errors.New("constraint violation"),
	}
}

func newFailingStore(t *testing.T) *failingMergeStore {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &failingMergeStore{Store: store}
}

func newTestScanner(t *testing.T, store storage.Storage) *Scanner {
	t.Helper()
	m, err := matcher.New(matcher.DefaultConfig(), 0)
	require.NoError(t, err)
	return New(store, m, merge.NewExecutor(store), nil, 0, 0)
}

func createPerson(t *testing.T, store storage.Storage, name string) *types.Entity {
	t.Helper()
	e := &types.Entity{
		Kind:           types.KindPerson,
		DisplayName:    name,
		NormalizedName: name,
	}
	require.NoError(t, store.CreateEntity(context.Background(), e, "test"))
	return e
}

// TestScanDegradesFailedMergeToReview tests that a merge failing
// mid-execution queues the pair for human review with the original
// evidence instead of aborting the scan
func TestScanDegradesFailedMergeToReview(t *testing.T) {
	store := newFailingStore(t)
	ctx := context.Background()

	robert := createPerson(t, store, "Robert Johnson")
	bob := createPerson(t, store, "Bob Johnson")
	for _, id := range []int64{robert.ID, bob.ID} {
		require.NoError(t, store.AddRole(ctx, &types.Role{
			EntityID: id, OrgName: "Acme Ventures", Title: "Partner", IsCurrent: true,
		}))
	}

	res, err := newTestScanner(t, store).Scan(ctx, Options{})
	require.NoError(t, err, "one failed merge must not fail the scan")
	assert.Equal(t, 1, store.calls, "the pair classified as an auto merge")
	assert.Equal(t, 0, res.AutoMerged)
	assert.Equal(t, 1, res.ReviewQueued)
	assert.Equal(t, 1, res.TotalCompared)

	// Both sides stay canonical and the pair waits in the queue with
	// the evidence the merge attempt was based on.
	pending, err := store.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	c := pending[0].Candidate
	assert.Equal(t, types.StatusPending, c.Status)
	assert.Equal(t, types.MatchNickname, c.MatchType)
	assert.Equal(t, 0.95, c.Similarity)
	assert.Contains(t, c.Evidence, "nickname expansion")

	a, err := store.ResolveCanonical(ctx, robert.ID)
	require.NoError(t, err)
	b, err := store.ResolveCanonical(ctx, bob.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

// TestScanDegradedPairNotRetried tests that the queued candidate keeps
// later scans from re-attempting the failed merge
func TestScanDegradedPairNotRetried(t *testing.T) {
	store := newFailingStore(t)
	ctx := context.Background()

	robert := createPerson(t, store, "Robert Johnson")
	bob := createPerson(t, store, "Bob Johnson")
	for _, id := range []int64{robert.ID, bob.ID} {
		require.NoError(t, store.AddRole(ctx, &types.Role{
			EntityID: id, OrgName: "Acme Ventures", Title: "Partner", IsCurrent: true,
		}))
	}

	s := newTestScanner(t, store)
	first, err := s.Scan(ctx, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, first.ReviewQueued)

	second, err := s.Scan(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.ReviewQueued)
	assert.Equal(t, 0, second.TotalCompared)
	assert.Equal(t, 1, second.Skipped, "pending candidate marks the pair evaluated")
	assert.Equal(t, 1, store.calls, "no second merge attempt")
}

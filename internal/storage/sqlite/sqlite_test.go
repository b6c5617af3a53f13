package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundscope/fundscope/internal/storage"
	"github.com/fundscope/fundscope/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createPerson(t *testing.T, store *Store, name string) *types.Entity {
	t.Helper()
	e := &types.Entity{
		Kind:           types.KindPerson,
		DisplayName:    name,
		NormalizedName: name,
	}
	require.NoError(t, store.CreateEntity(context.Background(), e, "test"))
	return e
}

// TestCreateAndGetEntity tests the entity round trip including
// identifiers and data sources
func TestCreateAndGetEntity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := &types.Entity{
		Kind:           types.KindCompany,
		DisplayName:    "Acme Inc.",
		NormalizedName: "acme",
		Website:        "https://acme.com",
		Location:       "CA",
		Identifiers: map[types.IdentifierKind]string{
			types.IdentDomain: "acme.com",
			types.IdentSECCIK: "0000123456",
		},
		DataSources: []string{"crunchbase"},
	}
	require.NoError(t, store.CreateEntity(ctx, e, "test"))
	require.NotZero(t, e.ID)
	assert.True(t, e.IsCanonical)

	got, err := store.GetEntity(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc.", got.DisplayName)
	assert.Equal(t, "acme", got.NormalizedName)
	assert.Equal(t, "acme.com", got.Identifiers[types.IdentDomain])
	assert.Equal(t, "0000123456", got.Identifiers[types.IdentSECCIK])
	assert.Equal(t, []string{"crunchbase"}, got.DataSources)
	assert.True(t, got.IsCanonical)
	assert.Nil(t, got.CanonicalID)

	// Creation is audited.
	events, err := store.GetEvents(ctx, e.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventEntityCreated, events[0].EventType)
}

// TestGetEntityNotFound tests the sentinel error
func TestGetEntityNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetEntity(context.Background(), 9999)
	require.ErrorIs(t, err, types.ErrNotFound)
}

// TestFindByIdentifierAndDomain tests identifier lookups only see
// canonical entities
func TestFindByIdentifierAndDomain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := &types.Entity{
		Kind:           types.KindCompany,
		DisplayName:    "Acme",
		NormalizedName: "acme",
		Identifiers:    map[types.IdentifierKind]string{types.IdentDomain: "acme.com"},
	}
	require.NoError(t, store.CreateEntity(ctx, e, "test"))

	got, err := store.FindByDomain(ctx, types.KindCompany, "acme.com")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	// Kind mismatch is not a hit.
	_, err = store.FindByDomain(ctx, types.KindInvestor, "acme.com")
	require.ErrorIs(t, err, types.ErrNotFound)

	_, err = store.FindByDomain(ctx, types.KindCompany, "other.com")
	require.ErrorIs(t, err, types.ErrNotFound)
}

// TestCreateEntityIdentifierConflict tests that an identifier value can
// belong to at most one canonical entity per kind
func TestCreateEntityIdentifierConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &types.Entity{
		Kind:           types.KindCompany,
		DisplayName:    "Acme",
		NormalizedName: "acme",
		Identifiers:    map[types.IdentifierKind]string{types.IdentDomain: "acme.com"},
	}
	require.NoError(t, store.CreateEntity(ctx, first, "test"))

	dup := &types.Entity{
		Kind:           types.KindCompany,
		DisplayName:    "Acme Corp",
		NormalizedName: "acme corp",
		Identifiers:    map[types.IdentifierKind]string{types.IdentDomain: "acme.com"},
	}
	err := store.CreateEntity(ctx, dup, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme.com")

	// The refused entity was not half-created.
	ghosts, err := store.FindByNormalizedName(ctx, types.KindCompany, "acme corp")
	require.NoError(t, err)
	assert.Empty(t, ghosts)
	entities, err := store.ListCanonical(ctx, types.KindCompany, 10, 0)
	require.NoError(t, err)
	assert.Len(t, entities, 1)

	// A different entity kind may carry the same value.
	investor := &types.Entity{
		Kind:           types.KindInvestor,
		DisplayName:    "Acme Capital",
		NormalizedName: "acme capital",
		Identifiers:    map[types.IdentifierKind]string{types.IdentDomain: "acme.com"},
	}
	require.NoError(t, store.CreateEntity(ctx, investor, "test"))
}

// TestCreateCandidateIdempotent tests the unique-pair no-op semantics
func TestCreateCandidateIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := createPerson(t, store, "john smith")
	b := createPerson(t, store, "jon smith")

	// Discovery order must not matter: pass the pair reversed.
	c := &types.MergeCandidate{
		EntityAID:  b.ID,
		EntityBID:  a.ID,
		Kind:       types.KindPerson,
		MatchType:  types.MatchFuzzy,
		Similarity: 0.9,
	}
	created, err := store.CreateCandidate(ctx, c, "test")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Less(t, c.EntityAID, c.EntityBID)

	again := &types.MergeCandidate{
		EntityAID:  a.ID,
		EntityBID:  b.ID,
		Kind:       types.KindPerson,
		MatchType:  types.MatchFuzzy,
		Similarity: 0.9,
	}
	created, err = store.CreateCandidate(ctx, again, "test")
	require.NoError(t, err)
	assert.False(t, created, "second insert of the same pair must be a no-op")

	pairs, err := store.EvaluatedPairs(ctx, types.KindPerson)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
	assert.True(t, pairs[storage.MakePair(b.ID, a.ID)])
}

// TestRejectCandidate tests rejection and the double-decide conflict
func TestRejectCandidate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := createPerson(t, store, "john smith")
	b := createPerson(t, store, "jon smith")

	c := &types.MergeCandidate{
		EntityAID:  a.ID,
		EntityBID:  b.ID,
		Kind:       types.KindPerson,
		MatchType:  types.MatchFuzzy,
		Similarity: 0.9,
	}
	_, err := store.CreateCandidate(ctx, c, "test")
	require.NoError(t, err)

	rejected, err := store.RejectCandidate(ctx, c.ID, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.ReviewedAt)

	// Terminal statuses are immutable.
	_, err = store.RejectCandidate(ctx, c.ID, "reviewer")
	require.ErrorIs(t, err, types.ErrAlreadyDecided)

	// Both entities are still canonical; rejection merges nothing.
	got, err := store.GetEntity(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCanonical)
}

// TestExecuteMerge tests the full merge transaction: backfill, role
// migration, demotion, candidate advance and audit
func TestExecuteMerge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	canonical := &types.Entity{
		Kind:           types.KindPerson,
		DisplayName:    "Robert Johnson",
		NormalizedName: "robert johnson",
		Email:          "rob@acme.com",
		DataSources:    []string{"crunchbase"},
	}
	require.NoError(t, store.CreateEntity(ctx, canonical, "test"))

	duplicate := &types.Entity{
		Kind:           types.KindPerson,
		DisplayName:    "Bob Johnson",
		NormalizedName: "bob johnson",
		Location:       "NY",
		Bio:            "Partner at Acme Ventures",
		DataSources:    []string{"linkedin"},
		Identifiers:    map[types.IdentifierKind]string{types.IdentLinkedIn: "bob-johnson"},
	}
	require.NoError(t, store.CreateEntity(ctx, duplicate, "test"))

	started := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AddRole(ctx, &types.Role{
		EntityID:  canonical.ID,
		OrgName:   "Acme Ventures",
		Title:     "Partner",
		Started:   &started,
		IsCurrent: true,
	}))
	// Equivalent role on the duplicate (same natural key) collapses.
	require.NoError(t, store.AddRole(ctx, &types.Role{
		EntityID:  duplicate.ID,
		OrgName:   "acme ventures",
		Title:     "partner",
		Started:   &started,
		IsCurrent: true,
	}))
	// Distinct role migrates.
	require.NoError(t, store.AddRole(ctx, &types.Role{
		EntityID:  duplicate.ID,
		OrgName:   "Widgets Capital",
		Title:     "Advisor",
		IsCurrent: false,
	}))

	c := &types.MergeCandidate{
		EntityAID:  canonical.ID,
		EntityBID:  duplicate.ID,
		Kind:       types.KindPerson,
		MatchType:  types.MatchNickname,
		Similarity: 0.95,
	}
	_, err := store.CreateCandidate(ctx, c, "test")
	require.NoError(t, err)

	err = store.ExecuteMerge(ctx, storage.MergeRequest{
		CanonicalID: canonical.ID,
		DuplicateID: duplicate.ID,
		CandidateID: c.ID,
		Kind:        types.KindPerson,
		MatchType:   types.MatchNickname,
		Similarity:  0.95,
		Status:      types.StatusApproved,
		Actor:       "reviewer",
	})
	require.NoError(t, err)

	// Duplicate is demoted, never deleted, and points at the survivor.
	alias, err := store.GetEntity(ctx, duplicate.ID)
	require.NoError(t, err)
	assert.False(t, alias.IsCanonical)
	require.NotNil(t, alias.CanonicalID)
	assert.Equal(t, canonical.ID, *alias.CanonicalID)

	resolved, err := store.ResolveCanonical(ctx, duplicate.ID)
	require.NoError(t, err)
	assert.Equal(t, canonical.ID, resolved.ID)

	// Empty fields backfilled, existing ones untouched, sources unioned,
	// missing identifier kinds adopted.
	survivor, err := store.GetEntity(ctx, canonical.ID)
	require.NoError(t, err)
	assert.Equal(t, "rob@acme.com", survivor.Email)
	assert.Equal(t, "NY", survivor.Location)
	assert.Equal(t, "Partner at Acme Ventures", survivor.Bio)
	assert.ElementsMatch(t, []string{"crunchbase", "linkedin"}, survivor.DataSources)
	assert.Equal(t, "bob-johnson", survivor.Identifiers[types.IdentLinkedIn])

	// One collapsed role, one migrated: survivor owns exactly two.
	roles, err := store.GetRoles(ctx, canonical.ID)
	require.NoError(t, err)
	assert.Len(t, roles, 2)
	dupRoles, err := store.GetRoles(ctx, duplicate.ID)
	require.NoError(t, err)
	assert.Empty(t, dupRoles)

	// Candidate reached its terminal state.
	decided, err := store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, decided.Status)
	require.NotNil(t, decided.CanonicalEntityID)
	assert.Equal(t, canonical.ID, *decided.CanonicalEntityID)
	require.NotNil(t, decided.ReviewedAt)

	// Audit trail covers both sides.
	events, err := store.GetEvents(ctx, canonical.ID, 20)
	require.NoError(t, err)
	eventTypes := make(map[string]bool)
	for _, ev := range events {
		eventTypes[ev.EventType] = true
	}
	assert.True(t, eventTypes[types.EventApproved])
	dupEvents, err := store.GetEvents(ctx, duplicate.ID, 20)
	require.NoError(t, err)
	found := false
	for _, ev := range dupEvents {
		if ev.EventType == types.EventDemoted {
			found = true
		}
	}
	assert.True(t, found, "expected a demoted event on the duplicate")
}

// TestExecuteMergeConflicts tests the precondition failures
func TestExecuteMergeConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := createPerson(t, store, "john smith")
	b := createPerson(t, store, "jon smith")
	c := createPerson(t, store, "johnny smith")

	req := storage.MergeRequest{
		CanonicalID: a.ID,
		DuplicateID: b.ID,
		Kind:        types.KindPerson,
		MatchType:   types.MatchFuzzy,
		Similarity:  0.9,
		Status:      types.StatusAutoMerged,
		Actor:       "scan:test",
	}
	require.NoError(t, store.ExecuteMerge(ctx, req))

	// b is no longer canonical; merging it again conflicts.
	err := store.ExecuteMerge(ctx, storage.MergeRequest{
		CanonicalID: c.ID,
		DuplicateID: b.ID,
		Kind:        types.KindPerson,
		MatchType:   types.MatchFuzzy,
		Similarity:  0.9,
		Status:      types.StatusAutoMerged,
		Actor:       "scan:test",
	})
	require.ErrorIs(t, err, types.ErrAlreadyDecided)

	// Self merge is refused outright.
	err = store.ExecuteMerge(ctx, storage.MergeRequest{
		CanonicalID: a.ID,
		DuplicateID: a.ID,
		Kind:        types.KindPerson,
		Status:      types.StatusAutoMerged,
	})
	require.Error(t, err)

	// The in-flight merge above recorded a terminal candidate row.
	pairs, err := store.EvaluatedPairs(ctx, types.KindPerson)
	require.NoError(t, err)
	assert.True(t, pairs[storage.MakePair(a.ID, b.ID)])
}

// TestListPendingOrder tests queue ordering and summary enrichment
func TestListPendingOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := createPerson(t, store, "john smith")
	b := createPerson(t, store, "jon smith")
	c := createPerson(t, store, "johnny smith")

	first := &types.MergeCandidate{EntityAID: a.ID, EntityBID: b.ID, Kind: types.KindPerson, MatchType: types.MatchFuzzy, Similarity: 0.9}
	second := &types.MergeCandidate{EntityAID: a.ID, EntityBID: c.ID, Kind: types.KindPerson, MatchType: types.MatchFuzzy, Similarity: 0.85}
	_, err := store.CreateCandidate(ctx, first, "test")
	require.NoError(t, err)
	_, err = store.CreateCandidate(ctx, second, "test")
	require.NoError(t, err)

	pending, err := store.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].Candidate.ID, "oldest first")
	assert.Equal(t, "john smith", pending[0].EntityA.DisplayName)
	assert.Equal(t, "jon smith", pending[0].EntityB.DisplayName)
}

// TestHistoryFilter tests the per-entity history filter
func TestHistoryFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := createPerson(t, store, "john smith")
	b := createPerson(t, store, "jon smith")
	c := createPerson(t, store, "jane doe")
	d := createPerson(t, store, "janet doe")

	_, err := store.CreateCandidate(ctx, &types.MergeCandidate{
		EntityAID: a.ID, EntityBID: b.ID, Kind: types.KindPerson,
		MatchType: types.MatchFuzzy, Similarity: 0.9,
	}, "test")
	require.NoError(t, err)
	_, err = store.CreateCandidate(ctx, &types.MergeCandidate{
		EntityAID: c.ID, EntityBID: d.ID, Kind: types.KindPerson,
		MatchType: types.MatchFuzzy, Similarity: 0.88,
	}, "test")
	require.NoError(t, err)

	all, err := store.History(ctx, nil, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := store.History(ctx, &a.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.True(t, scoped[0].Involves(a.ID))
}

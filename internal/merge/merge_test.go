package merge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundscope/fundscope/internal/storage/sqlite"
	"github.com/fundscope/fundscope/internal/types"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createPerson(t *testing.T, store *sqlite.Store, name string) *types.Entity {
	t.Helper()
	e := &types.Entity{
		Kind:           types.KindPerson,
		DisplayName:    name,
		NormalizedName: name,
	}
	require.NoError(t, store.CreateEntity(context.Background(), e, "test"))
	return e
}

// TestPickFirst tests the canonical-side selection order
func TestPickFirst(t *testing.T) {
	base := func(id int64) *types.Entity { return &types.Entity{ID: id} }

	tests := []struct {
		name           string
		a, b           *types.Entity
		rolesA, rolesB int
		aWins          bool
	}{
		{"more roles wins", base(2), base(1), 3, 1, true},
		{"fewer roles loses", base(1), base(2), 0, 5, false},
		{"profile breaks role tie", &types.Entity{ID: 2, ProfileURL: "x"}, base(1), 1, 1, true},
		{"email breaks profile tie", &types.Entity{ID: 2, Email: "x"}, base(1), 0, 0, true},
		{"bio breaks email tie", base(1), &types.Entity{ID: 2, Bio: "x"}, 0, 0, false},
		{"lower id breaks full tie", base(1), base(2), 2, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickFirst(tt.a, tt.rolesA, tt.b, tt.rolesB); got != tt.aWins {
				t.Errorf("pickFirst = %v, want %v", got, tt.aWins)
			}
		})
	}
}

// TestExecutePolicyChoosesRicherSide tests that the entity with more
// roles survives regardless of argument order
func TestExecutePolicyChoosesRicherSide(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	x := NewExecutor(store)

	rich := createPerson(t, store, "robert johnson")
	poor := createPerson(t, store, "bob johnson")
	require.NoError(t, store.AddRole(ctx, &types.Role{
		EntityID: rich.ID, OrgName: "Acme", Title: "Partner", IsCurrent: true,
	}))

	res, err := x.Execute(ctx, Spec{
		EntityAID:  poor.ID,
		EntityBID:  rich.ID,
		MatchType:  types.MatchNickname,
		Similarity: 0.95,
		Status:     types.StatusAutoMerged,
		Actor:      "test",
	})
	require.NoError(t, err)
	assert.Equal(t, rich.ID, res.CanonicalID)
	assert.Equal(t, poor.ID, res.DuplicateID)
}

// TestExecutePreferredSide tests the explicit canonical override
func TestExecutePreferredSide(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	x := NewExecutor(store)

	a := createPerson(t, store, "robert johnson")
	b := createPerson(t, store, "bob johnson")
	// Policy alone would keep a (lower id); prefer b instead.
	res, err := x.Execute(ctx, Spec{
		EntityAID:            a.ID,
		EntityBID:            b.ID,
		PreferredCanonicalID: b.ID,
		MatchType:            types.MatchNickname,
		Similarity:           0.95,
		Status:               types.StatusApproved,
		Actor:                "reviewer",
	})
	require.NoError(t, err)
	assert.Equal(t, b.ID, res.CanonicalID)
	assert.Equal(t, a.ID, res.DuplicateID)
}

// TestExecuteResolvesAliases tests that stale ids are re-resolved and
// an already-unified pair conflicts
func TestExecuteResolvesAliases(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	x := NewExecutor(store)

	a := createPerson(t, store, "robert johnson")
	b := createPerson(t, store, "bob johnson")
	_, err := x.Execute(ctx, Spec{
		EntityAID:  a.ID,
		EntityBID:  b.ID,
		MatchType:  types.MatchNickname,
		Similarity: 0.95,
		Status:     types.StatusAutoMerged,
		Actor:      "test",
	})
	require.NoError(t, err)

	// Both ids now resolve to the same canonical entity; a second merge
	// of the pair has nothing left to do.
	_, err = x.Execute(ctx, Spec{
		EntityAID:  a.ID,
		EntityBID:  b.ID,
		MatchType:  types.MatchNickname,
		Similarity: 0.95,
		Status:     types.StatusAutoMerged,
		Actor:      "test",
	})
	require.ErrorIs(t, err, types.ErrAlreadyDecided)
}

// TestExecuteKindMismatch tests that cross-kind merges are refused
func TestExecuteKindMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	x := NewExecutor(store)

	person := createPerson(t, store, "acme smith")
	company := &types.Entity{
		Kind:           types.KindCompany,
		DisplayName:    "Acme",
		NormalizedName: "acme",
	}
	require.NoError(t, store.CreateEntity(ctx, company, "test"))

	_, err := x.Execute(ctx, Spec{
		EntityAID:  person.ID,
		EntityBID:  company.ID,
		MatchType:  types.MatchFuzzy,
		Similarity: 0.9,
		Status:     types.StatusApproved,
		Actor:      "test",
	})
	require.Error(t, err)
}

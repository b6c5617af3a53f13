// Package merge decides which side of a pair survives and drives the
// transactional merge in storage. The executor re-resolves both sides
// immediately before executing so a judgment made against stale ids is
// applied to whatever entity currently represents them.
package merge

import (
	"context"
	"fmt"

	"github.com/fundscope/fundscope/internal/storage"
	"github.com/fundscope/fundscope/internal/types"
)

// Spec describes one merge to execute: the pair (in either order), the
// evidence behind it, and the terminal status to record.
type Spec struct {
	EntityAID   int64
	EntityBID   int64
	CandidateID int64 // zero when discovered in-flight
	// PreferredCanonicalID forces the surviving side when it resolves
	// to one of the pair, overriding the selection policy. Zero lets
	// the policy decide.
	PreferredCanonicalID int64
	MatchType            types.MatchType
	Similarity           float64
	Evidence             string
	Status               types.CandidateStatus // auto_merged or approved
	Actor                string
}

// Result reports which side survived.
type Result struct {
	CanonicalID int64
	DuplicateID int64
}

// Executor resolves pairs to their current canonical entities, picks
// the surviving side, and executes the merge.
type Executor struct {
	store storage.Storage
}

// NewExecutor creates a merge executor backed by the given storage.
func NewExecutor(store storage.Storage) *Executor {
	return &Executor{store: store}
}

// Execute merges the pair described by spec. Both sides are resolved to
// their current canonical entities first; if they already resolve to
// the same entity the pair was merged by an earlier decision and
// ErrAlreadyDecided is returned.
func (x *Executor) Execute(ctx context.Context, spec Spec) (*Result, error) {
	a, err := x.store.ResolveCanonical(ctx, spec.EntityAID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve entity %d: %w", spec.EntityAID, err)
	}
	b, err := x.store.ResolveCanonical(ctx, spec.EntityBID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve entity %d: %w", spec.EntityBID, err)
	}

	if a.ID == b.ID {
		return nil, fmt.Errorf("entities %d and %d already resolve to %d: %w",
			spec.EntityAID, spec.EntityBID, a.ID, types.ErrAlreadyDecided)
	}
	if a.Kind != b.Kind {
		return nil, fmt.Errorf("cannot merge %s entity %d with %s entity %d",
			a.Kind, a.ID, b.Kind, b.ID)
	}

	preferred := spec.PreferredCanonicalID
	if preferred != 0 {
		p, err := x.store.ResolveCanonical(ctx, preferred)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve preferred entity %d: %w", preferred, err)
		}
		preferred = p.ID
	}

	canonical, duplicate, err := x.chooseSides(ctx, a, b, preferred)
	if err != nil {
		return nil, err
	}

	err = x.store.ExecuteMerge(ctx, storage.MergeRequest{
		CanonicalID: canonical.ID,
		DuplicateID: duplicate.ID,
		CandidateID: spec.CandidateID,
		Kind:        a.Kind,
		MatchType:   spec.MatchType,
		Similarity:  spec.Similarity,
		Evidence:    spec.Evidence,
		Status:      spec.Status,
		Actor:       spec.Actor,
	})
	if err != nil {
		return nil, err
	}
	return &Result{CanonicalID: canonical.ID, DuplicateID: duplicate.ID}, nil
}

// chooseSides picks the surviving side. An explicit preference wins
// when it names one of the pair; otherwise the richer record wins, ties
// going to the older (lower) id so repeated runs pick the same survivor.
func (x *Executor) chooseSides(ctx context.Context, a, b *types.Entity, preferred int64) (canonical, duplicate *types.Entity, err error) {
	switch preferred {
	case 0:
	case a.ID:
		return a, b, nil
	case b.ID:
		return b, a, nil
	default:
		return nil, nil, fmt.Errorf("entity %d is not a side of the pair (%d, %d)", preferred, a.ID, b.ID)
	}

	rolesA, err := x.store.CountRoles(ctx, a.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count roles for %d: %w", a.ID, err)
	}
	rolesB, err := x.store.CountRoles(ctx, b.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count roles for %d: %w", b.ID, err)
	}

	if pickFirst(a, rolesA, b, rolesB) {
		return a, b, nil
	}
	return b, a, nil
}

// pickFirst reports whether a should survive over b. Comparison order:
// role count, then profile URL, email and bio presence, then lower id.
func pickFirst(a *types.Entity, rolesA int, b *types.Entity, rolesB int) bool {
	if rolesA != rolesB {
		return rolesA > rolesB
	}
	for _, have := range []struct{ a, b bool }{
		{a.ProfileURL != "", b.ProfileURL != ""},
		{a.Email != "", b.Email != ""},
		{a.Bio != "", b.Bio != ""},
	} {
		if have.a != have.b {
			return have.a
		}
	}
	return a.ID < b.ID
}

// Package storage defines the persistence interface for the resolution
// engine. The engine only ever sees this interface; the sqlite
// subpackage provides the implementation.
package storage

import (
	"context"

	"github.com/fundscope/fundscope/internal/types"
)

// Pair is an ordered (a < b) entity id pair, the identity of a merge
// candidate regardless of discovery order.
type Pair struct {
	A, B int64
}

// MakePair orders two ids into a Pair.
func MakePair(a, b int64) Pair {
	a, b = types.OrderPair(a, b)
	return Pair{A: a, B: b}
}

// MergeRequest describes one merge execution. When CandidateID is zero
// the merge was discovered in-flight (auto merge) and a terminal
// candidate row is inserted inside the transaction; otherwise the
// referenced candidate must still be pending.
type MergeRequest struct {
	CanonicalID int64
	DuplicateID int64
	CandidateID int64
	Kind        types.EntityKind
	MatchType   types.MatchType
	Similarity  float64
	Evidence    string
	Status      types.CandidateStatus // auto_merged or approved
	Actor       string
}

// Storage is the persistence boundary for entities, roles, merge
// candidates and the audit trail.
type Storage interface {
	// Entities
	CreateEntity(ctx context.Context, e *types.Entity, actor string) error
	GetEntity(ctx context.Context, id int64) (*types.Entity, error)
	// ResolveCanonical returns the entity currently representing id:
	// the entity itself when canonical, otherwise the target of its
	// canonical pointer. Looked up fresh on every call so a judgment is
	// never cached across merges.
	ResolveCanonical(ctx context.Context, id int64) (*types.Entity, error)
	FindByIdentifier(ctx context.Context, kind types.EntityKind, identKind types.IdentifierKind, value string) (*types.Entity, error)
	FindByDomain(ctx context.Context, kind types.EntityKind, domain string) (*types.Entity, error)
	FindByNormalizedName(ctx context.Context, kind types.EntityKind, normalized string) ([]*types.Entity, error)
	ListCanonical(ctx context.Context, kind types.EntityKind, limit, offset int) ([]*types.Entity, error)
	GetSummary(ctx context.Context, id int64) (*types.Summary, error)

	// Roles (foreign references)
	AddRole(ctx context.Context, role *types.Role) error
	GetRoles(ctx context.Context, entityID int64) ([]*types.Role, error)
	CountRoles(ctx context.Context, entityID int64) (int, error)
	// CurrentRoster lists canonical persons holding a current role at
	// the given organization, the scanner's scoped candidate pool.
	CurrentRoster(ctx context.Context, orgEntityID int64, limit int) ([]*types.Entity, error)

	// Merge candidates / review queue
	// CreateCandidate inserts a pending candidate. Returns false with a
	// nil error when the ordered pair already exists: a concurrent scan
	// discovered it first and the insert is a no-op, not a race.
	CreateCandidate(ctx context.Context, c *types.MergeCandidate, actor string) (bool, error)
	GetCandidate(ctx context.Context, id int64) (*types.MergeCandidate, error)
	ListPending(ctx context.Context, limit, offset int) ([]*types.PendingCandidate, error)
	// EvaluatedPairs returns every pair of the given kind that already
	// has a candidate row, loaded once per scan as a set-once cache.
	EvaluatedPairs(ctx context.Context, kind types.EntityKind) (map[Pair]bool, error)
	RejectCandidate(ctx context.Context, id int64, actor string) (*types.MergeCandidate, error)
	History(ctx context.Context, entityID *int64, limit, offset int) ([]*types.MergeCandidate, error)

	// ExecuteMerge runs the four merge steps (backfill, reference
	// migration, demotion, audit) as a single transaction. Partial
	// application is never observable.
	ExecuteMerge(ctx context.Context, req MergeRequest) error

	// Audit trail
	GetEvents(ctx context.Context, entityID int64, limit int) ([]*types.MergeEvent, error)

	Close() error
}

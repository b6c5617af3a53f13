package types

import (
	"fmt"
	"time"
)

// CandidateStatus is the lifecycle state of a merge candidate.
// pending is the only non-terminal state; auto_merged, approved and
// rejected are all terminal and the record becomes immutable once
// reached.
type CandidateStatus string

const (
	StatusPending    CandidateStatus = "pending"
	StatusAutoMerged CandidateStatus = "auto_merged"
	StatusApproved   CandidateStatus = "approved"
	StatusRejected   CandidateStatus = "rejected"
)

// IsValid checks if the status is a known lifecycle state
func (s CandidateStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAutoMerged, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s CandidateStatus) IsTerminal() bool {
	return s != StatusPending && s.IsValid()
}

// MatchType records which comparison produced a match. Person-name
// verdicts and resolver stage provenance share the same namespace so a
// candidate row always carries the logic that proposed it.
type MatchType string

const (
	// Person name matcher verdicts
	MatchExact    MatchType = "exact"
	MatchNickname MatchType = "nickname"
	MatchFuzzy    MatchType = "fuzzy"

	// Resolver stage provenance
	MatchIdentifier   MatchType = "identifier"
	MatchDomain       MatchType = "domain"
	MatchNameLocation MatchType = "name_location"
	MatchNameFuzzy    MatchType = "name_fuzzy"

	MatchNone MatchType = "no_match"
)

// MergeCandidate is a proposed or decided pairing of two entities.
//
// The pair is always stored with EntityAID < EntityBID so an unordered
// pair has exactly one identity regardless of discovery order; a UNIQUE
// constraint on the ordered pair makes repeated scans idempotent and
// serializes concurrent discovery of the same pair.
type MergeCandidate struct {
	ID                int64           `json:"id"`
	EntityAID         int64           `json:"entity_a_id"`
	EntityBID         int64           `json:"entity_b_id"`
	Kind              EntityKind      `json:"kind"`
	MatchType         MatchType       `json:"match_type"`
	Similarity        float64         `json:"similarity"`
	Evidence          string          `json:"evidence,omitempty"`
	Status            CandidateStatus `json:"status"`
	CanonicalEntityID *int64          `json:"canonical_entity_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	ReviewedAt        *time.Time      `json:"reviewed_at,omitempty"`
}

// Validate checks if the candidate has valid field values
func (c *MergeCandidate) Validate() error {
	if c.EntityAID >= c.EntityBID {
		return fmt.Errorf("entity pair must be ordered: a (%d) must be less than b (%d)", c.EntityAID, c.EntityBID)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("invalid candidate status: %q", c.Status)
	}
	if c.Similarity < 0.0 || c.Similarity > 1.0 {
		return fmt.Errorf("similarity must be between 0.0 and 1.0 (got %.2f)", c.Similarity)
	}
	if c.Status.IsTerminal() && c.Status != StatusRejected && c.CanonicalEntityID == nil {
		return fmt.Errorf("canonical_entity_id must be set once status is %s", c.Status)
	}
	return nil
}

// Involves reports whether the candidate references the given entity.
func (c *MergeCandidate) Involves(entityID int64) bool {
	return c.EntityAID == entityID || c.EntityBID == entityID
}

// OtherSide returns the entity on the opposite side of the pair from
// canonicalID.
func (c *MergeCandidate) OtherSide(canonicalID int64) int64 {
	if c.EntityAID == canonicalID {
		return c.EntityBID
	}
	return c.EntityAID
}

// OrderPair returns the two ids in ascending order.
func OrderPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// PendingCandidate is a merge candidate enriched with both entities'
// summaries, as served to the review queue.
type PendingCandidate struct {
	Candidate MergeCandidate `json:"candidate"`
	EntityA   Summary        `json:"entity_a"`
	EntityB   Summary        `json:"entity_b"`
}

// Decision is the outcome of a manual approve or reject.
type Decision struct {
	CandidateID int64           `json:"candidate_id"`
	Status      CandidateStatus `json:"status"`
	CanonicalID *int64          `json:"canonical_id,omitempty"`
	DuplicateID *int64          `json:"duplicate_id,omitempty"`
}

// MergeEvent is one append-only audit trail row. Events are written in
// the same transaction as the state change they describe.
type MergeEvent struct {
	ID          int64     `json:"id"`
	CandidateID *int64    `json:"candidate_id,omitempty"`
	EntityID    int64     `json:"entity_id"`
	EventType   string    `json:"event_type"`
	Actor       string    `json:"actor"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Merge event types
const (
	EventEntityCreated   = "entity_created"
	EventCandidateQueued = "candidate_queued"
	EventAutoMerged      = "auto_merged"
	EventApproved        = "approved"
	EventRejected        = "rejected"
	EventDemoted         = "demoted"
	EventRoleMigrated    = "role_migrated"
	EventRoleCollapsed   = "role_collapsed"
)

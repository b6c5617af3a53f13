package types

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind distinguishes the record shapes the engine resolves.
// All kinds share the same capability set: a display name, optional
// external identifiers, and zero or more foreign references.
type EntityKind string

const (
	KindCompany  EntityKind = "company"
	KindInvestor EntityKind = "investor"
	KindPerson   EntityKind = "person"
)

// IsValid checks if the entity kind is one of the known kinds
func (k EntityKind) IsValid() bool {
	switch k {
	case KindCompany, KindInvestor, KindPerson:
		return true
	}
	return false
}

// IsBusiness reports whether the kind is resolved through the staged
// company/investor pipeline rather than the person name matcher.
func (k EntityKind) IsBusiness() bool {
	return k == KindCompany || k == KindInvestor
}

// IdentifierKind names an external identifier namespace (domain, SEC CIK,
// LinkedIn slug, ...). Free-form so new sources can add kinds without a
// schema change; uniqueness is enforced per (kind, value) among canonical
// entities.
type IdentifierKind string

const (
	IdentDomain   IdentifierKind = "domain"
	IdentSECCIK   IdentifierKind = "sec_cik"
	IdentLinkedIn IdentifierKind = "linkedin"
	IdentCrunch   IdentifierKind = "crunchbase"
)

// Entity is a canonical record for a company, investor, or person.
//
// An entity stays canonical until it is merged into another entity, at
// which point it becomes a permanent alias: IsCanonical flips to false,
// CanonicalID points at the surviving record, and the row is never
// deleted so its id remains resolvable for audit.
type Entity struct {
	ID             int64      `json:"id"`
	Kind           EntityKind `json:"kind"`
	DisplayName    string     `json:"display_name"`
	NormalizedName string     `json:"normalized_name"`
	Website        string     `json:"website,omitempty"`
	Location       string     `json:"location,omitempty"`
	Email          string     `json:"email,omitempty"`
	ProfileURL     string     `json:"profile_url,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	IsCanonical    bool       `json:"is_canonical"`
	CanonicalID    *int64     `json:"canonical_id,omitempty"`

	// Identifiers maps identifier kind to value; at most one value per
	// kind on a canonical record.
	Identifiers map[IdentifierKind]string `json:"identifiers,omitempty"`

	// DataSources accumulates provenance tags across merges (union,
	// never shrinks).
	DataSources []string `json:"data_sources,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the entity has valid field values
func (e *Entity) Validate() error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("invalid entity kind: %q", e.Kind)
	}
	if strings.TrimSpace(e.DisplayName) == "" {
		return fmt.Errorf("display_name cannot be empty")
	}
	if e.IsCanonical && e.CanonicalID != nil {
		return fmt.Errorf("canonical entity cannot have canonical_id set")
	}
	if !e.IsCanonical && e.CanonicalID == nil {
		return fmt.Errorf("non-canonical entity must have canonical_id set")
	}
	return nil
}

// HasSource reports whether the given provenance tag is already recorded.
func (e *Entity) HasSource(tag string) bool {
	for _, s := range e.DataSources {
		if s == tag {
			return true
		}
	}
	return false
}

// Summary is the abbreviated entity view attached to review-queue listings.
type Summary struct {
	ID          int64      `json:"id"`
	Kind        EntityKind `json:"kind"`
	DisplayName string     `json:"display_name"`
	Location    string     `json:"location,omitempty"`
	RoleCount   int        `json:"role_count"`
	IsCanonical bool       `json:"is_canonical"`
}

// Role is a foreign reference owned by a person entity: a position held
// at an organization. It is the concrete child record migrated by the
// merge executor.
type Role struct {
	ID          int64      `json:"id"`
	EntityID    int64      `json:"entity_id"`
	OrgEntityID *int64     `json:"org_entity_id,omitempty"`
	OrgName     string     `json:"org_name"`
	Title       string     `json:"title"`
	Started     *time.Time `json:"started,omitempty"`
	Ended       *time.Time `json:"ended,omitempty"`
	IsCurrent   bool       `json:"is_current"`
}

// NaturalKey returns the key used to detect equivalent roles during a
// merge: same organization, same title, same start date. Two roles with
// equal natural keys are collapsed rather than duplicated on the
// canonical side.
func (r *Role) NaturalKey() string {
	org := strings.ToLower(strings.TrimSpace(r.OrgName))
	if r.OrgEntityID != nil {
		org = fmt.Sprintf("org:%d", *r.OrgEntityID)
	}
	started := ""
	if r.Started != nil {
		started = r.Started.UTC().Format("2006-01-02")
	}
	return org + "|" + strings.ToLower(strings.TrimSpace(r.Title)) + "|" + started
}

// RawRecord is the shape ingestion collaborators hand to the resolver: a
// name, a kind, and whatever auxiliary signals the source produced.
type RawRecord struct {
	Name        string                    `json:"name"`
	Kind        EntityKind                `json:"kind"`
	Website     string                    `json:"website,omitempty"`
	Location    string                    `json:"location,omitempty"`
	Email       string                    `json:"email,omitempty"`
	ProfileURL  string                    `json:"profile_url,omitempty"`
	Bio         string                    `json:"bio,omitempty"`
	Identifiers map[IdentifierKind]string `json:"identifiers,omitempty"`
	Source      string                    `json:"source,omitempty"`
}

// Validate checks if the raw record can be resolved at all
func (r *RawRecord) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("invalid record kind: %q", r.Kind)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: record has no name", ErrEmptyName)
	}
	return nil
}

// Package resolver matches incoming company and investor records
// against existing canonical entities through a staged pipeline. Each
// stage is cheaper and more precise than the next; the first confident
// hit wins and its stage is recorded as the match provenance. The
// resolver never mutates storage.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/fundscope/fundscope/internal/similarity"
	"github.com/fundscope/fundscope/internal/storage"
	"github.com/fundscope/fundscope/internal/types"
)

// Resolution is the outcome of resolving one raw record. EntityID is
// zero when no stage matched; the caller decides whether to create a
// new entity. Created is filled in by the caller after creation.
type Resolution struct {
	EntityID   int64           `json:"entity_id"`
	Created    bool            `json:"created"`
	MatchType  types.MatchType `json:"match_type"`
	Similarity float64         `json:"similarity"`
	Evidence   string          `json:"evidence,omitempty"`
}

// Matched reports whether some stage found an existing entity.
func (r *Resolution) Matched() bool {
	return r.EntityID != 0 && !r.Created
}

// identifierStages is the fixed evaluation order for the identifier
// stage. Domain is excluded here; it has its own stage that also
// considers the record's website.
var identifierStages = []types.IdentifierKind{
	types.IdentSECCIK,
	types.IdentLinkedIn,
	types.IdentCrunch,
}

// Resolver runs the staged company/investor pipeline.
type Resolver struct {
	store          storage.Storage
	norm           *similarity.CompanyNormalizer
	fuzzyThreshold float64
	pageSize       int
}

// New creates a resolver. fuzzyThreshold gates the final fuzzy-name
// stage; cacheSize bounds the normalizer memo cache (<=0 for default).
func New(store storage.Storage, fuzzyThreshold float64, cacheSize int) (*Resolver, error) {
	if fuzzyThreshold <= 0 || fuzzyThreshold > 1 {
		return nil, fmt.Errorf("fuzzy threshold must be in (0.0, 1.0] (got %.2f)", fuzzyThreshold)
	}
	return &Resolver{
		store:          store,
		norm:           similarity.NewCompanyNormalizer(cacheSize),
		fuzzyThreshold: fuzzyThreshold,
		pageSize:       500,
	}, nil
}

// Normalize exposes the resolver's company normalization, used by the
// engine when it creates the entity a record resolved to nothing.
func (r *Resolver) Normalize(name string) string {
	return r.norm.Normalize(name)
}

// Resolve runs the stages in order: identifier, domain, name+location,
// fuzzy name. A name that normalizes to nothing skips the name stages
// entirely; an empty string must never be the basis of a merge.
func (r *Resolver) Resolve(ctx context.Context, rec *types.RawRecord) (*Resolution, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if !rec.Kind.IsBusiness() {
		return nil, fmt.Errorf("resolver handles company and investor records, not %s", rec.Kind)
	}

	if res, err := r.byIdentifier(ctx, rec); err != nil || res != nil {
		return res, err
	}
	if res, err := r.byDomain(ctx, rec); err != nil || res != nil {
		return res, err
	}

	normalized := r.norm.Normalize(rec.Name)
	if normalized == "" {
		return &Resolution{MatchType: types.MatchNone}, nil
	}

	if res, err := r.byNameLocation(ctx, rec, normalized); err != nil || res != nil {
		return res, err
	}
	if res, err := r.byFuzzyName(ctx, rec, normalized); err != nil || res != nil {
		return res, err
	}
	return &Resolution{MatchType: types.MatchNone}, nil
}

func (r *Resolver) byIdentifier(ctx context.Context, rec *types.RawRecord) (*Resolution, error) {
	for _, kind := range identifierStages {
		value := strings.TrimSpace(rec.Identifiers[kind])
		if value == "" {
			continue
		}
		e, err := r.store.FindByIdentifier(ctx, rec.Kind, kind, value)
		if err == types.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("identifier stage: %w", err)
		}
		return &Resolution{
			EntityID:   e.ID,
			MatchType:  types.MatchIdentifier,
			Similarity: 1.0,
			Evidence:   fmt.Sprintf("shared identifier %s=%s", kind, value),
		}, nil
	}
	return nil, nil
}

func (r *Resolver) byDomain(ctx context.Context, rec *types.RawRecord) (*Resolution, error) {
	domain := similarity.NormalizeDomain(rec.Identifiers[types.IdentDomain])
	if domain == "" {
		domain = similarity.NormalizeDomain(rec.Website)
	}
	if domain == "" {
		return nil, nil
	}

	e, err := r.store.FindByDomain(ctx, rec.Kind, domain)
	if err == types.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("domain stage: %w", err)
	}
	return &Resolution{
		EntityID:   e.ID,
		MatchType:  types.MatchDomain,
		Similarity: 1.0,
		Evidence:   "shared domain " + domain,
	}, nil
}

// byNameLocation matches on exact normalized name. Locations constrain
// the match only when both sides have one; a missing location on either
// side does not block a name hit.
func (r *Resolver) byNameLocation(ctx context.Context, rec *types.RawRecord, normalized string) (*Resolution, error) {
	matches, err := r.store.FindByNormalizedName(ctx, rec.Kind, normalized)
	if err != nil {
		return nil, fmt.Errorf("name stage: %w", err)
	}

	recLoc := foldLocation(rec.Location)
	for _, e := range matches {
		entLoc := foldLocation(e.Location)
		if recLoc != "" && entLoc != "" && recLoc != entLoc {
			continue
		}
		evidence := "exact normalized name"
		if recLoc != "" && recLoc == entLoc {
			evidence += ", same location"
		}
		return &Resolution{
			EntityID:   e.ID,
			MatchType:  types.MatchNameLocation,
			Similarity: 1.0,
			Evidence:   evidence,
		}, nil
	}
	return nil, nil
}

// byFuzzyName scans all canonical entities of the record's kind and
// keeps the highest ratio at or above the threshold.
func (r *Resolver) byFuzzyName(ctx context.Context, rec *types.RawRecord, normalized string) (*Resolution, error) {
	var best *types.Entity
	bestRatio := 0.0

	for offset := 0; ; offset += r.pageSize {
		page, err := r.store.ListCanonical(ctx, rec.Kind, r.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("fuzzy stage: %w", err)
		}
		for _, e := range page {
			if e.NormalizedName == "" {
				continue
			}
			ratio := similarity.Ratio(normalized, e.NormalizedName)
			if ratio >= r.fuzzyThreshold && ratio > bestRatio {
				best = e
				bestRatio = ratio
			}
		}
		if len(page) < r.pageSize {
			break
		}
	}

	if best == nil {
		return nil, nil
	}
	return &Resolution{
		EntityID:   best.ID,
		MatchType:  types.MatchNameFuzzy,
		Similarity: bestRatio,
		Evidence:   fmt.Sprintf("fuzzy name match %q ~ %q (%.3f)", normalized, best.NormalizedName, bestRatio),
	}, nil
}

func foldLocation(loc string) string {
	return strings.ToLower(strings.TrimSpace(loc))
}

// GroupBatch clusters raw records whose normalized names are mutually
// similar, greedy first-fit: each record joins the first group whose
// seed it matches at or above the fuzzy threshold, else starts a new
// group. Grouping is order-dependent; callers wanting stable output
// sort the batch first. Records whose names normalize to nothing each
// form their own group.
func (r *Resolver) GroupBatch(records []*types.RawRecord) [][]*types.RawRecord {
	type group struct {
		seed    string
		members []*types.RawRecord
	}
	var groups []*group

next:
	for _, rec := range records {
		normalized := r.norm.Normalize(rec.Name)
		if normalized != "" {
			for _, g := range groups {
				if g.seed == "" {
					continue
				}
				if similarity.Ratio(normalized, g.seed) >= r.fuzzyThreshold {
					g.members = append(g.members, rec)
					continue next
				}
			}
		}
		groups = append(groups, &group{seed: normalized, members: []*types.RawRecord{rec}})
	}

	out := make([][]*types.RawRecord, len(groups))
	for i, g := range groups {
		out[i] = g.members
	}
	return out
}

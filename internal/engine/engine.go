// Package engine is the service facade over the resolution components:
// resolve incoming records, scan for duplicates, and work the review
// queue. The CLI talks only to this package.
package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fundscope/fundscope/internal/config"
	"github.com/fundscope/fundscope/internal/matcher"
	"github.com/fundscope/fundscope/internal/merge"
	"github.com/fundscope/fundscope/internal/resolver"
	"github.com/fundscope/fundscope/internal/scanner"
	"github.com/fundscope/fundscope/internal/similarity"
	"github.com/fundscope/fundscope/internal/storage"
	"github.com/fundscope/fundscope/internal/types"
)

// Engine wires the resolver, matcher, scanner and merge executor over
// one storage backend.
type Engine struct {
	store      storage.Storage
	cfg        *config.Config
	resolver   *resolver.Resolver
	scanner    *scanner.Scanner
	exec       *merge.Executor
	personNorm *similarity.PersonNormalizer
	log        *zap.Logger
}

// New builds an engine from validated configuration.
func New(store storage.Storage, cfg *config.Config, log *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	match, err := matcher.New(matcher.Config{
		AutoMergeThreshold: cfg.PersonAutoMergeThreshold,
		ReviewThreshold:    cfg.PersonReviewThreshold,
	}, cfg.NormalizerCacheSize)
	if err != nil {
		return nil, err
	}

	res, err := resolver.New(store, cfg.CompanyFuzzyThreshold, cfg.NormalizerCacheSize)
	if err != nil {
		return nil, err
	}

	exec := merge.NewExecutor(store)
	return &Engine{
		store:      store,
		cfg:        cfg,
		resolver:   res,
		scanner:    scanner.New(store, match, exec, log, cfg.ScanLimit, cfg.Workers),
		exec:       exec,
		personNorm: similarity.NewPersonNormalizer(cfg.NormalizerCacheSize),
		log:        log,
	}, nil
}

// Resolve matches a raw record against existing entities, creating a
// new canonical entity when nothing matches. Company and investor
// records go through the staged resolver; person records are always
// created and left to the duplicate scanner, which has the role context
// a single record lacks.
func (e *Engine) Resolve(ctx context.Context, rec *types.RawRecord) (*resolver.Resolution, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	if rec.Kind.IsBusiness() {
		res, err := e.resolver.Resolve(ctx, rec)
		if err != nil {
			return nil, err
		}
		if res.Matched() {
			e.log.Info("record resolved to existing entity",
				zap.String("name", rec.Name),
				zap.Int64("entity_id", res.EntityID),
				zap.String("match_type", string(res.MatchType)),
				zap.Float64("similarity", res.Similarity))
			return res, nil
		}
	}

	entity, err := e.createFromRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	e.log.Info("record created new entity",
		zap.String("name", rec.Name),
		zap.Int64("entity_id", entity.ID),
		zap.String("kind", string(rec.Kind)))
	return &resolver.Resolution{
		EntityID:  entity.ID,
		Created:   true,
		MatchType: types.MatchNone,
	}, nil
}

func (e *Engine) createFromRecord(ctx context.Context, rec *types.RawRecord) (*types.Entity, error) {
	normalized := ""
	if rec.Kind.IsBusiness() {
		normalized = e.resolver.Normalize(rec.Name)
	} else {
		normalized = e.personNorm.Normalize(rec.Name)
	}

	identifiers := make(map[types.IdentifierKind]string, len(rec.Identifiers)+1)
	for kind, value := range rec.Identifiers {
		value = strings.TrimSpace(value)
		if kind == types.IdentDomain {
			value = similarity.NormalizeDomain(value)
		}
		if value != "" {
			identifiers[kind] = value
		}
	}
	// Derive a domain identifier from the website so the next record
	// from the same site hits the domain stage.
	if identifiers[types.IdentDomain] == "" {
		if domain := similarity.NormalizeDomain(rec.Website); domain != "" {
			identifiers[types.IdentDomain] = domain
		}
	}

	var sources []string
	if rec.Source != "" {
		sources = []string{rec.Source}
	}

	entity := &types.Entity{
		Kind:           rec.Kind,
		DisplayName:    strings.TrimSpace(rec.Name),
		NormalizedName: normalized,
		Website:        rec.Website,
		Location:       rec.Location,
		Email:          rec.Email,
		ProfileURL:     rec.ProfileURL,
		Bio:            rec.Bio,
		Identifiers:    identifiers,
		DataSources:    sources,
	}
	actor := rec.Source
	if actor == "" {
		actor = "resolve"
	}
	if err := e.store.CreateEntity(ctx, entity, actor); err != nil {
		return nil, err
	}
	return entity, nil
}

// Scan runs one duplicate detection pass over person entities.
func (e *Engine) Scan(ctx context.Context, opts scanner.Options) (*scanner.Result, error) {
	if e.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ScanTimeout)
		defer cancel()
	}
	return e.scanner.Scan(ctx, opts)
}

// ListPending pages through the review queue, oldest first.
func (e *Engine) ListPending(ctx context.Context, limit, offset int) ([]*types.PendingCandidate, error) {
	return e.store.ListPending(ctx, limit, offset)
}

// Approve merges a pending candidate. canonicalEntityID designates the
// surviving side when non-zero (it must be one of the pair); zero lets
// the canonical-side policy decide. Deciding a decided candidate fails
// with ErrAlreadyDecided.
func (e *Engine) Approve(ctx context.Context, candidateID, canonicalEntityID int64, actor string) (*types.Decision, error) {
	c, err := e.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.Status != types.StatusPending {
		return nil, fmt.Errorf("candidate %d is %s: %w", candidateID, c.Status, types.ErrAlreadyDecided)
	}
	if canonicalEntityID != 0 && !c.Involves(canonicalEntityID) {
		return nil, fmt.Errorf("entity %d is not a side of candidate %d", canonicalEntityID, candidateID)
	}

	result, err := e.exec.Execute(ctx, merge.Spec{
		EntityAID:            c.EntityAID,
		EntityBID:            c.EntityBID,
		CandidateID:          c.ID,
		PreferredCanonicalID: canonicalEntityID,
		MatchType:            c.MatchType,
		Similarity:           c.Similarity,
		Evidence:             c.Evidence,
		Status:               types.StatusApproved,
		Actor:                actor,
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("candidate approved",
		zap.Int64("candidate_id", candidateID),
		zap.Int64("canonical_id", result.CanonicalID),
		zap.Int64("duplicate_id", result.DuplicateID),
		zap.String("actor", actor))
	return &types.Decision{
		CandidateID: candidateID,
		Status:      types.StatusApproved,
		CanonicalID: &result.CanonicalID,
		DuplicateID: &result.DuplicateID,
	}, nil
}

// Reject closes a pending candidate without merging. The pair is
// remembered so future scans never propose it again.
func (e *Engine) Reject(ctx context.Context, candidateID int64, actor string) (*types.Decision, error) {
	c, err := e.store.RejectCandidate(ctx, candidateID, actor)
	if err != nil {
		return nil, err
	}
	e.log.Info("candidate rejected",
		zap.Int64("candidate_id", candidateID),
		zap.String("actor", actor))
	return &types.Decision{
		CandidateID: c.ID,
		Status:      c.Status,
	}, nil
}

// History pages through past and pending candidates, optionally scoped
// to one entity.
func (e *Engine) History(ctx context.Context, entityID *int64, limit, offset int) ([]*types.MergeCandidate, error) {
	return e.store.History(ctx, entityID, limit, offset)
}

// Events lists the audit trail for one entity, newest first.
func (e *Engine) Events(ctx context.Context, entityID int64, limit int) ([]*types.MergeEvent, error) {
	return e.store.GetEvents(ctx, entityID, limit)
}

// Entity loads an entity and resolves aliases to their canonical row.
func (e *Engine) Entity(ctx context.Context, id int64) (*types.Entity, error) {
	return e.store.ResolveCanonical(ctx, id)
}

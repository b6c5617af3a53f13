// Package scanner finds duplicate person entities in bulk. A scan
// buckets canonical persons by normalized last name, compares unordered
// pairs within each bucket on a bounded worker pool, then applies the
// resulting decisions serially: auto merges execute immediately, review
// scores queue a pending candidate, and pairs already evaluated are
// skipped so repeated scans converge to a no-op.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fundscope/fundscope/internal/matcher"
	"github.com/fundscope/fundscope/internal/merge"
	"github.com/fundscope/fundscope/internal/similarity"
	"github.com/fundscope/fundscope/internal/storage"
	"github.com/fundscope/fundscope/internal/types"
)

// Options scopes one scan run.
type Options struct {
	// OrgEntityID restricts the scan to one organization's current
	// roster when non-zero.
	OrgEntityID int64
	// Limit bounds how many entities are loaded (<=0 uses the
	// scanner's default).
	Limit int
}

// Result summarizes one scan run.
type Result struct {
	ScanID        string        `json:"scan_id"`
	AutoMerged    int           `json:"auto_merged"`
	ReviewQueued  int           `json:"review_queued"`
	Skipped       int           `json:"skipped"`
	TotalCompared int           `json:"total_compared"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Scanner runs batch duplicate detection over person entities.
type Scanner struct {
	store         storage.Storage
	match         *matcher.Matcher
	exec          *merge.Executor
	norm          *similarity.PersonNormalizer
	log           *zap.Logger
	limit         int
	workers       int
	bucketMinSize int
}

// New creates a scanner. limit bounds entities per scan, workers the
// comparison pool; zero values fall back to defaults.
func New(store storage.Storage, match *matcher.Matcher, exec *merge.Executor, log *zap.Logger, limit, workers int) *Scanner {
	if limit <= 0 {
		limit = 500
	}
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{
		store:         store,
		match:         match,
		exec:          exec,
		norm:          similarity.NewPersonNormalizer(0),
		log:           log,
		limit:         limit,
		workers:       workers,
		bucketMinSize: 2,
	}
}

// pairJob is one comparison unit; the verdict slot is written by
// exactly one worker, so the results slice needs no locking.
type pairJob struct {
	a, b    *types.Entity
	verdict matcher.Verdict
}

// Scan runs one full pass. Comparisons are read-only and parallel;
// every state change happens afterwards, serially, so merges never race
// each other within a single scan.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{ScanID: uuid.NewString()}
	log := s.log.With(zap.String("scan_id", res.ScanID))

	entities, err := s.loadEntities(ctx, opts)
	if err != nil {
		return nil, err
	}

	evaluated, err := s.store.EvaluatedPairs(ctx, types.KindPerson)
	if err != nil {
		return nil, err
	}

	jobs := s.collectPairs(entities, evaluated, res)
	log.Info("scan started",
		zap.Int("entities", len(entities)),
		zap.Int("pairs", len(jobs)),
		zap.Int("already_evaluated", res.Skipped))

	if err := s.comparePairs(ctx, jobs); err != nil {
		return nil, err
	}
	res.TotalCompared = len(jobs)

	if err := s.applyDecisions(ctx, jobs, res, log); err != nil {
		return nil, err
	}

	res.Elapsed = time.Since(start)
	log.Info("scan finished",
		zap.Int("auto_merged", res.AutoMerged),
		zap.Int("review_queued", res.ReviewQueued),
		zap.Int("skipped", res.Skipped),
		zap.Int("compared", res.TotalCompared),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func (s *Scanner) loadEntities(ctx context.Context, opts Options) ([]*types.Entity, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.limit
	}

	if opts.OrgEntityID != 0 {
		entities, err := s.store.CurrentRoster(ctx, opts.OrgEntityID, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to load roster: %w", err)
		}
		return entities, nil
	}

	entities, err := s.store.ListCanonical(ctx, types.KindPerson, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}
	return entities, nil
}

// collectPairs buckets entities by normalized last name and emits the
// unordered pairs within each bucket that have no candidate row yet.
// Pairs filtered by the evaluated set count as skips.
func (s *Scanner) collectPairs(entities []*types.Entity, evaluated map[storage.Pair]bool, res *Result) []*pairJob {
	buckets := make(map[string][]*types.Entity)
	for _, e := range entities {
		normalized := s.norm.Normalize(e.DisplayName)
		key := normalized
		if _, last, ok := similarity.SplitFirstLast(normalized); ok {
			key = last
		}
		if key == "" {
			continue
		}
		buckets[key] = append(buckets[key], e)
	}

	var jobs []*pairJob
	for _, bucket := range buckets {
		if len(bucket) < s.bucketMinSize {
			continue
		}
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				if evaluated[storage.MakePair(bucket[i].ID, bucket[j].ID)] {
					res.Skipped++
					continue
				}
				jobs = append(jobs, &pairJob{a: bucket[i], b: bucket[j]})
			}
		}
	}
	return jobs
}

// comparePairs runs the read-only comparisons on a bounded pool.
func (s *Scanner) comparePairs(ctx context.Context, jobs []*pairJob) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			job.verdict = s.match.Compare(job.a.DisplayName, job.b.DisplayName)
			return nil
		})
	}
	return g.Wait()
}

// applyDecisions walks the compared pairs and writes outcomes one at a
// time. A merge that fails mid-execution degrades the pair to a pending
// candidate and the scan keeps going.
func (s *Scanner) applyDecisions(ctx context.Context, jobs []*pairJob, res *Result, log *zap.Logger) error {
	actor := "scan:" + res.ScanID
	orgKeys := make(map[int64]map[string]bool)

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !job.verdict.Matched {
			continue
		}

		shared, err := s.haveSharedContext(ctx, orgKeys, job.a.ID, job.b.ID)
		if err != nil {
			return err
		}

		switch s.match.Classify(job.verdict.Similarity, shared) {
		case matcher.ClassAutoMerge:
			s.autoMerge(ctx, job, actor, res, log)
		case matcher.ClassReview:
			if err := s.queueReview(ctx, job, actor, res); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scanner) autoMerge(ctx context.Context, job *pairJob, actor string, res *Result, log *zap.Logger) {
	_, err := s.exec.Execute(ctx, merge.Spec{
		EntityAID:  job.a.ID,
		EntityBID:  job.b.ID,
		MatchType:  job.verdict.MatchType,
		Similarity: job.verdict.Similarity,
		Evidence:   job.verdict.Note,
		Status:     types.StatusAutoMerged,
		Actor:      actor,
	})
	if err == nil {
		res.AutoMerged++
		return
	}

	if errors.Is(err, types.ErrAlreadyDecided) {
		res.Skipped++
		return
	}

	var mergeErr *types.MergeExecutionError
	if errors.As(err, &mergeErr) {
		// The merge rolled back; keep the signal by queueing the pair
		// for human review instead of aborting the scan.
		log.Warn("auto merge failed, degrading to review",
			zap.Int64("entity_a", job.a.ID),
			zap.Int64("entity_b", job.b.ID),
			zap.Error(mergeErr))
		if qerr := s.queueReview(ctx, job, actor, res); qerr != nil {
			log.Error("failed to queue degraded candidate",
				zap.Int64("entity_a", job.a.ID),
				zap.Int64("entity_b", job.b.ID),
				zap.Error(qerr))
		}
		return
	}

	log.Error("auto merge failed",
		zap.Int64("entity_a", job.a.ID),
		zap.Int64("entity_b", job.b.ID),
		zap.Error(err))
	res.Skipped++
}

func (s *Scanner) queueReview(ctx context.Context, job *pairJob, actor string, res *Result) error {
	a, b := types.OrderPair(job.a.ID, job.b.ID)
	created, err := s.store.CreateCandidate(ctx, &types.MergeCandidate{
		EntityAID:  a,
		EntityBID:  b,
		Kind:       types.KindPerson,
		MatchType:  job.verdict.MatchType,
		Similarity: job.verdict.Similarity,
		Evidence:   job.verdict.Note,
		Status:     types.StatusPending,
	}, actor)
	if err != nil {
		return fmt.Errorf("failed to queue candidate for (%d, %d): %w", a, b, err)
	}
	if created {
		res.ReviewQueued++
	} else {
		res.Skipped++
	}
	return nil
}

// haveSharedContext reports whether both entities hold a current role
// at the same organization. Role lookups are memoized for the scan.
func (s *Scanner) haveSharedContext(ctx context.Context, cache map[int64]map[string]bool, aID, bID int64) (bool, error) {
	keysA, err := s.currentOrgKeys(ctx, cache, aID)
	if err != nil {
		return false, err
	}
	keysB, err := s.currentOrgKeys(ctx, cache, bID)
	if err != nil {
		return false, err
	}
	for key := range keysA {
		if keysB[key] {
			return true, nil
		}
	}
	return false, nil
}

func (s *Scanner) currentOrgKeys(ctx context.Context, cache map[int64]map[string]bool, entityID int64) (map[string]bool, error) {
	if keys, ok := cache[entityID]; ok {
		return keys, nil
	}
	roles, err := s.store.GetRoles(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles for %d: %w", entityID, err)
	}
	keys := make(map[string]bool)
	for _, r := range roles {
		if !r.IsCurrent {
			continue
		}
		if key := orgKey(r); key != "" {
			keys[key] = true
		}
	}
	cache[entityID] = keys
	return keys, nil
}

func orgKey(r *types.Role) string {
	if r.OrgEntityID != nil {
		return fmt.Sprintf("org:%d", *r.OrgEntityID)
	}
	return strings.ToLower(strings.TrimSpace(r.OrgName))
}

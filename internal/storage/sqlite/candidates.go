package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fundscope/fundscope/internal/storage"
	"github.com/fundscope/fundscope/internal/types"
)

// CreateCandidate inserts a pending merge candidate with its pair in
// canonical order. A unique-constraint hit means another scan already
// recorded the pair; that is reported as created=false with no error so
// callers treat it as a no-op rather than a race.
func (s *Store) CreateCandidate(ctx context.Context, c *types.MergeCandidate, actor string) (bool, error) {
	c.EntityAID, c.EntityBID = types.OrderPair(c.EntityAID, c.EntityBID)
	if c.Status == "" {
		c.Status = types.StatusPending
	}
	if err := c.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}
	c.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO merge_candidates (
			entity_a_id, entity_b_id, kind, match_type, similarity,
			evidence, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_a_id, entity_b_id) DO NOTHING
	`, c.EntityAID, c.EntityBID, c.Kind, c.MatchType, c.Similarity,
		c.Evidence, c.Status, c.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert candidate: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read candidate id: %w", err)
	}
	c.ID = id

	for _, entityID := range []int64{c.EntityAID, c.EntityBID} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO merge_events (candidate_id, entity_id, event_type, actor, detail)
			VALUES (?, ?, ?, ?, ?)
		`, id, entityID, types.EventCandidateQueued, actor,
			fmt.Sprintf("%s match, similarity %.3f", c.MatchType, c.Similarity)); err != nil {
			return false, fmt.Errorf("failed to record event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

const candidateColumns = `
	id, entity_a_id, entity_b_id, kind, match_type, similarity,
	evidence, status, canonical_entity_id, created_at, reviewed_at`

func scanCandidate(row interface{ Scan(...interface{}) error }) (*types.MergeCandidate, error) {
	var c types.MergeCandidate
	var canonicalID sql.NullInt64
	var reviewedAt sql.NullTime

	err := row.Scan(
		&c.ID, &c.EntityAID, &c.EntityBID, &c.Kind, &c.MatchType,
		&c.Similarity, &c.Evidence, &c.Status, &canonicalID,
		&c.CreatedAt, &reviewedAt,
	)
	if err != nil {
		return nil, err
	}

	if canonicalID.Valid {
		c.CanonicalEntityID = &canonicalID.Int64
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		c.ReviewedAt = &t
	}
	return &c, nil
}

// GetCandidate retrieves a merge candidate by id
func (s *Store) GetCandidate(ctx context.Context, id int64) (*types.MergeCandidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+candidateColumns+` FROM merge_candidates WHERE id = ?
	`, id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("candidate %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate %d: %w", id, err)
	}
	return c, nil
}

// ListPending pages through pending candidates, oldest first, enriched
// with both entities' summaries for the review queue.
func (s *Store) ListPending(ctx context.Context, limit, offset int) ([]*types.PendingCandidate, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM merge_candidates
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*types.MergeCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pending := make([]*types.PendingCandidate, 0, len(candidates))
	for _, c := range candidates {
		sumA, err := s.GetSummary(ctx, c.EntityAID)
		if err != nil {
			return nil, err
		}
		sumB, err := s.GetSummary(ctx, c.EntityBID)
		if err != nil {
			return nil, err
		}
		pending = append(pending, &types.PendingCandidate{
			Candidate: *c,
			EntityA:   *sumA,
			EntityB:   *sumB,
		})
	}
	return pending, nil
}

// EvaluatedPairs returns every ordered pair of the given kind that
// already has a candidate row, regardless of status. Loaded once at the
// start of a scan so repeated scans skip known pairs cheaply.
func (s *Store) EvaluatedPairs(ctx context.Context, kind types.EntityKind) (map[storage.Pair]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_a_id, entity_b_id FROM merge_candidates WHERE kind = ?
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluated pairs: %w", err)
	}
	defer rows.Close()

	pairs := make(map[storage.Pair]bool)
	for rows.Next() {
		var p storage.Pair
		if err := rows.Scan(&p.A, &p.B); err != nil {
			return nil, fmt.Errorf("failed to scan pair: %w", err)
		}
		pairs[p] = true
	}
	return pairs, rows.Err()
}

// RejectCandidate moves a pending candidate to rejected. Deciding an
// already-decided candidate fails with ErrAlreadyDecided and changes
// nothing.
func (s *Store) RejectCandidate(ctx context.Context, id int64, actor string) (*types.MergeCandidate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+candidateColumns+` FROM merge_candidates WHERE id = ?
	`, id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("candidate %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate %d: %w", id, err)
	}
	if c.Status != types.StatusPending {
		return nil, fmt.Errorf("candidate %d is %s: %w", id, c.Status, types.ErrAlreadyDecided)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE merge_candidates SET status = ?, reviewed_at = ? WHERE id = ?
	`, types.StatusRejected, now, id); err != nil {
		return nil, fmt.Errorf("failed to reject candidate %d: %w", id, err)
	}

	for _, entityID := range []int64{c.EntityAID, c.EntityBID} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO merge_events (candidate_id, entity_id, event_type, actor, detail)
			VALUES (?, ?, ?, ?, '')
		`, id, entityID, types.EventRejected, actor); err != nil {
			return nil, fmt.Errorf("failed to record event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.Status = types.StatusRejected
	c.ReviewedAt = &now
	return c, nil
}

// History pages through candidates newest first, optionally filtered to
// one entity's involvement on either side of the pair.
func (s *Store) History(ctx context.Context, entityID *int64, limit, offset int) ([]*types.MergeCandidate, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []interface{}{}
	if entityID != nil {
		where = "WHERE entity_a_id = ? OR entity_b_id = ?"
		args = append(args, *entityID, *entityID)
	}
	args = append(args, limit, offset)

	query := strings.Join([]string{
		"SELECT " + candidateColumns,
		"FROM merge_candidates",
		where,
		"ORDER BY created_at DESC, id DESC",
		"LIMIT ? OFFSET ?",
	}, "\n")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var candidates []*types.MergeCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// GetEvents lists the audit trail rows touching an entity, newest
// first.
func (s *Store) GetEvents(ctx context.Context, entityID int64, limit int) ([]*types.MergeEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, candidate_id, entity_id, event_type, actor, detail, created_at
		FROM merge_events
		WHERE entity_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*types.MergeEvent
	for rows.Next() {
		var ev types.MergeEvent
		var candidateID sql.NullInt64
		if err := rows.Scan(&ev.ID, &candidateID, &ev.EntityID, &ev.EventType,
			&ev.Actor, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if candidateID.Valid {
			ev.CandidateID = &candidateID.Int64
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

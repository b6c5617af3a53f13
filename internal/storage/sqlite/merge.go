package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fundscope/fundscope/internal/storage"
	"github.com/fundscope/fundscope/internal/types"
)

// ExecuteMerge runs one merge as a single atomic unit: field backfill,
// reference migration, demotion and the audit write commit together or
// not at all.
//
// The transaction is opened with BEGIN IMMEDIATE so it takes the write
// lock up front; two merges touching overlapping entities serialize
// here instead of migrating references against a row the other merge
// just demoted. Precondition failures (unknown ids, decided candidate,
// demoted side) surface as the engine's sentinel errors; anything that
// fails after the preconditions is wrapped in MergeExecutionError with
// the transaction rolled back.
func (s *Store) ExecuteMerge(ctx context.Context, req storage.MergeRequest) error {
	if req.CanonicalID == req.DuplicateID {
		return fmt.Errorf("cannot merge entity %d into itself", req.CanonicalID)
	}
	if req.Status != types.StatusAutoMerged && req.Status != types.StatusApproved {
		return fmt.Errorf("merge status must be auto_merged or approved (got %s)", req.Status)
	}

	// A dedicated connection so BEGIN IMMEDIATE and COMMIT run on the
	// same underlying handle; the pool would otherwise spread them over
	// different connections.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so rollback happens even when ctx is
			// already canceled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	canonical, err := getEntityOn(ctx, conn, req.CanonicalID)
	if err != nil {
		return err
	}
	duplicate, err := getEntityOn(ctx, conn, req.DuplicateID)
	if err != nil {
		return err
	}
	if !canonical.IsCanonical {
		return fmt.Errorf("entity %d is no longer canonical: %w", canonical.ID, types.ErrAlreadyDecided)
	}
	if !duplicate.IsCanonical {
		return fmt.Errorf("entity %d was already merged into %d: %w",
			duplicate.ID, *duplicate.CanonicalID, types.ErrAlreadyDecided)
	}

	if req.CandidateID != 0 {
		var status types.CandidateStatus
		err := conn.QueryRowContext(ctx, `
			SELECT status FROM merge_candidates WHERE id = ?
		`, req.CandidateID).Scan(&status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("candidate %d: %w", req.CandidateID, types.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load candidate %d: %w", req.CandidateID, err)
		}
		if status != types.StatusPending {
			return fmt.Errorf("candidate %d is %s: %w", req.CandidateID, status, types.ErrAlreadyDecided)
		}
	}

	now := time.Now().UTC()

	wrap := func(step string, err error) error {
		return &types.MergeExecutionError{
			CanonicalID: req.CanonicalID,
			DuplicateID: req.DuplicateID,
			Err:         fmt.Errorf("%s: %w", step, err),
		}
	}

	if err := backfillFields(ctx, conn, canonical, duplicate, now); err != nil {
		return wrap("backfill", err)
	}
	migrated, collapsed, err := migrateRoles(ctx, conn, canonical, duplicate, req, now)
	if err != nil {
		return wrap("reference migration", err)
	}
	if err := demoteDuplicate(ctx, conn, canonical.ID, duplicate.ID, now); err != nil {
		return wrap("demotion", err)
	}
	candidateID, err := recordCandidateOutcome(ctx, conn, req, now)
	if err != nil {
		return wrap("candidate update", err)
	}

	eventType := types.EventAutoMerged
	if req.Status == types.StatusApproved {
		eventType = types.EventApproved
	}
	detail := fmt.Sprintf("merged %d into %d (%s, similarity %.3f); roles migrated=%d collapsed=%d",
		duplicate.ID, canonical.ID, req.MatchType, req.Similarity, migrated, collapsed)
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO merge_events (candidate_id, entity_id, event_type, actor, detail)
		VALUES (?, ?, ?, ?, ?)
	`, candidateID, canonical.ID, eventType, req.Actor, detail); err != nil {
		return wrap("audit", err)
	}
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO merge_events (candidate_id, entity_id, event_type, actor, detail)
		VALUES (?, ?, ?, ?, ?)
	`, candidateID, duplicate.ID, types.EventDemoted, req.Actor,
		fmt.Sprintf("now an alias of %d", canonical.ID)); err != nil {
		return wrap("audit", err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return wrap("commit", err)
	}
	committed = true
	return nil
}

// getEntityOn loads an entity (without identifiers) on the merge
// connection so the read happens inside the transaction.
func getEntityOn(ctx context.Context, conn *sql.Conn, id int64) (*types.Entity, error) {
	row := conn.QueryRowContext(ctx, `SELECT`+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entity %d: %w", id, err)
	}
	return e, nil
}

// backfillFields copies every optional field present on the duplicate
// but empty on the canonical, unions data_sources, and adopts external
// identifier kinds the canonical lacks. Non-empty canonical values are
// never overwritten.
func backfillFields(ctx context.Context, conn *sql.Conn, canonical, duplicate *types.Entity, now time.Time) error {
	pick := func(canon, dup string) string {
		if canon == "" {
			return dup
		}
		return canon
	}

	merged := map[string]bool{}
	for _, src := range canonical.DataSources {
		merged[src] = true
	}
	union := append([]string{}, canonical.DataSources...)
	for _, src := range duplicate.DataSources {
		if !merged[src] {
			merged[src] = true
			union = append(union, src)
		}
	}
	sources, err := json.Marshal(sourcesOrEmpty(union))
	if err != nil {
		return fmt.Errorf("failed to marshal data sources: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `
		UPDATE entities
		SET website = ?, location = ?, email = ?, profile_url = ?, bio = ?,
		    data_sources = ?, updated_at = ?
		WHERE id = ?
	`,
		pick(canonical.Website, duplicate.Website),
		pick(canonical.Location, duplicate.Location),
		pick(canonical.Email, duplicate.Email),
		pick(canonical.ProfileURL, duplicate.ProfileURL),
		pick(canonical.Bio, duplicate.Bio),
		string(sources), now, canonical.ID,
	); err != nil {
		return fmt.Errorf("failed to backfill entity %d: %w", canonical.ID, err)
	}

	// Adopt identifier kinds the canonical does not hold. The
	// duplicate's own rows stay with the alias for history; lookups
	// only consider canonical entities.
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO external_identifiers (entity_id, kind, value)
		SELECT ?, xi.kind, xi.value
		FROM external_identifiers xi
		WHERE xi.entity_id = ?
		  AND xi.kind NOT IN (SELECT kind FROM external_identifiers WHERE entity_id = ?)
	`, canonical.ID, duplicate.ID, canonical.ID); err != nil {
		return fmt.Errorf("failed to adopt identifiers: %w", err)
	}
	return nil
}

// migrateRoles moves every foreign reference owned by the duplicate to
// the canonical side. A reference equivalent to one the canonical
// already owns (same natural key) is collapsed: missing fields are
// merged into the canonical's copy and the duplicate's copy is deleted.
// Everything else is re-pointed.
func migrateRoles(ctx context.Context, conn *sql.Conn, canonical, duplicate *types.Entity, req storage.MergeRequest, now time.Time) (migrated, collapsed int, err error) {
	canonRoles, err := rolesOn(ctx, conn, canonical.ID)
	if err != nil {
		return 0, 0, err
	}
	byKey := make(map[string]*types.Role, len(canonRoles))
	for _, r := range canonRoles {
		byKey[r.NaturalKey()] = r
	}

	dupRoles, err := rolesOn(ctx, conn, duplicate.ID)
	if err != nil {
		return 0, 0, err
	}

	for _, dr := range dupRoles {
		existing, ok := byKey[dr.NaturalKey()]
		if !ok {
			if _, err := conn.ExecContext(ctx, `
				UPDATE roles SET entity_id = ? WHERE id = ?
			`, canonical.ID, dr.ID); err != nil {
				return migrated, collapsed, fmt.Errorf("failed to re-point role %d: %w", dr.ID, err)
			}
			dr.EntityID = canonical.ID
			byKey[dr.NaturalKey()] = dr
			migrated++
			if err := roleEvent(ctx, conn, canonical.ID, types.EventRoleMigrated, req.Actor, dr); err != nil {
				return migrated, collapsed, err
			}
			continue
		}

		// Merge fields the canonical's copy lacks, then drop the
		// duplicate's copy so no uniqueness conflict or double listing
		// survives.
		ended := existing.Ended
		if ended == nil {
			ended = dr.Ended
		}
		orgID := existing.OrgEntityID
		if orgID == nil {
			orgID = dr.OrgEntityID
		}
		isCurrent := existing.IsCurrent || dr.IsCurrent
		if _, err := conn.ExecContext(ctx, `
			UPDATE roles SET ended = ?, org_entity_id = ?, is_current = ? WHERE id = ?
		`, ended, orgID, boolToInt(isCurrent), existing.ID); err != nil {
			return migrated, collapsed, fmt.Errorf("failed to merge role %d: %w", existing.ID, err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, dr.ID); err != nil {
			return migrated, collapsed, fmt.Errorf("failed to collapse role %d: %w", dr.ID, err)
		}
		collapsed++
		if err := roleEvent(ctx, conn, canonical.ID, types.EventRoleCollapsed, req.Actor, dr); err != nil {
			return migrated, collapsed, err
		}
	}
	return migrated, collapsed, nil
}

func rolesOn(ctx context.Context, conn *sql.Conn, entityID int64) ([]*types.Role, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE entity_id = ? ORDER BY id
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles for %d: %w", entityID, err)
	}
	defer rows.Close()

	var roles []*types.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func roleEvent(ctx context.Context, conn *sql.Conn, entityID int64, eventType, actor string, role *types.Role) error {
	detail := fmt.Sprintf("%s at %s", role.Title, role.OrgName)
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO merge_events (entity_id, event_type, actor, detail)
		VALUES (?, ?, ?, ?)
	`, entityID, eventType, actor, detail); err != nil {
		return fmt.Errorf("failed to record role event: %w", err)
	}
	return nil
}

// demoteDuplicate marks the duplicate as an alias of the canonical and
// re-points any aliases of the duplicate at the canonical, so no
// canonical pointer ever chains through a non-canonical row.
func demoteDuplicate(ctx context.Context, conn *sql.Conn, canonicalID, duplicateID int64, now time.Time) error {
	if _, err := conn.ExecContext(ctx, `
		UPDATE entities SET canonical_id = ?, updated_at = ? WHERE canonical_id = ?
	`, canonicalID, now, duplicateID); err != nil {
		return fmt.Errorf("failed to re-point aliases of %d: %w", duplicateID, err)
	}
	if _, err := conn.ExecContext(ctx, `
		UPDATE entities SET is_canonical = 0, canonical_id = ?, updated_at = ? WHERE id = ?
	`, canonicalID, now, duplicateID); err != nil {
		return fmt.Errorf("failed to demote entity %d: %w", duplicateID, err)
	}
	return nil
}

// recordCandidateOutcome advances the candidate to its terminal status,
// inserting the row first when the pair was discovered in-flight.
func recordCandidateOutcome(ctx context.Context, conn *sql.Conn, req storage.MergeRequest, now time.Time) (int64, error) {
	a, b := types.OrderPair(req.CanonicalID, req.DuplicateID)

	if req.CandidateID != 0 {
		res, err := conn.ExecContext(ctx, `
			UPDATE merge_candidates
			SET status = ?, canonical_entity_id = ?, reviewed_at = ?
			WHERE id = ? AND status = 'pending'
		`, req.Status, req.CanonicalID, now, req.CandidateID)
		if err != nil {
			return 0, fmt.Errorf("failed to update candidate %d: %w", req.CandidateID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if affected == 0 {
			return 0, fmt.Errorf("candidate %d: %w", req.CandidateID, types.ErrAlreadyDecided)
		}
		return req.CandidateID, nil
	}

	// In-flight discovery: upsert so a pending row a concurrent scan
	// slipped in is advanced instead of duplicated. A terminal row is
	// left untouched and the merge is refused.
	res, err := conn.ExecContext(ctx, `
		INSERT INTO merge_candidates (
			entity_a_id, entity_b_id, kind, match_type, similarity,
			evidence, status, canonical_entity_id, created_at, reviewed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_a_id, entity_b_id) DO UPDATE SET
			status = excluded.status,
			canonical_entity_id = excluded.canonical_entity_id,
			reviewed_at = excluded.reviewed_at
		WHERE merge_candidates.status = 'pending'
	`, a, b, req.Kind, req.MatchType, req.Similarity, req.Evidence,
		req.Status, req.CanonicalID, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to record candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, fmt.Errorf("pair (%d, %d): %w", a, b, types.ErrAlreadyDecided)
	}

	var id int64
	if err := conn.QueryRowContext(ctx, `
		SELECT id FROM merge_candidates WHERE entity_a_id = ? AND entity_b_id = ?
	`, a, b).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read candidate id: %w", err)
	}
	return id, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fundscope/fundscope/internal/types"
)

// AddRole inserts a foreign reference owned by an entity
func (s *Store) AddRole(ctx context.Context, role *types.Role) error {
	if role.EntityID == 0 {
		return fmt.Errorf("role must have an owning entity")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO roles (entity_id, org_entity_id, org_name, title, started, ended, is_current)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, role.EntityID, role.OrgEntityID, role.OrgName, role.Title,
		role.Started, role.Ended, boolToInt(role.IsCurrent))
	if err != nil {
		return fmt.Errorf("failed to insert role: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read role id: %w", err)
	}
	role.ID = id
	return nil
}

const roleColumns = `id, entity_id, org_entity_id, org_name, title, started, ended, is_current`

func scanRole(row interface{ Scan(...interface{}) error }) (*types.Role, error) {
	var r types.Role
	var orgID sql.NullInt64
	var started, ended sql.NullTime
	var isCurrent int

	err := row.Scan(&r.ID, &r.EntityID, &orgID, &r.OrgName, &r.Title, &started, &ended, &isCurrent)
	if err != nil {
		return nil, err
	}

	if orgID.Valid {
		r.OrgEntityID = &orgID.Int64
	}
	if started.Valid {
		t := started.Time
		r.Started = &t
	}
	if ended.Valid {
		t := ended.Time
		r.Ended = &t
	}
	r.IsCurrent = isCurrent != 0
	return &r, nil
}

// GetRoles lists the foreign references owned by an entity
func (s *Store) GetRoles(ctx context.Context, entityID int64) ([]*types.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE entity_id = ? ORDER BY id
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles for entity %d: %w", entityID, err)
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

// CountRoles counts the foreign references owned by an entity
func (s *Store) CountRoles(ctx context.Context, entityID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM roles WHERE entity_id = ?
	`, entityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count roles for entity %d: %w", entityID, err)
	}
	return count, nil
}

// CurrentRoster lists canonical persons holding a current role at the
// given organization.
func (s *Store) CurrentRoster(ctx context.Context, orgEntityID int64, limit int) ([]*types.Entity, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT`+entityColumns+`
		FROM entities
		JOIN roles r ON r.entity_id = entities.id
		WHERE entities.kind = 'person' AND entities.is_canonical = 1
		  AND r.org_entity_id = ? AND r.is_current = 1
		ORDER BY entities.id
		LIMIT ?
	`, orgEntityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for org %d: %w", orgEntityID, err)
	}
	defer rows.Close()
	return s.collectEntities(ctx, rows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package sqlite implements the storage interface on SQLite. All
// multi-step writes run in transactions; the merge path uses BEGIN
// IMMEDIATE so concurrent merges serialize at the database rather than
// racing each other's demotions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fundscope/fundscope/internal/types"
)

// Store implements the storage.Storage interface using SQLite
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and initializes
// the schema. WAL mode keeps readers unblocked while merges commit.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateEntity inserts a new canonical entity and its external
// identifiers. The id is assigned by the database and written back.
func (s *Store) CreateEntity(ctx context.Context, e *types.Entity, actor string) error {
	if err := validateNewEntity(e); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	sources, err := json.Marshal(sourcesOrEmpty(e.DataSources))
	if err != nil {
		return fmt.Errorf("failed to marshal data sources: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO entities (
			kind, display_name, normalized_name, website, location,
			email, profile_url, bio, is_canonical, canonical_id,
			data_sources, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, NULL, ?, ?, ?)
	`,
		e.Kind, e.DisplayName, e.NormalizedName, e.Website, e.Location,
		e.Email, e.ProfileURL, e.Bio, string(sources), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read entity id: %w", err)
	}
	e.ID = id
	e.IsCanonical = true

	for kind, value := range e.Identifiers {
		if value == "" {
			continue
		}
		// Identifier values are unique among canonical entities of a
		// kind; demoted aliases keep their rows and do not conflict.
		var ownerID int64
		err := tx.QueryRowContext(ctx, `
			SELECT xi.entity_id
			FROM external_identifiers xi
			JOIN entities ent ON ent.id = xi.entity_id
			WHERE xi.kind = ? AND xi.value = ?
			  AND ent.kind = ? AND ent.is_canonical = 1
		`, kind, value, e.Kind).Scan(&ownerID)
		if err == nil {
			return fmt.Errorf("identifier %s=%q already belongs to entity %d", kind, value, ownerID)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check identifier %s: %w", kind, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO external_identifiers (entity_id, kind, value)
			VALUES (?, ?, ?)
		`, id, kind, value); err != nil {
			return fmt.Errorf("failed to insert identifier %s: %w", kind, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO merge_events (entity_id, event_type, actor, detail)
		VALUES (?, ?, ?, ?)
	`, id, types.EventEntityCreated, actor, e.DisplayName); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// validateNewEntity checks only what applies before an id exists.
func validateNewEntity(e *types.Entity) error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("invalid entity kind: %q", e.Kind)
	}
	if e.DisplayName == "" {
		return fmt.Errorf("display_name cannot be empty")
	}
	return nil
}

func sourcesOrEmpty(sources []string) []string {
	if sources == nil {
		return []string{}
	}
	return sources
}

// entityColumns is table-qualified so it stays unambiguous in joins.
const entityColumns = `
	entities.id, entities.kind, entities.display_name, entities.normalized_name,
	entities.website, entities.location, entities.email, entities.profile_url,
	entities.bio, entities.is_canonical, entities.canonical_id,
	entities.data_sources, entities.created_at, entities.updated_at`

// scanEntity scans one entity row from any source selecting
// entityColumns.
func scanEntity(row interface{ Scan(...interface{}) error }) (*types.Entity, error) {
	var e types.Entity
	var isCanonical int
	var canonicalID sql.NullInt64
	var sources string

	err := row.Scan(
		&e.ID, &e.Kind, &e.DisplayName, &e.NormalizedName, &e.Website,
		&e.Location, &e.Email, &e.ProfileURL, &e.Bio, &isCanonical,
		&canonicalID, &sources, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.IsCanonical = isCanonical != 0
	if canonicalID.Valid {
		e.CanonicalID = &canonicalID.Int64
	}
	if err := json.Unmarshal([]byte(sources), &e.DataSources); err != nil {
		return nil, fmt.Errorf("failed to decode data sources: %w", err)
	}
	return &e, nil
}

// GetEntity retrieves an entity by id, including its identifiers
func (s *Store) GetEntity(ctx context.Context, id int64) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %d: %w", id, err)
	}

	if err := s.loadIdentifiers(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) loadIdentifiers(ctx context.Context, e *types.Entity) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, value FROM external_identifiers WHERE entity_id = ?
	`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to load identifiers for entity %d: %w", e.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind types.IdentifierKind
		var value string
		if err := rows.Scan(&kind, &value); err != nil {
			return fmt.Errorf("failed to scan identifier: %w", err)
		}
		if e.Identifiers == nil {
			e.Identifiers = make(map[types.IdentifierKind]string)
		}
		e.Identifiers[kind] = value
	}
	return rows.Err()
}

// ResolveCanonical returns the entity currently representing id. A
// demoted alias resolves through its canonical pointer; the pointer
// always targets a canonical row (no chains), but this is verified and
// reported rather than assumed.
func (s *Store) ResolveCanonical(ctx context.Context, id int64) (*types.Entity, error) {
	e, err := s.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.IsCanonical {
		return e, nil
	}

	target, err := s.GetEntity(ctx, *e.CanonicalID)
	if err != nil {
		return nil, fmt.Errorf("alias %d points at missing entity: %w", id, err)
	}
	if !target.IsCanonical {
		return nil, fmt.Errorf("alias %d points at non-canonical entity %d (chained pointer)", id, target.ID)
	}
	return target, nil
}

// FindByIdentifier finds the canonical entity of the given kind owning
// the identifier value. Returns ErrNotFound when no canonical entity
// matches.
func (s *Store) FindByIdentifier(ctx context.Context, kind types.EntityKind, identKind types.IdentifierKind, value string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+entityColumns+`
		FROM entities
		JOIN external_identifiers xi ON xi.entity_id = entities.id
		WHERE entities.kind = ? AND entities.is_canonical = 1
		  AND xi.kind = ? AND xi.value = ?
		ORDER BY entities.id
		LIMIT 1
	`, kind, identKind, value)

	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find by identifier %s=%s: %w", identKind, value, err)
	}
	if err := s.loadIdentifiers(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// FindByDomain finds the canonical entity with the given normalized
// domain identifier.
func (s *Store) FindByDomain(ctx context.Context, kind types.EntityKind, domain string) (*types.Entity, error) {
	return s.FindByIdentifier(ctx, kind, types.IdentDomain, domain)
}

// FindByNormalizedName lists canonical entities of a kind with the
// exact normalized name.
func (s *Store) FindByNormalizedName(ctx context.Context, kind types.EntityKind, normalized string) ([]*types.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+entityColumns+`
		FROM entities
		WHERE kind = ? AND is_canonical = 1 AND normalized_name = ?
		ORDER BY id
	`, kind, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find by name: %w", err)
	}
	defer rows.Close()
	return s.collectEntities(ctx, rows)
}

// ListCanonical pages through canonical entities of a kind in id order.
func (s *Store) ListCanonical(ctx context.Context, kind types.EntityKind, limit, offset int) ([]*types.Entity, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+entityColumns+`
		FROM entities
		WHERE kind = ? AND is_canonical = 1
		ORDER BY id
		LIMIT ? OFFSET ?
	`, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()
	return s.collectEntities(ctx, rows)
}

func (s *Store) collectEntities(ctx context.Context, rows *sql.Rows) ([]*types.Entity, error) {
	var entities []*types.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, e := range entities {
		if err := s.loadIdentifiers(ctx, e); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// GetSummary returns the abbreviated entity view used in review-queue
// listings.
func (s *Store) GetSummary(ctx context.Context, id int64) (*types.Summary, error) {
	var sum types.Summary
	var isCanonical int
	err := s.db.QueryRowContext(ctx, `
		SELECT e.id, e.kind, e.display_name, e.location, e.is_canonical,
		       (SELECT COUNT(*) FROM roles r WHERE r.entity_id = e.id)
		FROM entities e
		WHERE e.id = ?
	`, id).Scan(&sum.ID, &sum.Kind, &sum.DisplayName, &sum.Location, &isCanonical, &sum.RoleCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary for %d: %w", id, err)
	}
	sum.IsCanonical = isCanonical != 0
	return &sum, nil
}

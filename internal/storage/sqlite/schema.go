package sqlite

const schema = `
-- Entities table: canonical records plus demoted aliases.
-- Rows are never deleted; merging flips is_canonical and sets
-- canonical_id so the id stays resolvable for audit.
CREATE TABLE IF NOT EXISTS entities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL CHECK(kind IN ('company', 'investor', 'person')),
    display_name TEXT NOT NULL CHECK(length(display_name) > 0),
    normalized_name TEXT NOT NULL,
    website TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    profile_url TEXT NOT NULL DEFAULT '',
    bio TEXT NOT NULL DEFAULT '',
    is_canonical INTEGER NOT NULL DEFAULT 1,
    canonical_id INTEGER,
    data_sources TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (canonical_id) REFERENCES entities(id),
    CHECK ((is_canonical = 1 AND canonical_id IS NULL) OR (is_canonical = 0 AND canonical_id IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_entities_kind_name ON entities(kind, normalized_name);
CREATE INDEX IF NOT EXISTS idx_entities_canonical ON entities(is_canonical);
CREATE INDEX IF NOT EXISTS idx_entities_canonical_id ON entities(canonical_id);

-- External identifiers: at most one value per kind per entity.
CREATE TABLE IF NOT EXISTS external_identifiers (
    entity_id INTEGER NOT NULL,
    kind TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (entity_id, kind),
    FOREIGN KEY (entity_id) REFERENCES entities(id)
);

CREATE INDEX IF NOT EXISTS idx_identifiers_kind_value ON external_identifiers(kind, value);

-- Roles: foreign references owned by person entities. The merge
-- executor re-points or collapses these; nothing else moves them.
CREATE TABLE IF NOT EXISTS roles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id INTEGER NOT NULL,
    org_entity_id INTEGER,
    org_name TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    started DATETIME,
    ended DATETIME,
    is_current INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (entity_id) REFERENCES entities(id),
    FOREIGN KEY (org_entity_id) REFERENCES entities(id)
);

CREATE INDEX IF NOT EXISTS idx_roles_entity ON roles(entity_id);
CREATE INDEX IF NOT EXISTS idx_roles_org ON roles(org_entity_id);

-- Merge candidates: one row per unordered pair, pair stored ordered
-- (entity_a_id < entity_b_id). The UNIQUE constraint both enforces the
-- one-live-candidate invariant and serializes concurrent discovery.
CREATE TABLE IF NOT EXISTS merge_candidates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_a_id INTEGER NOT NULL,
    entity_b_id INTEGER NOT NULL,
    kind TEXT NOT NULL,
    match_type TEXT NOT NULL,
    similarity REAL NOT NULL CHECK(similarity >= 0.0 AND similarity <= 1.0),
    evidence TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'auto_merged', 'approved', 'rejected')),
    canonical_entity_id INTEGER,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    reviewed_at DATETIME,
    UNIQUE (entity_a_id, entity_b_id),
    CHECK (entity_a_id < entity_b_id),
    FOREIGN KEY (entity_a_id) REFERENCES entities(id),
    FOREIGN KEY (entity_b_id) REFERENCES entities(id)
);

CREATE INDEX IF NOT EXISTS idx_candidates_status ON merge_candidates(status);
CREATE INDEX IF NOT EXISTS idx_candidates_kind ON merge_candidates(kind);
CREATE INDEX IF NOT EXISTS idx_candidates_entity_a ON merge_candidates(entity_a_id);
CREATE INDEX IF NOT EXISTS idx_candidates_entity_b ON merge_candidates(entity_b_id);

-- Merge events (audit trail): append-only, written inside the same
-- transaction as the state change they describe.
CREATE TABLE IF NOT EXISTS merge_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    candidate_id INTEGER,
    entity_id INTEGER NOT NULL,
    event_type TEXT NOT NULL,
    actor TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (candidate_id) REFERENCES merge_candidates(id),
    FOREIGN KEY (entity_id) REFERENCES entities(id)
);

CREATE INDEX IF NOT EXISTS idx_events_entity ON merge_events(entity_id);
CREATE INDEX IF NOT EXISTS idx_events_candidate ON merge_events(candidate_id);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON merge_events(created_at);
`

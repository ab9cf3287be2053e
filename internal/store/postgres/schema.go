package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	// All DDL runs in a single call, which PostgreSQL executes atomically
	// within an implicit transaction. IF NOT EXISTS keeps it idempotent;
	// destructive schema changes would need a proper migration tool.
	ddl := `
CREATE TABLE IF NOT EXISTS modules (
    id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    module_id    TEXT NOT NULL UNIQUE,
    system_id    TEXT NOT NULL,
    name         TEXT NOT NULL,
    version      TEXT NOT NULL DEFAULT '',
    source_path  TEXT NOT NULL DEFAULT '',
    source_hash  TEXT NOT NULL DEFAULT '',
    author_id    TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'pending',
    active       BOOLEAN NOT NULL DEFAULT TRUE,
    load_errors  TEXT[] NOT NULL DEFAULT '{}',
    validated_at TIMESTAMPTZ,
    loaded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entities (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    module_id   BIGINT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
    entity_id   TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    image       TEXT NOT NULL DEFAULT '',
    template_id TEXT NOT NULL DEFAULT '',
    tags        TEXT[] NOT NULL DEFAULT '{}',
    search_text TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'pending',
    raw_payload TEXT NOT NULL DEFAULT '',
    CONSTRAINT uq_entity_module UNIQUE (module_id, entity_id)
);

ALTER TABLE entities ADD COLUMN IF NOT EXISTS search_vector TSVECTOR;

CREATE TABLE IF NOT EXISTS attributes (
    id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    entity_id        BIGINT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    property_key     TEXT NOT NULL,
    property_path    TEXT[] NOT NULL DEFAULT '{}',
    property_depth   INTEGER NOT NULL DEFAULT 0,
    value_type       TEXT NOT NULL,
    value_string     TEXT,
    value_number     DOUBLE PRECISION,
    value_integer    BIGINT,
    value_boolean    BOOLEAN,
    value_json       JSONB,
    value_reference  TEXT,
    array_index      INTEGER,
    is_array_element BOOLEAN NOT NULL DEFAULT FALSE,
    sort             INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_modules_status ON modules (status);
CREATE INDEX IF NOT EXISTS idx_modules_validated ON modules (validated_at);
CREATE INDEX IF NOT EXISTS idx_entities_module ON entities (module_id);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities (entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_tags ON entities USING GIN (tags);
CREATE INDEX IF NOT EXISTS idx_entities_search ON entities USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS idx_attributes_entity ON attributes (entity_id);
CREATE INDEX IF NOT EXISTS idx_attributes_key ON attributes (property_key);
CREATE INDEX IF NOT EXISTS idx_attributes_entity_key ON attributes (entity_id, property_key);
`
	_, err := c.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

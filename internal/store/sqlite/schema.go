package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS modules (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		module_id    TEXT NOT NULL UNIQUE,
		system_id    TEXT NOT NULL,
		name         TEXT NOT NULL,
		version      TEXT NOT NULL DEFAULT '',
		source_path  TEXT NOT NULL DEFAULT '',
		source_hash  TEXT NOT NULL DEFAULT '',
		author_id    TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'pending',
		active       INTEGER NOT NULL DEFAULT 1,
		load_errors  TEXT NOT NULL DEFAULT '[]',
		validated_at TEXT,
		loaded_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	);

	CREATE TABLE IF NOT EXISTS entities (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		module_id   INTEGER NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
		entity_id   TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image       TEXT NOT NULL DEFAULT '',
		template_id TEXT NOT NULL DEFAULT '',
		tags        TEXT NOT NULL DEFAULT '[]',
		search_text TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'pending',
		raw_payload TEXT NOT NULL DEFAULT '',
		CONSTRAINT uq_entity_module UNIQUE (module_id, entity_id)
	);

	CREATE TABLE IF NOT EXISTS attributes (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id        INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		property_key     TEXT NOT NULL,
		property_path    TEXT NOT NULL DEFAULT '[]',
		property_depth   INTEGER NOT NULL DEFAULT 0,
		value_type       TEXT NOT NULL,
		value_string     TEXT,
		value_number     REAL,
		value_integer    INTEGER,
		value_boolean    INTEGER,
		value_json       TEXT,
		value_reference  TEXT,
		array_index      INTEGER,
		is_array_element INTEGER NOT NULL DEFAULT 0,
		sort             INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_modules_status ON modules (status);
	CREATE INDEX IF NOT EXISTS idx_modules_validated ON modules (validated_at);
	CREATE INDEX IF NOT EXISTS idx_entities_module ON entities (module_id);
	CREATE INDEX IF NOT EXISTS idx_entities_type ON entities (entity_type);
	CREATE INDEX IF NOT EXISTS idx_attributes_entity ON attributes (entity_id);
	CREATE INDEX IF NOT EXISTS idx_attributes_key ON attributes (property_key);
	CREATE INDEX IF NOT EXISTS idx_attributes_entity_key ON attributes (entity_id, property_key);

	CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
		name,
		tags,
		search_text,
		content=entities,
		content_rowid=id
	);

	CREATE TRIGGER IF NOT EXISTS entities_ai AFTER INSERT ON entities BEGIN
		INSERT INTO entities_fts(rowid, name, tags, search_text)
		VALUES (new.id, new.name, new.tags, new.search_text);
	END;

	CREATE TRIGGER IF NOT EXISTS entities_ad AFTER DELETE ON entities BEGIN
		INSERT INTO entities_fts(entities_fts, rowid, name, tags, search_text)
		VALUES ('delete', old.id, old.name, old.tags, old.search_text);
	END;

	CREATE TRIGGER IF NOT EXISTS entities_au AFTER UPDATE ON entities BEGIN
		INSERT INTO entities_fts(entities_fts, rowid, name, tags, search_text)
		VALUES ('delete', old.id, old.name, old.tags, old.search_text);
		INSERT INTO entities_fts(rowid, name, tags, search_text)
		VALUES (new.id, new.name, new.tags, new.search_text);
	END;
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

// splitStatements cuts the DDL on statement-final semicolons, keeping
// trigger bodies (which end in "END;") intact.
func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder
	inTrigger := false

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		if strings.HasPrefix(stripped, "CREATE TRIGGER") {
			inTrigger = true
		}
		current.WriteString(line)
		current.WriteString("\n")

		if inTrigger {
			if strings.HasPrefix(stripped, "END;") {
				statements = append(statements, current.String())
				current.Reset()
				inTrigger = false
			}
			continue
		}
		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}

	return statements
}

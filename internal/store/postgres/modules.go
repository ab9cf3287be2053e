package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"codexvault/internal/store"
)

const moduleColumns = `module_id, system_id, name, version, source_path, source_hash, author_id,
       status, active, load_errors, validated_at, loaded_at`

func (c *Client) GetModule(ctx context.Context, moduleID string) (*store.Module, error) {
	row := c.pool.QueryRow(ctx, `
SELECT `+moduleColumns+`
FROM modules
WHERE module_id = $1
`, moduleID)

	m, err := scanModule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting module: %w", err)
	}
	return m, nil
}

func (c *Client) ListModules(ctx context.Context) ([]store.Module, error) {
	rows, err := c.pool.Query(ctx, `
SELECT `+moduleColumns+`
FROM modules
ORDER BY module_id
`)
	if err != nil {
		return nil, fmt.Errorf("listing modules: %w", err)
	}
	defer rows.Close()

	return collectModules(rows)
}

func (c *Client) ListStaleModules(ctx context.Context, cutoff time.Time) ([]store.Module, error) {
	rows, err := c.pool.Query(ctx, `
SELECT `+moduleColumns+`
FROM modules
WHERE active
  AND (validated_at IS NULL OR validated_at <= $1 OR status = 'pending')
ORDER BY module_id
`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing stale modules: %w", err)
	}
	defer rows.Close()

	return collectModules(rows)
}

func (c *Client) CreateModule(ctx context.Context, m store.ModuleInput, entities []store.EntityRecord) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var moduleRowID int64
	err = tx.QueryRow(ctx, `
INSERT INTO modules (module_id, system_id, name, version, source_path, source_hash, author_id, status, active, load_errors)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)
RETURNING id
`, m.ModuleID, m.SystemID, m.Name, m.Version, m.SourcePath, m.SourceHash, m.AuthorID, string(m.Status), textArray(m.LoadErrors)).Scan(&moduleRowID)
	if err != nil {
		return fmt.Errorf("inserting module: %w", err)
	}

	if err := insertEntities(ctx, tx, moduleRowID, entities); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing module insert: %w", err)
	}
	return nil
}

func (c *Client) ReplaceModule(ctx context.Context, m store.ModuleInput, entities []store.EntityRecord) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var moduleRowID int64
	err = tx.QueryRow(ctx, `
UPDATE modules
SET system_id = $1, name = $2, version = $3, source_path = $4, source_hash = $5,
    author_id = $6, status = $7, load_errors = $8, validated_at = NULL, loaded_at = now()
WHERE module_id = $9
RETURNING id
`, m.SystemID, m.Name, m.Version, m.SourcePath, m.SourceHash, m.AuthorID, string(m.Status), textArray(m.LoadErrors), m.ModuleID).Scan(&moduleRowID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("module %s not found", m.ModuleID)
	}
	if err != nil {
		return fmt.Errorf("updating module: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM entities WHERE module_id = $1", moduleRowID); err != nil {
		return fmt.Errorf("deleting module entities: %w", err)
	}

	if err := insertEntities(ctx, tx, moduleRowID, entities); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing module replace: %w", err)
	}
	return nil
}

func (c *Client) DeleteModule(ctx context.Context, moduleID string) error {
	tag, err := c.pool.Exec(ctx, "DELETE FROM modules WHERE module_id = $1", moduleID)
	if err != nil {
		return fmt.Errorf("deleting module: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("module %s not found", moduleID)
	}
	return nil
}

func (c *Client) SetModuleValidation(ctx context.Context, moduleID string, status store.ValidationStatus, at time.Time) error {
	tag, err := c.pool.Exec(ctx, `
UPDATE modules SET status = $1, validated_at = $2 WHERE module_id = $3
`, string(status), at, moduleID)
	if err != nil {
		return fmt.Errorf("updating module validation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("module %s not found", moduleID)
	}
	return nil
}

func (c *Client) GetModuleStatus(ctx context.Context, moduleID string) (*store.ModuleStatus, error) {
	row := c.pool.QueryRow(ctx, `
SELECT m.module_id, m.status, m.load_errors, m.validated_at,
       (SELECT COUNT(*) FROM entities e WHERE e.module_id = m.id),
       (SELECT COUNT(*) FROM attributes a JOIN entities e ON a.entity_id = e.id WHERE e.module_id = m.id)
FROM modules m
WHERE m.module_id = $1
`, moduleID)

	var status store.ModuleStatus
	var statusText string
	err := row.Scan(&status.ModuleID, &statusText, &status.Errors, &status.ValidatedAt, &status.EntityCount, &status.PropertyCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting module status: %w", err)
	}
	status.Status = store.ValidationStatus(statusText)
	if status.Errors == nil {
		status.Errors = []string{}
	}
	return &status, nil
}

func scanModule(row pgx.Row) (*store.Module, error) {
	var m store.Module
	var statusText string
	err := row.Scan(&m.ModuleID, &m.SystemID, &m.Name, &m.Version, &m.SourcePath, &m.SourceHash,
		&m.AuthorID, &statusText, &m.Active, &m.LoadErrors, &m.ValidatedAt, &m.LoadedAt)
	if err != nil {
		return nil, err
	}
	m.Status = store.ValidationStatus(statusText)
	if m.LoadErrors == nil {
		m.LoadErrors = []string{}
	}
	return &m, nil
}

func collectModules(rows pgx.Rows) ([]store.Module, error) {
	modules := []store.Module{}
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning module: %w", err)
		}
		modules = append(modules, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating modules: %w", err)
	}
	return modules, nil
}

func textArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"codexvault/internal/store"
)

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (c *Client) GetModule(ctx context.Context, moduleID string) (*store.Module, error) {
	row := c.db.QueryRowContext(ctx, `
	SELECT module_id, system_id, name, version, source_path, source_hash, author_id,
	       status, active, load_errors, validated_at, loaded_at
	FROM modules
	WHERE module_id = ?
	`, moduleID)

	m, err := scanModule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting module: %w", err)
	}
	return m, nil
}

func (c *Client) ListModules(ctx context.Context) ([]store.Module, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT module_id, system_id, name, version, source_path, source_hash, author_id,
	       status, active, load_errors, validated_at, loaded_at
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
	rows, err := c.db.QueryContext(ctx, `
	SELECT module_id, system_id, name, version, source_path, source_hash, author_id,
	       status, active, load_errors, validated_at, loaded_at
	FROM modules
	WHERE active = 1
	  AND (validated_at IS NULL OR validated_at <= ? OR status = 'pending')
	ORDER BY module_id
	`, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("listing stale modules: %w", err)
	}
	defer rows.Close()

	return collectModules(rows)
}

func (c *Client) CreateModule(ctx context.Context, m store.ModuleInput, entities []store.EntityRecord) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	loadErrors, err := marshalStrings(m.LoadErrors)
	if err != nil {
		return fmt.Errorf("marshaling load errors: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
	INSERT INTO modules (module_id, system_id, name, version, source_path, source_hash, author_id, status, active, load_errors, loaded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, m.ModuleID, m.SystemID, m.Name, m.Version, m.SourcePath, m.SourceHash, m.AuthorID, string(m.Status), loadErrors, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("inserting module: %w", err)
	}

	moduleRowID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading module row id: %w", err)
	}

	if err := insertEntities(ctx, tx, moduleRowID, entities); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing module insert: %w", err)
	}
	return nil
}

func (c *Client) ReplaceModule(ctx context.Context, m store.ModuleInput, entities []store.EntityRecord) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	loadErrors, err := marshalStrings(m.LoadErrors)
	if err != nil {
		return fmt.Errorf("marshaling load errors: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
	UPDATE modules
	SET system_id = ?, name = ?, version = ?, source_path = ?, source_hash = ?,
	    author_id = ?, status = ?, load_errors = ?, validated_at = NULL, loaded_at = ?
	WHERE module_id = ?
	`, m.SystemID, m.Name, m.Version, m.SourcePath, m.SourceHash, m.AuthorID, string(m.Status), loadErrors, formatTime(time.Now()), m.ModuleID)
	if err != nil {
		return fmt.Errorf("updating module: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("module %s not found", m.ModuleID)
	}

	var moduleRowID int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM modules WHERE module_id = ?", m.ModuleID).Scan(&moduleRowID); err != nil {
		return fmt.Errorf("reading module row id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE module_id = ?", moduleRowID); err != nil {
		return fmt.Errorf("deleting module entities: %w", err)
	}

	if err := insertEntities(ctx, tx, moduleRowID, entities); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing module replace: %w", err)
	}
	return nil
}

func (c *Client) DeleteModule(ctx context.Context, moduleID string) error {
	result, err := c.db.ExecContext(ctx, "DELETE FROM modules WHERE module_id = ?", moduleID)
	if err != nil {
		return fmt.Errorf("deleting module: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("module %s not found", moduleID)
	}
	return nil
}

func (c *Client) SetModuleValidation(ctx context.Context, moduleID string, status store.ValidationStatus, at time.Time) error {
	result, err := c.db.ExecContext(ctx, `
	UPDATE modules SET status = ?, validated_at = ? WHERE module_id = ?
	`, string(status), formatTime(at), moduleID)
	if err != nil {
		return fmt.Errorf("updating module validation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("module %s not found", moduleID)
	}
	return nil
}

func (c *Client) GetModuleStatus(ctx context.Context, moduleID string) (*store.ModuleStatus, error) {
	row := c.db.QueryRowContext(ctx, `
	SELECT m.module_id, m.status, m.load_errors, m.validated_at,
	       (SELECT COUNT(*) FROM entities e WHERE e.module_id = m.id),
	       (SELECT COUNT(*) FROM attributes a JOIN entities e ON a.entity_id = e.id WHERE e.module_id = m.id)
	FROM modules m
	WHERE m.module_id = ?
	`, moduleID)

	var status store.ModuleStatus
	var statusText, loadErrors string
	var validatedAt sql.NullString
	err := row.Scan(&status.ModuleID, &statusText, &loadErrors, &validatedAt, &status.EntityCount, &status.PropertyCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting module status: %w", err)
	}

	status.Status = store.ValidationStatus(statusText)
	if status.Errors, err = unmarshalStrings(loadErrors); err != nil {
		return nil, fmt.Errorf("unmarshaling load errors: %w", err)
	}
	if status.ValidatedAt, err = parseNullTime(validatedAt); err != nil {
		return nil, fmt.Errorf("parsing validated_at: %w", err)
	}
	return &status, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModule(row rowScanner) (*store.Module, error) {
	var m store.Module
	var statusText, loadErrors, loadedAt string
	var active int
	var validatedAt sql.NullString

	err := row.Scan(&m.ModuleID, &m.SystemID, &m.Name, &m.Version, &m.SourcePath, &m.SourceHash,
		&m.AuthorID, &statusText, &active, &loadErrors, &validatedAt, &loadedAt)
	if err != nil {
		return nil, err
	}

	m.Status = store.ValidationStatus(statusText)
	m.Active = active != 0
	if m.LoadErrors, err = unmarshalStrings(loadErrors); err != nil {
		return nil, fmt.Errorf("unmarshaling load errors: %w", err)
	}
	if m.ValidatedAt, err = parseNullTime(validatedAt); err != nil {
		return nil, fmt.Errorf("parsing validated_at: %w", err)
	}
	if m.LoadedAt, err = time.Parse(timeLayout, loadedAt); err != nil {
		return nil, fmt.Errorf("parsing loaded_at: %w", err)
	}
	return &m, nil
}

func collectModules(rows *sql.Rows) ([]store.Module, error) {
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

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	values := []string{}
	if data == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, err
	}
	return values, nil
}

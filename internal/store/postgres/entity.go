package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"codexvault/internal/props"
	"codexvault/internal/store"
)

func insertEntities(ctx context.Context, tx pgx.Tx, moduleRowID int64, entities []store.EntityRecord) error {
	for _, record := range entities {
		e := record.Entity

		var entityRowID int64
		err := tx.QueryRow(ctx, `
INSERT INTO entities (module_id, entity_id, entity_type, name, description, image, template_id, tags, search_text, status, raw_payload, search_vector)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '',
    setweight(to_tsvector('simple', coalesce($4, '')), 'A') ||
    setweight(to_tsvector('english', coalesce(array_to_string($8::text[], ' '), '')), 'B') ||
    setweight(to_tsvector('english', coalesce($9, '')), 'C')
)
RETURNING id
`, moduleRowID, e.EntityID, e.EntityType, e.Name, e.Description, e.Image, e.TemplateID,
			textArray(e.Tags), e.SearchText, string(e.Status)).Scan(&entityRowID)
		if err != nil {
			return fmt.Errorf("inserting entity %s: %w", e.EntityID, err)
		}

		if len(record.Attributes) == 0 {
			continue
		}

		batch := &pgx.Batch{}
		for _, attr := range record.Attributes {
			batch.Queue(`
INSERT INTO attributes (entity_id, property_key, property_path, property_depth, value_type,
    value_string, value_number, value_integer, value_boolean, value_json, value_reference,
    array_index, is_array_element, sort)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`, entityRowID, attr.Key, attr.Path, attr.Depth, string(attr.Type),
				attr.ValueString, attr.ValueNumber, attr.ValueInteger, attr.ValueBoolean, attr.ValueJSON, attr.ValueReference,
				attr.ArrayIndex, attr.IsArrayElement, attr.Sort)
		}
		results := tx.SendBatch(ctx, batch)
		for range record.Attributes {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("inserting attributes for %s: %w", e.EntityID, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("closing attribute batch for %s: %w", e.EntityID, err)
		}
	}
	return nil
}

const entityColumns = `m.module_id, e.entity_id, e.entity_type, e.name, e.description, e.image, e.template_id, e.tags, e.search_text, e.status`

func (c *Client) ListEntities(ctx context.Context, moduleID, entityType string) ([]store.Entity, error) {
	query := `
SELECT ` + entityColumns + `
FROM entities e
JOIN modules m ON e.module_id = m.id
WHERE m.module_id = $1`
	args := []any{moduleID}
	if entityType != "" {
		query += ` AND e.entity_type = $2`
		args = append(args, entityType)
	}
	query += ` ORDER BY e.entity_id`

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	entities := []store.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

func (c *Client) GetEntity(ctx context.Context, moduleID, entityID string) (*store.Entity, error) {
	row := c.pool.QueryRow(ctx, `
SELECT `+entityColumns+`
FROM entities e
JOIN modules m ON e.module_id = m.id
WHERE m.module_id = $1 AND e.entity_id = $2
`, moduleID, entityID)

	e, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity: %w", err)
	}
	return e, nil
}

func (c *Client) GetEntityAttributes(ctx context.Context, moduleID, entityID string) ([]props.Attribute, error) {
	rows, err := c.pool.Query(ctx, `
SELECT a.property_key, a.property_path, a.property_depth, a.value_type,
       a.value_string, a.value_number, a.value_integer, a.value_boolean, a.value_json::text, a.value_reference,
       a.array_index, a.is_array_element, a.sort
FROM attributes a
JOIN entities e ON a.entity_id = e.id
JOIN modules m ON e.module_id = m.id
WHERE m.module_id = $1 AND e.entity_id = $2
ORDER BY a.property_key, a.sort
`, moduleID, entityID)
	if err != nil {
		return nil, fmt.Errorf("listing attributes: %w", err)
	}
	defer rows.Close()

	attrs := []props.Attribute{}
	for rows.Next() {
		attr := props.Attribute{EntityID: entityID}
		var valueType string
		err := rows.Scan(&attr.Key, &attr.Path, &attr.Depth, &valueType,
			&attr.ValueString, &attr.ValueNumber, &attr.ValueInteger, &attr.ValueBoolean, &attr.ValueJSON, &attr.ValueReference,
			&attr.ArrayIndex, &attr.IsArrayElement, &attr.Sort)
		if err != nil {
			return nil, fmt.Errorf("scanning attribute: %w", err)
		}
		attr.Type = props.ValueType(valueType)
		attrs = append(attrs, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attributes: %w", err)
	}
	return attrs, nil
}

func scanEntity(row pgx.Row) (*store.Entity, error) {
	var e store.Entity
	var statusText string
	err := row.Scan(&e.ModuleID, &e.EntityID, &e.EntityType, &e.Name, &e.Description, &e.Image,
		&e.TemplateID, &e.Tags, &e.SearchText, &statusText)
	if err != nil {
		return nil, err
	}
	e.Status = store.ValidationStatus(statusText)
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return &e, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"codexvault/internal/props"
	"codexvault/internal/store"
)

func insertEntities(ctx context.Context, tx *sql.Tx, moduleRowID int64, entities []store.EntityRecord) error {
	entityStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO entities (module_id, entity_id, entity_type, name, description, image, template_id, tags, search_text, status, raw_payload)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')
	`)
	if err != nil {
		return fmt.Errorf("preparing entity insert: %w", err)
	}
	defer entityStmt.Close()

	attrStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO attributes (entity_id, property_key, property_path, property_depth, value_type,
		value_string, value_number, value_integer, value_boolean, value_json, value_reference,
		array_index, is_array_element, sort)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing attribute insert: %w", err)
	}
	defer attrStmt.Close()

	for _, record := range entities {
		e := record.Entity
		tags, err := marshalStrings(e.Tags)
		if err != nil {
			return fmt.Errorf("marshaling tags for %s: %w", e.EntityID, err)
		}

		result, err := entityStmt.ExecContext(ctx, moduleRowID, e.EntityID, e.EntityType, e.Name,
			e.Description, e.Image, e.TemplateID, tags, e.SearchText, string(e.Status))
		if err != nil {
			return fmt.Errorf("inserting entity %s: %w", e.EntityID, err)
		}
		entityRowID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading entity row id: %w", err)
		}

		for _, attr := range record.Attributes {
			path, err := json.Marshal(attr.Path)
			if err != nil {
				return fmt.Errorf("marshaling path for %s: %w", attr.Key, err)
			}
			_, err = attrStmt.ExecContext(ctx, entityRowID, attr.Key, string(path), attr.Depth, string(attr.Type),
				attr.ValueString, attr.ValueNumber, attr.ValueInteger, attr.ValueBoolean, attr.ValueJSON, attr.ValueReference,
				attr.ArrayIndex, attr.IsArrayElement, attr.Sort)
			if err != nil {
				return fmt.Errorf("inserting attribute %s for %s: %w", attr.Key, e.EntityID, err)
			}
		}
	}
	return nil
}

func (c *Client) ListEntities(ctx context.Context, moduleID, entityType string) ([]store.Entity, error) {
	query := `
	SELECT m.module_id, e.entity_id, e.entity_type, e.name, e.description, e.image, e.template_id, e.tags, e.search_text, e.status
	FROM entities e
	JOIN modules m ON e.module_id = m.id
	WHERE m.module_id = ?`
	args := []any{moduleID}
	if entityType != "" {
		query += ` AND e.entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY e.entity_id`

	rows, err := c.db.QueryContext(ctx, query, args...)
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
	row := c.db.QueryRowContext(ctx, `
	SELECT m.module_id, e.entity_id, e.entity_type, e.name, e.description, e.image, e.template_id, e.tags, e.search_text, e.status
	FROM entities e
	JOIN modules m ON e.module_id = m.id
	WHERE m.module_id = ? AND e.entity_id = ?
	`, moduleID, entityID)

	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity: %w", err)
	}
	return e, nil
}

func (c *Client) GetEntityAttributes(ctx context.Context, moduleID, entityID string) ([]props.Attribute, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT a.property_key, a.property_path, a.property_depth, a.value_type,
	       a.value_string, a.value_number, a.value_integer, a.value_boolean, a.value_json, a.value_reference,
	       a.array_index, a.is_array_element, a.sort
	FROM attributes a
	JOIN entities e ON a.entity_id = e.id
	JOIN modules m ON e.module_id = m.id
	WHERE m.module_id = ? AND e.entity_id = ?
	ORDER BY a.property_key, a.sort
	`, moduleID, entityID)
	if err != nil {
		return nil, fmt.Errorf("listing attributes: %w", err)
	}
	defer rows.Close()

	attrs := []props.Attribute{}
	for rows.Next() {
		attr := props.Attribute{EntityID: entityID}
		var path, valueType string
		var valueString, valueJSON, valueReference sql.NullString
		var valueNumber sql.NullFloat64
		var valueInteger, arrayIndex sql.NullInt64
		var valueBoolean sql.NullBool
		var isArrayElement bool

		err := rows.Scan(&attr.Key, &path, &attr.Depth, &valueType,
			&valueString, &valueNumber, &valueInteger, &valueBoolean, &valueJSON, &valueReference,
			&arrayIndex, &isArrayElement, &attr.Sort)
		if err != nil {
			return nil, fmt.Errorf("scanning attribute: %w", err)
		}

		attr.Type = props.ValueType(valueType)
		attr.IsArrayElement = isArrayElement
		if err := json.Unmarshal([]byte(path), &attr.Path); err != nil {
			return nil, fmt.Errorf("unmarshaling path for %s: %w", attr.Key, err)
		}
		if valueString.Valid {
			attr.ValueString = &valueString.String
		}
		if valueNumber.Valid {
			attr.ValueNumber = &valueNumber.Float64
		}
		if valueInteger.Valid {
			attr.ValueInteger = &valueInteger.Int64
		}
		if valueBoolean.Valid {
			attr.ValueBoolean = &valueBoolean.Bool
		}
		if valueJSON.Valid {
			attr.ValueJSON = &valueJSON.String
		}
		if valueReference.Valid {
			attr.ValueReference = &valueReference.String
		}
		if arrayIndex.Valid {
			idx := int(arrayIndex.Int64)
			attr.ArrayIndex = &idx
		}
		attrs = append(attrs, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attributes: %w", err)
	}
	return attrs, nil
}

func scanEntity(row rowScanner) (*store.Entity, error) {
	var e store.Entity
	var tags, statusText string
	err := row.Scan(&e.ModuleID, &e.EntityID, &e.EntityType, &e.Name, &e.Description, &e.Image,
		&e.TemplateID, &tags, &e.SearchText, &statusText)
	if err != nil {
		return nil, err
	}
	e.Status = store.ValidationStatus(statusText)
	if e.Tags, err = unmarshalStrings(tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	return &e, nil
}

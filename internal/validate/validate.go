package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"codexvault/internal/props"
	"codexvault/internal/store"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeMissingIdentity     = "missing_identity_field"
	codeValueColumnMismatch = "value_column_mismatch"
	codeMalformedJSON       = "malformed_json_value"
	codeReconstructFailed   = "reconstruct_failed"
	codeDanglingReference   = "dangling_reference"
	codeDuplicateName       = "duplicate_entity_name"
)

type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Entity   string   `json:"entity,omitempty"`
	Property string   `json:"property,omitempty"`
}

type Report struct {
	ModuleID    string  `json:"moduleId"`
	EntityCount int     `json:"entityCount"`
	Issues      []Issue `json:"issues"`
}

// ErrorCount returns the number of error-severity issues. Warnings do
// not fail a module.
func (r *Report) ErrorCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			count++
		}
	}
	return count
}

type Revalidator struct {
	db  store.Store
	log *zap.Logger
}

func New(db store.Store, log *zap.Logger) *Revalidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Revalidator{db: db, log: log}
}

// Revalidate checks every stored entity of a module against the
// structural rules for flattened attribute rows, verifies each entity
// still reconstructs into a payload tree, and records the resulting
// validation status and timestamp on the module. The optional progress
// callback is invoked after each entity with (done, total).
func (v *Revalidator) Revalidate(ctx context.Context, moduleID string, progress func(done, total int)) (*Report, error) {
	module, err := v.db.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("revalidating module %s: %w", moduleID, err)
	}
	if module == nil {
		return nil, fmt.Errorf("revalidating module %s: module not found", moduleID)
	}

	entities, err := v.db.ListEntities(ctx, moduleID, "")
	if err != nil {
		return nil, fmt.Errorf("revalidating module %s: %w", moduleID, err)
	}

	report := &Report{ModuleID: moduleID, EntityCount: len(entities), Issues: []Issue{}}
	known := make(map[string]struct{}, len(entities))
	for _, entity := range entities {
		known[entity.EntityID] = struct{}{}
	}
	report.Issues = append(report.Issues, checkDuplicateNames(entities)...)

	for i, entity := range entities {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("revalidating module %s: %w", moduleID, err)
		}
		report.Issues = append(report.Issues, checkIdentity(entity)...)

		attrs, err := v.db.GetEntityAttributes(ctx, moduleID, entity.EntityID)
		if err != nil {
			return nil, fmt.Errorf("revalidating entity %s: %w", entity.EntityID, err)
		}
		for _, attr := range attrs {
			report.Issues = append(report.Issues, checkValueColumns(entity.EntityID, attr)...)
			report.Issues = append(report.Issues, checkReference(entity.EntityID, attr, known)...)
		}
		if _, err := props.Reconstruct(attrs); err != nil {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Code:     codeReconstructFailed,
				Message:  fmt.Sprintf("stored attributes do not reconstruct: %v", err),
				Entity:   entity.EntityID,
			})
		}
		if progress != nil {
			progress(i+1, len(entities))
		}
	}

	status := store.StatusValid
	if report.ErrorCount() > 0 {
		status = store.StatusInvalid
	}
	if err := v.db.SetModuleValidation(ctx, moduleID, status, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("recording validation for module %s: %w", moduleID, err)
	}

	v.log.Info("module revalidated",
		zap.String("module", moduleID),
		zap.Int("entities", report.EntityCount),
		zap.Int("errors", report.ErrorCount()),
		zap.Int("issues", len(report.Issues)),
		zap.String("status", string(status)))

	return report, nil
}

func checkIdentity(entity store.Entity) []Issue {
	var missing []string
	if strings.TrimSpace(entity.EntityID) == "" {
		missing = append(missing, "entityId")
	}
	if strings.TrimSpace(entity.EntityType) == "" {
		missing = append(missing, "entityType")
	}
	if strings.TrimSpace(entity.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) == 0 {
		return nil
	}
	return []Issue{{
		Severity: SeverityError,
		Code:     codeMissingIdentity,
		Message:  fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
		Entity:   entity.EntityID,
	}}
}

// checkValueColumns enforces the storage invariant that a row carries at
// most one typed value, in the column its declared type names. A row
// with no value at all is a stored null and is only legal as string.
func checkValueColumns(entityID string, attr props.Attribute) []Issue {
	set := make([]string, 0, 1)
	if attr.ValueString != nil {
		set = append(set, "string")
	}
	if attr.ValueNumber != nil {
		set = append(set, "number")
	}
	if attr.ValueInteger != nil {
		set = append(set, "integer")
	}
	if attr.ValueBoolean != nil {
		set = append(set, "boolean")
	}
	if attr.ValueJSON != nil {
		set = append(set, "json")
	}
	if attr.ValueReference != nil {
		set = append(set, "reference")
	}

	issue := func(code, message string) []Issue {
		return []Issue{{
			Severity: SeverityError,
			Code:     code,
			Message:  message,
			Entity:   entityID,
			Property: attr.Key,
		}}
	}

	switch len(set) {
	case 0:
		if attr.Type != props.TypeString {
			return issue(codeValueColumnMismatch,
				fmt.Sprintf("null value stored with type %s", attr.Type))
		}
	case 1:
		if set[0] != string(attr.Type) {
			return issue(codeValueColumnMismatch,
				fmt.Sprintf("declared type %s but %s column is set", attr.Type, set[0]))
		}
		if attr.Type == props.TypeJSON && !json.Valid([]byte(*attr.ValueJSON)) {
			return issue(codeMalformedJSON, "json column does not hold valid JSON")
		}
	default:
		return issue(codeValueColumnMismatch,
			fmt.Sprintf("multiple value columns set: %s", strings.Join(set, ", ")))
	}
	return nil
}

func checkReference(entityID string, attr props.Attribute, known map[string]struct{}) []Issue {
	if attr.Type != props.TypeReference || attr.ValueReference == nil {
		return nil
	}
	if _, ok := known[*attr.ValueReference]; ok {
		return nil
	}
	return []Issue{{
		Severity: SeverityWarn,
		Code:     codeDanglingReference,
		Message:  fmt.Sprintf("reference %s has no target in this module", *attr.ValueReference),
		Entity:   entityID,
		Property: attr.Key,
	}}
}

func checkDuplicateNames(entities []store.Entity) []Issue {
	byName := make(map[string][]string)
	for _, entity := range entities {
		key := strings.ToLower(strings.TrimSpace(entity.Name)) + "\x00" + entity.EntityType
		byName[key] = append(byName[key], entity.EntityID)
	}

	var issues []Issue
	for _, ids := range byName {
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			issues = append(issues, Issue{
				Severity: SeverityWarn,
				Code:     codeDuplicateName,
				Message:  fmt.Sprintf("name shared by %d entities of the same type", len(ids)),
				Entity:   id,
			})
		}
	}
	return issues
}

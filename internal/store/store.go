package store

import (
	"context"
	"time"

	"codexvault/internal/props"
)

// Store is the transactional persistence contract for modules, entities,
// and attribute rows. CreateModule and ReplaceModule are all-or-nothing:
// either every row for the module commits, or none do. Deleting a module
// cascades to its entities and their attributes.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	GetModule(ctx context.Context, moduleID string) (*Module, error)
	ListModules(ctx context.Context) ([]Module, error)
	ListStaleModules(ctx context.Context, cutoff time.Time) ([]Module, error)
	CreateModule(ctx context.Context, m ModuleInput, entities []EntityRecord) error
	ReplaceModule(ctx context.Context, m ModuleInput, entities []EntityRecord) error
	DeleteModule(ctx context.Context, moduleID string) error
	SetModuleValidation(ctx context.Context, moduleID string, status ValidationStatus, at time.Time) error

	GetModuleStatus(ctx context.Context, moduleID string) (*ModuleStatus, error)
	ListEntities(ctx context.Context, moduleID, entityType string) ([]Entity, error)
	GetEntity(ctx context.Context, moduleID, entityID string) (*Entity, error)
	GetEntityAttributes(ctx context.Context, moduleID, entityID string) ([]props.Attribute, error)
	Search(ctx context.Context, query, moduleID, entityType string) ([]SearchResult, error)
}

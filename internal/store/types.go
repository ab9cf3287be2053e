package store

import (
	"time"

	"codexvault/internal/props"
)

type ValidationStatus string

const (
	StatusPending ValidationStatus = "pending"
	StatusValid   ValidationStatus = "valid"
	StatusInvalid ValidationStatus = "invalid"
)

type ModuleInput struct {
	ModuleID   string
	SystemID   string
	Name       string
	Version    string
	SourcePath string
	SourceHash string
	AuthorID   string
	Status     ValidationStatus
	LoadErrors []string
}

type Module struct {
	ModuleID    string
	SystemID    string
	Name        string
	Version     string
	SourcePath  string
	SourceHash  string
	AuthorID    string
	Status      ValidationStatus
	Active      bool
	LoadErrors  []string
	ValidatedAt *time.Time
	LoadedAt    time.Time
}

type Entity struct {
	ModuleID    string
	EntityID    string
	EntityType  string
	Name        string
	Description string
	Image       string
	TemplateID  string
	Tags        []string
	SearchText  string
	Status      ValidationStatus
}

// EntityRecord pairs an entity with its flattened payload rows for
// transactional writes. The raw payload is intentionally absent: once
// normalized it lives entirely in the attribute rows.
type EntityRecord struct {
	Entity
	Attributes []props.Attribute
}

type ModuleStatus struct {
	ModuleID      string
	Status        ValidationStatus
	EntityCount   int
	PropertyCount int
	Errors        []string
	ValidatedAt   *time.Time
}

type SearchResult struct {
	ModuleID   string
	EntityID   string
	EntityType string
	Name       string
	Tags       []string
	Score      float64
	Snippet    string
}

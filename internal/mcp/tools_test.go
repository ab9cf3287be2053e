package mcp

import (
	"context"
	"testing"
	"time"

	"codexvault/internal/props"
	"codexvault/internal/scheduler"
	"codexvault/internal/store"
	"codexvault/internal/validate"
)

type mockStore struct {
	modules      []store.Module
	moduleByID   map[string]*store.Module
	statusResult *store.ModuleStatus
	listResult   []store.Entity
	entityResult *store.Entity
	attrsResult  []props.Attribute
	searchResult []store.SearchResult

	lastStatusModule string
	lastListModule   string
	lastListType     string
	lastSearchQuery  string
	lastSearchModule string
	lastSearchType   string
}

func (m *mockStore) Close(ctx context.Context) error        { return nil }
func (m *mockStore) EnsureSchema(ctx context.Context) error { return nil }

func (m *mockStore) GetModule(ctx context.Context, moduleID string) (*store.Module, error) {
	return m.moduleByID[moduleID], nil
}

func (m *mockStore) ListModules(ctx context.Context) ([]store.Module, error) {
	return m.modules, nil
}

func (m *mockStore) ListStaleModules(ctx context.Context, cutoff time.Time) ([]store.Module, error) {
	return nil, nil
}

func (m *mockStore) CreateModule(ctx context.Context, in store.ModuleInput, records []store.EntityRecord) error {
	return nil
}

func (m *mockStore) ReplaceModule(ctx context.Context, in store.ModuleInput, records []store.EntityRecord) error {
	return nil
}

func (m *mockStore) DeleteModule(ctx context.Context, moduleID string) error { return nil }

func (m *mockStore) SetModuleValidation(ctx context.Context, moduleID string, status store.ValidationStatus, at time.Time) error {
	return nil
}

func (m *mockStore) GetModuleStatus(ctx context.Context, moduleID string) (*store.ModuleStatus, error) {
	m.lastStatusModule = moduleID
	return m.statusResult, nil
}

func (m *mockStore) ListEntities(ctx context.Context, moduleID, entityType string) ([]store.Entity, error) {
	m.lastListModule = moduleID
	m.lastListType = entityType
	return m.listResult, nil
}

func (m *mockStore) GetEntity(ctx context.Context, moduleID, entityID string) (*store.Entity, error) {
	return m.entityResult, nil
}

func (m *mockStore) GetEntityAttributes(ctx context.Context, moduleID, entityID string) ([]props.Attribute, error) {
	return m.attrsResult, nil
}

func (m *mockStore) Search(ctx context.Context, query, moduleID, entityType string) ([]store.SearchResult, error) {
	m.lastSearchQuery = query
	m.lastSearchModule = moduleID
	m.lastSearchType = entityType
	return m.searchResult, nil
}

type noopRevalidator struct{}

func (noopRevalidator) Revalidate(ctx context.Context, moduleID string, progress func(done, total int)) (*validate.Report, error) {
	return &validate.Report{ModuleID: moduleID, Issues: []validate.Issue{}}, nil
}

func newTestServer(db *mockStore) (*Server, *scheduler.Scheduler) {
	sched := scheduler.New(db, noopRevalidator{}, scheduler.DefaultConfig(), nil)
	return NewServer(db, sched, "test"), sched
}

func TestListModules(t *testing.T) {
	db := &mockStore{
		modules: []store.Module{{ModuleID: "srd-pack", SystemID: "dnd5e", Status: store.StatusValid, Active: true}},
	}
	server, sched := newTestServer(db)
	defer sched.Stop()

	_, output, err := server.handleListModules(context.Background(), nil, ListModulesInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Modules) != 1 || output.Modules[0].ModuleID != "srd-pack" {
		t.Fatalf("unexpected modules output: %+v", output)
	}
	if output.Modules[0].Status != "valid" {
		t.Fatalf("expected valid status, got %q", output.Modules[0].Status)
	}
}

func TestGetModuleStatus(t *testing.T) {
	db := &mockStore{
		statusResult: &store.ModuleStatus{ModuleID: "srd-pack", Status: store.StatusValid, EntityCount: 12, PropertyCount: 240},
	}
	server, sched := newTestServer(db)
	defer sched.Stop()

	_, output, err := server.handleGetModuleStatus(context.Background(), nil, GetModuleStatusInput{Module: "srd-pack"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.EntityCount != 12 || output.PropertyCount != 240 {
		t.Fatalf("unexpected status output: %+v", output)
	}
	if db.lastStatusModule != "srd-pack" {
		t.Fatalf("unexpected status params")
	}
}

func TestGetModuleStatus_NotFound(t *testing.T) {
	server, sched := newTestServer(&mockStore{})
	defer sched.Stop()

	if _, _, err := server.handleGetModuleStatus(context.Background(), nil, GetModuleStatusInput{Module: "ghost"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestListEntitiesTool(t *testing.T) {
	db := &mockStore{
		listResult: []store.Entity{{EntityID: "sword-1", EntityType: "item", Name: "Longsword", Tags: []string{"weapon"}}},
	}
	server, sched := newTestServer(db)
	defer sched.Stop()

	_, output, err := server.handleListEntities(context.Background(), nil, ListEntitiesInput{Module: "srd-pack", Type: "item"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Entities) != 1 || output.Entities[0].EntityID != "sword-1" {
		t.Fatalf("unexpected list output: %+v", output)
	}
	if db.lastListModule != "srd-pack" || db.lastListType != "item" {
		t.Fatalf("unexpected list params")
	}
}

func TestGetEntity_RebuildsPayload(t *testing.T) {
	dice := "1d8"
	weight := int64(3)
	db := &mockStore{
		entityResult: &store.Entity{ModuleID: "srd-pack", EntityID: "sword-1", EntityType: "item", Name: "Longsword"},
		attrsResult: []props.Attribute{
			{EntityID: "sword-1", Key: "damage.dice", Path: []string{"damage", "dice"}, Depth: 1, Type: props.TypeString, ValueString: &dice},
			{EntityID: "sword-1", Key: "weight", Path: []string{"weight"}, Type: props.TypeInteger, ValueInteger: &weight},
		},
	}
	server, sched := newTestServer(db)
	defer sched.Stop()

	_, output, err := server.handleGetEntity(context.Background(), nil, GetEntityInput{Module: "srd-pack", Entity: "sword-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	damage, ok := output.Data["damage"].(map[string]any)
	if !ok || damage["dice"] != "1d8" {
		t.Fatalf("payload not rebuilt: %+v", output.Data)
	}
	if output.Data["weight"] != int64(3) {
		t.Fatalf("unexpected weight: %+v", output.Data["weight"])
	}
}

func TestGetEntity_NotFound(t *testing.T) {
	server, sched := newTestServer(&mockStore{})
	defer sched.Stop()

	if _, _, err := server.handleGetEntity(context.Background(), nil, GetEntityInput{Module: "srd-pack", Entity: "missing"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSearchEntities(t *testing.T) {
	db := &mockStore{
		searchResult: []store.SearchResult{
			{ModuleID: "srd-pack", EntityID: "sword-1", EntityType: "item", Name: "Longsword", Score: 1.0},
		},
	}
	server, sched := newTestServer(db)
	defer sched.Stop()

	_, output, err := server.handleSearchEntities(context.Background(), nil, SearchEntitiesInput{Query: "long", Module: "srd-pack", Type: "item"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Results) != 1 || output.Results[0].Name != "Longsword" {
		t.Fatalf("unexpected search output: %+v", output)
	}
	if db.lastSearchQuery != "long" || db.lastSearchModule != "srd-pack" || db.lastSearchType != "item" {
		t.Fatalf("unexpected search params")
	}
}

func TestSearchEntities_EmptyQuery(t *testing.T) {
	server, sched := newTestServer(&mockStore{})
	defer sched.Stop()

	if _, _, err := server.handleSearchEntities(context.Background(), nil, SearchEntitiesInput{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestScheduleValidationTool(t *testing.T) {
	db := &mockStore{
		moduleByID: map[string]*store.Module{"srd-pack": {ModuleID: "srd-pack", Active: true}},
	}
	server, sched := newTestServer(db)
	defer sched.Stop()

	_, output, err := server.handleScheduleValidation(context.Background(), nil, ScheduleValidationInput{Module: "srd-pack"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.ID == "" || output.ModuleID != "srd-pack" {
		t.Fatalf("unexpected job output: %+v", output)
	}

	_, status, err := server.handleGetJobStatus(context.Background(), nil, GetJobStatusInput{JobID: output.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.ID != output.ID {
		t.Fatalf("unexpected job status output: %+v", status)
	}
}

func TestScheduleValidation_UnknownModule(t *testing.T) {
	server, sched := newTestServer(&mockStore{})
	defer sched.Stop()

	if _, _, err := server.handleScheduleValidation(context.Background(), nil, ScheduleValidationInput{Module: "ghost"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCancelValidation_UnknownJob(t *testing.T) {
	server, sched := newTestServer(&mockStore{})
	defer sched.Stop()

	if _, _, err := server.handleCancelValidation(context.Background(), nil, CancelValidationInput{JobID: "nope"}); err == nil {
		t.Fatalf("expected error")
	}
}

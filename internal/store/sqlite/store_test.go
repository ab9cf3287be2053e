package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codexvault/internal/props"
	"codexvault/internal/store"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "codexvault.db")
	client, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(ctx) })
	require.NoError(t, client.EnsureSchema(ctx))
	return client
}

func testRecords(t *testing.T) []store.EntityRecord {
	t.Helper()
	longsword := map[string]any{
		"weight": 3.5,
		"damage": map[string]any{"dice": "1d8", "type": "slashing"},
		"tags":   []any{"versatile", "martial"},
	}
	fireball := map[string]any{
		"level": float64(3),
		"range": map[string]any{"value": float64(150), "units": "ft"},
	}
	return []store.EntityRecord{
		{
			Entity: store.Entity{
				ModuleID:   "srd-pack",
				EntityID:   "longsword",
				EntityType: "item",
				Name:       "Longsword",
				Tags:       []string{"weapon"},
				SearchText: "longsword weapon slashing",
				Status:     store.StatusPending,
			},
			Attributes: props.Flatten(longsword, "longsword"),
		},
		{
			Entity: store.Entity{
				ModuleID:   "srd-pack",
				EntityID:   "fireball",
				EntityType: "spell",
				Name:       "Fireball",
				Tags:       []string{"evocation"},
				SearchText: "fireball evocation",
				Status:     store.StatusPending,
			},
			Attributes: props.Flatten(fireball, "fireball"),
		},
	}
}

func TestCreateAndReadModule(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	input := store.ModuleInput{
		ModuleID:   "srd-pack",
		SystemID:   "dnd5e",
		Name:       "SRD Pack",
		Version:    "1.0.0",
		SourcePath: "/modules/srd-pack",
		SourceHash: "abc123",
		Status:     store.StatusPending,
	}
	records := testRecords(t)
	require.NoError(t, client.CreateModule(ctx, input, records))

	module, err := client.GetModule(ctx, "srd-pack")
	require.NoError(t, err)
	require.NotNil(t, module)
	assert.Equal(t, "dnd5e", module.SystemID)
	assert.Equal(t, "abc123", module.SourceHash)
	assert.Equal(t, store.StatusPending, module.Status)
	assert.True(t, module.Active)
	assert.Nil(t, module.ValidatedAt)

	entities, err := client.ListEntities(ctx, "srd-pack", "")
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "fireball", entities[0].EntityID)
	assert.Equal(t, "longsword", entities[1].EntityID)

	entity, err := client.GetEntity(ctx, "srd-pack", "longsword")
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, []string{"weapon"}, entity.Tags)

	missing, err := client.GetEntity(ctx, "srd-pack", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAttributesRoundTripThroughStore(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	payload := map[string]any{
		"weight": 3.5,
		"damage": map[string]any{
			"parts": []any{
				map[string]any{"formula": "1d8", "type": "slashing"},
			},
		},
		"properties": []any{"versatile", "martial"},
		"effects":    []any{},
		"owner":      "3fa85f64-5717-4562-b3fc-2c963f66afa6",
		"note":       nil,
	}

	record := store.EntityRecord{
		Entity: store.Entity{
			ModuleID:   "m",
			EntityID:   "e1",
			EntityType: "item",
			Name:       "Test",
			Status:     store.StatusPending,
		},
		Attributes: props.Flatten(payload, "e1"),
	}
	input := store.ModuleInput{ModuleID: "m", SystemID: "s", Name: "M", Status: store.StatusPending}
	require.NoError(t, client.CreateModule(ctx, input, []store.EntityRecord{record}))

	attrs, err := client.GetEntityAttributes(ctx, "m", "e1")
	require.NoError(t, err)
	require.Len(t, attrs, len(record.Attributes))

	rebuilt, err := props.Reconstruct(attrs)
	require.NoError(t, err)
	assert.Equal(t, "1d8", rebuilt["damage"].(map[string]any)["parts"].([]any)[0].(map[string]any)["formula"])
	assert.Equal(t, []any{"versatile", "martial"}, rebuilt["properties"])
	assert.Equal(t, []any{}, rebuilt["effects"])
	assert.Equal(t, 3.5, rebuilt["weight"])
	assert.Equal(t, "3fa85f64-5717-4562-b3fc-2c963f66afa6", rebuilt["owner"])
	assert.Nil(t, rebuilt["note"])
}

func TestModuleStatusAggregation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	input := store.ModuleInput{
		ModuleID:   "srd-pack",
		SystemID:   "dnd5e",
		Name:       "SRD Pack",
		Status:     store.StatusInvalid,
		LoadErrors: []string{"entity broken: missing entityId"},
	}
	records := testRecords(t)
	require.NoError(t, client.CreateModule(ctx, input, records))

	status, err := client.GetModuleStatus(ctx, "srd-pack")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, store.StatusInvalid, status.Status)
	assert.Equal(t, 2, status.EntityCount)
	propertyCount := len(records[0].Attributes) + len(records[1].Attributes)
	assert.Equal(t, propertyCount, status.PropertyCount)
	assert.Equal(t, []string{"entity broken: missing entityId"}, status.Errors)

	missing, err := client.GetModuleStatus(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReplaceModule(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	input := store.ModuleInput{ModuleID: "srd-pack", SystemID: "dnd5e", Name: "SRD Pack", Status: store.StatusPending}
	require.NoError(t, client.CreateModule(ctx, input, testRecords(t)))
	require.NoError(t, client.SetModuleValidation(ctx, "srd-pack", store.StatusValid, time.Now()))

	input.Version = "2.0.0"
	input.SourceHash = "def456"
	replacement := testRecords(t)[:1]
	require.NoError(t, client.ReplaceModule(ctx, input, replacement))

	module, err := client.GetModule(ctx, "srd-pack")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", module.Version)
	assert.Equal(t, "def456", module.SourceHash)
	assert.Nil(t, module.ValidatedAt)

	entities, err := client.ListEntities(ctx, "srd-pack", "")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "longsword", entities[0].EntityID)

	// attributes of the removed entity are gone with it
	attrs, err := client.GetEntityAttributes(ctx, "srd-pack", "fireball")
	require.NoError(t, err)
	assert.Empty(t, attrs)

	err = client.ReplaceModule(ctx, store.ModuleInput{ModuleID: "nope"}, nil)
	require.Error(t, err)
}

func TestDeleteModuleCascades(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	input := store.ModuleInput{ModuleID: "srd-pack", SystemID: "dnd5e", Name: "SRD Pack", Status: store.StatusPending}
	require.NoError(t, client.CreateModule(ctx, input, testRecords(t)))
	require.NoError(t, client.DeleteModule(ctx, "srd-pack"))

	module, err := client.GetModule(ctx, "srd-pack")
	require.NoError(t, err)
	assert.Nil(t, module)

	entities, err := client.ListEntities(ctx, "srd-pack", "")
	require.NoError(t, err)
	assert.Empty(t, entities)

	require.Error(t, client.DeleteModule(ctx, "srd-pack"))
}

func TestListStaleModules(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	for _, id := range []string{"fresh", "stale", "never"} {
		input := store.ModuleInput{ModuleID: id, SystemID: "s", Name: id, Status: store.StatusPending}
		require.NoError(t, client.CreateModule(ctx, input, nil))
	}

	now := time.Now().UTC().Truncate(time.Second)
	cutoff := now.Add(-24 * time.Hour)

	require.NoError(t, client.SetModuleValidation(ctx, "fresh", store.StatusValid, now))
	require.NoError(t, client.SetModuleValidation(ctx, "stale", store.StatusValid, cutoff.Add(-time.Hour)))

	stale, err := client.ListStaleModules(ctx, cutoff)
	require.NoError(t, err)
	ids := make([]string, 0, len(stale))
	for _, m := range stale {
		ids = append(ids, m.ModuleID)
	}
	assert.ElementsMatch(t, []string{"stale", "never"}, ids)
}

func TestListStaleModulesBoundary(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	for _, id := range []string{"at-boundary", "just-inside"} {
		input := store.ModuleInput{ModuleID: id, SystemID: "s", Name: id, Status: store.StatusPending}
		require.NoError(t, client.CreateModule(ctx, input, nil))
	}

	cutoff := time.Now().UTC().Truncate(time.Second).Add(-24 * time.Hour)
	require.NoError(t, client.SetModuleValidation(ctx, "at-boundary", store.StatusValid, cutoff))
	require.NoError(t, client.SetModuleValidation(ctx, "just-inside", store.StatusValid, cutoff.Add(time.Second)))

	stale, err := client.ListStaleModules(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "at-boundary", stale[0].ModuleID)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	input := store.ModuleInput{ModuleID: "srd-pack", SystemID: "dnd5e", Name: "SRD Pack", Status: store.StatusPending}
	require.NoError(t, client.CreateModule(ctx, input, testRecords(t)))

	results, err := client.Search(ctx, "longsword", "", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "longsword", results[0].EntityID)
	assert.Equal(t, "srd-pack", results[0].ModuleID)

	results, err = client.Search(ctx, "fireball", "", "item")
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = client.Search(ctx, "  ", "", "")
	require.Error(t, err)
}

func TestConvertWebsearchToFTS5(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple term", input: "dragon", expected: "dragon"},
		{name: "multiple terms", input: "red dragon", expected: "red AND dragon"},
		{name: "explicit OR", input: "dragon OR sword", expected: "dragon OR sword"},
		{name: "negation", input: "dragon -fire", expected: "dragon AND NOT fire"},
		{name: "phrase", input: `"red dragon"`, expected: `"red dragon"`},
		{name: "phrase with term", input: `"red dragon" castle`, expected: `"red dragon" AND castle`},
		{name: "prefix search", input: "drag*", expected: "drag*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, convertWebsearchToFTS5(tt.input))
		})
	}
}

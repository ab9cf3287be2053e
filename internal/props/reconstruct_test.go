package props

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// normalizeTree puts both sides of a comparison through a JSON
// encode/decode cycle so that equivalent numeric representations
// (int64 vs float64) compare equal.
func normalizeTree(t *testing.T, value any) any {
	t.Helper()
	encoded, err := json.Marshal(value)
	require.NoError(t, err)
	var decoded any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	return decoded
}

func assertRoundTrip(t *testing.T, payload map[string]any) {
	t.Helper()
	rows := Flatten(payload, "entity-1")
	rebuilt, err := Reconstruct(rows)
	require.NoError(t, err)
	assert.Equal(t, normalizeTree(t, payload), normalizeTree(t, rebuilt))
}

func TestRoundTrip(t *testing.T) {
	payloads := map[string]map[string]any{
		"scalars": {
			"name":   "Longsword",
			"weight": 3.5,
			"uses":   float64(3),
			"magic":  true,
			"note":   nil,
		},
		"nested object": {
			"damage": map[string]any{"dice": "1d8", "type": "slashing"},
		},
		"array of scalars": {
			"properties": []any{"versatile", "martial"},
		},
		"array of objects": {
			"damage": map[string]any{
				"parts": []any{
					map[string]any{"formula": "1d8", "type": "slashing"},
					map[string]any{"formula": "1d4", "type": "fire"},
				},
			},
		},
		"empty containers": {
			"effects": []any{},
			"bonus":   map[string]any{"modifiers": map[string]any{}},
		},
		"deep mix": {
			"actor": map[string]any{
				"hp":    map[string]any{"value": float64(12), "max": float64(20)},
				"items": []any{"torch", "rope"},
				"spells": []any{
					map[string]any{
						"id":         "3fa85f64-5717-4562-b3fc-2c963f66afa6",
						"level":      float64(1),
						"components": []any{"v", "s"},
					},
				},
			},
		},
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			assertRoundTrip(t, payload)
		})
	}
}

func TestRoundTripFromJSON(t *testing.T) {
	raw := `{
		"name": "Fireball",
		"level": 3,
		"range": {"value": 150, "units": "ft"},
		"damage": {"parts": [{"formula": "8d6", "type": "fire"}]},
		"tags": ["evocation", "aoe"],
		"prepared": false,
		"materials": null
	}`
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assertRoundTrip(t, payload)
}

func TestReconstructOrderIndependent(t *testing.T) {
	payload := map[string]any{
		"damage": map[string]any{
			"parts": []any{
				map[string]any{"formula": "1d8"},
				map[string]any{"formula": "1d4"},
			},
		},
		"properties": []any{"a", "b", "c"},
		"weight":     2.5,
	}

	rows := Flatten(payload, "e1")
	want := normalizeTree(t, payload)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]Attribute, len(rows))
		copy(shuffled, rows)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		rebuilt, err := Reconstruct(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, normalizeTree(t, rebuilt))
	}
}

func TestReconstructSparseArrayBecomesDense(t *testing.T) {
	five := "five"
	zero := "zero"
	idx5, idx0 := 5, 0
	rows := []Attribute{
		{EntityID: "e1", Key: "items.5", Path: []string{"items", "5"}, Type: TypeString, ValueString: &five, ArrayIndex: &idx5, IsArrayElement: true, Sort: 5},
		{EntityID: "e1", Key: "items.0", Path: []string{"items", "0"}, Type: TypeString, ValueString: &zero, ArrayIndex: &idx0, IsArrayElement: true},
	}

	rebuilt, err := Reconstruct(rows)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{"zero", "five"}}, rebuilt)
}

func TestReconstructNullValue(t *testing.T) {
	rows := []Attribute{
		{EntityID: "e1", Key: "note", Path: []string{"note"}, Type: TypeString},
	}
	rebuilt, err := Reconstruct(rows)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"note": nil}, rebuilt)
}

func TestReconstructPathFallbackFromKey(t *testing.T) {
	dice := "1d8"
	rows := []Attribute{
		{EntityID: "e1", Key: "damage.dice", Type: TypeString, ValueString: &dice},
	}
	rebuilt, err := Reconstruct(rows)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"damage": map[string]any{"dice": "1d8"}}, rebuilt)
}

func TestReconstructBadJSONValue(t *testing.T) {
	bad := "{not json"
	rows := []Attribute{
		{EntityID: "e1", Key: "blob", Path: []string{"blob"}, Type: TypeJSON, ValueJSON: &bad},
	}
	_, err := Reconstruct(rows)
	require.Error(t, err)
}

package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "module.json", `{
		"id": "srd-weapons",
		"system": "dnd5e",
		"name": "SRD Weapons",
		"version": "1.2.0",
		"author": "gm",
		"dependencies": ["srd-core"]
	}`)

	manifest, raw, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "srd-weapons", manifest.ModuleID)
	assert.Equal(t, "dnd5e", manifest.SystemID)
	assert.Equal(t, "SRD Weapons", manifest.Name)
	assert.Equal(t, "1.2.0", manifest.Version)
	assert.Equal(t, []string{"srd-core"}, manifest.Dependencies)
	assert.NotEmpty(t, raw)
}

func TestLoadManifestMissing(t *testing.T) {
	_, _, err := LoadManifest(t.TempDir())
	require.ErrorIs(t, err, ErrManifestMissing)
}

func TestLoadManifestMalformed(t *testing.T) {
	tests := map[string]string{
		"invalid json":   `{not json`,
		"missing id":     `{"system": "dnd5e", "name": "x"}`,
		"missing system": `{"id": "m", "name": "x"}`,
		"missing name":   `{"id": "m", "system": "dnd5e"}`,
	}
	for name, contents := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "module.json", contents)
			_, _, err := LoadManifest(dir)
			require.ErrorIs(t, err, ErrManifestMalformed)
		})
	}
}

func TestParseSingleEntity(t *testing.T) {
	payloads, err := Parse([]byte(`{
		"entityId": "longsword",
		"entityType": "item",
		"name": "Longsword",
		"tags": ["weapon"],
		"data": {"weight": 3}
	}`))
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, "longsword", payloads[0].EntityID)
	assert.Equal(t, "item", payloads[0].EntityType)
	assert.Equal(t, map[string]any{"weight": float64(3)}, payloads[0].Data)
}

func TestParseStripsByteOrderMark(t *testing.T) {
	raw := append([]byte("\xef\xbb\xbf\n"), []byte(`{"entityId": "a", "entityType": "item", "name": "A"}`)...)
	payloads, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, "a", payloads[0].EntityID)
}

func TestParseEntityArray(t *testing.T) {
	payloads, err := Parse([]byte(`[
		{"entityId": "a", "entityType": "item", "name": "A"},
		{"entityId": "b", "entityType": "item", "name": "B"}
	]`))
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	assert.Equal(t, "a", payloads[0].EntityID)
	assert.Equal(t, "b", payloads[1].EntityID)
}

func TestParseCompendiumBatch(t *testing.T) {
	payloads, err := Parse([]byte(`{"entries": [
		{"entityId": "fireball", "entityType": "spell", "name": "Fireball"},
		{"entityId": "shield", "entityType": "spell", "name": "Shield"}
	]}`))
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	assert.Equal(t, "fireball", payloads[0].EntityID)
	assert.Equal(t, "spell", payloads[1].EntityType)
}

func TestParseDefaultsNilCollections(t *testing.T) {
	payloads, err := Parse([]byte(`{"entityId": "a", "entityType": "item", "name": "A"}`))
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.NotNil(t, payloads[0].Data)
	assert.NotNil(t, payloads[0].Tags)
}

func TestParseRejectsScalar(t *testing.T) {
	_, err := Parse([]byte(`"just a string"`))
	require.Error(t, err)
	_, err = Parse([]byte(``))
	require.Error(t, err)
}

func TestLoadPayloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "module.json", `{"id": "m", "system": "s", "name": "M"}`)
	writeFile(t, dir, "items/longsword.json", `{"entityId": "longsword", "entityType": "item", "name": "Longsword"}`)
	writeFile(t, dir, "spells/pack.json", `{"entries": [{"entityId": "fireball", "entityType": "spell", "name": "Fireball"}]}`)
	writeFile(t, dir, "items/broken.json", `{nope`)
	writeFile(t, dir, "README.txt", `not content`)

	payloads, errs, err := LoadPayloads(dir)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	require.Len(t, payloads, 2)

	ids := []string{payloads[0].EntityID, payloads[1].EntityID}
	assert.ElementsMatch(t, []string{"longsword", "fireball"}, ids)
	for _, payload := range payloads {
		assert.NotEmpty(t, payload.SourceFile)
	}
}

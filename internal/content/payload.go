package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Payload is one entity record as authored in a content file. Identity
// fields are validated by the loader, not here, so that a missing id can
// be skipped instead of aborting the whole module.
type Payload struct {
	EntityID    string         `json:"entityId"`
	EntityType  string         `json:"entityType"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Image       string         `json:"image,omitempty"`
	TemplateID  string         `json:"templateId,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Data        map[string]any `json:"data,omitempty"`

	SourceFile string `json:"-"`
}

type compendiumBatch struct {
	Entries []json.RawMessage `json:"entries"`
}

// LoadPayloads walks every .json file beneath dir except the manifest and
// normalizes each to a flat list of entity payloads. A file may hold a
// single entity, an array of entities, or a compendium batch wrapper.
// Per-file parse failures are collected, not fatal.
func LoadPayloads(dir string) ([]Payload, []error, error) {
	files, err := walkContentFiles(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("walking content files in %s: %w", dir, err)
	}

	var payloads []Payload
	var errs []error
	for _, path := range files {
		parsed, err := ParseFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("parsing %s: %w", path, err))
			continue
		}
		payloads = append(payloads, parsed...)
	}
	return payloads, errs, nil
}

func ParseFile(path string) ([]Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	payloads, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for i := range payloads {
		payloads[i].SourceFile = path
	}
	return payloads, nil
}

func Parse(data []byte) ([]Payload, error) {
	trimmed := bytes.TrimLeft(data, "\uFEFF\n\r\t ")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	switch trimmed[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return decodeEntries(raw)
	case '{':
		var batch compendiumBatch
		if err := json.Unmarshal(trimmed, &batch); err == nil && batch.Entries != nil {
			return decodeEntries(batch.Entries)
		}
		payload, err := decodePayload(trimmed)
		if err != nil {
			return nil, err
		}
		return []Payload{payload}, nil
	default:
		return nil, fmt.Errorf("expected a JSON object or array")
	}
}

func decodeEntries(raw []json.RawMessage) ([]Payload, error) {
	payloads := make([]Payload, 0, len(raw))
	for i, entry := range raw {
		payload, err := decodePayload(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

func decodePayload(data []byte) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, fmt.Errorf("invalid entity payload: %w", err)
	}
	if payload.Data == nil {
		payload.Data = map[string]any{}
	}
	if payload.Tags == nil {
		payload.Tags = []string{}
	}
	return payload, nil
}

func walkContentFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".json") {
			return nil
		}
		if d.Name() == ManifestFileName && filepath.Dir(path) == filepath.Clean(dir) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

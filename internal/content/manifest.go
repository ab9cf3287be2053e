package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const ManifestFileName = "module.json"

var (
	ErrManifestMissing   = errors.New("module manifest not found")
	ErrManifestMalformed = errors.New("module manifest is malformed")
)

type Manifest struct {
	ModuleID     string   `json:"id"`
	SystemID     string   `json:"system"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Author       string   `json:"author,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// LoadManifest reads and validates module.json under dir. The raw bytes
// are returned alongside the parsed manifest so callers can hash them for
// change detection.
func LoadManifest(dir string) (*Manifest, []byte, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrManifestMissing, path)
		}
		return nil, nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrManifestMalformed, path, err)
	}

	if err := validateManifest(&manifest); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrManifestMalformed, path, err)
	}

	return &manifest, data, nil
}

func validateManifest(m *Manifest) error {
	if strings.TrimSpace(m.ModuleID) == "" {
		return fmt.Errorf("manifest id is required")
	}
	if strings.TrimSpace(m.SystemID) == "" {
		return fmt.Errorf("manifest system is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("manifest name is required")
	}
	return nil
}

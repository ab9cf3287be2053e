package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"codexvault/internal/content"
	"codexvault/internal/props"
	"codexvault/internal/store"
	"codexvault/internal/validate"
)

type Options struct {
	Validate    bool
	SkipInvalid bool
	AuthorID    string
}

type Loader struct {
	db  store.Store
	log *zap.Logger
}

func New(db store.Store, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{db: db, log: log}
}

// LoadModule reads a module directory and persists its entities as
// flattened attribute rows in a single storage transaction. Loading an
// already-loaded module behaves like a non-forced reload: unchanged
// source is a no-op, changed source replaces the module's content.
func (l *Loader) LoadModule(ctx context.Context, path string, opts Options) (*store.Module, error) {
	manifest, raw, err := content.LoadManifest(path)
	if err != nil {
		return nil, fmt.Errorf("loading module at %s: %w", path, err)
	}

	existing, err := l.db.GetModule(ctx, manifest.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("loading module %s: %w", manifest.ModuleID, err)
	}
	if existing != nil {
		return l.ReloadModule(ctx, manifest.ModuleID, path, false, opts)
	}

	input, records, err := l.prepare(path, manifest, hashBytes(raw), opts)
	if err != nil {
		return nil, err
	}

	if err := l.db.CreateModule(ctx, input, records); err != nil {
		return nil, fmt.Errorf("persisting module %s: %w", manifest.ModuleID, err)
	}

	l.log.Info("module loaded",
		zap.String("module", manifest.ModuleID),
		zap.Int("entities", len(records)),
		zap.Int("failed", len(input.LoadErrors)))

	return l.finish(ctx, manifest.ModuleID, opts)
}

// ReloadModule recomputes the module's content hash and, when it differs
// from the stored hash or force is set, deletes every existing entity and
// performs a fresh load into the same module row. An unchanged hash
// without force is a no-op.
func (l *Loader) ReloadModule(ctx context.Context, moduleID, path string, force bool, opts Options) (*store.Module, error) {
	existing, err := l.db.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("reloading module %s: %w", moduleID, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("reloading module %s: module not found", moduleID)
	}

	manifest, raw, err := content.LoadManifest(path)
	if err != nil {
		return nil, fmt.Errorf("reloading module %s: %w", moduleID, err)
	}
	if manifest.ModuleID != moduleID {
		return nil, fmt.Errorf("reloading module %s: manifest at %s declares id %s", moduleID, path, manifest.ModuleID)
	}

	hash := hashBytes(raw)
	if !force && hash == existing.SourceHash {
		l.log.Debug("module unchanged, skipping reload", zap.String("module", moduleID))
		return existing, nil
	}

	input, records, err := l.prepare(path, manifest, hash, opts)
	if err != nil {
		return nil, err
	}

	if err := l.db.ReplaceModule(ctx, input, records); err != nil {
		return nil, fmt.Errorf("persisting module %s: %w", moduleID, err)
	}

	l.log.Info("module reloaded",
		zap.String("module", moduleID),
		zap.Int("entities", len(records)),
		zap.Int("failed", len(input.LoadErrors)),
		zap.Bool("forced", force))

	return l.finish(ctx, moduleID, opts)
}

func (l *Loader) UnloadModule(ctx context.Context, moduleID string) error {
	if err := l.db.DeleteModule(ctx, moduleID); err != nil {
		return fmt.Errorf("unloading module %s: %w", moduleID, err)
	}
	l.log.Info("module unloaded", zap.String("module", moduleID))
	return nil
}

func (l *Loader) GetModuleStatus(ctx context.Context, moduleID string) (*store.ModuleStatus, error) {
	status, err := l.db.GetModuleStatus(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("getting status for module %s: %w", moduleID, err)
	}
	if status == nil {
		return nil, fmt.Errorf("module %s not found", moduleID)
	}
	return status, nil
}

// prepare parses and flattens every entity payload beneath path. Entity
// failures are collected; unless SkipInvalid is set any failure aborts
// the whole load before a single row is written.
func (l *Loader) prepare(path string, manifest *content.Manifest, hash string, opts Options) (store.ModuleInput, []store.EntityRecord, error) {
	payloads, parseErrs, err := content.LoadPayloads(path)
	if err != nil {
		return store.ModuleInput{}, nil, fmt.Errorf("loading module %s: %w", manifest.ModuleID, err)
	}

	var loadErrors []string
	for _, parseErr := range parseErrs {
		loadErrors = append(loadErrors, parseErr.Error())
	}

	records := make([]store.EntityRecord, 0, len(payloads))
	seen := make(map[string]struct{}, len(payloads))
	for _, payload := range payloads {
		if err := validateIdentity(payload); err != nil {
			loadErrors = append(loadErrors, err.Error())
			continue
		}
		if _, dup := seen[payload.EntityID]; dup {
			loadErrors = append(loadErrors, fmt.Sprintf("entity %s: duplicate entity id in %s", payload.EntityID, payload.SourceFile))
			continue
		}
		seen[payload.EntityID] = struct{}{}

		records = append(records, store.EntityRecord{
			Entity: store.Entity{
				ModuleID:    manifest.ModuleID,
				EntityID:    payload.EntityID,
				EntityType:  payload.EntityType,
				Name:        payload.Name,
				Description: payload.Description,
				Image:       payload.Image,
				TemplateID:  payload.TemplateID,
				Tags:        payload.Tags,
				SearchText:  buildSearchText(payload),
				Status:      store.StatusPending,
			},
			Attributes: props.Flatten(payload.Data, payload.EntityID),
		})
	}

	if len(loadErrors) > 0 && !opts.SkipInvalid {
		return store.ModuleInput{}, nil, fmt.Errorf("loading module %s: %d invalid entities, first: %s",
			manifest.ModuleID, len(loadErrors), loadErrors[0])
	}

	status := store.StatusPending
	if len(loadErrors) > 0 {
		status = store.StatusInvalid
	}

	input := store.ModuleInput{
		ModuleID:   manifest.ModuleID,
		SystemID:   manifest.SystemID,
		Name:       manifest.Name,
		Version:    manifest.Version,
		SourcePath: path,
		SourceHash: hash,
		AuthorID:   opts.AuthorID,
		Status:     status,
		LoadErrors: loadErrors,
	}
	return input, records, nil
}

// finish optionally runs a synchronous revalidation and returns the
// module row as persisted.
func (l *Loader) finish(ctx context.Context, moduleID string, opts Options) (*store.Module, error) {
	if opts.Validate {
		if _, err := validate.New(l.db, l.log).Revalidate(ctx, moduleID, nil); err != nil {
			return nil, err
		}
	}
	module, err := l.db.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("loading module %s: %w", moduleID, err)
	}
	if module == nil {
		return nil, fmt.Errorf("loading module %s: module disappeared after load", moduleID)
	}
	return module, nil
}

func validateIdentity(p content.Payload) error {
	var missing []string
	if strings.TrimSpace(p.EntityID) == "" {
		missing = append(missing, "entityId")
	}
	if strings.TrimSpace(p.EntityType) == "" {
		missing = append(missing, "entityType")
	}
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) == 0 {
		return nil
	}
	ref := p.EntityID
	if ref == "" {
		ref = p.SourceFile
	}
	return fmt.Errorf("entity %s: missing required fields: %s", ref, strings.Join(missing, ", "))
}

func buildSearchText(p content.Payload) string {
	parts := []string{p.Name, p.EntityType, p.Description}
	parts = append(parts, p.Tags...)
	return strings.ToLower(strings.Join(strings.Fields(strings.Join(parts, " ")), " "))
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

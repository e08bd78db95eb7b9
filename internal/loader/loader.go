// Package loader reads human-edited entity files into typed entities and
// writes them back. Each entity lives in its own YAML file; the loader walks
// an entities root recursively, decodes each file into a generic map, and
// hands it to the domain constructor for validation and date coercion.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/aristath/runway/internal/domain"
)

// LoadFile reads a single entity file. Construction errors fail fast and
// carry the file path.
func LoadFile(path string) (*domain.Entity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity file %s: %w", path, err)
	}

	var attrs map[string]any
	if err := yaml.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("failed to parse entity file %s: %w", path, err)
	}
	if attrs == nil {
		return nil, fmt.Errorf("entity file %s is empty", path)
	}

	entity, err := domain.New(attrs)
	if err != nil {
		return nil, fmt.Errorf("entity file %s: %w", path, err)
	}
	entity.SourcePath = path
	return entity, nil
}

// LoadDir walks a directory tree and loads every .yaml/.yml file. The first
// invalid file aborts the load; a half-loaded directory never reaches the
// store.
func LoadDir(root string, log zerolog.Logger) ([]*domain.Entity, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.NotFoundError{Kind: "file", Name: root}
		}
		return nil, fmt.Errorf("failed to stat entities root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("entities root %s is not a directory", root)
	}

	var entities []*domain.Entity
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isEntityFile(path) {
			return nil
		}
		entity, err := LoadFile(path)
		if err != nil {
			return err
		}
		entities = append(entities, entity)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Int("entities", len(entities)).Str("root", root).Msg("loaded entity directory")
	return entities, nil
}

func isEntityFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// canonicalSubdir maps an entity type to its directory under the entities
// root. The convention is not enforced on load; the loader only writes to
// these paths when generating.
func canonicalSubdir(typ domain.EntityType) string {
	switch typ {
	case domain.TypeGrant:
		return filepath.Join("revenue", "grants")
	case domain.TypeInvestment:
		return filepath.Join("revenue", "investments")
	case domain.TypeSale:
		return filepath.Join("revenue", "sales")
	case domain.TypeService:
		return filepath.Join("revenue", "services")
	case domain.TypeEmployee:
		return filepath.Join("expenses", "employees")
	case domain.TypeFacility:
		return filepath.Join("expenses", "facilities")
	case domain.TypeSoftware:
		return filepath.Join("expenses", "software")
	case domain.TypeEquipment:
		return filepath.Join("expenses", "equipment")
	case domain.TypeProject:
		return "projects"
	case domain.TypeShareholder:
		return filepath.Join("captable", "shareholders")
	case domain.TypeShareClass:
		return filepath.Join("captable", "share_classes")
	case domain.TypeFundingRound:
		return filepath.Join("captable", "funding_rounds")
	default:
		return "other"
	}
}

// SaveDir writes entities back to the canonical directory layout, one YAML
// file per entity. The inverse of LoadDir.
func SaveDir(root string, entities []*domain.Entity) error {
	for _, e := range entities {
		dir := filepath.Join(root, canonicalSubdir(e.Type))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create entity directory %s: %w", dir, err)
		}
		path := filepath.Join(dir, slug(e.Name)+".yaml")
		if err := SaveFile(path, e); err != nil {
			return err
		}
	}
	return nil
}

// SaveFile writes one entity to a YAML file. Dates serialize as plain
// YYYY-MM-DD strings regardless of how they entered the system.
func SaveFile(path string, e *domain.Entity) error {
	attrs := serializableAttrs(e)
	raw, err := yaml.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode entity %q: %w", e.Name, err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write entity file %s: %w", path, err)
	}
	return nil
}

// serializableAttrs clones the attribute map and normalizes the base fields
// so dates round-trip as strings.
func serializableAttrs(e *domain.Entity) map[string]any {
	attrs := e.Clone().Attrs
	attrs["type"] = string(e.Type)
	attrs["name"] = e.Name
	attrs["start_date"] = e.StartDate.Format(domain.DateLayout)
	if e.EndDate != nil {
		attrs["end_date"] = e.EndDate.Format(domain.DateLayout)
	} else {
		delete(attrs, "end_date")
	}
	return attrs
}

// slug converts an entity name to a safe file name.
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "entity"
	}
	return b.String()
}

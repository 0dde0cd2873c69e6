package multiverse

import (
	"fmt"
	"sort"
	"sync"
)

// FieldMap is the derived bidirectional dictionary between local field paths
// and universal field names for one (schema, universe) pair. Local paths are
// either bare field names or dotted "field.subField" paths produced by
// composite fields.
type FieldMap struct {
	// Export maps local paths to universal field names.
	Export map[string]string

	// Import maps universal field names back to local paths. Composite leaf
	// mappings take priority over bare-name matches for the same universal
	// field.
	Import map[string]string

	// Defaults holds universal fields with no local counterpart that are
	// filled from the universal schema's declared defaults on export.
	Defaults map[string]interface{}

	exportOrder []string
	importOrder []string
	nested      map[string]bool
}

// ExportPaths returns the export map's local paths in derivation order:
// schema field order, with composite sub-fields sorted within their field.
func (fm *FieldMap) ExportPaths() []string {
	paths := make([]string, len(fm.exportOrder))
	copy(paths, fm.exportOrder)
	return paths
}

// ImportFields returns the import map's universal field names in sorted
// order.
func (fm *FieldMap) ImportFields() []string {
	fields := make([]string, len(fm.importOrder))
	copy(fields, fm.importOrder)
	return fields
}

type mapKey struct {
	schema   string
	universe string
	revision uint64
}

// Mapper derives field maps and caches them for the life of the process.
// Cache keys include the schema revision, so a schema grown after first use
// yields fresh maps instead of stale ones.
type Mapper struct {
	mu    sync.RWMutex
	cache map[mapKey]*FieldMap
}

// NewMapper creates an empty mapper.
func NewMapper() *Mapper {
	return &Mapper{cache: make(map[mapKey]*FieldMap)}
}

// Derive returns the field map for a local schema against its universal
// schema within the named universe, deriving and caching it on first use.
func (m *Mapper) Derive(local *LocalSchema, universal *UniversalSchema, universe string) (*FieldMap, error) {
	key := mapKey{schema: local.Name, universe: universe, revision: local.Revision()}

	m.mu.RLock()
	fm, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return fm, nil
	}

	fm, err := deriveFieldMap(local, universal, universe)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if cached, exists := m.cache[key]; exists {
		fm = cached
	} else {
		m.cache[key] = fm
	}
	m.mu.Unlock()
	return fm, nil
}

// deriveFieldMap walks the local schema emitting one mapping per field, or
// one per sub-field for composite fields, then checks that every universal
// field is covered.
func deriveFieldMap(local *LocalSchema, universal *UniversalSchema, universe string) (*FieldMap, error) {
	fm := &FieldMap{
		Export:   make(map[string]string),
		Import:   make(map[string]string),
		Defaults: make(map[string]interface{}),
		nested:   make(map[string]bool),
	}

	// Tracks whether the current import owner of a universal field is an
	// ExportOnly direct field, which a later importable field may displace.
	importExportOnly := make(map[string]bool)

	for _, name := range local.Names() {
		def, _ := local.Field(name)

		if def.Composite && len(def.SubFields) > 0 {
			subs := make([]string, 0, len(def.SubFields))
			for sub := range def.SubFields {
				subs = append(subs, sub)
			}
			sort.Strings(subs)

			for _, sub := range subs {
				target := def.SubFields[sub]
				if _, ok := universal.Fields[target]; !ok {
					return nil, fmt.Errorf("schema %q: field %q.%s maps to unknown universal field %q", local.Name, name, sub, target)
				}
				if fm.nested[target] {
					return nil, fmt.Errorf("schema %q: universal field %q is claimed by more than one sub-field mapping", local.Name, target)
				}
				path := name + "." + sub
				fm.Export[path] = target
				fm.exportOrder = append(fm.exportOrder, path)
				fm.Import[target] = path
				fm.nested[target] = true
				delete(importExportOnly, target)
			}
			continue
		}

		target := def.Universal
		if target == "" {
			target = name
		}
		if _, ok := universal.Fields[target]; !ok {
			return nil, fmt.Errorf("schema %q: field %q maps to unknown universal field %q", local.Name, name, target)
		}

		fm.Export[name] = target
		fm.exportOrder = append(fm.exportOrder, name)

		if fm.nested[target] {
			// Composite leaves own the universal field on import.
			continue
		}
		if _, claimed := fm.Import[target]; claimed {
			if def.ExportOnly {
				continue
			}
			if !importExportOnly[target] {
				return nil, fmt.Errorf("schema %q: universal field %q is mapped by more than one importable field", local.Name, target)
			}
			// An importable field displaces an ExportOnly claimant.
		}
		fm.Import[target] = name
		importExportOnly[target] = def.ExportOnly
	}

	for _, name := range universal.FieldNames() {
		if _, ok := fm.Import[name]; ok {
			continue
		}
		uf := universal.Fields[name]
		if uf.Default != nil {
			fm.Defaults[name] = uf.Default
			continue
		}
		return nil, &UnmappedFieldError{Schema: local.Name, Universe: universe, Field: name}
	}

	fm.importOrder = make([]string, 0, len(fm.Import))
	for name := range fm.Import {
		fm.importOrder = append(fm.importOrder, name)
	}
	sort.Strings(fm.importOrder)

	return fm, nil
}

package multiverse

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Multiverse owns the universal schemas for every record type and the set of
// universes whose collections hold local-shaped records. It exposes the
// translator's operations and the transport engine that moves records
// between universes through the universal shape.
//
// There is no ambient global registry: every universe is created against one
// Multiverse value, and derived field-map caches live and die with it.
type Multiverse struct {
	mu        sync.RWMutex
	schemas   map[string]*UniversalSchema
	universes map[string]*Universe

	translator *Translator
	journal    Journal
	log        *zap.Logger
}

// Option configures a Multiverse at construction.
type Option func(*Multiverse)

// WithLogger sets the logger used for soft-failure warnings and transport
// diagnostics. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Multiverse) {
		if log != nil {
			m.log = log
		}
	}
}

// WithJournal attaches a journal receiving an entry per transport flush.
func WithJournal(j Journal) Option {
	return func(m *Multiverse) {
		m.journal = j
	}
}

// New creates an empty multiverse.
func New(opts ...Option) *Multiverse {
	m := &Multiverse{
		schemas:   make(map[string]*UniversalSchema),
		universes: make(map[string]*Universe),
		log:       zap.NewNop(),
	}
	m.translator = NewTranslator(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Logger returns the logger the multiverse was built with, for collaborators
// (suns, journals) that want to share it.
func (m *Multiverse) Logger() *zap.Logger {
	return m.log
}

// RegisterSchema registers the universal schema for a record type.
// Registering a record type twice is a configuration error.
func (m *Multiverse) RegisterSchema(schema *UniversalSchema) error {
	if schema == nil || schema.Name == "" {
		return fmt.Errorf("universal schema requires a name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.schemas[schema.Name]; exists {
		return fmt.Errorf("universal schema %q is already registered", schema.Name)
	}
	m.schemas[schema.Name] = schema
	return nil
}

// Schema returns the universal schema registered for a record type.
// Implements SchemaSource for the translator.
func (m *Multiverse) Schema(name string) (*UniversalSchema, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	schema, ok := m.schemas[name]
	return schema, ok
}

// AddUniverse registers a universe. Fails with *DuplicateUniverseError when
// the name is taken, unless replace is true.
func (m *Multiverse) AddUniverse(u *Universe, replace bool) error {
	if u == nil {
		return fmt.Errorf("universe cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.universes[u.Name()]; exists && !replace {
		return &DuplicateUniverseError{Name: u.Name()}
	}
	m.universes[u.Name()] = u
	return nil
}

// Universe returns the universe registered under the given name.
func (m *Multiverse) Universe(name string) (*Universe, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.universes[name]
	return u, ok
}

// ToUniversal translates a local record from the named universe into the
// universal shape of its record type.
func (m *Multiverse) ToUniversal(rec Record, schema *LocalSchema, universe string) (Record, error) {
	return m.translator.ToUniversal(rec, schema, universe)
}

// ToLocal translates a universal record into the named universe's local
// shape for the given schema.
func (m *Multiverse) ToLocal(rec Record, schema *LocalSchema, universe string) (Record, error) {
	return m.translator.ToLocal(rec, schema, universe)
}

// collection resolves one side of a transport request.
func (m *Multiverse) collection(universe, name string) (Collection, error) {
	u, ok := m.Universe(universe)
	if !ok {
		return nil, &UniverseNotFoundError{Name: universe}
	}
	c, ok := u.Get(name)
	if !ok {
		return nil, &CollectionNotFoundError{Universe: universe, Collection: name}
	}
	return c, nil
}

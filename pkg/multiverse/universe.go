package multiverse

import "sync"

// Universe is a named container of collections sharing one multiverse. All
// translation and transport flows through the owning multiverse; the
// universe itself is pure composition and lookup.
type Universe struct {
	name string
	mv   *Multiverse

	mu          sync.RWMutex
	collections map[string]Collection
}

// NewUniverse creates a universe bound to a multiverse. A universe cannot
// exist detached: without a multiverse it has no schemas to translate
// through, so a nil multiverse fails with ErrMissingMultiverse.
func NewUniverse(name string, mv *Multiverse) (*Universe, error) {
	if mv == nil {
		return nil, ErrMissingMultiverse
	}
	return &Universe{
		name:        name,
		mv:          mv,
		collections: make(map[string]Collection),
	}, nil
}

// Name returns the universe name.
func (u *Universe) Name() string {
	return u.name
}

// Multiverse returns the owning multiverse.
func (u *Universe) Multiverse() *Multiverse {
	return u.mv
}

// Add registers a collection by its name. Re-adding a name replaces the
// previous collection; duplicate protection lives at the multiverse level
// for universes, not here.
func (u *Universe) Add(c Collection) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.collections[c.Name()] = c
}

// Get returns the collection registered under the given name.
func (u *Universe) Get(name string) (Collection, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	c, ok := u.collections[name]
	return c, ok
}

// Has reports whether a collection is registered under the given name.
func (u *Universe) Has(name string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.collections[name]
	return ok
}

// Names returns the registered collection names.
func (u *Universe) Names() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	names := make([]string, 0, len(u.collections))
	for name := range u.collections {
		names = append(names, name)
	}
	return names
}

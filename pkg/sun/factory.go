package sun

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bingomanatee/multiverse/pkg/multiverse"
)

// Deps carries cross-cutting collaborators into sun constructors.
type Deps struct {
	// Log is used for backend diagnostics. Nil means no logging.
	Log *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// Factory is the strategy interface each sun backend implements to build
// collections from configuration.
type Factory interface {
	// Type returns the backend identifier (e.g. "memory", "redis").
	Type() string

	// Validate checks the backend-specific configuration.
	Validate(cfg multiverse.SunConfig) error

	// Create builds a collection for the configured slot.
	Create(cfg multiverse.SunConfig, schema *multiverse.LocalSchema, deps Deps) (multiverse.Collection, error)
}

var (
	factoryRegistry = make(map[string]Factory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a sun factory. Called from each backend's init;
// panics on nil, empty-type, or duplicate registration since all three are
// programming errors.
func RegisterFactory(factory Factory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("sun factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
}

// Create builds a collection using the factory registered for cfg.Type.
func Create(cfg multiverse.SunConfig, schema *multiverse.LocalSchema, deps Deps) (multiverse.Collection, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("sun type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[cfg.Type]
	registryMutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unsupported sun type: %s", cfg.Type)
	}

	if err := factory.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s sun: %w", cfg.Type, err)
	}
	return factory.Create(cfg, schema, deps)
}

// RegisteredTypes returns the registered backend identifiers.
func RegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	return types
}

// Package strategies holds the strategy registry. Implementations are
// registered explicitly at process start; there is no directory scanning or
// reflection-based discovery.
package strategies

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"coinback/internal/engine"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Factory builds a fresh strategy instance for one run.
type Factory func() (engine.Strategy, error)

var (
	mu       sync.Mutex
	registry = make(map[string]Factory)
)

// Register makes a strategy available under the given name. It panics on a
// duplicate name, like database/sql driver registration.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if factory == nil {
		panic("strategies: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("strategies: Register called twice for " + name)
	}
	registry[name] = factory
}

// New builds the named strategy.
func New(name string) (engine.Strategy, error) {
	mu.Lock()
	factory, ok := registry[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return factory()
}

// Names lists the registered strategy names, sorted.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

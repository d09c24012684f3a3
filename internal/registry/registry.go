// Package registry is the plug-in point for compiler-generated stencil
// solutions. A generated package provides a Solution factory; the runner
// looks it up by the name given in the tuning file. Registration happens
// once at startup, so duplicate names are programmer errors and panic.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/XeonPhiNexus/yask/internal/engine"
)

// Factory produces a fresh Solution instance.
type Factory func() engine.Solution

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a solution factory under the given name.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("solution %q already registered", name))
	}
	slog.Debug("Registering stencil solution.", "name", name)
	factories[name] = factory
}

// Lookup returns the factory for a registered solution.
func Lookup(name string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown stencil %q; known: %v", name, namesLocked())
	}
	return f, nil
}

// Names returns the registered solution names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

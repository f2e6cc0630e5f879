package registry

import (
	"fmt"
	"sync"
)

var (
	// registries indexes running registries by observability context name.
	registries = make(map[string]*Registry)
	regMu      sync.RWMutex
)

// Install creates, starts, and indexes a registry for the named
// observability context. It fails if the name is already taken; contexts
// are isolated from each other, so a name maps to exactly one registry.
func Install(name string, cfg *Config) (*Registry, error) {
	regMu.Lock()
	defer regMu.Unlock()

	if _, exists := registries[name]; exists {
		return nil, fmt.Errorf("registry already installed for context %q", name)
	}
	r := New(cfg)
	r.Start()
	registries[name] = r
	return r, nil
}

// ForContext returns the registry installed under name, or nil. A nil
// result is safe to use directly: every Registry method degrades to a
// no-op on nil.
func ForContext(name string) *Registry {
	regMu.RLock()
	defer regMu.RUnlock()
	return registries[name]
}

// Uninstall stops and removes the named registry. Unknown names are a
// no-op.
func Uninstall(name string) {
	regMu.Lock()
	r := registries[name]
	delete(registries, name)
	regMu.Unlock()

	r.Stop()
}

package schema

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Definition)
	registryMu sync.RWMutex
)

// Register adds a definition to the registry.
func Register(def Definition) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDefinition, def.Key)
	}
	registry[def.Key] = def
	return nil
}

// RegisterFile loads a definitions file and registers every table in it.
// It returns the keys in file order.
func RegisterFile(path string) ([]string, error) {
	defs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(defs))
	for _, def := range defs {
		if err := Register(def); err != nil {
			return nil, err
		}
		keys = append(keys, def.Key)
	}
	return keys, nil
}

// Get returns a definition by key.
func Get(key string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns every registered definition.
// Sorted by group then by key for consistent ordering.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Key < result[j].Key
	})
	return result
}

// Count returns the number of registered definitions.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered definitions.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Definition)
}

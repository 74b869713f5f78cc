package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]TableConfig)
	registryMu sync.RWMutex
)

// Register adds a table config to the registry.
// Panics if the config is invalid or its key is already registered.
func Register(cfg TableConfig) {
	if err := Add(cfg); err != nil {
		panic(err.Error())
	}
}

// Add is Register returning an error instead of panicking. It is used
// for configs loaded at runtime.
func Add(cfg TableConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[cfg.Key]; exists {
		return fmt.Errorf("%w: table already registered: %s", ErrInvalidConfig, cfg.Key)
	}

	if cfg.Title == "" {
		cfg.Title = cfg.Key
	}
	registry[cfg.Key] = cfg
	return nil
}

// Get returns a table config by key.
func Get(key string) (TableConfig, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	cfg, ok := registry[key]
	return cfg, ok
}

// Lookup is Get returning ErrUnknownTable for a missing key.
func Lookup(key string) (TableConfig, error) {
	cfg, ok := Get(key)
	if !ok {
		return TableConfig{}, fmt.Errorf("%w: %s", ErrUnknownTable, key)
	}
	return cfg, nil
}

// All returns every registered config sorted by group then key.
func All() []TableConfig {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableConfig, 0, len(registry))
	for _, cfg := range registry {
		result = append(result, cfg)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// ByGroup returns the configs of one group sorted by key.
func ByGroup(group string) []TableConfig {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []TableConfig
	for _, cfg := range registry {
		if cfg.Group == group {
			result = append(result, cfg)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Groups returns all unique group names, sorted.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, cfg := range registry {
		seen[cfg.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered tables.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TableConfig)
}

// Package modules defines the scan module contract and the compile time
// registry the engine loads modules from.
package modules

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a module instance bound to one scan.
type Factory func(deps Deps) Module

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a module factory under category/name. Module packages call
// this from init; registering the same path twice is a programming error.
func Register(category, name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	path := category + "/" + name
	if _, exists := registry[path]; exists {
		panic(fmt.Sprintf("module %s registered twice", path))
	}
	registry[path] = factory
}

// Lookup returns the factory registered under category/name.
func Lookup(category, name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[category+"/"+name]
	return factory, ok
}

// Registered lists the module names available in a category, sorted.
func Registered(category string) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	prefix := category + "/"
	var names []string
	for path := range registry {
		if strings.HasPrefix(path, prefix) {
			names = append(names, strings.TrimPrefix(path, prefix))
		}
	}
	sort.Strings(names)
	return names
}

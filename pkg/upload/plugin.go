// Package upload defines the upload plugin contract and the units plugins upload.
package upload

import (
	"context"
	"sort"
	"sync"

	"github.com/walteh/deployrc/pkg/target"
)

// 🔌 Plugin uploads the units of a Context for the target types it is registered for
type Plugin interface {
	Name() string
	UploadFiles(ctx context.Context, uc *Context) error
}

// 🗺️ Registry maps target type tags to an ordered list of plugins
type Registry struct {
	mu      sync.RWMutex
	plugins map[string][]Plugin
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string][]Plugin)}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry the built-in plugins register with
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// 📝 Register adds a plugin to the default registry
func Register(typ string, p Plugin) {
	defaultRegistry.Register(typ, p)
}

// Register appends a plugin for a target type
func (r *Registry) Register(typ string, p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()

	typ = target.NormalizeType(typ)
	r.plugins[typ] = append(r.plugins[typ], p)
}

// 🎯 PluginsFor returns the plugins able to upload to t, in registration order
func (r *Registry) PluginsFor(t *target.Target) []Plugin {
	if t == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Plugin(nil), r.plugins[t.NormalizedType()]...)
}

// Types returns the registered target types, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.plugins))
	for k := range r.plugins {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

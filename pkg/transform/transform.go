// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transform turns local file content into the bytes that get uploaded.
package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/walteh/deployrc/pkg/target"
	"gitlab.com/tozd/go/errors"
)

// OperationDeploy is the Context.Operation of a deploy run
const OperationDeploy = "deploy"

// 📋 Context describes the file being transformed
type Context struct {
	Operation  string
	File       string // absolute local path
	RemoteFile string // remote path relative to the target root
	Target     *target.Target
	Options    map[string]string // snapshot of the target's transformer options
	StateKey   string
}

// 🔀 Transformer maps file content to uploaded content. Transformers must not keep state
// between calls.
type Transformer func(ctx context.Context, data []byte, tc Context) ([]byte, error)

// Identity returns data unchanged
func Identity(_ context.Context, data []byte, _ Context) ([]byte, error) {
	return data, nil
}

// 🏭 Factory builds a transformer from the target's transformer options
type Factory func(opts map[string]string) (Transformer, error)

// 🗺️ Registry maps transformer names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry the built-in transformers register with
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register registers a factory with the default registry
func Register(name string, f Factory) {
	defaultRegistry.Register(name, f)
}

// Register registers a factory under a name
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(strings.TrimSpace(name))] = f
}

// 📦 Load builds the transformer configured for t. No transformer name means Identity.
func (r *Registry) Load(t *target.Target) (Transformer, error) {
	if t == nil {
		return Identity, nil
	}

	name := strings.ToLower(strings.TrimSpace(t.Transformer))
	if name == "" {
		return Identity, nil
	}

	r.mu.RLock()
	f, ok := r.factories[name]
	names := make([]string, 0, len(r.factories))
	for k := range r.factories {
		names = append(names, k)
	}
	r.mu.RUnlock()

	if !ok {
		sort.Strings(names)
		return nil, errors.Errorf("transformer %q not found, options: %s", name, strings.Join(names, ", "))
	}

	tr, err := f(t.TransformerOptions)
	if err != nil {
		return nil, errors.Errorf("loading transformer %q: %w", name, err)
	}
	if tr == nil {
		return nil, errors.Errorf("transformer %q could not be loaded", name)
	}

	return tr, nil
}

// Load builds the transformer of t from the default registry
func Load(t *target.Target) (Transformer, error) {
	return defaultRegistry.Load(t)
}

// 🛡️ Safe wraps tr so that a nil transformer acts as Identity and a panic becomes an error
func Safe(tr Transformer) Transformer {
	if tr == nil {
		return Identity
	}
	return func(ctx context.Context, data []byte, tc Context) (out []byte, err error) {
		defer func() {
			if r := recover(); r != nil {
				out = nil
				err = errors.Errorf("transformer panicked: %s", fmt.Sprint(r))
			}
		}()
		return tr(ctx, data, tc)
	}
}

// Chain applies transformers in order
func Chain(trs ...Transformer) Transformer {
	return func(ctx context.Context, data []byte, tc Context) ([]byte, error) {
		var err error
		for _, tr := range trs {
			if tr == nil {
				continue
			}
			data, err = tr(ctx, data, tc)
			if err != nil {
				return nil, err
			}
		}
		return data, nil
	}
}

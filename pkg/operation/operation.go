// Package operation executes the target operations configured for a lifecycle event
package operation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/walteh/deployrc/pkg/target"
	"gitlab.com/tozd/go/errors"
)

// DefaultType is the executor used for operations without a type
const DefaultType = "exec"

// 📋 Context is what an executor gets to know about the operation it runs
type Context struct {
	Event     target.Event
	Target    *target.Target
	Operation target.Operation
	Index     int      // 0-based position within the event's operation list
	Files     []string // remote paths of the files of the run
}

// 🔧 Executor runs one operation type
type Executor interface {
	Execute(ctx context.Context, oc *Context) error
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, oc *Context) error

// Execute implements Executor
func (f ExecutorFunc) Execute(ctx context.Context, oc *Context) error {
	return f(ctx, oc)
}

// 🗺️ Registry maps operation type tags to executors
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// 🏭 NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry the built-in executors register with
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// 📝 Register registers an executor with the default registry
func Register(typ string, e Executor) {
	defaultRegistry.Register(typ, e)
}

// Register registers an executor for a type tag
func (r *Registry) Register(typ string, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[target.NormalizeType(typ)] = e
}

// 🎯 Lookup returns the executor for a type tag. An empty tag means DefaultType.
func (r *Registry) Lookup(typ string) (Executor, error) {
	typ = target.NormalizeType(typ)
	if typ == "" {
		typ = DefaultType
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executors[typ]
	if !ok {
		options := make([]string, 0, len(r.executors))
		for k := range r.executors {
			options = append(options, k)
		}
		sort.Strings(options)
		return nil, errors.Errorf("operation type %q not found, options: %s", typ, strings.Join(options, ", "))
	}
	return e, nil
}

// 🏷️ OperationName returns the display name of an operation: its configured name, else its
// normalized type (or DefaultType) suffixed with the 1-based index
func OperationName(op target.Operation, index int) string {
	if name := strings.TrimSpace(op.Name); name != "" {
		return name
	}

	name := target.NormalizeType(op.Type)
	if name == "" {
		name = DefaultType
	}
	return fmt.Sprintf("%s #%d", name, index+1)
}

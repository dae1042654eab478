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

package operation

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/target"
	"gitlab.com/tozd/go/errors"
)

// 🪝 Hooks observe the operations of one event
type Hooks struct {
	// OnBeforeEach is called before an operation starts
	OnBeforeEach func(ctx context.Context, op target.Operation, index int)
	// OnEachCompleted is called after an operation finished, doesContinue tells if the chain goes on
	OnEachCompleted func(ctx context.Context, op target.Operation, index int, err error, doesContinue bool)
	// OnReloadFiles is called when a prepare operation asks for a file list reload
	OnReloadFiles func()
}

// 🏃 Runner executes the operations of a target event
type Runner struct {
	registry *Registry
	async    bool
}

// 🏗️ NewRunner creates a new runner. A nil registry means the default registry.
func NewRunner(registry *Registry, async bool) *Runner {
	if registry == nil {
		registry = defaultRegistry
	}
	return &Runner{
		registry: registry,
		async:    async,
	}
}

// 🏃 Execute runs the operations of ev in declaration order. It returns false as soon as an
// operation does not continue (failed without IgnoreIfFail), true otherwise.
func (r *Runner) Execute(ctx context.Context, ev target.Event, t *target.Target, files []string, hooks Hooks) bool {
	if t == nil {
		return true
	}

	logger := zerolog.Ctx(ctx).With().Str("target", t.DisplayName()).Str("event", ev.String()).Logger()

	for i, op := range t.Operations(ev) {
		if hooks.OnBeforeEach != nil {
			hooks.OnBeforeEach(ctx, op, i)
		}

		err := r.executeOne(ctx, &Context{
			Event:     ev,
			Target:    t,
			Operation: op,
			Index:     i,
			Files:     files,
		})

		doesContinue := err == nil || op.IgnoreIfFail
		if err != nil {
			logger.Debug().Err(err).Str("operation", OperationName(op, i)).Bool("continue", doesContinue).Msg("operation failed")
		}

		if hooks.OnEachCompleted != nil {
			hooks.OnEachCompleted(ctx, op, i, err, doesContinue)
		}

		if err == nil && ev == target.EventPrepare && op.ReloadFiles && hooks.OnReloadFiles != nil {
			hooks.OnReloadFiles()
		}

		if !doesContinue {
			return false
		}
	}

	return true
}

func (r *Runner) executeOne(ctx context.Context, oc *Context) error {
	exec, err := r.registry.Lookup(oc.Operation.Type)
	if err != nil {
		return err
	}

	if r.async {
		return r.runAsync(ctx, exec, oc)
	}
	return r.runSync(ctx, exec, oc)
}

// 🔄 runSync runs an operation synchronously
func (r *Runner) runSync(ctx context.Context, exec Executor, oc *Context) error {
	return exec.Execute(ctx, oc)
}

// ⚡ runAsync runs an operation in its own goroutine and stops waiting when ctx is done
func (r *Runner) runAsync(ctx context.Context, exec Executor, oc *Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := exec.Execute(ctx, oc); err != nil {
			errCh <- errors.Errorf("executing operation: %w", err)
		}
	}()

	// Wait for completion or context cancellation
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return errors.Errorf("operation cancelled: %w", ctx.Err())
	case err := <-errCh:
		return err
	case <-done:
		// the error is sent before done closes
		select {
		case err := <-errCh:
			return err
		default:
			return nil
		}
	}
}

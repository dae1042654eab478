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
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/deployrc/pkg/target"
	"gitlab.com/tozd/go/errors"
)

func setupTestContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func testRegistry(rec *recorder) *Registry {
	reg := NewRegistry()
	reg.Register("ok", ExecutorFunc(func(ctx context.Context, oc *Context) error {
		rec.add("ok:" + oc.Operation.Name)
		return nil
	}))
	reg.Register("fail", ExecutorFunc(func(ctx context.Context, oc *Context) error {
		rec.add("fail:" + oc.Operation.Name)
		return errors.New("boom")
	}))
	return reg
}

func TestRunnerExecute(t *testing.T) {
	tests := []struct {
		name      string
		ops       []target.Operation
		wantOK    bool
		wantCalls []string
	}{
		{
			name:      "no_operations",
			ops:       nil,
			wantOK:    true,
			wantCalls: nil,
		},
		{
			name: "all_succeed_in_order",
			ops: []target.Operation{
				{Type: "ok", Name: "a"},
				{Type: "OK ", Name: "b"},
			},
			wantOK:    true,
			wantCalls: []string{"ok:a", "ok:b"},
		},
		{
			name: "failure_stops_chain",
			ops: []target.Operation{
				{Type: "fail", Name: "a"},
				{Type: "ok", Name: "b"},
			},
			wantOK:    false,
			wantCalls: []string{"fail:a"},
		},
		{
			name: "ignored_failure_continues",
			ops: []target.Operation{
				{Type: "fail", Name: "a", IgnoreIfFail: true},
				{Type: "ok", Name: "b"},
			},
			wantOK:    true,
			wantCalls: []string{"fail:a", "ok:b"},
		},
		{
			name: "unknown_type_stops_chain",
			ops: []target.Operation{
				{Type: "nope", Name: "a"},
				{Type: "ok", Name: "b"},
			},
			wantOK:    false,
			wantCalls: nil,
		},
	}

	for _, tt := range tests {
		for _, async := range []bool{false, true} {
			name := tt.name
			if async {
				name += "_async"
			}
			t.Run(name, func(t *testing.T) {
				ctx := setupTestContext(t)
				rec := &recorder{}
				r := NewRunner(testRegistry(rec), async)

				tgt := &target.Target{ID: "1", BeforeDeploy: tt.ops}
				ok := r.Execute(ctx, target.EventBeforeDeploy, tgt, nil, Hooks{})

				assert.Equal(t, tt.wantOK, ok)
				assert.Equal(t, tt.wantCalls, rec.get())
			})
		}
	}
}

func TestRunnerHooks(t *testing.T) {
	ctx := setupTestContext(t)
	rec := &recorder{}
	r := NewRunner(testRegistry(rec), false)

	tgt := &target.Target{
		ID: "1",
		Prepare: []target.Operation{
			{Type: "ok", Name: "build", ReloadFiles: true},
			{Type: "fail", Name: "lint", IgnoreIfFail: true, ReloadFiles: true},
		},
	}

	var events []string
	reloads := 0
	ok := r.Execute(ctx, target.EventPrepare, tgt, []string{"/a.txt"}, Hooks{
		OnBeforeEach: func(ctx context.Context, op target.Operation, index int) {
			events = append(events, "before:"+OperationName(op, index))
		},
		OnEachCompleted: func(ctx context.Context, op target.Operation, index int, err error, doesContinue bool) {
			state := "ok"
			if err != nil {
				state = "err"
			}
			if doesContinue {
				state += ":continue"
			}
			events = append(events, "done:"+OperationName(op, index)+":"+state)
		},
		OnReloadFiles: func() { reloads++ },
	})

	require.True(t, ok)
	assert.Equal(t, []string{
		"before:build",
		"done:build:ok:continue",
		"before:lint",
		"done:lint:err:continue",
	}, events)
	assert.Equal(t, 1, reloads, "only successful prepare operations reload")
}

func TestRunnerReloadOnlyForPrepare(t *testing.T) {
	ctx := setupTestContext(t)
	r := NewRunner(testRegistry(&recorder{}), false)

	tgt := &target.Target{
		ID:       "1",
		Deployed: []target.Operation{{Type: "ok", ReloadFiles: true}},
	}

	reloads := 0
	ok := r.Execute(ctx, target.EventAfterDeployed, tgt, nil, Hooks{OnReloadFiles: func() { reloads++ }})

	assert.True(t, ok)
	assert.Zero(t, reloads)
}

func TestRunnerAsyncHonorsContext(t *testing.T) {
	ctx := setupTestContext(t)
	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	reg := NewRegistry()
	reg.Register("block", ExecutorFunc(func(ctx context.Context, oc *Context) error {
		time.Sleep(time.Second)
		return nil
	}))

	r := NewRunner(reg, true)
	ok := r.Execute(ctx, target.EventBeforeDeploy, &target.Target{
		ID:           "1",
		BeforeDeploy: []target.Operation{{Type: "block"}},
	}, nil, Hooks{})

	assert.False(t, ok)
}

func TestRunnerPassesContext(t *testing.T) {
	ctx := setupTestContext(t)

	var got *Context
	reg := NewRegistry()
	reg.Register("capture", ExecutorFunc(func(ctx context.Context, oc *Context) error {
		got = oc
		return nil
	}))

	tgt := &target.Target{
		ID:       "7",
		Deployed: []target.Operation{{Type: "ok"}, {Type: "capture", Options: map[string]string{"k": "v"}}},
	}
	reg.Register("ok", ExecutorFunc(func(ctx context.Context, oc *Context) error { return nil }))

	ok := NewRunner(reg, false).Execute(ctx, target.EventAfterDeployed, tgt, []string{"/x", "/y"}, Hooks{})
	require.True(t, ok)
	require.NotNil(t, got)

	assert.Equal(t, target.EventAfterDeployed, got.Event)
	assert.Same(t, tgt, got.Target)
	assert.Equal(t, 1, got.Index)
	assert.Equal(t, "v", got.Operation.Options["k"])
	assert.Equal(t, []string{"/x", "/y"}, got.Files)
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register("exec", ExecutorFunc(func(ctx context.Context, oc *Context) error { return nil }))

	_, err := reg.Lookup("")
	require.NoError(t, err, "empty type falls back to exec")

	_, err = reg.Lookup(" EXEC ")
	require.NoError(t, err)

	_, err = reg.Lookup("ftp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `operation type "ftp" not found`)
	assert.Contains(t, err.Error(), "exec")
}

func TestDefaultRegistryHasBuiltins(t *testing.T) {
	for _, typ := range []string{"exec", "http", "ssh", "wait"} {
		_, err := DefaultRegistry().Lookup(typ)
		assert.NoError(t, err, typ)
	}
}

func TestOperationName(t *testing.T) {
	tests := []struct {
		name  string
		op    target.Operation
		index int
		want  string
	}{
		{name: "explicit_name", op: target.Operation{Name: "Build", Type: "exec"}, index: 0, want: "Build"},
		{name: "type_with_index", op: target.Operation{Type: " HTTP "}, index: 2, want: "http #3"},
		{name: "default_type", op: target.Operation{}, index: 0, want: "exec #1"},
		{name: "blank_name", op: target.Operation{Name: "  ", Type: "wait"}, index: 1, want: "wait #2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OperationName(tt.op, tt.index))
		})
	}
}

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

// Package session keeps track of which targets are currently deployed to, so that a target
// (or a group of mutually exclusive targets) is only used by one run at a time.
//
// The process-wide Default registry is created at package init. Entries are added by
// Acquire and removed by Release only; nothing resets the registry implicitly.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/target"
	"gitlab.com/tozd/go/errors"
)

// 🎫 Session is the exclusive occupancy of a target for the duration of one run
type Session struct {
	id     uint64
	target *target.Target
}

// ID returns the session id
func (s *Session) ID() uint64 {
	return s.id
}

// 💬 Indicator receives "waiting for" feedback while Acquire blocks
type Indicator interface {
	SetText(text string)
}

// 🗂️ Registry holds the active sessions
type Registry struct {
	conflicts target.ConflictFunc

	mu      sync.Mutex
	active  map[*Session]struct{}
	changed chan struct{}

	nextID atomic.Uint64
}

// Default is the process-wide registry
var Default = NewRegistry(target.SameOrGrouped)

// 🏭 NewRegistry creates a registry using the given conflict rule
func NewRegistry(conflicts target.ConflictFunc) *Registry {
	if conflicts == nil {
		conflicts = target.SameOrGrouped
	}
	return &Registry{
		conflicts: conflicts,
		active:    make(map[*Session]struct{}),
		changed:   make(chan struct{}),
	}
}

// 🔒 Acquire blocks until no active session conflicts with t, then registers a new session.
// While waiting the indicator (if any) shows which target is blocking.
func (r *Registry) Acquire(ctx context.Context, t *target.Target, indicator Indicator) (*Session, error) {
	if t == nil {
		return nil, errors.Errorf("acquiring session: no target")
	}

	logger := zerolog.Ctx(ctx).With().Str("target", t.DisplayName()).Logger()

	for {
		r.mu.Lock()
		blocker := r.conflicting(t)
		if blocker == nil {
			s := &Session{id: r.nextID.Add(1), target: t}
			r.active[s] = struct{}{}
			t.MarkInProgress()
			r.mu.Unlock()

			logger.Debug().Uint64("session", s.id).Msg("session acquired")
			return s, nil
		}
		changed := r.changed
		r.mu.Unlock()

		if indicator != nil {
			indicator.SetText(fmt.Sprintf("Waiting for '%s' ...", blocker.DisplayName()))
		}
		logger.Debug().Str("blocked_by", blocker.DisplayName()).Msg("waiting for other target")

		select {
		case <-ctx.Done():
			return nil, errors.Errorf("waiting for %s: %w", blocker.DisplayName(), ctx.Err())
		case <-changed:
		}
	}
}

// conflicting returns the target of the first active session conflicting with t. r.mu must be held.
func (r *Registry) conflicting(t *target.Target) *target.Target {
	for s := range r.active {
		if r.conflicts(s.target, t) || r.conflicts(t, s.target) {
			return s.target
		}
	}
	return nil
}

// 🔓 Release ends a session. Releasing nil or an already released session is a no-op.
func (r *Registry) Release(s *Session) {
	if s == nil {
		return
	}

	r.mu.Lock()
	if _, ok := r.active[s]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.active, s)
	s.target.UnmarkInProgress()
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()
}

// Active returns the number of active sessions
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

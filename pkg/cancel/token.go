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

package cancel

import (
	"sync"
)

// 🛑 Token is a cooperative cancellation signal shared by every checkpoint of a run.
// Once requested it never resets.
type Token struct {
	mu        sync.Mutex
	requested bool
	done      chan struct{}
	callbacks []func()
}

func newToken() *Token {
	return &Token{done: make(chan struct{})}
}

// IsRequested reports whether cancellation has been requested
func (t *Token) IsRequested() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requested
}

// Done returns a channel closed once cancellation has been requested
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// OnRequested registers a callback run once cancellation is requested.
// If it already was, the callback runs immediately.
func (t *Token) OnRequested(fn func()) {
	t.mu.Lock()
	if t.requested {
		t.mu.Unlock()
		fn()
		return
	}
	t.callbacks = append(t.callbacks, fn)
	t.mu.Unlock()
}

func (t *Token) request() bool {
	t.mu.Lock()
	if t.requested {
		t.mu.Unlock()
		return false
	}
	t.requested = true
	close(t.done)
	cbs := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	for _, fn := range cbs {
		fn()
	}
	return true
}

// 🎛️ Source owns a Token and is the only thing able to request it
type Source struct {
	token    *Token
	mu       sync.Mutex
	disposed bool
}

// NewSource creates a new cancellation source
func NewSource() *Source {
	return &Source{token: newToken()}
}

// Token returns the token of this source
func (s *Source) Token() *Token {
	return s.token
}

// Cancel requests cancellation. It is a no-op after Dispose.
func (s *Source) Cancel() {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return
	}
	s.token.request()
}

// Dispose releases the source, pending callbacks are dropped
func (s *Source) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true

	s.token.mu.Lock()
	s.token.callbacks = nil
	s.token.mu.Unlock()
}

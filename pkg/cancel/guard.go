package cancel

import (
	"context"
	"sync"
)

// ⏸️ Guard tracks whether a cancel request is being confirmed.
// Wait blocks cooperatively until no confirmation is in progress.
type Guard struct {
	mu     sync.Mutex
	active bool
	idle   chan struct{}
}

// Begin marks a confirmation as in progress. It returns false if one already is.
func (g *Guard) Begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active {
		return false
	}
	g.active = true
	g.idle = make(chan struct{})
	return true
}

// End marks the confirmation as finished and wakes all waiters
func (g *Guard) End() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return
	}
	g.active = false
	close(g.idle)
}

// Active reports whether a confirmation is in progress
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Wait blocks while a confirmation is in progress
func (g *Guard) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if !g.active {
			g.mu.Unlock()
			return nil
		}
		idle := g.idle
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
		}
	}
}

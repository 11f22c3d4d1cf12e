// Package ready gates outbound sends on the wallet popup's load handshake.
package ready

import (
	"context"
	"sync"
	"time"
)

// Gate tracks whether the current popup episode has signaled readiness.
// Waiters registered before the signal are parked on a channel that
// MarkReady closes; Reset re-arms the gate for the next episode so waiters
// never observe a signal from a previous popup.
type Gate struct {
	mu     sync.Mutex
	ready  bool
	signal chan struct{}
}

func NewGate() *Gate {
	return &Gate{signal: make(chan struct{})}
}

// MarkReady flips the gate and releases every current waiter. Idempotent
// within an episode.
func (g *Gate) MarkReady() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ready {
		return
	}
	g.ready = true
	close(g.signal)
}

// Reset arms the gate for a new popup episode. Waiters still parked on the
// old episode are released so they cannot fire against the new one.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.ready {
		// Discard waiters queued for the episode that never became ready.
		close(g.signal)
	}
	g.ready = false
	g.signal = make(chan struct{})
}

// Ready reports whether the current episode has signaled.
func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// WaitUntilReady blocks until the current episode signals ready, the fallback
// elapses, or ctx is done. It never returns an error: some wallet builds do
// not emit the signal, so a timed-out wait means proceed anyway.
func (g *Gate) WaitUntilReady(ctx context.Context, fallback time.Duration) {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		return
	}
	signal := g.signal
	g.mu.Unlock()

	timer := time.NewTimer(fallback)
	defer timer.Stop()

	select {
	case <-signal:
	case <-timer.C:
	case <-ctx.Done():
	}
}

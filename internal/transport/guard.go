// internal/transport/guard.go
package transport

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Guard is the per-port exclusive-access lock.
// Waiters are served strictly in arrival order.
type Guard struct {
	sem *semaphore.Weighted
}

func NewGuard() *Guard {
	return &Guard{sem: semaphore.NewWeighted(1)}
}

// Acquire waits for the guard. It fails only if ctx ends while queued.
func (g *Guard) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *Guard) Release() { g.sem.Release(1) }

// Lock and Unlock make Guard a sync.Locker.
func (g *Guard) Lock()   { _ = g.sem.Acquire(context.Background(), 1) }
func (g *Guard) Unlock() { g.Release() }

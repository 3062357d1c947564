package engine

import "sync"

// Guard is a try-acquire section: at most one holder, late callers are
// turned away instead of queued.
type Guard struct {
	mu sync.Mutex
}

// TryRun runs fn if the guard is free and reports whether it ran.
func (g *Guard) TryRun(fn func()) bool {
	if !g.mu.TryLock() {
		return false
	}
	defer g.mu.Unlock()

	fn()
	return true
}

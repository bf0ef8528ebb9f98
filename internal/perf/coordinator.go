package perf

import (
	"sync"
	"sync/atomic"
)

// Coordinator is the state shared by the workers of one harness run: a claim
// counter handing out exactly n reports, and a count of running workers the
// caller waits on.
type Coordinator struct {
	remaining atomic.Int64

	mu      sync.Mutex
	cond    *sync.Cond
	running int
}

// NewCoordinator returns a Coordinator that hands out n claims.
func NewCoordinator(n int) *Coordinator {
	c := &Coordinator{}
	c.cond = sync.NewCond(&c.mu)
	c.remaining.Store(int64(n))
	return c
}

// Claim takes the next report. It returns false once all n are taken.
func (c *Coordinator) Claim() bool {
	return c.remaining.Add(-1) >= 0
}

// Start registers n workers. Call it before the workers start.
func (c *Coordinator) Start(n int) {
	c.mu.Lock()
	c.running += n
	c.mu.Unlock()
}

// Done marks one worker finished.
func (c *Coordinator) Done() {
	c.mu.Lock()
	c.running--
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Wait blocks until every started worker has called Done.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	for c.running > 0 {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

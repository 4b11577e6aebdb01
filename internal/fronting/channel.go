package fronting

import (
	"context"
	"sync"
)

// Channel is a single-slot, latest-value-wins conduit between the fronter
// source and one user's change processor. Send never blocks: an unread value
// is overwritten, so a burst of upstream updates collapses to the most recent
// snapshot. Recv blocks until a value arrives or the channel is closed.
type Channel struct {
	mu      sync.Mutex
	pending Snapshot
	set     bool
	closed  bool
	wake    chan struct{} // capacity 1: a pending wake-up survives until drained
}

func NewChannel() *Channel {
	return &Channel{
		wake: make(chan struct{}, 1),
	}
}

// Send stores the snapshot as the single pending value, replacing any unread
// one. Sends after Close are dropped.
func (c *Channel) Send(snap Snapshot) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = snap
	c.set = true
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Recv blocks until a snapshot is available and returns it with ok=true.
// It returns ok=false once the channel is closed and no value remains, or
// when ctx is cancelled. Values are never delivered out of order; earlier
// unread values are skipped.
func (c *Channel) Recv(ctx context.Context) (Snapshot, bool) {
	for {
		c.mu.Lock()
		if c.set {
			snap := c.pending
			c.set = false
			c.pending = Snapshot{}
			c.mu.Unlock()
			return snap, true
		}
		if c.closed {
			c.mu.Unlock()
			return Snapshot{}, false
		}
		c.mu.Unlock()

		select {
		case <-c.wake:
		case <-ctx.Done():
			return Snapshot{}, false
		}
	}
}

// Close signals the consumer to terminate after draining any pending value.
// Close is idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Package sink provides Consumer Stream Adapter implementations: the
// follower's output side, grounded on the teacher repo's HTTP/SSE layer but
// recast as push targets instead of a store the caller polls.
package sink

import (
	"context"
	"errors"

	"github.com/containerlogs/follower/internal/follower"
)

// ErrClosed is returned by Write once the channel sink has been closed.
var ErrClosed = errors.New("sink: closed")

// Channel is a follower.ConsumerStream backed by a buffered Go channel, for
// callers that want to range over entries directly (cmd/tail's default
// mode).
type Channel struct {
	out    chan follower.LogEntry
	closed chan struct{}
}

// NewChannel creates a Channel sink with the given buffer capacity.
func NewChannel(capacity int) *Channel {
	return &Channel{
		out:    make(chan follower.LogEntry, capacity),
		closed: make(chan struct{}),
	}
}

// Write implements follower.ConsumerStream[follower.LogEntry]. It blocks
// only until the entry is buffered or the sink is closed.
func (c *Channel) Write(entry follower.LogEntry) error {
	select {
	case c.out <- entry:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

// Entries returns the receive side for consumption by a caller's own loop.
func (c *Channel) Entries() <-chan follower.LogEntry {
	return c.out
}

// Close stops accepting writes. Safe to call once.
func (c *Channel) Close() {
	close(c.closed)
}

// WriteContext adapts Channel to respect an external cancellation signal in
// addition to its own Close, for callers that want both.
func (c *Channel) WriteContext(ctx context.Context, entry follower.LogEntry) error {
	select {
	case c.out <- entry:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

package follower

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Defaults mirror the teacher repo's collector.DefaultConfig: sensible
// values for a constrained-memory, long-running daemon.
const (
	DefaultRetryInterval = 10 * time.Second
	DefaultIdleTimeout   = 30 * time.Second
	DefaultKeepAlive     = 15 * time.Second

	// reconnectSince bounds the lookback window on a retry attach so a
	// reconnect never re-fetches more than the dedup buffer can absorb.
	reconnectSince = 10 * time.Second
)

// StartOptions configures one Follower run. LimitBytes has no default on
// purpose: spec callers must say explicitly whether per-stream reads are
// bounded.
type StartOptions struct {
	// Tail requests the last N lines on a fresh (non-retry) attach. Nil
	// means no tail.
	Tail *int64

	// Since bounds how far back a fresh attach may start, e.g. "10s",
	// "5m", "2h", "1d". Empty means unbounded.
	Since string

	// LimitBytes bounds total bytes read per stream. Nil means unbounded.
	// Mandatory field: callers must reason about it, even to set it nil.
	LimitBytes *int64

	// RetryInterval overrides the reconcile cadence. Defaults to
	// DefaultRetryInterval.
	RetryInterval time.Duration

	// DedupCapacity overrides the per-container dedup window size.
	// Defaults to DefaultDedupCapacity.
	DedupCapacity int

	// IdleTimeout overrides the per-stream idle timeout. Defaults to
	// DefaultIdleTimeout.
	IdleTimeout time.Duration
}

func (o StartOptions) withDefaults() StartOptions {
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.DedupCapacity <= 0 {
		o.DedupCapacity = DefaultDedupCapacity
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	return o
}

// ParseSince parses a duration string with the suffixes s, m, h, and d
// (time.ParseDuration plus day support). An empty string returns zero,
// meaning "unbounded".
func ParseSince(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	if strings.HasSuffix(s, "d") {
		numPart := strings.TrimSuffix(s, "d")
		days, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return 0, fmt.Errorf("parse since %q: %w", s, err)
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse since %q: %w", s, err)
	}
	return d, nil
}

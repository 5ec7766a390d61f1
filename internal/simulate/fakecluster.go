package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/containerlogs/follower/internal/follower"
)

// Cluster is a follower.ClusterAdapter backed by Generator instead of a
// real API server: useful for cmd/simulate's local demo and for exercising
// the control loop's reconnect/chaos paths without a cluster.
type Cluster struct {
	gen *Generator

	// ChurnRate is the probability, per emitted line, that the stream
	// closes immediately afterward (simulating the server dropping the
	// connection) so the follower's reconnect path gets exercised.
	ChurnRate float64

	// Interval is the delay between simulated lines on a stream.
	Interval time.Duration
}

// NewCluster builds a Cluster over a freshly generated pod population.
func NewCluster(cfg Config) *Cluster {
	interval := 200 * time.Millisecond
	return &Cluster{gen: NewGenerator(cfg), Interval: interval}
}

// EnumerateContainers returns every simulated container, regardless of the
// requested resources: the simulator has no notion of deployments or
// selectors, only a flat pod population.
func (c *Cluster) EnumerateContainers(_ context.Context, namespace string, _ []follower.Resource) ([]follower.ContainerRef, error) {
	var refs []follower.ContainerRef
	for _, pod := range c.gen.allPods() {
		if namespace != "" && pod.namespace != namespace {
			continue
		}
		for _, container := range pod.containers {
			refs = append(refs, follower.ContainerRef{
				Namespace:     pod.namespace,
				PodName:       pod.name,
				ContainerName: container,
			})
		}
	}
	return refs, nil
}

// OpenLogStream starts a goroutine that writes one simulated line to
// opts.Sink roughly every Interval until the stream is aborted, the
// context is canceled, or chaos closes it early.
func (c *Cluster) OpenLogStream(ctx context.Context, opts follower.OpenLogStreamOptions) (follower.StreamHandle, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	h := &streamHandle{cancel: cancel}

	go c.pump(streamCtx, opts)

	return h, nil
}

type streamHandle struct {
	cancel  context.CancelFunc
	aborted atomic.Bool
}

func (h *streamHandle) Abort() error {
	if h.aborted.CompareAndSwap(false, true) {
		h.cancel()
	}
	return nil
}

func (c *Cluster) pump(ctx context.Context, opts follower.OpenLogStreamOptions) {
	defer func() {
		if opts.OnClose != nil {
			opts.OnClose()
		}
	}()

	interval := c.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			raw := c.gen.line(time.Now()) + "\n"
			if _, err := opts.Sink.Write([]byte(raw)); err != nil {
				if opts.OnError != nil {
					opts.OnError(fmt.Errorf("simulate write: %w", err))
				}
				return
			}

			if c.ChurnRate > 0 && rand.Float64() < c.ChurnRate {
				return
			}
		}
	}
}

// FetchTail synthesizes tailLines historic lines for ref, spaced one second
// apart and ending at the current time, for the one-shot collector.
func (c *Cluster) FetchTail(_ context.Context, _ follower.ContainerRef, tailLines int64, _ time.Duration) ([]byte, error) {
	now := time.Now().UTC()
	var out []byte
	for i := tailLines - 1; i >= 0; i-- {
		at := now.Add(-time.Duration(i) * time.Second)
		raw := c.gen.line(at)
		out = append(out, []byte(raw+"\n")...)
	}
	return out, nil
}

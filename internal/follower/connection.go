package follower

import (
	"context"
	"io"
)

// chunkSink adapts the ClusterAdapter's byte-sink contract to the loop's
// serialized event channel: every Write hands the chunk to the single
// loop goroutine instead of touching shared state from the adapter's own
// goroutine.
type chunkSink struct {
	key    string
	events chan<- loopEvent
	ctx    context.Context
}

func (s *chunkSink) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)

	select {
	case s.events <- loopEvent{kind: eventLine, key: s.key, chunk: chunk}:
	case <-s.ctx.Done():
	}
	return len(p), nil
}

var _ io.Writer = (*chunkSink)(nil)

// eventKind distinguishes the kinds of loopEvent the adapter's callbacks
// and sink feed into the single loop goroutine.
type eventKind int

const (
	eventLine eventKind = iota
	eventError
	eventClose
	eventStats
)

// loopEvent is one item on the loop's serialized event channel. It is the
// recast of the adapter's "error"/"close"/raw-bytes callbacks into values
// a single select loop can consume in order. eventStats is an internal
// request/response item used by Follower.Snapshot, not an adapter event.
type loopEvent struct {
	kind  eventKind
	key   string
	chunk []byte
	err   error

	statsResp chan map[string]Connection
}

// attach opens a log stream for ref and wires its lifecycle callbacks and
// byte sink to push loopEvents onto events. It returns the StreamHandle
// so the caller can register it in the Connection Registry.
func attach(ctx context.Context, adapter ClusterAdapter, ref ContainerRef, retry bool, opts StartOptions, events chan<- loopEvent) (StreamHandle, error) {
	key := ref.Key()

	since := reconnectSince
	var tail *int64
	if !retry {
		var err error
		if since, err = ParseSince(opts.Since); err != nil {
			since = 0
		}
		tail = opts.Tail
	}

	sink := &chunkSink{key: key, events: events, ctx: ctx}

	streamOpts := OpenLogStreamOptions{
		Namespace:     ref.Namespace,
		PodName:       ref.PodName,
		ContainerName: ref.ContainerName,
		Sink:          sink,
		Follow:        true,
		Timestamps:    true,
		TailLines:     tail,
		Since:         since,
		LimitBytes:    opts.LimitBytes,
		IdleTimeout:   opts.IdleTimeout,
		OnError: func(err error) {
			select {
			case events <- loopEvent{kind: eventError, key: key, err: err}:
			case <-ctx.Done():
			}
		},
		OnClose: func() {
			select {
			case events <- loopEvent{kind: eventClose, key: key}:
			case <-ctx.Done():
			}
		},
	}

	return adapter.OpenLogStream(ctx, streamOpts)
}

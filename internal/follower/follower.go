package follower

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Snapshot once the follower has shut down.
var ErrStopped = errors.New("follower: stopped")

// Follower runs the control loop described in spec.md §4.1: it
// periodically reconciles the target container set against the
// Connection Registry, attaches one log stream per missing or non-live
// container, and drains parsed, deduplicated lines to the consumer.
//
// T is the caller's consumer-facing entry shape; the follower never
// inspects it beyond passing it through Converter.
type Follower[T any] struct {
	adapter  ClusterAdapter
	consumer ConsumerStream[T]
	convert  Converter[T]

	namespace string
	resources []Resource
	opts      StartOptions

	registry *registry
	dedup    *dedupBuffer

	events chan loopEvent
	cancel context.CancelFunc
	done   chan struct{}

	stopOnce sync.Once
}

// New creates a Follower. Call Start to begin reconciling.
func New[T any](adapter ClusterAdapter, consumer ConsumerStream[T], convert Converter[T]) *Follower[T] {
	return &Follower[T]{
		adapter:  adapter,
		consumer: consumer,
		convert:  convert,
	}
}

// Start begins reconciling namespace/resources against opts and returns a
// channel that closes once the loop has shut down, which happens when
// Stop is called or ctx is canceled. The loop never completes on its own.
func (f *Follower[T]) Start(ctx context.Context, namespace string, resources []Resource, opts StartOptions) <-chan struct{} {
	opts = opts.withDefaults()

	loopCtx, cancel := context.WithCancel(ctx)

	f.namespace = namespace
	f.resources = resources
	f.opts = opts
	f.registry = newRegistry()
	f.dedup = newDedupBuffer(opts.DedupCapacity)
	f.events = make(chan loopEvent, 256)
	f.cancel = cancel
	f.done = make(chan struct{})

	go f.run(loopCtx)

	return f.done
}

// Stop aborts every live stream, cancels the reconcile timer, and
// resolves the latch returned by Start. It is safe to call more than
// once and from any goroutine; a second call simply waits for the first
// to finish.
func (f *Follower[T]) Stop() {
	f.stopOnce.Do(func() {
		if f.cancel != nil {
			f.cancel()
		}
	})
	if f.done != nil {
		<-f.done
	}
}

func (f *Follower[T]) run(ctx context.Context) {
	defer close(f.done)

	ticker := time.NewTicker(f.opts.RetryInterval)
	defer ticker.Stop()

	f.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			f.teardown()
			return
		case <-ticker.C:
			f.reconcile(ctx)
		case ev := <-f.events:
			f.handleEvent(ev)
		}
	}
}

// reconcile implements spec.md §4.1 step 2, in order: enumerate, bail on
// empty or failed enumeration, then attach one stream per missing or
// non-live container.
func (f *Follower[T]) reconcile(ctx context.Context) {
	containers, err := f.adapter.EnumerateContainers(ctx, f.namespace, f.resources)
	if err != nil {
		slog.Debug("enumerate containers failed", "namespace", f.namespace, "error", err)
		return
	}

	targets := make([]ContainerRef, 0, len(containers))
	for _, ref := range containers {
		if !ref.isInfra() {
			targets = append(targets, ref)
		}
	}

	if len(targets) == 0 {
		slog.Debug("no target containers found", "namespace", f.namespace)
		return
	}

	for _, ref := range targets {
		f.attachOne(ctx, ref)
	}
}

func (f *Follower[T]) attachOne(ctx context.Context, ref ContainerRef) {
	key := ref.Key()

	retry := false
	if conn, exists := f.registry.get(key); exists {
		if conn.live() {
			return
		}
		retry = true
	}

	handle, err := attach(ctx, f.adapter, ref, retry, f.opts, f.events)
	if err != nil {
		if !isNotReady(err) {
			slog.Debug("open log stream failed", "container", key, "retry", retry, "error", err)
		}
		return
	}

	f.registry.set(key, &Connection{Ref: ref, Handle: handle, Status: StatusConnected})
}

func (f *Follower[T]) handleEvent(ev loopEvent) {
	switch ev.kind {
	case eventLine:
		f.handleLine(ev)
	case eventError:
		f.handleError(ev)
	case eventClose:
		f.handleClose(ev)
	case eventStats:
		f.handleStats(ev)
	}
}

func (f *Follower[T]) handleLine(ev loopEvent) {
	conn, ok := f.registry.get(ev.key)
	if !ok {
		// Stale bytes from a connection the registry no longer tracks.
		return
	}

	for _, raw := range splitLines(ev.chunk) {
		parsed, ok := parseLine(raw, time.Now)
		if !ok {
			continue
		}

		var timeMs int64
		if parsed.HasTimestamp {
			timeMs = parsed.Timestamp.UnixMilli()
		}

		if !f.dedup.accept(conn.Ref.dedupKey(), parsed.Message, timeMs) {
			continue
		}

		entry := LogEntry{
			Timestamp:     parsed.Timestamp,
			Message:       parsed.Message,
			ContainerName: conn.Ref.ContainerName,
			Level:         LevelInfo,
		}

		if err := f.consumer.Write(f.convert(entry)); err != nil {
			slog.Debug("consumer write failed", "container", ev.key, "error", err)
		}
	}
}

func (f *Follower[T]) handleError(ev loopEvent) {
	conn, ok := f.registry.get(ev.key)
	if !ok {
		return
	}
	conn.Status = StatusError
	conn.Handle = nil
	logTrace("connection error", "container", ev.key, "error", ev.err)
}

func (f *Follower[T]) handleClose(ev loopEvent) {
	conn, ok := f.registry.get(ev.key)
	if !ok {
		return
	}

	wasError := conn.Status == StatusError
	conn.Status = StatusClosed
	conn.Handle = nil

	if !wasError {
		logTrace("connection closed", "container", ev.key)
	}
}

func (f *Follower[T]) handleStats(ev loopEvent) {
	snapshot := make(map[string]Connection, len(f.registry.all()))
	for k, c := range f.registry.all() {
		snapshot[k] = *c
	}
	ev.statsResp <- snapshot
}

func (f *Follower[T]) teardown() {
	for _, conn := range f.registry.all() {
		if conn.Handle == nil {
			continue
		}
		if err := conn.Handle.Abort(); err != nil {
			slog.Debug("abort stream failed", "container", conn.Ref.Key(), "error", err)
		}
	}
}

// Snapshot returns a point-in-time copy of the Connection Registry. It is
// safe to call concurrently with the running loop; the request is routed
// through the same serialized event channel the loop itself drains.
func (f *Follower[T]) Snapshot(ctx context.Context) (map[string]Connection, error) {
	resp := make(chan map[string]Connection, 1)
	select {
	case f.events <- loopEvent{kind: eventStats, statsResp: resp}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return nil, ErrStopped
	}

	select {
	case snap := <-resp:
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return nil, ErrStopped
	}
}

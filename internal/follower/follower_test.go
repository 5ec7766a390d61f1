package follower

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAdapter is a scripted ClusterAdapter, in the style of the teacher's
// mockStore in batcher_test.go.
type fakeAdapter struct {
	mu         sync.Mutex
	containers []ContainerRef
	enumErr    error
	enumCalls  int

	openFunc func(ctx context.Context, opts OpenLogStreamOptions, call int) (StreamHandle, error)
	openCall int32
}

func (f *fakeAdapter) setContainers(refs []ContainerRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers = refs
}

func (f *fakeAdapter) EnumerateContainers(_ context.Context, _ string, _ []Resource) ([]ContainerRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enumCalls++
	if f.enumErr != nil {
		return nil, f.enumErr
	}
	out := make([]ContainerRef, len(f.containers))
	copy(out, f.containers)
	return out, nil
}

func (f *fakeAdapter) OpenLogStream(ctx context.Context, opts OpenLogStreamOptions) (StreamHandle, error) {
	call := int(atomic.AddInt32(&f.openCall, 1))
	return f.openFunc(ctx, opts, call)
}

// fakeHandle records whether Abort was called.
type fakeHandle struct {
	once    sync.Once
	aborted chan struct{}
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{aborted: make(chan struct{})}
}

func (h *fakeHandle) Abort() error {
	h.once.Do(func() { close(h.aborted) })
	return nil
}

func (h *fakeHandle) wasAborted() bool {
	select {
	case <-h.aborted:
		return true
	default:
		return false
	}
}

// recordingConsumer collects every entry written to it.
type recordingConsumer[T any] struct {
	mu      sync.Mutex
	entries []T
}

func (c *recordingConsumer[T]) Write(e T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *recordingConsumer[T]) snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.entries))
	copy(out, c.entries)
	return out
}

func identity(e LogEntry) LogEntry { return e }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func fastOpts() StartOptions {
	return StartOptions{
		RetryInterval: 20 * time.Millisecond,
		LimitBytes:    nil,
	}
}

func TestFollower_SinglePodTenLines(t *testing.T) {
	ref := ContainerRef{Namespace: "default", PodName: "pod-a", ContainerName: "app"}

	var lines string
	for i := 0; i < 10; i++ {
		lines += fmt.Sprintf("2024-01-01T00:00:0%dZ m%d\n", i, i)
	}

	adapter := &fakeAdapter{containers: []ContainerRef{ref}}
	adapter.openFunc = func(_ context.Context, opts OpenLogStreamOptions, call int) (StreamHandle, error) {
		if call == 1 {
			_, _ = opts.Sink.Write([]byte(lines))
		}
		return newFakeHandle(), nil
	}

	consumer := &recordingConsumer[LogEntry]{}
	f := New[LogEntry](adapter, consumer, identity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := f.Start(ctx, "default", nil, fastOpts())
	defer func() {
		f.Stop()
		<-done
	}()

	waitFor(t, time.Second, func() bool { return len(consumer.snapshot()) == 10 })

	got := consumer.snapshot()
	for i, e := range got {
		if e.Message != fmt.Sprintf("m%d", i) {
			t.Errorf("entry %d message = %q, want %q", i, e.Message, fmt.Sprintf("m%d", i))
		}
	}
}

func TestFollower_ReconnectDedup(t *testing.T) {
	ref := ContainerRef{Namespace: "default", PodName: "pod-a", ContainerName: "app"}
	adapter := &fakeAdapter{containers: []ContainerRef{ref}}

	adapter.openFunc = func(_ context.Context, opts OpenLogStreamOptions, call int) (StreamHandle, error) {
		h := newFakeHandle()
		switch call {
		case 1:
			go func() {
				_, _ = opts.Sink.Write([]byte("2024-01-01T00:00:00Z a\n2024-01-01T00:00:01Z b\n"))
				time.Sleep(10 * time.Millisecond)
				opts.OnClose()
			}()
		case 2:
			go func() {
				_, _ = opts.Sink.Write([]byte("2024-01-01T00:00:01Z b\n2024-01-01T00:00:02Z c\n"))
			}()
		}
		return h, nil
	}

	consumer := &recordingConsumer[LogEntry]{}
	f := New[LogEntry](adapter, consumer, identity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := f.Start(ctx, "default", nil, fastOpts())
	defer func() {
		f.Stop()
		<-done
	}()

	waitFor(t, time.Second, func() bool { return len(consumer.snapshot()) == 3 })

	got := consumer.snapshot()
	want := []string{"a", "b", "c"}
	for i, e := range got {
		if e.Message != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Message, want[i])
		}
	}
}

func TestFollower_UnparseableTimestamp(t *testing.T) {
	ref := ContainerRef{Namespace: "default", PodName: "pod-a", ContainerName: "app"}
	adapter := &fakeAdapter{containers: []ContainerRef{ref}}
	adapter.openFunc = func(_ context.Context, opts OpenLogStreamOptions, call int) (StreamHandle, error) {
		if call == 1 {
			_, _ = opts.Sink.Write([]byte("hello world\n"))
		}
		return newFakeHandle(), nil
	}

	consumer := &recordingConsumer[LogEntry]{}
	before := time.Now()
	f := New[LogEntry](adapter, consumer, identity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := f.Start(ctx, "default", nil, fastOpts())
	defer func() {
		f.Stop()
		<-done
	}()

	waitFor(t, time.Second, func() bool { return len(consumer.snapshot()) == 1 })

	got := consumer.snapshot()[0]
	if got.Message != "hello world" {
		t.Errorf("message = %q, want %q", got.Message, "hello world")
	}
	if got.Timestamp.Before(before) {
		t.Errorf("timestamp should be at-or-after receive time, got %v before %v", got.Timestamp, before)
	}
}

func TestFollower_InfraContainerExcluded(t *testing.T) {
	app := ContainerRef{Namespace: "default", PodName: "pod-a", ContainerName: "app"}
	infra := ContainerRef{Namespace: "default", PodName: "pod-a", ContainerName: "garden-sync"}
	adapter := &fakeAdapter{containers: []ContainerRef{app, infra}}

	var opened []string
	var mu sync.Mutex
	adapter.openFunc = func(_ context.Context, opts OpenLogStreamOptions, _ int) (StreamHandle, error) {
		mu.Lock()
		opened = append(opened, opts.ContainerName)
		mu.Unlock()
		return newFakeHandle(), nil
	}

	consumer := &recordingConsumer[LogEntry]{}
	f := New[LogEntry](adapter, consumer, identity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := f.Start(ctx, "default", nil, fastOpts())
	defer func() {
		f.Stop()
		<-done
	}()

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(opened) >= 1
	})

	time.Sleep(50 * time.Millisecond) // let a couple more ticks pass
	mu.Lock()
	defer mu.Unlock()
	if len(opened) != 1 || opened[0] != "app" {
		t.Errorf("opened = %v, want only [app]", opened)
	}
}

func TestFollower_StopAbortsStreamsAndIsIdempotent(t *testing.T) {
	refA := ContainerRef{Namespace: "default", PodName: "pod-a", ContainerName: "app"}
	refB := ContainerRef{Namespace: "default", PodName: "pod-b", ContainerName: "app"}
	adapter := &fakeAdapter{containers: []ContainerRef{refA, refB}}

	var handles []*fakeHandle
	var mu sync.Mutex
	adapter.openFunc = func(_ context.Context, _ OpenLogStreamOptions, _ int) (StreamHandle, error) {
		h := newFakeHandle()
		mu.Lock()
		handles = append(handles, h)
		mu.Unlock()
		return h, nil
	}

	consumer := &recordingConsumer[LogEntry]{}
	f := New[LogEntry](adapter, consumer, identity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := f.Start(ctx, "default", nil, fastOpts())

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handles) == 2
	})

	f.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("latch did not resolve after Stop")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, h := range handles {
		if !h.wasAborted() {
			t.Errorf("handle %d was not aborted", i)
		}
	}

	// Idempotent: calling Stop again must not block or panic.
	f.Stop()
}

func TestFollower_SnapshotAtMostOneLivePerKey(t *testing.T) {
	ref := ContainerRef{Namespace: "default", PodName: "pod-a", ContainerName: "app"}
	adapter := &fakeAdapter{containers: []ContainerRef{ref}}
	adapter.openFunc = func(_ context.Context, _ OpenLogStreamOptions, _ int) (StreamHandle, error) {
		return newFakeHandle(), nil
	}

	consumer := &recordingConsumer[LogEntry]{}
	f := New[LogEntry](adapter, consumer, identity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := f.Start(ctx, "default", nil, fastOpts())
	defer func() {
		f.Stop()
		<-done
	}()

	time.Sleep(80 * time.Millisecond) // several reconcile ticks

	snap, err := f.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 1 {
		t.Fatalf("registry size = %d, want 1", len(snap))
	}
	conn := snap[ref.Key()]
	if conn.Status != StatusConnected {
		t.Errorf("status = %v, want connected", conn.Status)
	}
}

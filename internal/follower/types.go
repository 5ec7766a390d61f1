// Package follower implements a multi-container log follower: given a set
// of cluster resources it discovers their running containers, opens one
// streaming log connection per container, parses and deduplicates the
// resulting lines, and writes them to a caller-supplied consumer stream.
package follower

import (
	"context"
	"io"
	"strings"
	"time"
)

// Level is the severity attached to a LogEntry. The follower itself never
// classifies log lines by severity; it stamps every entry LevelInfo and
// leaves richer classification to the caller's Converter.
type Level uint8

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// infraContainerPrefix marks containers owned by the runtime's own
// infrastructure rather than the workload. They are never attached.
const infraContainerPrefix = "garden-"

// Resource is an opaque handle identifying a cluster object (pod,
// deployment, daemonset, statefulset) by kind and name. The ClusterAdapter
// knows how to expand it into containers; the follower never interprets it.
type Resource struct {
	Kind string
	Name string
}

// ContainerRef identifies one container within one pod.
type ContainerRef struct {
	Namespace     string
	PodName       string
	ContainerName string
}

// Key returns the stable connection key used by the Connection Registry.
func (c ContainerRef) Key() string {
	return c.PodName + "/" + c.ContainerName
}

// dedupKey returns the key used to scope a ContainerRef's dedup window.
func (c ContainerRef) dedupKey() string {
	return c.PodName + "." + c.ContainerName
}

// isInfra reports whether this container belongs to the runtime's own
// infrastructure and should be excluded from the target set.
func (c ContainerRef) isInfra() bool {
	return strings.HasPrefix(c.ContainerName, infraContainerPrefix)
}

// Status is a Connection's place in its lifecycle.
type Status int

const (
	StatusConnected Status = iota
	StatusError
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is one entry in the Connection Registry: a container, the
// stream handle attached to it (nil once non-live), and its status.
type Connection struct {
	Ref    ContainerRef
	Handle StreamHandle
	Status Status
}

// live reports whether this connection currently owns an open stream.
func (c *Connection) live() bool {
	return c.Status == StatusConnected
}

// LogEntry is the internal, pre-conversion shape of one log line.
type LogEntry struct {
	Timestamp     time.Time
	Message       string
	ContainerName string
	Level         Level
}

// Converter turns an internal LogEntry into the caller's consumer-facing
// shape. The follower treats T as opaque — it never inspects it.
type Converter[T any] func(entry LogEntry) T

// ConsumerStream is the write-only output sink the follower drains into.
// It is the recast of a duck-typed "write chunk" adapter into a single
// explicit method.
type ConsumerStream[T any] interface {
	Write(entry T) error
}

// StreamHandle is a running log connection opened by a ClusterAdapter.
// Abort must be safe to call more than once and from any goroutine.
type StreamHandle interface {
	Abort() error
}

// OpenLogStreamOptions configures one OpenLogStream call.
type OpenLogStreamOptions struct {
	Namespace     string
	PodName       string
	ContainerName string

	// Sink receives raw log bytes as they arrive.
	Sink io.Writer

	Follow     bool
	Timestamps bool

	// TailLines requests only the most recent N lines on attach. Nil means
	// "no tail" (attach from the adapter's default starting point).
	TailLines *int64

	// Since bounds how far back the stream may start. Zero means
	// unbounded.
	Since time.Duration

	// LimitBytes bounds total bytes read from the stream. Nil means
	// unbounded.
	LimitBytes *int64

	// IdleTimeout bounds how long the adapter may wait between reads
	// before treating the stream as dead. Zero means the adapter's own
	// default.
	IdleTimeout time.Duration

	// Lifecycle callbacks. OnError and OnClose may both fire for the same
	// underlying failure; the follower's loop collapses that pair itself,
	// so adapters must call both without trying to suppress either.
	OnError  func(error)
	OnClose  func()
	OnSocket func(socket io.Closer)
}

// ClusterAdapter enumerates containers and opens per-container log
// streams. It is the only collaborator the follower depends on; a real
// implementation lives in internal/k8sadapter, and internal/simulate
// provides one for tests and local demos.
type ClusterAdapter interface {
	EnumerateContainers(ctx context.Context, namespace string, resources []Resource) ([]ContainerRef, error)
	OpenLogStream(ctx context.Context, opts OpenLogStreamOptions) (StreamHandle, error)
}

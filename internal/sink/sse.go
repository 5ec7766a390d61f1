package sink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/containerlogs/follower/internal/follower"
)

// SSE is a follower.ConsumerStream that fans every written entry out to
// every currently-connected Server-Sent Events client. Unlike the teacher's
// handleLogStream, which polls a store on a ticker, this is push-based:
// Write is the only source of events and there is no backing store to poll.
type SSE struct {
	mu          sync.Mutex
	subscribers map[chan jsonEntry]struct{}
}

// NewSSE creates an empty SSE sink.
func NewSSE() *SSE {
	return &SSE{subscribers: make(map[chan jsonEntry]struct{})}
}

type jsonEntry struct {
	Timestamp     string `json:"timestamp"`
	Message       string `json:"message"`
	ContainerName string `json:"container"`
	Level         string `json:"level"`
}

func levelString(l follower.Level) string {
	switch l {
	case follower.LevelWarn:
		return "warn"
	case follower.LevelError:
		return "error"
	default:
		return "info"
	}
}

// Write implements follower.ConsumerStream[follower.LogEntry]. It never
// blocks on a slow subscriber: a subscriber whose buffer is full misses the
// entry rather than stalling the follower's control loop.
func (s *SSE) Write(entry follower.LogEntry) error {
	msg := jsonEntry{
		Timestamp:     entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		Message:       entry.Message,
		ContainerName: entry.ContainerName,
		Level:         levelString(entry.Level),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// ServeHTTP implements http.Handler, registering the request as a live SSE
// subscriber until the client disconnects.
func (s *SSE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	ch := make(chan jsonEntry, 64)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subscribers, ch)
		s.mu.Unlock()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Debug("sse marshal error", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

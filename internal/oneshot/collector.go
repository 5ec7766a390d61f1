// Package oneshot implements the non-following log collection mode: read
// a bounded suffix from every target container in parallel, parse, merge,
// and emit sorted by timestamp under a fixed memory budget.
package oneshot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/containerlogs/follower/internal/follower"
)

// MaxLogLinesInMemory bounds the total number of lines buffered across
// all containers in one Collect call.
const MaxLogLinesInMemory = 100000

// DefaultMaxConcurrentFetches bounds how many containers are fetched in
// parallel when Options.MaxConcurrentFetches is unset, mirroring the
// teacher's collector.DefaultConfig().MaxConcurrentStreams.
const DefaultMaxConcurrentFetches = 100

// infraContainerPrefix mirrors follower's exclusion rule; one-shot mode
// enforces it independently since it never touches the control loop.
const infraContainerPrefix = "garden-"

// lineFetcher reads a bounded tail of one container's logs and returns
// the raw bytes. A real implementation lives in internal/k8sadapter; tests
// supply a fake.
type lineFetcher interface {
	FetchTail(ctx context.Context, ref follower.ContainerRef, tailLines int64, since time.Duration) ([]byte, error)
}

// Options configures one Collect call.
type Options struct {
	Namespace string
	Resources []follower.Resource

	// Tail overrides the derived per-container tail size. Zero means
	// "derive from MaxLogLinesInMemory / container count".
	Tail int64

	Since string

	// MaxConcurrentFetches bounds how many containers are fetched at
	// once, the same way the teacher bounds concurrent streams with a
	// semaphore in streammanager.go. Zero means
	// DefaultMaxConcurrentFetches.
	MaxConcurrentFetches int
}

// Collect enumerates pods for resources, fetches a bounded tail from
// every matching container in parallel, parses every line, sorts the
// merged result by timestamp ascending, and writes it to consumer.
func Collect[T any](ctx context.Context, adapter follower.ClusterAdapter, fetcher lineFetcher, consumer follower.ConsumerStream[T], convert follower.Converter[T], opts Options) error {
	containers, err := adapter.EnumerateContainers(ctx, opts.Namespace, opts.Resources)
	if err != nil {
		return fmt.Errorf("enumerate containers: %w", err)
	}

	targets := make([]follower.ContainerRef, 0, len(containers))
	for _, ref := range containers {
		if !strings.HasPrefix(ref.ContainerName, infraContainerPrefix) {
			targets = append(targets, ref)
		}
	}

	if len(targets) == 0 {
		return nil
	}

	tail := opts.Tail
	if tail <= 0 {
		tail = int64(MaxLogLinesInMemory) / int64(len(targets))
		if tail <= 0 {
			tail = 1
		}
	}

	since, err := follower.ParseSince(opts.Since)
	if err != nil {
		return fmt.Errorf("parse since: %w", err)
	}

	limit := opts.MaxConcurrentFetches
	if limit <= 0 {
		limit = DefaultMaxConcurrentFetches
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	results := make([][]follower.LogEntry, len(targets))

	for i, ref := range targets {
		i, ref := i, ref
		group.Go(func() error {
			raw, err := fetcher.FetchTail(gctx, ref, tail, since)
			if err != nil {
				return fmt.Errorf("fetch logs for %s: %w", ref.Key(), err)
			}
			results[i] = parseEntries(raw, ref.ContainerName)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	merged := make([]follower.LogEntry, 0, len(targets)*int(tail))
	for _, r := range results {
		merged = append(merged, r...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	for _, entry := range merged {
		if err := consumer.Write(convert(entry)); err != nil {
			return fmt.Errorf("write entry: %w", err)
		}
	}

	return nil
}

// parseEntries applies the shared line-parsing rule to every line in raw,
// stamping each with containerName.
func parseEntries(raw []byte, containerName string) []follower.LogEntry {
	lines := follower.SplitLines(raw)
	entries := make([]follower.LogEntry, 0, len(lines))

	for _, line := range lines {
		parsed, ok := follower.ParseLine(line)
		if !ok {
			continue
		}

		entries = append(entries, follower.LogEntry{
			Timestamp:     parsed.Timestamp,
			Message:       parsed.Message,
			ContainerName: containerName,
			Level:         follower.LevelInfo,
		})
	}

	return entries
}

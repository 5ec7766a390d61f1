// Command simulate runs the follower control loop against a synthetic
// cluster instead of a real Kubernetes API server, for local demos and
// manual testing of the viewer and SSE sink.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/containerlogs/follower/internal/follower"
	"github.com/containerlogs/follower/internal/oneshot"
	"github.com/containerlogs/follower/internal/simulate"
	"github.com/containerlogs/follower/internal/sink"
	"github.com/containerlogs/follower/internal/tui"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	var (
		pods      int
		namespace int
		errorRate int
		churn     float64
		httpAddr  string
		oneShot   bool
	)

	flag.IntVar(&pods, "pods", 6, "number of simulated pods")
	flag.IntVar(&namespace, "namespaces", 2, "number of simulated namespaces")
	flag.IntVar(&errorRate, "error-rate", 5, "percentage of simulated lines that are errors")
	flag.Float64Var(&churn, "churn", 0.01, "probability a simulated stream drops per emitted line")
	flag.StringVar(&httpAddr, "http", "", "if set, serve an SSE feed on this address instead of the terminal viewer")
	flag.BoolVar(&oneShot, "one-shot", false, "collect a bounded tail once and exit instead of following")
	flag.Parse()

	cluster := simulate.NewCluster(simulate.Config{
		Namespaces: namespace,
		Pods:       pods,
		ErrorRate:  errorRate,
		Seed:       1,
	})
	cluster.ChurnRate = churn

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	identity := func(e follower.LogEntry) follower.LogEntry { return e }

	if oneShot {
		runOneShot(ctx, cluster, identity)
		return
	}

	if httpAddr != "" {
		runSSE(ctx, cluster, identity, httpAddr)
		return
	}

	runTUI(ctx, cluster, identity)
}

// printer is a minimal follower.ConsumerStream that forwards entries to a
// channel the caller drains directly; one-shot collection writes entries
// sequentially, so closing the channel after Collect returns is race-free.
type printer struct {
	ch chan follower.LogEntry
}

func (p printer) Write(entry follower.LogEntry) error {
	p.ch <- entry
	return nil
}

func runOneShot(ctx context.Context, cluster *simulate.Cluster, identity follower.Converter[follower.LogEntry]) {
	ch := make(chan follower.LogEntry, 10000)

	done := make(chan error, 1)
	go func() {
		done <- oneshot.Collect[follower.LogEntry](ctx, cluster, cluster, printer{ch}, identity, oneshot.Options{
			Tail: 20,
		})
		close(ch)
	}()

	for entry := range ch {
		fmt.Printf("%s %s %s\n", entry.Timestamp.Format(time.RFC3339), entry.ContainerName, entry.Message)
	}

	if err := <-done; err != nil {
		slog.Error("one-shot collection failed", "error", err)
		os.Exit(1)
	}
}

func runSSE(ctx context.Context, cluster *simulate.Cluster, identity follower.Converter[follower.LogEntry], addr string) {
	sseSink := sink.NewSSE()
	f := follower.New[follower.LogEntry](cluster, sseSink, identity)
	done := f.Start(ctx, "", nil, follower.StartOptions{})

	mux := http.NewServeMux()
	mux.Handle("/stream", sseSink)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("serving simulated logs over SSE", "addr", addr, "path", "/stream")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", "error", err)
	}

	f.Stop()
	<-done
}

func runTUI(ctx context.Context, cluster *simulate.Cluster, identity follower.Converter[follower.LogEntry]) {
	ch := sink.NewChannel(1024)
	f := follower.New[follower.LogEntry](cluster, ch, identity)
	done := f.Start(ctx, "", nil, follower.StartOptions{})

	model := tui.New(ch.Entries(), 10000)
	program := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		slog.Error("tui exited with error", "error", err)
	}

	f.Stop()
	<-done
}

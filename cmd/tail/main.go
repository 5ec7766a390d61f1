// Command tail streams logs from a set of Kubernetes resources into a
// terminal viewer, following the teacher's cmd/collector entrypoint shape:
// flags and env for config, slog for startup/shutdown logging, signal-driven
// cancellation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/containerlogs/follower/internal/follower"
	"github.com/containerlogs/follower/internal/k8sadapter"
	"github.com/containerlogs/follower/internal/sink"
	"github.com/containerlogs/follower/internal/tui"
)

type resourceList []follower.Resource

func (r *resourceList) String() string {
	parts := make([]string, len(*r))
	for i, res := range *r {
		parts[i] = res.Kind + "/" + res.Name
	}
	return strings.Join(parts, ",")
}

func (r *resourceList) Set(value string) error {
	kind, name, found := strings.Cut(value, "/")
	if !found {
		kind, name = "pod", value
	}
	*r = append(*r, follower.Resource{Kind: kind, Name: name})
	return nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	var (
		namespace string
		resources resourceList
		tail      int64
		since     string
		plain     bool
	)

	flag.StringVar(&namespace, "namespace", "default", "namespace to follow")
	flag.Var(&resources, "resource", "kind/name to follow, repeatable (e.g. deployment/web, pod/worker-0)")
	flag.Int64Var(&tail, "tail", 0, "lines to fetch on first attach, 0 for none")
	flag.StringVar(&since, "since", "", "lookback window on first attach, e.g. 10s, 5m, 1d")
	flag.BoolVar(&plain, "plain", false, "print lines instead of the interactive viewer")
	flag.Parse()

	if len(resources) == 0 {
		fmt.Fprintln(os.Stderr, "at least one -resource is required")
		os.Exit(2)
	}

	clientset, err := newClientset()
	if err != nil {
		slog.Error("failed to create kubernetes client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	adapter := k8sadapter.New(clientset)
	ch := sink.NewChannel(1024)

	f := follower.New[follower.LogEntry](adapter, ch, func(e follower.LogEntry) follower.LogEntry { return e })

	var tailPtr *int64
	if tail > 0 {
		tailPtr = &tail
	}

	done := f.Start(ctx, namespace, resources, follower.StartOptions{
		Tail:  tailPtr,
		Since: since,
	})

	if plain {
		runPlain(ctx, ch)
	} else {
		runTUI(ctx, ch)
	}

	f.Stop()
	<-done
}

func runPlain(ctx context.Context, ch *sink.Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-ch.Entries():
			if !ok {
				return
			}
			fmt.Printf("%s %s %s\n", entry.Timestamp.Format("2006-01-02T15:04:05Z07:00"), entry.ContainerName, entry.Message)
		}
	}
}

func runTUI(ctx context.Context, ch *sink.Channel) {
	model := tui.New(ch.Entries(), 10000)
	program := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		slog.Error("tui exited with error", "error", err)
	}
}

// newClientset mirrors the teacher's in-cluster-first, kubeconfig-fallback
// initialization.
func newClientset() (kubernetes.Interface, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := os.Getenv("KUBECONFIG")
		if kubeconfig == "" {
			kubeconfig = os.Getenv("HOME") + "/.kube/config"
		}

		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, err
		}
	}

	return kubernetes.NewForConfig(config)
}

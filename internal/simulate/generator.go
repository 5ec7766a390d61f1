// Package simulate provides a synthetic follower.ClusterAdapter: a fake
// cluster of pods and containers emitting realistic log lines, adapted from
// the teacher repo's load generator for use as a local demo and in tests
// that don't want a real Kubernetes API server.
package simulate

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

var defaultNamespaces = []string{
	"default",
	"production",
	"staging",
	"monitoring",
}

var deploymentPrefixes = []string{
	"api-server",
	"web-frontend",
	"worker",
	"scheduler",
	"cache",
	"queue-processor",
}

var sidecarNames = []string{
	"sidecar",
	"proxy",
	"garden-log-shipper",
}

var logTemplatesBySeverity = map[string][]string{
	"info": {
		"server started successfully on port %d",
		"request completed: status=200 duration=%dms",
		"job completed: processed %d items",
		"health check passed",
		"cache warmed up with %d entries",
	},
	"warn": {
		"request took longer than expected: duration=%dms",
		"retry attempt %d for operation",
		"connection pool exhausted, waiting for connection",
	},
	"error": {
		"failed to connect to database: connection refused",
		"request failed: status=500 error=\"internal server error\"",
		"timeout waiting for response: exceeded %dms",
	},
}

// podSpec is one simulated pod's identity and container set.
type podSpec struct {
	namespace  string
	name       string
	containers []string
}

// Generator produces realistic fake log lines across a fixed set of
// simulated pods. Safe for concurrent use: every simulated stream shares
// one Generator.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand

	pods      []podSpec
	errorRate int
}

// Config controls the shape of the simulated cluster.
type Config struct {
	Namespaces int
	Pods       int
	ErrorRate  int // percent, 0-100
	Seed       int64
}

// DefaultConfig returns a small, demo-sized cluster.
func DefaultConfig() Config {
	return Config{Namespaces: 2, Pods: 6, ErrorRate: 5, Seed: 1}
}

// NewGenerator builds a Generator with a fixed simulated pod population.
func NewGenerator(cfg Config) *Generator {
	rng := rand.New(rand.NewSource(cfg.Seed))

	namespaces := make([]string, 0, cfg.Namespaces)
	for i := 0; i < cfg.Namespaces && i < len(defaultNamespaces); i++ {
		namespaces = append(namespaces, defaultNamespaces[i])
	}
	for i := len(namespaces); i < cfg.Namespaces; i++ {
		namespaces = append(namespaces, fmt.Sprintf("namespace-%d", i))
	}
	if len(namespaces) == 0 {
		namespaces = []string{"default"}
	}

	pods := make([]podSpec, 0, cfg.Pods)
	for i := 0; i < cfg.Pods; i++ {
		ns := namespaces[i%len(namespaces)]
		prefix := deploymentPrefixes[rng.Intn(len(deploymentPrefixes))]

		// A short uuid suffix stands in for the random alphanumeric
		// replica-set/pod hash Kubernetes itself generates.
		podName := fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8])

		containers := []string{"main"}
		if rng.Intn(3) == 0 {
			containers = append(containers, sidecarNames[rng.Intn(len(sidecarNames))])
		}

		pods = append(pods, podSpec{namespace: ns, name: podName, containers: containers})
	}

	return &Generator{rng: rng, pods: pods, errorRate: cfg.ErrorRate}
}

// allPods exposes the simulated pod population for cluster enumeration.
func (g *Generator) allPods() []podSpec {
	return g.pods
}

// line renders one wire-format log line for the given timestamp: "RFC3339
// SP message", the shape the shared parser expects.
func (g *Generator) line(at time.Time) string {
	g.mu.Lock()
	severity := g.randomSeverityLocked()
	message := g.randomMessageLocked(severity)
	g.mu.Unlock()

	return fmt.Sprintf("%s %s", at.UTC().Format(time.RFC3339), message)
}

func (g *Generator) randomSeverityLocked() string {
	roll := g.rng.Intn(100)
	if roll < g.errorRate {
		return "error"
	}
	if roll < g.errorRate+10 {
		return "warn"
	}
	return "info"
}

func (g *Generator) randomMessageLocked(severity string) string {
	templates := logTemplatesBySeverity[severity]
	if len(templates) == 0 {
		templates = logTemplatesBySeverity["info"]
	}
	template := templates[g.rng.Intn(len(templates))]
	return fmt.Sprintf(template, g.rng.Intn(10000))
}

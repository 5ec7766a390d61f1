// Package k8sadapter implements follower.ClusterAdapter against a real
// Kubernetes API server via client-go, grounded on the teacher repo's
// internal/collector/discovery.go and stream.go.
package k8sadapter

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/containerlogs/follower/internal/follower"
)

// Adapter implements follower.ClusterAdapter (and the one-shot
// collector's tail-fetch contract) against a live cluster.
type Adapter struct {
	clientset kubernetes.Interface
}

// New wraps clientset in an Adapter.
func New(clientset kubernetes.Interface) *Adapter {
	return &Adapter{clientset: clientset}
}

// EnumerateContainers expands resources into the pods they currently own
// and returns one ContainerRef per container.
func (a *Adapter) EnumerateContainers(ctx context.Context, namespace string, resources []follower.Resource) ([]follower.ContainerRef, error) {
	pods, err := a.resolvePods(ctx, namespace, resources)
	if err != nil {
		return nil, err
	}

	refs := make([]follower.ContainerRef, 0, len(pods)*2)
	for _, pod := range pods {
		for _, name := range containerNames(pod) {
			refs = append(refs, follower.ContainerRef{
				Namespace:     pod.Namespace,
				PodName:       pod.Name,
				ContainerName: name,
			})
		}
	}

	return refs, nil
}

// containerNames prefers live container statuses (so a container that
// hasn't started yet isn't attached prematurely) and falls back to the
// pod spec when no status is reported yet, which fake clientsets used in
// tests commonly leave empty.
func containerNames(pod corev1.Pod) []string {
	if len(pod.Status.ContainerStatuses) > 0 {
		names := make([]string, 0, len(pod.Status.ContainerStatuses))
		for _, cs := range pod.Status.ContainerStatuses {
			names = append(names, cs.Name)
		}
		return names
	}

	names := make([]string, 0, len(pod.Spec.Containers))
	for _, c := range pod.Spec.Containers {
		names = append(names, c.Name)
	}
	return names
}

// resolvePods expands every Resource into the pods it currently owns.
func (a *Adapter) resolvePods(ctx context.Context, namespace string, resources []follower.Resource) ([]corev1.Pod, error) {
	var pods []corev1.Pod

	for _, r := range resources {
		selector, err := a.selectorFor(ctx, namespace, r)
		if err != nil {
			if apierrors.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("resolve resource %s/%s: %w", r.Kind, r.Name, err)
		}

		if selector == nil {
			// Kind "pod": fetch it directly rather than listing.
			pod, err := a.clientset.CoreV1().Pods(namespace).Get(ctx, r.Name, metav1.GetOptions{})
			if err != nil {
				if apierrors.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("get pod %s: %w", r.Name, err)
			}
			pods = append(pods, *pod)
			continue
		}

		list, err := a.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: *selector})
		if err != nil {
			return nil, fmt.Errorf("list pods for %s/%s: %w", r.Kind, r.Name, err)
		}
		pods = append(pods, list.Items...)
	}

	return pods, nil
}

// selectorFor returns the label selector string matching a workload
// resource's pods, or nil for a bare pod reference.
func (a *Adapter) selectorFor(ctx context.Context, namespace string, r follower.Resource) (*string, error) {
	switch strings.ToLower(r.Kind) {
	case "", "pod":
		return nil, nil

	case "deployment":
		dep, err := a.clientset.AppsV1().Deployments(namespace).Get(ctx, r.Name, metav1.GetOptions{})
		if err != nil {
			return nil, err
		}
		return selectorString(dep.Spec.Selector)

	case "daemonset":
		ds, err := a.clientset.AppsV1().DaemonSets(namespace).Get(ctx, r.Name, metav1.GetOptions{})
		if err != nil {
			return nil, err
		}
		return selectorString(ds.Spec.Selector)

	case "statefulset":
		ss, err := a.clientset.AppsV1().StatefulSets(namespace).Get(ctx, r.Name, metav1.GetOptions{})
		if err != nil {
			return nil, err
		}
		return selectorString(ss.Spec.Selector)

	default:
		return nil, fmt.Errorf("unsupported resource kind %q", r.Kind)
	}
}

func selectorString(sel *metav1.LabelSelector) (*string, error) {
	s, err := metav1.LabelSelectorAsSelector(sel)
	if err != nil {
		return nil, fmt.Errorf("invalid label selector: %w", err)
	}
	str := s.String()
	return &str, nil
}

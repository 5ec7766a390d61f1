package k8sadapter

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/containerlogs/follower/internal/follower"
)

func pod(namespace, name string, labels map[string]string, containers ...string) *corev1.Pod {
	p := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name, Labels: labels},
	}
	for _, c := range containers {
		p.Spec.Containers = append(p.Spec.Containers, corev1.Container{Name: c})
	}
	return p
}

func TestEnumerateContainers_DirectPod(t *testing.T) {
	clientset := fake.NewSimpleClientset(pod("default", "pod-a", nil, "app", "sidecar"))
	adapter := New(clientset)

	refs, err := adapter.EnumerateContainers(context.Background(), "default", []follower.Resource{
		{Kind: "pod", Name: "pod-a"},
	})
	if err != nil {
		t.Fatalf("EnumerateContainers: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs = %d, want 2", len(refs))
	}
}

func TestEnumerateContainers_DeploymentSelector(t *testing.T) {
	labels := map[string]string{"app": "web"}
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "web"},
		Spec: appsv1.DeploymentSpec{
			Selector: &metav1.LabelSelector{MatchLabels: labels},
		},
	}

	clientset := fake.NewSimpleClientset(
		dep,
		pod("default", "web-1", labels, "app"),
		pod("default", "web-2", labels, "app"),
		pod("default", "other", map[string]string{"app": "unrelated"}, "app"),
	)
	adapter := New(clientset)

	refs, err := adapter.EnumerateContainers(context.Background(), "default", []follower.Resource{
		{Kind: "deployment", Name: "web"},
	})
	if err != nil {
		t.Fatalf("EnumerateContainers: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs = %d, want 2 (got %v)", len(refs), refs)
	}
	for _, r := range refs {
		if r.PodName == "other" {
			t.Errorf("unrelated pod %q should not have matched the selector", r.PodName)
		}
	}
}

func TestEnumerateContainers_MissingResourceIsSkipped(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	adapter := New(clientset)

	refs, err := adapter.EnumerateContainers(context.Background(), "default", []follower.Resource{
		{Kind: "pod", Name: "does-not-exist"},
	})
	if err != nil {
		t.Fatalf("EnumerateContainers: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("refs = %d, want 0", len(refs))
	}
}

func TestEnumerateContainers_UsesContainerStatusWhenPresent(t *testing.T) {
	p := pod("default", "pod-a", nil, "app")
	p.Status.ContainerStatuses = []corev1.ContainerStatus{{Name: "app"}, {Name: "injected-sidecar"}}

	clientset := fake.NewSimpleClientset(p)
	adapter := New(clientset)

	refs, err := adapter.EnumerateContainers(context.Background(), "default", []follower.Resource{
		{Kind: "pod", Name: "pod-a"},
	})
	if err != nil {
		t.Fatalf("EnumerateContainers: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs = %d, want 2 (status-reported containers including the injected sidecar)", len(refs))
	}
}

// Package k8s provides a Resource summarising a Kubernetes cluster: node
// readiness, pod phases and deployment rollout.
package k8s

import (
	"context"
	"fmt"
	"sort"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Config selects the cluster slice to report on.
type Config struct {
	// Kubeconfig is an explicit kubeconfig path. Empty uses the default
	// loading rules (KUBECONFIG, ~/.kube/config).
	Kubeconfig string

	// Context is the kubeconfig context. Empty uses the current one.
	Context string

	// Namespace limits pods and deployments. Empty means all namespaces.
	Namespace string
}

// PodCounts tallies pods by phase.
type PodCounts struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Pending   int `json:"pending"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Deployment is the rollout state of one deployment.
type Deployment struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Desired   int32  `json:"desired"`
	Ready     int32  `json:"ready"`
}

// Healthy reports whether every desired replica is ready.
func (d Deployment) Healthy() bool { return d.Ready >= d.Desired }

// Summary is the fetched value.
type Summary struct {
	Context     string       `json:"context,omitempty"`
	Nodes       int          `json:"nodes"`
	ReadyNodes  int          `json:"ready_nodes"`
	Pods        PodCounts    `json:"pods"`
	Deployments []Deployment `json:"deployments,omitempty"`
}

// NewClientset builds a clientset from kubeconfig loading rules.
func NewClientset(cfg Config) (kubernetes.Interface, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		rules.ExplicitPath = cfg.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{}
	if cfg.Context != "" {
		overrides.CurrentContext = cfg.Context
	}
	rc, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("build client config: %w", err)
	}
	cs, err := kubernetes.NewForConfig(rc)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	return cs, nil
}

// Resource lists cluster objects on every fetch.
type Resource struct {
	name string
	cfg  Config
	cs   kubernetes.Interface
}

// New returns a k8s resource over cs. An empty name defaults to "cluster".
func New(name string, cfg Config, cs kubernetes.Interface) *Resource {
	if name == "" {
		name = "cluster"
	}
	return &Resource{name: name, cfg: cfg, cs: cs}
}

// Name returns the resource name.
func (r *Resource) Name() string { return r.name }

// Fetch lists nodes, pods and deployments. Any failing list fails the fetch.
func (r *Resource) Fetch(ctx context.Context) (interface{}, error) {
	nodes, err := r.cs.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	pods, err := r.cs.CoreV1().Pods(r.cfg.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	deps, err := r.cs.AppsV1().Deployments(r.cfg.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}

	s := Summary{Context: r.cfg.Context, Nodes: len(nodes.Items)}
	for i := range nodes.Items {
		if nodeReady(&nodes.Items[i]) {
			s.ReadyNodes++
		}
	}
	s.Pods = countPods(pods.Items)
	for i := range deps.Items {
		s.Deployments = append(s.Deployments, toDeployment(&deps.Items[i]))
	}
	sort.Slice(s.Deployments, func(i, j int) bool {
		a, b := s.Deployments[i], s.Deployments[j]
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		return a.Name < b.Name
	})
	return s, nil
}

func nodeReady(n *corev1.Node) bool {
	for _, c := range n.Status.Conditions {
		if c.Type == corev1.NodeReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

func countPods(pods []corev1.Pod) PodCounts {
	var pc PodCounts
	for i := range pods {
		pc.Total++
		switch pods[i].Status.Phase {
		case corev1.PodRunning:
			pc.Running++
		case corev1.PodPending:
			pc.Pending++
		case corev1.PodSucceeded:
			pc.Succeeded++
		case corev1.PodFailed:
			pc.Failed++
		}
	}
	return pc
}

func toDeployment(d *appsv1.Deployment) Deployment {
	desired := int32(1)
	if d.Spec.Replicas != nil {
		desired = *d.Spec.Replicas
	}
	return Deployment{
		Namespace: d.Namespace,
		Name:      d.Name,
		Desired:   desired,
		Ready:     d.Status.ReadyReplicas,
	}
}

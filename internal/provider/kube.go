package provider

import (
	"context"
	"fmt"
	"log/slog"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	metricsclientset "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

const gpuResourceName = "nvidia.com/gpu"

// KubeAdapter exposes a Kubernetes cluster as a provider node pool. Capacity
// comes from node allocatable, utilization from the metrics API when
// available, and DeployWorkload materializes the placement as a pod bound to
// the chosen node.
type KubeAdapter struct {
	name      string
	client    kubernetes.Interface
	metrics   metricsclientset.Interface // optional; nil means utilization stays zero
	regions   []model.GeoRegion
	namespace string
}

// NewKube creates a KubeAdapter for the given provider name. metrics may be
// nil when the cluster has no metrics-server.
func NewKube(name string, client kubernetes.Interface, metrics metricsclientset.Interface, regions []model.GeoRegion) *KubeAdapter {
	return &KubeAdapter{
		name:      name,
		client:    client,
		metrics:   metrics,
		regions:   regions,
		namespace: corev1.NamespaceDefault,
	}
}

// Name implements Adapter.
func (a *KubeAdapter) Name() string { return a.name }

// Initialize implements Adapter. Recognized config keys: "namespace".
func (a *KubeAdapter) Initialize(_ context.Context, config map[string]any) error {
	if ns, ok := config["namespace"].(string); ok && ns != "" {
		a.namespace = ns
	}
	return nil
}

// ListNodes implements Adapter.
func (a *KubeAdapter) ListNodes(ctx context.Context, region string) ([]model.CloudNode, error) {
	list, err := a.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("provider %s: listing nodes: %w", a.name, err)
	}

	usage := a.nodeUsage(ctx)

	out := make([]model.CloudNode, 0, len(list.Items))
	for i := range list.Items {
		n := a.convertNode(&list.Items[i], usage)
		if region != "" && n.Region != region {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// GetNode implements Adapter.
func (a *KubeAdapter) GetNode(ctx context.Context, id string) (model.CloudNode, error) {
	node, err := a.client.CoreV1().Nodes().Get(ctx, id, metav1.GetOptions{})
	if err != nil {
		return model.CloudNode{}, fmt.Errorf("provider %s: getting node %s: %w", a.name, id, err)
	}
	return a.convertNode(node, a.nodeUsage(ctx)), nil
}

// DeployWorkload implements Adapter by creating a pod pre-bound to the node
// with the workload's resources as requests. The scheduler is bypassed;
// kubelet admission is the final capacity arbiter.
func (a *KubeAdapter) DeployWorkload(ctx context.Context, nodeID string, w model.Workload) (bool, error) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      w.ID,
			Namespace: a.namespace,
			Labels:    map[string]string{"optiplace.io/managed": "true"},
		},
		Spec: corev1.PodSpec{
			NodeName:      nodeID,
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{{
				Name:  "workload",
				Image: "registry.k8s.io/pause:3.10",
				Resources: corev1.ResourceRequirements{
					Requests: resourceList(w.Resources),
				},
			}},
		},
	}

	_, err := a.client.CoreV1().Pods(a.namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("provider %s: deploying %s to %s: %w", a.name, w.ID, nodeID, err)
	}
	return true, nil
}

// RemoveWorkload implements Adapter.
func (a *KubeAdapter) RemoveWorkload(ctx context.Context, _, workloadID string) (bool, error) {
	err := a.client.CoreV1().Pods(a.namespace).Delete(ctx, workloadID, metav1.DeleteOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("provider %s: removing %s: %w", a.name, workloadID, err)
	}
	return true, nil
}

// GetRegions implements Adapter.
func (a *KubeAdapter) GetRegions(_ context.Context) ([]model.GeoRegion, error) {
	out := make([]model.GeoRegion, len(a.regions))
	copy(out, a.regions)
	return out, nil
}

// HealthCheck implements Adapter.
func (a *KubeAdapter) HealthCheck(ctx context.Context) bool {
	_, err := a.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{Limit: 1})
	return err == nil
}

// nodeUsage fetches per-node usage from the metrics API. Missing metrics are
// logged once per call and degrade to zero utilization, not an error.
func (a *KubeAdapter) nodeUsage(ctx context.Context) map[string]model.Resources {
	if a.metrics == nil {
		return nil
	}
	list, err := a.metrics.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		slog.Debug("node metrics unavailable", "provider", a.name, "error", err)
		return nil
	}
	usage := make(map[string]model.Resources, len(list.Items))
	for _, m := range list.Items {
		usage[m.Name] = model.Resources{
			CPU:    quantityCores(m.Usage[corev1.ResourceCPU]),
			Memory: quantityMiB(m.Usage[corev1.ResourceMemory]),
		}
	}
	return usage
}

// convertNode maps a corev1.Node to a CloudNode. Region comes from the
// topology label; availability requires Ready and schedulable.
func (a *KubeAdapter) convertNode(node *corev1.Node, usage map[string]model.Resources) model.CloudNode {
	status := model.NodeUnreachable
	for _, c := range node.Status.Conditions {
		if c.Type == corev1.NodeReady {
			if c.Status == corev1.ConditionTrue {
				status = model.NodeAvailable
			}
			break
		}
	}
	if status == model.NodeAvailable && node.Spec.Unschedulable {
		status = model.NodeBusy
	}

	return model.CloudNode{
		ID:       node.Name,
		Provider: a.name,
		Region:   node.Labels["topology.kubernetes.io/region"],
		Capacity: model.Resources{
			CPU:     quantityCores(node.Status.Allocatable[corev1.ResourceCPU]),
			Memory:  quantityMiB(node.Status.Allocatable[corev1.ResourceMemory]),
			Storage: quantityGiB(node.Status.Allocatable[corev1.ResourceEphemeralStorage]),
			GPU:     float64(quantityValue(node.Status.Allocatable, gpuResourceName)),
		},
		Utilization: usage[node.Name],
		Status:      status,
		Labels:      node.Labels,
	}
}

func resourceList(r model.Resources) corev1.ResourceList {
	rl := corev1.ResourceList{}
	if r.CPU > 0 {
		rl[corev1.ResourceCPU] = *resource.NewMilliQuantity(int64(r.CPU*1000), resource.DecimalSI)
	}
	if r.Memory > 0 {
		rl[corev1.ResourceMemory] = *resource.NewQuantity(int64(r.Memory)*1024*1024, resource.BinarySI)
	}
	if r.GPU > 0 {
		rl[gpuResourceName] = *resource.NewQuantity(int64(r.GPU), resource.DecimalSI)
	}
	return rl
}

func quantityCores(q resource.Quantity) float64 {
	return float64(q.MilliValue()) / 1000
}

func quantityMiB(q resource.Quantity) float64 {
	return float64(q.Value()) / (1024 * 1024)
}

func quantityGiB(q resource.Quantity) float64 {
	return float64(q.Value()) / (1024 * 1024 * 1024)
}

func quantityValue(rl corev1.ResourceList, name corev1.ResourceName) int64 {
	q, ok := rl[name]
	if !ok {
		return 0
	}
	return q.Value()
}

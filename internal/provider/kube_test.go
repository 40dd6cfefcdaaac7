package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

func kubeNode(name, region string, cpu, memGi string, ready bool) *corev1.Node {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				"topology.kubernetes.io/region": region,
				"kubernetes.io/arch":            "amd64",
			},
		},
		Status: corev1.NodeStatus{
			Allocatable: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse(cpu),
				corev1.ResourceMemory: resource.MustParse(memGi),
			},
			Conditions: []corev1.NodeCondition{
				{Type: corev1.NodeReady, Status: status},
			},
		},
	}
}

func TestKube_ListNodes(t *testing.T) {
	client := fake.NewClientset(
		kubeNode("edge-1", "us-east-1", "4", "8Gi", true),
		kubeNode("edge-2", "eu-west-1", "8", "16Gi", true),
		kubeNode("edge-down", "us-east-1", "4", "8Gi", false),
	)
	a := NewKube("edge", client, nil, nil)
	require.NoError(t, a.Initialize(context.Background(), nil))

	nodes, err := a.ListNodes(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	byID := make(map[string]model.CloudNode)
	for _, n := range nodes {
		byID[n.ID] = n
	}

	n1 := byID["edge-1"]
	assert.Equal(t, "edge", n1.Provider)
	assert.Equal(t, "us-east-1", n1.Region)
	assert.Equal(t, 4.0, n1.Capacity.CPU)
	assert.Equal(t, 8192.0, n1.Capacity.Memory) // 8Gi in MiB
	assert.Equal(t, model.NodeAvailable, n1.Status)

	assert.Equal(t, model.NodeUnreachable, byID["edge-down"].Status)

	// Region filter.
	east, err := a.ListNodes(context.Background(), "us-east-1")
	require.NoError(t, err)
	assert.Len(t, east, 2)
}

func TestKube_UnschedulableNodeIsBusy(t *testing.T) {
	n := kubeNode("cordoned", "us-east-1", "4", "8Gi", true)
	n.Spec.Unschedulable = true
	a := NewKube("edge", fake.NewClientset(n), nil, nil)

	got, err := a.GetNode(context.Background(), "cordoned")
	require.NoError(t, err)
	assert.Equal(t, model.NodeBusy, got.Status)
}

func TestKube_UtilizationFromMetricsAPI(t *testing.T) {
	client := fake.NewClientset(kubeNode("edge-1", "us-east-1", "4", "8Gi", true))
	metrics := metricsfake.NewSimpleClientset()
	// The generated fake serves NodeMetrics under the resource "nodes", but
	// NewSimpleClientset seeds the tracker under the kind-guessed resource
	// "nodemetricses", so objects passed to it are never listed. Seed the
	// tracker under the resource the fake client actually reads.
	require.NoError(t, metrics.Tracker().Create(
		metricsv1beta1.SchemeGroupVersion.WithResource("nodes"),
		&metricsv1beta1.NodeMetrics{
			ObjectMeta: metav1.ObjectMeta{Name: "edge-1"},
			Usage: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse("1500m"),
				corev1.ResourceMemory: resource.MustParse("2Gi"),
			},
		}, ""))
	a := NewKube("edge", client, metrics, nil)

	got, err := a.GetNode(context.Background(), "edge-1")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got.Utilization.CPU, 1e-9)
	assert.InDelta(t, 2048.0, got.Utilization.Memory, 1e-9)
}

func TestKube_DeployAndRemoveWorkload(t *testing.T) {
	client := fake.NewClientset(kubeNode("edge-1", "us-east-1", "4", "8Gi", true))
	a := NewKube("edge", client, nil, nil)
	require.NoError(t, a.Initialize(context.Background(), map[string]any{"namespace": "placements"}))

	ctx := context.Background()
	w := model.Workload{ID: "w1", Resources: model.Resources{CPU: 1, Memory: 512}}

	ok, err := a.DeployWorkload(ctx, "edge-1", w)
	require.NoError(t, err)
	require.True(t, ok)

	pod, err := client.CoreV1().Pods("placements").Get(ctx, "w1", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "edge-1", pod.Spec.NodeName)
	cpu := pod.Spec.Containers[0].Resources.Requests[corev1.ResourceCPU]
	assert.Equal(t, int64(1000), cpu.MilliValue())

	// Second deploy of the same workload id is refused, not an error.
	ok, err = a.DeployWorkload(ctx, "edge-1", w)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.RemoveWorkload(ctx, "edge-1", "w1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Removing again reports false.
	ok, err = a.RemoveWorkload(ctx, "edge-1", "w1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKube_HealthCheck(t *testing.T) {
	a := NewKube("edge", fake.NewClientset(), nil, nil)
	assert.True(t, a.HealthCheck(context.Background()))
}

func TestKube_GetRegions(t *testing.T) {
	regions := []model.GeoRegion{{ID: "us-east-1", Provider: "edge"}}
	a := NewKube("edge", fake.NewClientset(), nil, regions)
	got, err := a.GetRegions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, regions, got)
}

// Package k8s provides a thin wrapper over client-go for the resources this
// system needs to observe: pods, services, deployments, and the
// owner-reference chain that links a running pod back to its workload. Its
// one write is DeleteJob, used to remove finished load-test jobs.
package k8s

import (
	"context"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

// Client is the cluster surface used by discovery, the job controller, and
// the pod-spec cache: reads, plus DeleteJob for finished jobs.
type Client interface {
	GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error)
	ListPodsWithLabel(ctx context.Context, namespace, labelSelector string) (*corev1.PodList, error)
	ListServices(ctx context.Context, namespace string) (*corev1.ServiceList, error)
	GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error)
	ResolveOwnerWorkload(ctx context.Context, namespace string, pod *corev1.Pod) (kind, name string, err error)
	ListJobs(ctx context.Context, namespace string) (*batchv1.JobList, error)
	DeleteJob(ctx context.Context, namespace, name string) error
	IsHealthy() bool
}

// ResourceRequirements is the wire-friendly shape of a container's resource
// spec, parsed from Kubernetes quantity strings.
type ResourceRequirements struct {
	CPURequest    string
	CPULimit      string
	MemoryRequest string
	MemoryLimit   string
}

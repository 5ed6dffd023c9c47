package k8s

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/team-Plog/plog-sub000/pkg/shared/logging"
)

type basicClient struct {
	clientset kubernetes.Interface
	namespace string
	log       *logrus.Logger
}

func (c *basicClient) resolveNamespace(namespace string) string {
	if namespace == "" {
		return c.namespace
	}
	return namespace
}

func (c *basicClient) GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	namespace = c.resolveNamespace(namespace)
	pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		c.log.WithFields(logging.KubernetesFields("get", "pod", name, namespace).ToLogrus()).
			WithError(err).Warn("failed to get pod")
		return nil, fmt.Errorf("failed to get pod %s/%s: %w", namespace, name, err)
	}
	return pod, nil
}

func (c *basicClient) ListPodsWithLabel(ctx context.Context, namespace, labelSelector string) (*corev1.PodList, error) {
	namespace = c.resolveNamespace(namespace)
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in %s with selector %q: %w", namespace, labelSelector, err)
	}
	return pods, nil
}

func (c *basicClient) ListServices(ctx context.Context, namespace string) (*corev1.ServiceList, error) {
	namespace = c.resolveNamespace(namespace)
	services, err := c.clientset.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list services in %s: %w", namespace, err)
	}
	return services, nil
}

func (c *basicClient) GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	namespace = c.resolveNamespace(namespace)
	deployment, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment %s/%s: %w", namespace, name, err)
	}
	return deployment, nil
}

// ResolveOwnerWorkload walks pod's owner-reference chain (ReplicaSet ->
// Deployment, or a direct StatefulSet/DaemonSet owner) and returns the
// top-level workload kind and name.
func (c *basicClient) ResolveOwnerWorkload(ctx context.Context, namespace string, pod *corev1.Pod) (string, string, error) {
	namespace = c.resolveNamespace(namespace)
	for _, owner := range pod.OwnerReferences {
		switch owner.Kind {
		case "ReplicaSet":
			rs, err := c.clientset.AppsV1().ReplicaSets(namespace).Get(ctx, owner.Name, metav1.GetOptions{})
			if err != nil {
				return "", "", fmt.Errorf("failed to get replicaset %s/%s: %w", namespace, owner.Name, err)
			}
			for _, rsOwner := range rs.OwnerReferences {
				if rsOwner.Kind == "Deployment" {
					return "Deployment", rsOwner.Name, nil
				}
			}
			return "ReplicaSet", rs.Name, nil
		case "StatefulSet", "DaemonSet":
			return owner.Kind, owner.Name, nil
		}
	}
	return "", "", fmt.Errorf("could not resolve owner workload for pod %s/%s", namespace, pod.Name)
}

// ListJobs lists batch Jobs in namespace, the generator namespace the load
// generator submits k6 run jobs into.
func (c *basicClient) ListJobs(ctx context.Context, namespace string) (*batchv1.JobList, error) {
	namespace = c.resolveNamespace(namespace)
	jobs, err := c.clientset.BatchV1().Jobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs in %s: %w", namespace, err)
	}
	return jobs, nil
}

// DeleteJob deletes a completed job and its pods (Foreground propagation).
func (c *basicClient) DeleteJob(ctx context.Context, namespace, name string) error {
	namespace = c.resolveNamespace(namespace)
	propagation := metav1.DeletePropagationForeground
	err := c.clientset.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{PropagationPolicy: &propagation})
	if err != nil {
		return fmt.Errorf("failed to delete job %s/%s: %w", namespace, name, err)
	}
	return nil
}

func (c *basicClient) IsHealthy() bool {
	_, err := c.clientset.CoreV1().Namespaces().Get(context.Background(), c.namespace, metav1.GetOptions{})
	if err != nil {
		_, listErr := c.clientset.CoreV1().Namespaces().List(context.Background(), metav1.ListOptions{Limit: 1})
		return listErr == nil
	}
	return true
}

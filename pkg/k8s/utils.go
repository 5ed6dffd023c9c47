package k8s

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

func parseQuantity(value string) (*resource.Quantity, error) {
	if value == "" {
		return nil, fmt.Errorf("empty quantity")
	}
	q, err := resource.ParseQuantity(value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quantity %q: %w", value, err)
	}
	return &q, nil
}

// ToK8sResourceRequirements converts the wire shape into the typed
// corev1.ResourceRequirements client-go expects, returning an error if any
// non-empty field fails to parse.
func (r ResourceRequirements) ToK8sResourceRequirements() (corev1.ResourceRequirements, error) {
	limits := corev1.ResourceList{}
	requests := corev1.ResourceList{}

	if r.CPULimit != "" {
		q, err := parseQuantity(r.CPULimit)
		if err != nil {
			return corev1.ResourceRequirements{}, fmt.Errorf("invalid cpu limit: %w", err)
		}
		limits[corev1.ResourceCPU] = *q
	}
	if r.MemoryLimit != "" {
		q, err := parseQuantity(r.MemoryLimit)
		if err != nil {
			return corev1.ResourceRequirements{}, fmt.Errorf("invalid memory limit: %w", err)
		}
		limits[corev1.ResourceMemory] = *q
	}
	if r.CPURequest != "" {
		q, err := parseQuantity(r.CPURequest)
		if err != nil {
			return corev1.ResourceRequirements{}, fmt.Errorf("invalid cpu request: %w", err)
		}
		requests[corev1.ResourceCPU] = *q
	}
	if r.MemoryRequest != "" {
		q, err := parseQuantity(r.MemoryRequest)
		if err != nil {
			return corev1.ResourceRequirements{}, fmt.Errorf("invalid memory request: %w", err)
		}
		requests[corev1.ResourceMemory] = *q
	}

	return corev1.ResourceRequirements{Limits: limits, Requests: requests}, nil
}

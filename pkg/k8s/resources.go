package k8s

import (
	corev1 "k8s.io/api/core/v1"
)

// PodResourceSpec is the normalized, numeric resource spec for a single
// container: CPU in millicores, memory in MB. Zero means "not set" rather
// than "set to zero", matching the source the spec trims noise from.
type PodResourceSpec struct {
	ContainerName        string
	CPURequestMillicores float64
	CPULimitMillicores   float64
	MemoryRequestMB      float64
	MemoryLimitMB        float64
}

// AggregatedResourceSpec sums PodResourceSpec across a pod's containers.
type AggregatedResourceSpec struct {
	CPURequestMillicores float64
	CPULimitMillicores   float64
	MemoryRequestMB      float64
	MemoryLimitMB        float64
}

// NormalizePodResourceSpecs converts every container's resource spec in pod
// to millicores/MB, the unit the metrics buffer and bottleneck detector
// compare against.
func NormalizePodResourceSpecs(pod *corev1.Pod) []PodResourceSpec {
	specs := make([]PodResourceSpec, 0, len(pod.Spec.Containers))
	for _, c := range pod.Spec.Containers {
		spec := PodResourceSpec{ContainerName: c.Name}
		if cpu, ok := c.Resources.Requests[corev1.ResourceCPU]; ok {
			spec.CPURequestMillicores = float64(cpu.MilliValue())
		}
		if cpu, ok := c.Resources.Limits[corev1.ResourceCPU]; ok {
			spec.CPULimitMillicores = float64(cpu.MilliValue())
		}
		if mem, ok := c.Resources.Requests[corev1.ResourceMemory]; ok {
			spec.MemoryRequestMB = bytesToMB(mem.Value())
		}
		if mem, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
			spec.MemoryLimitMB = bytesToMB(mem.Value())
		}
		specs = append(specs, spec)
	}
	return specs
}

// AggregatePodResourceSpecs sums the per-container specs into a pod total.
func AggregatePodResourceSpecs(specs []PodResourceSpec) AggregatedResourceSpec {
	var agg AggregatedResourceSpec
	for _, s := range specs {
		agg.CPURequestMillicores += s.CPURequestMillicores
		agg.CPULimitMillicores += s.CPULimitMillicores
		agg.MemoryRequestMB += s.MemoryRequestMB
		agg.MemoryLimitMB += s.MemoryLimitMB
	}
	return agg
}

func bytesToMB(bytes int64) float64 {
	return float64(bytes) / (1024 * 1024)
}

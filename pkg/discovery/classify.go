package discovery

import (
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

// databaseImageMarkers matches container images that identify a pod as a
// DATABASE rather than a SERVER, independent of how the image is tagged.
var databaseImageMarkers = []string{
	"mysql", "postgres", "redis", "mongo", "mariadb", "elasticsearch", "cassandra", "influxdb",
}

// ClassifyServiceType inspects a pod's container images and returns DATABASE
// when any container matches a known database image, SERVER otherwise.
func ClassifyServiceType(pod *corev1.Pod) models.ServiceType {
	for _, c := range pod.Spec.Containers {
		image := strings.ToLower(c.Image)
		for _, marker := range databaseImageMarkers {
			if strings.Contains(image, marker) {
				return models.ServiceTypeDatabase
			}
		}
	}
	return models.ServiceTypeServer
}

// ClassifyResourceType maps an owner-chain resolution result to a
// models.ResourceType, defaulting to Pod when there is no workload owner.
func ClassifyResourceType(ownerKind string) models.ResourceType {
	switch ownerKind {
	case "Deployment":
		return models.ResourceTypeDeployment
	case "StatefulSet":
		return models.ResourceTypeStatefulSet
	case "DaemonSet":
		return models.ResourceTypeDaemonSet
	case "ReplicaSet":
		return models.ResourceTypeReplicaSet
	default:
		return models.ResourceTypePod
	}
}

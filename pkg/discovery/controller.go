package discovery

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"

	"github.com/team-Plog/plog-sub000/pkg/k8s"
	"github.com/team-Plog/plog-sub000/pkg/models"
	sharedlogging "github.com/team-Plog/plog-sub000/pkg/shared/logging"
)

// Store is the persistence surface this controller needs: reading known
// ServerInfra group membership and applying a tick's additions/removals in
// one transaction.
type Store interface {
	ServerInfraGroups(ctx context.Context) (map[string]*int64, error)
	ServerInfraPods(ctx context.Context) (map[string][]models.ServerInfra, error)
	ApplyServerInfraDiff(ctx context.Context, added []models.ServerInfra, removedIDs []int64) error
	CreateOpenAPISpec(ctx context.Context, spec models.OpenAPISpec, endpoints []models.Endpoint) (int64, error)
}

// Parser resolves an OpenAPI document at a URL into the fields the discovery
// controller needs to persist a new spec (see pkg/openapi).
type Parser interface {
	Parse(ctx context.Context, url string) (models.OpenAPISpec, []models.Endpoint, error)
}

const defaultPollInterval = 30 * time.Second

type Controller struct {
	client   k8s.Client
	store    Store
	prober   *Prober
	parser   Parser
	interval time.Duration
	log      *logrus.Logger
}

func NewController(client k8s.Client, store Store, prober *Prober, parser Parser, interval time.Duration, log *logrus.Logger) *Controller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Controller{client: client, store: store, prober: prober, parser: parser, interval: interval, log: log}
}

// Run blocks, ticking every interval until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, namespace string) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Tick(ctx, namespace); err != nil {
				c.log.WithFields(sharedlogging.NewFields().
					Component("discovery").Operation("tick").Error(err).ToLogrus()).
					Error("discovery tick failed")
			}
		}
	}
}

// Tick runs one discovery pass: list services/pods, diff against known
// ServerInfra groups, classify new pods, probe new services for OpenAPI
// documents, and apply the resulting diff in one store call.
func (c *Controller) Tick(ctx context.Context, namespace string) error {
	existingGroups, err := c.store.ServerInfraGroups(ctx)
	if err != nil {
		return err
	}

	knownPods, err := c.store.ServerInfraPods(ctx)
	if err != nil {
		return err
	}

	services, err := c.client.ListServices(ctx, namespace)
	if err != nil {
		return err
	}

	var toAdd []models.ServerInfra
	var toRemoveIDs []int64

	for _, svc := range services.Items {
		pods, err := c.client.ListPodsWithLabel(ctx, namespace, selectorString(svc.Spec.Selector))
		if err != nil {
			c.log.WithFields(sharedlogging.NewFields().Component("discovery").
				Operation("list_pods").Resource("service", svc.Name).Error(err).ToLogrus()).
				Warn("failed to list pods for service, skipping")
			continue
		}

		specID, known := existingGroups[svc.Name]
		if known {
			added, removed := c.syncKnownService(ctx, namespace, svc.Name, specID, knownPods[svc.Name], pods.Items)
			toAdd = append(toAdd, added...)
			toRemoveIDs = append(toRemoveIDs, removed...)
			continue
		}

		newInfras, err := c.discoverNewService(ctx, namespace, &svc, pods.Items)
		if err != nil {
			c.log.WithFields(sharedlogging.NewFields().Component("discovery").
				Operation("discover_service").Resource("service", svc.Name).Error(err).ToLogrus()).
				Warn("openapi discovery failed for new service")
		}
		toAdd = append(toAdd, newInfras...)
	}

	if len(toAdd) == 0 && len(toRemoveIDs) == 0 {
		return nil
	}
	return c.store.ApplyServerInfraDiff(ctx, toAdd, toRemoveIDs)
}

func (c *Controller) syncKnownService(ctx context.Context, namespace, serviceName string, specID *int64, known []models.ServerInfra, pods []corev1.Pod) ([]models.ServerInfra, []int64) {
	seenPods := make(map[string]bool, len(pods))
	var added []models.ServerInfra
	for _, pod := range pods {
		seenPods[pod.Name] = true
		ownerKind, _, err := c.client.ResolveOwnerWorkload(ctx, namespace, &pod)
		if err != nil {
			ownerKind = ""
		}
		added = append(added, models.ServerInfra{
			SpecID:       specID,
			Namespace:    namespace,
			Name:         pod.Name,
			GroupName:    serviceName,
			ResourceType: ClassifyResourceType(ownerKind),
			ServiceType:  ClassifyServiceType(&pod),
		})
	}

	var removed []int64
	for _, infra := range known {
		if !seenPods[infra.Name] {
			removed = append(removed, infra.ID)
		}
	}
	return added, removed
}

func (c *Controller) discoverNewService(ctx context.Context, namespace string, svc *corev1.Service, pods []corev1.Pod) ([]models.ServerInfra, error) {
	var serverPod *corev1.Pod
	for i := range pods {
		if ClassifyServiceType(&pods[i]) == models.ServiceTypeServer {
			serverPod = &pods[i]
			break
		}
	}
	if serverPod == nil {
		return nil, nil
	}

	clusterURL := "http://" + svc.Name + "." + namespace + ".svc.cluster.local"
	var servicePort int32
	if len(svc.Spec.Ports) > 0 {
		servicePort = svc.Spec.Ports[0].Port
	}

	hits := c.prober.ProbeService(ctx, svc.Name, namespace, clusterURL, NodePorts(svc), servicePort)
	if len(hits) == 0 {
		return nil, nil
	}

	spec, endpoints, err := c.parser.Parse(ctx, hits[0].URL)
	if err != nil {
		return nil, err
	}
	if spec.BaseURL == "" {
		spec.BaseURL = hits[0].BaseURL
	}

	specID, err := c.store.CreateOpenAPISpec(ctx, spec, endpoints)
	if err != nil {
		return nil, err
	}

	var infras []models.ServerInfra
	for _, pod := range pods {
		ownerKind, _, err := c.client.ResolveOwnerWorkload(ctx, namespace, &pod)
		if err != nil {
			ownerKind = ""
		}
		infras = append(infras, models.ServerInfra{
			SpecID:       &specID,
			Namespace:    namespace,
			Name:         pod.Name,
			GroupName:    svc.Name,
			ResourceType: ClassifyResourceType(ownerKind),
			ServiceType:  ClassifyServiceType(&pod),
		})
	}
	return infras, nil
}

func selectorString(selector map[string]string) string {
	s := ""
	for k, v := range selector {
		if s != "" {
			s += ","
		}
		s += k + "=" + v
	}
	return s
}

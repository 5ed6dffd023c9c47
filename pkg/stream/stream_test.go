package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/team-Plog/plog-sub000/internal/config"
	"github.com/team-Plog/plog-sub000/pkg/buffer"
	"github.com/team-Plog/plog-sub000/pkg/k8s"
	"github.com/team-Plog/plog-sub000/pkg/metricsstore"
	"github.com/team-Plog/plog-sub000/pkg/models"
	"github.com/team-Plog/plog-sub000/pkg/podspec"
)

type fakeStreamStore struct {
	tags   []string
	infras []models.ServerInfra
}

func (s *fakeStreamStore) ScenarioTagsForJob(_ context.Context, _ string) ([]string, error) {
	return s.tags, nil
}

func (s *fakeStreamStore) ServerInfrasForJob(_ context.Context, _ string) ([]models.ServerInfra, error) {
	return s.infras, nil
}

var _ = Describe("Emitter", func() {
	var (
		server  *httptest.Server
		emitter *Emitter
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "success",
				"data": map[string]interface{}{
					"resultType": "vector",
					"result": []map[string]interface{}{
						{"metric": map[string]string{}, "value": []interface{}{1700000000, "10"}},
					},
				},
			})
		}))

		logger := logrus.New()
		logger.SetLevel(logrus.FatalLevel)

		pod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "checkout-1", Namespace: "default"},
			Spec: corev1.PodSpec{Containers: []corev1.Container{{
				Name: "main",
				Resources: corev1.ResourceRequirements{
					Limits: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse("500m"),
						corev1.ResourceMemory: resource.MustParse("512Mi"),
					},
				},
			}}},
		}
		clientset := fake.NewSimpleClientset(pod)
		client := k8s.NewUnifiedClient(clientset, config.KubernetesConfig{Namespace: "default"}, logger)

		store := &fakeStreamStore{
			tags:   []string{"checkout"},
			infras: []models.ServerInfra{{ID: 1, Namespace: "default", Name: "checkout-1", ServiceType: models.ServiceTypeServer}},
		}

		metricsClient := metricsstore.NewClient(server.URL, 5*time.Second, logger)
		emitter = NewEmitter(metricsClient, store, podspec.New(client, time.Minute), buffer.NewRegistry(), time.UTC, logger)
	})

	AfterEach(func() {
		server.Close()
	})

	It("emits overall and per-scenario metrics with resources for include=all", func() {
		snapshot := emitter.collect(context.Background(), "job-1", IncludeAll)
		Expect(snapshot.Overall.TPS).To(BeNumerically(">", 0))
		Expect(snapshot.Scenarios).To(HaveLen(1))
		Expect(snapshot.Scenarios[0].ScenarioTag).To(Equal("checkout"))
		Expect(snapshot.Resources).To(HaveLen(1))
		Expect(snapshot.Resources[0].PodName).To(Equal("checkout-1"))
	})

	It("omits resources for include=k6_only", func() {
		snapshot := emitter.collect(context.Background(), "job-1", IncludeK6Only)
		Expect(snapshot.Resources).To(BeEmpty())
	})

	It("emits only resources for include=resources_only", func() {
		snapshot := emitter.collect(context.Background(), "job-1", IncludeResourcesOnly)
		Expect(snapshot.Scenarios).To(BeEmpty())
		Expect(snapshot.Resources).To(HaveLen(1))
	})
})

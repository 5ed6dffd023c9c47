package jobcontroller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/sirupsen/logrus"

	"github.com/team-Plog/plog-sub000/internal/config"
	"github.com/team-Plog/plog-sub000/pkg/k8s"
	"github.com/team-Plog/plog-sub000/pkg/metricsstore"
	"github.com/team-Plog/plog-sub000/pkg/models"
	"github.com/team-Plog/plog-sub000/pkg/podspec"
)

// fakeStore is an in-memory Store double recording every write the
// controller makes.
type fakeStore struct {
	history          *models.TestHistory
	scenarios        []models.ScenarioHistory
	infras           map[int64][]models.ServerInfra
	updatedHistory   *models.TestHistory
	insertedMetrics  []models.TestMetricsTimeseries
	insertedResource []models.TestResourceTimeseries
}

func (s *fakeStore) FindTestHistoryByJobName(_ context.Context, jobName string) (*models.TestHistory, bool, error) {
	if s.history == nil || s.history.JobName != jobName {
		return nil, false, nil
	}
	return s.history, true, nil
}

func (s *fakeStore) UpdateTestHistoryMetrics(_ context.Context, h *models.TestHistory) error {
	s.updatedHistory = h
	return nil
}

func (s *fakeStore) ScenariosForTest(_ context.Context, _ int64) ([]models.ScenarioHistory, error) {
	return s.scenarios, nil
}

func (s *fakeStore) UpdateScenarioMetrics(_ context.Context, _ *models.ScenarioHistory) error {
	return nil
}

func (s *fakeStore) InsertMetricsTimeseries(_ context.Context, points []models.TestMetricsTimeseries) error {
	s.insertedMetrics = append(s.insertedMetrics, points...)
	return nil
}

func (s *fakeStore) ServerInfrasForEndpoint(_ context.Context, endpointID int64) ([]models.ServerInfra, error) {
	return s.infras[endpointID], nil
}

func (s *fakeStore) InsertResourceTimeseries(_ context.Context, points []models.TestResourceTimeseries) error {
	s.insertedResource = append(s.insertedResource, points...)
	return nil
}

// promStub answers every instant and range query with a single sample so the
// aggregation pipeline has data to flow through without asserting on exact
// PromQL strings.
func promStub() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/query":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "success",
				"data": map[string]interface{}{
					"resultType": "vector",
					"result": []map[string]interface{}{
						{"metric": map[string]string{}, "value": []interface{}{1700000000, "5"}},
					},
				},
			})
		case "/api/v1/query_range":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "success",
				"data": map[string]interface{}{
					"resultType": "matrix",
					"result": []map[string]interface{}{
						{
							"metric": map[string]string{},
							"values": [][2]interface{}{
								{1700000000, "5"},
								{1700000010, "6"},
							},
						},
					},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

var _ = Describe("Controller", func() {
	var (
		server    *httptest.Server
		client    k8s.Client
		store     *fakeStore
		podCache  *podspec.Cache
		controller *Controller
	)

	BeforeEach(func() {
		server = promStub()

		pod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "checkout-1", Namespace: "default"},
			Spec: corev1.PodSpec{Containers: []corev1.Container{{
				Name: "main",
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse("100m"),
						corev1.ResourceMemory: resource.MustParse("128Mi"),
					},
				},
			}}},
		}
		job := &batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{Name: "k6-run-1", Namespace: "default"},
			Status:     batchv1.JobStatus{Succeeded: 1},
		}
		clientset := fake.NewSimpleClientset(pod, job)
		logger := logrus.New()
		logger.SetLevel(logrus.FatalLevel)
		client = k8s.NewUnifiedClient(clientset, config.KubernetesConfig{Namespace: "default"}, logger)

		podCache = podspec.New(client, time.Minute)

		store = &fakeStore{
			history: &models.TestHistory{ID: 1, JobName: "k6-run-1", TestedAt: time.Now()},
			scenarios: []models.ScenarioHistory{
				{ID: 10, TestHistoryID: 1, EndpointID: 99, ScenarioTag: "checkout"},
			},
			infras: map[int64][]models.ServerInfra{
				99: {{ID: 5, Namespace: "default", Name: "checkout-1"}},
			},
		}

		metricsClient := metricsstore.NewClient(server.URL, 5*time.Second, logger)
		controller = NewController(client, metricsClient, store, podCache, nil, time.Second, false, time.UTC, logger)
	})

	AfterEach(func() {
		server.Close()
	})

	It("aggregates a finished job and marks the test history completed", func() {
		err := controller.Tick(context.Background(), "default")
		Expect(err).NotTo(HaveOccurred())

		Expect(store.updatedHistory).NotTo(BeNil())
		Expect(store.updatedHistory.IsCompleted).To(BeTrue())
		Expect(store.updatedHistory.CompletedAt).NotTo(BeNil())
	})

	It("skips jobs with no matching test history", func() {
		store.history = nil
		err := controller.Tick(context.Background(), "default")
		Expect(err).NotTo(HaveOccurred())
		Expect(store.updatedHistory).To(BeNil())
	})

	It("skips jobs already marked completed", func() {
		store.history.IsCompleted = true
		err := controller.Tick(context.Background(), "default")
		Expect(err).NotTo(HaveOccurred())
		Expect(store.updatedHistory).To(BeNil())
	})
})

package middleware

import (
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	plogmetrics "github.com/team-Plog/plog-sub000/pkg/httpapi/metrics"
)

var _ = Describe("HTTPMetrics middleware", func() {
	var (
		metrics  *plogmetrics.Metrics
		registry *prometheus.Registry
		router   *chi.Mux
	)

	BeforeEach(func() {
		registry = prometheus.NewRegistry()
		metrics = plogmetrics.NewWithRegistry(registry)

		router = chi.NewRouter()
		router.Use(HTTPMetrics(metrics))
	})

	It("records request duration against the matched route pattern", func() {
		router.Get("/analysis/history/{test_history_id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/analysis/history/42", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))

		families, err := registry.Gather()
		Expect(err).ToNot(HaveOccurred())

		var found bool
		for _, mf := range families {
			if mf.GetName() != "plogserver_http_request_duration_seconds" {
				continue
			}
			found = true
			Expect(mf.GetType()).To(Equal(dto.MetricType_HISTOGRAM))

			labels := map[string]string{}
			for _, l := range mf.GetMetric()[0].GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			Expect(labels["endpoint"]).To(Equal("/analysis/history/{test_history_id}"))
			Expect(labels["method"]).To(Equal(http.MethodGet))
			Expect(labels["status"]).To(Equal("200"))
		}
		Expect(found).To(BeTrue(), "plogserver_http_request_duration_seconds metric should exist")
	})
})

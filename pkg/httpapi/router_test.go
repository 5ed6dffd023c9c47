package httpapi

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	plogmetrics "github.com/team-Plog/plog-sub000/pkg/httpapi/metrics"
)

var _ = Describe("Router", func() {
	It("answers the analysis health route with a CORS header set", func() {
		server := NewServer(Config{
			Log:     logrus.New(),
			Metrics: plogmetrics.NewWithRegistry(prometheus.NewRegistry()),
			Store:   &fakePinger{},
			LLM:     &fakeLLM{healthy: true, model: "claude-3"},
		})

		req := httptest.NewRequest(http.MethodGet, "/analysis/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()

		server.Router().ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
	})

	It("exposes its own process metrics on /metrics", func() {
		server := NewServer(Config{
			Log:     logrus.New(),
			Metrics: plogmetrics.NewWithRegistry(prometheus.NewRegistry()),
		})

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		w := httptest.NewRecorder()

		server.Router().ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
	})
})

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

var _ = Describe("handleAnalysisHealth", func() {
	It("reports healthy when both the LLM and database are reachable", func() {
		server := &Server{log: logrus.New(), llm: &fakeLLM{healthy: true, model: "claude-3"}, store: &fakePinger{}}

		req := httptest.NewRequest(http.MethodGet, "/analysis/health", nil)
		w := httptest.NewRecorder()
		server.handleAnalysisHealth(w, req)

		var resp healthCheckResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Status).To(Equal(healthHealthy))
		Expect(resp.AvailableModels).To(ConsistOf("claude-3"))
	})

	It("reports degraded when the LLM circuit is open and the database is reachable", func() {
		server := &Server{log: logrus.New(), llm: &fakeLLM{healthy: false}, store: &fakePinger{}}

		req := httptest.NewRequest(http.MethodGet, "/analysis/health", nil)
		w := httptest.NewRecorder()
		server.handleAnalysisHealth(w, req)

		var resp healthCheckResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Status).To(Equal(healthDegraded))
	})

	It("reports unhealthy when the database is unreachable regardless of LLM state", func() {
		server := &Server{log: logrus.New(), llm: &fakeLLM{healthy: true, model: "claude-3"}, store: &fakePinger{err: errDBDown}}

		req := httptest.NewRequest(http.MethodGet, "/analysis/health", nil)
		w := httptest.NewRecorder()
		server.handleAnalysisHealth(w, req)

		var resp healthCheckResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Status).To(Equal(healthUnhealthy))
		Expect(resp.DatabaseStatus.Error).ToNot(BeEmpty())
	})
})

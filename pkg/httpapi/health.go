package httpapi

import (
	"context"
	"net/http"
	"time"
)

// LLMHealthChecker reports whether the analysis orchestrator's LLM client
// currently looks reachable, without spending a real completion call.
// Implemented by pkg/analysis.AnthropicClient.
type LLMHealthChecker interface {
	HealthCheck(ctx context.Context) (healthy bool, model string)
}

// Pinger verifies a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthStatus string

const (
	healthHealthy  healthStatus = "healthy"
	healthDegraded healthStatus = "degraded"
	healthUnhealthy healthStatus = "unhealthy"
)

type healthCheckResponse struct {
	Status          healthStatus `json:"status"`
	Timestamp       time.Time    `json:"timestamp"`
	LLMStatus       statusDetail `json:"llm_status"`
	DatabaseStatus  statusDetail `json:"database_status"`
	AvailableModels []string     `json:"available_models"`
}

type statusDetail struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleAnalysisHealth reports whether the LLM and database the analysis
// orchestrator depends on are reachable. Grounded on the original health
// check's three-way status: a working LLM plus DB is healthy; an
// unreachable LLM with the DB up is degraded; the DB down is unhealthy.
func (s *Server) handleAnalysisHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	llmStatus := statusDetail{Status: "unknown"}
	var availableModels []string
	llmHealthy := false
	if s.llm != nil {
		healthy, model := s.llm.HealthCheck(ctx)
		llmHealthy = healthy
		if healthy {
			llmStatus.Status = "healthy"
			if model != "" {
				availableModels = []string{model}
			}
		} else {
			llmStatus.Status = "error"
			llmStatus.Error = "circuit breaker open"
		}
	}

	dbStatus := statusDetail{Status: "healthy"}
	dbHealthy := true
	if err := s.store.Ping(ctx); err != nil {
		dbHealthy = false
		dbStatus.Status = "error"
		dbStatus.Error = err.Error()
	}

	status := healthHealthy
	switch {
	case !dbHealthy:
		status = healthUnhealthy
	case !llmHealthy:
		status = healthDegraded
	}

	writeJSON(w, http.StatusOK, healthCheckResponse{
		Status:          status,
		Timestamp:       time.Now(),
		LLMStatus:       llmStatus,
		DatabaseStatus:  dbStatus,
		AvailableModels: availableModels,
	})
}

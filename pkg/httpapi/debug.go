package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/team-Plog/plog-sub000/pkg/analysis"
	"github.com/team-Plog/plog-sub000/pkg/detector"
)

type cacheStatusResponse struct {
	PodSpecCache   interface{} `json:"pod_spec_cache"`
	BufferRegistry bufferRegistryStatus `json:"metrics_buffers"`
	SystemStatus   string      `json:"system_status"`
}

type bufferRegistryStatus struct {
	ActiveJobs int      `json:"active_jobs"`
	Jobs       []string `json:"jobs"`
}

// handleCacheStatus reports the pod-spec cache and buffer registry's
// current size, mirroring the original cache/status debug endpoint.
func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	jobs := s.buffers.Jobs()
	writeJSON(w, http.StatusOK, cacheStatusResponse{
		PodSpecCache: s.cache.Status(),
		BufferRegistry: bufferRegistryStatus{
			ActiveJobs: len(jobs),
			Jobs:       jobs,
		},
		SystemStatus: "healthy",
	})
}

// handleCacheCleanup force-runs the cleanup controller's sweep outside its
// normal tick, for operators flushing stale state on demand.
func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	s.cleanup.Sweep()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "cache cleanup completed successfully",
	})
}

type bottleneckAnalysisResponse struct {
	TestHistoryID   int64             `json:"test_history_id"`
	JobName         string            `json:"job_name"`
	DataPoints      int               `json:"data_points_analyzed"`
	ProblemsDetected int              `json:"problems_detected"`
	Problems        []detector.Problem `json:"problems"`
}

// handleBottleneckAnalysis re-runs the bottleneck detector against a
// completed run's already-persisted series, for diagnosing why the
// orchestrator's evidence context looked the way it did.
func (s *Server) handleBottleneckAnalysis(w http.ResponseWriter, r *http.Request) {
	testHistoryID, err := strconv.ParseInt(chi.URLParam(r, "test_history_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid test_history_id"})
		return
	}

	ctx := r.Context()
	history, err := s.analysisFullStore.FindTestHistory(ctx, testHistoryID)
	if err != nil {
		writeError(w, s.log, "bottleneck-analysis-lookup", err)
		return
	}

	perfSeries, err := s.analysisFullStore.OverallMetricsTimeseries(ctx, testHistoryID)
	if err != nil {
		writeError(w, s.log, "bottleneck-analysis-perf", err)
		return
	}
	resourceSeries, err := s.analysisFullStore.ResourceTimeseriesForTest(ctx, testHistoryID)
	if err != nil {
		writeError(w, s.log, "bottleneck-analysis-resources", err)
		return
	}

	problems := detector.Detect(analysis.ToBuckets(perfSeries), analysis.ToSamples(resourceSeries))

	writeJSON(w, http.StatusOK, bottleneckAnalysisResponse{
		TestHistoryID:    testHistoryID,
		JobName:          history.JobName,
		DataPoints:       len(perfSeries),
		ProblemsDetected: len(problems),
		Problems:         problems,
	})
}

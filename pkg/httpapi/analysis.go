package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/team-Plog/plog-sub000/pkg/models"
	plogerrors "github.com/team-Plog/plog-sub000/pkg/shared/errors"
)

const (
	defaultAnalysisHistoryLimit = 50
	maxAnalysisHistoryLimit     = 100
)

// AnalysisStore is the persistence surface the analysis history endpoint
// reads through. Implemented by pkg/store.
type AnalysisStore interface {
	AnalysisHistoryForTest(ctx context.Context, testHistoryID int64, analysisType string, limit int) ([]models.AnalysisHistory, error)
}

type analysisHistoryItem struct {
	ID            int64  `json:"id"`
	TestHistoryID int64  `json:"test_history_id"`
	AnalysisType  string `json:"analysis_type"`
	ModelName     string `json:"model_name"`
	AnalyzedAt    string `json:"analyzed_at"`
	Summary       string `json:"summary"`
}

type analysisHistoryResponse struct {
	TestHistoryID int64                  `json:"test_history_id"`
	TotalCount    int                    `json:"total_count"`
	Analyses      []analysisHistoryItem  `json:"analyses"`
}

// handleAnalysisHistory returns a test's stored analyses, newest-first,
// optionally filtered to one analysis_type and capped to limit (clamped
// into [1, 100] the same way the original endpoint does).
func (s *Server) handleAnalysisHistory(w http.ResponseWriter, r *http.Request) {
	testHistoryID, err := strconv.ParseInt(chi.URLParam(r, "test_history_id"), 10, 64)
	if err != nil {
		writeError(w, s.log, "parse-analysis-history-id", plogerrors.ParseError("test_history_id", "int64", err))
		return
	}

	limit := defaultAnalysisHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxAnalysisHistoryLimit {
		limit = maxAnalysisHistoryLimit
	}

	analysisType := r.URL.Query().Get("analysis_type")

	rows, err := s.analysisStore.AnalysisHistoryForTest(r.Context(), testHistoryID, analysisType, limit)
	if err != nil {
		writeError(w, s.log, "analysis-history", err)
		return
	}

	items := make([]analysisHistoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, analysisHistoryItem{
			ID:            row.ID,
			TestHistoryID: row.PrimaryTestID,
			AnalysisType:  row.AnalysisType,
			ModelName:     row.ModelName,
			AnalyzedAt:    row.AnalyzedAt.Format("2006-01-02T15:04:05Z07:00"),
			Summary:       summaryOf(row.AnalysisResult),
		})
	}

	writeJSON(w, http.StatusOK, analysisHistoryResponse{
		TestHistoryID: testHistoryID,
		TotalCount:    len(items),
		Analyses:      items,
	})
}

func summaryOf(result models.SubAnalysis) string {
	if result.Summary != "" {
		return result.Summary
	}
	b, err := json.Marshal(result)
	if err != nil || string(b) == "{}" {
		return "no analysis summary available"
	}
	return string(b)
}

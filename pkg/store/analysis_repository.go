package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/team-Plog/plog-sub000/pkg/models"
	plogerrors "github.com/team-Plog/plog-sub000/pkg/shared/errors"
)

// FindTestHistory loads a run by its primary key, for the analysis
// orchestrator to build its prompt context from.
func (s *Store) FindTestHistory(ctx context.Context, testHistoryID int64) (*models.TestHistory, error) {
	var history models.TestHistory
	err := s.db.GetContext(ctx, &history, `SELECT * FROM test_history WHERE id = $1`, testHistoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, plogerrors.NotFound(fmt.Sprintf("test history %d", testHistoryID))
	}
	if err != nil {
		return nil, fmt.Errorf("find test history %d: %w", testHistoryID, err)
	}
	return &history, nil
}

// OverallMetricsTimeseries returns the job-wide (scenario_history_id IS
// NULL) performance series for a run, ordered for downstream detection.
func (s *Store) OverallMetricsTimeseries(ctx context.Context, testHistoryID int64) ([]models.TestMetricsTimeseries, error) {
	var points []models.TestMetricsTimeseries
	err := s.db.SelectContext(ctx, &points, `
		SELECT * FROM test_metrics_timeseries
		WHERE test_history_id = $1 AND scenario_history_id IS NULL
		ORDER BY timestamp
	`, testHistoryID)
	if err != nil {
		return nil, fmt.Errorf("overall metrics timeseries for %d: %w", testHistoryID, err)
	}
	return points, nil
}

// ResourceTimeseriesForTest returns every container resource sample
// recorded across every scenario of a run, ordered for downstream
// detection.
func (s *Store) ResourceTimeseriesForTest(ctx context.Context, testHistoryID int64) ([]models.TestResourceTimeseries, error) {
	var points []models.TestResourceTimeseries
	err := s.db.SelectContext(ctx, &points, `
		SELECT rt.* FROM test_resource_timeseries rt
		JOIN scenario_history sh ON sh.id = rt.scenario_history_id
		WHERE sh.test_history_id = $1
		ORDER BY rt.timestamp
	`, testHistoryID)
	if err != nil {
		return nil, fmt.Errorf("resource timeseries for test %d: %w", testHistoryID, err)
	}
	return points, nil
}

// InsertAnalysisHistory persists one row per analysis_type produced by an
// analysis run.
func (s *Store) InsertAnalysisHistory(ctx context.Context, rows []models.AnalysisHistory) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO analysis_history (primary_test_id, category, analysis_type, analysis_result, model_name, analyzed_at)
		VALUES (:primary_test_id, :category, :analysis_type, :analysis_result, :model_name, :analyzed_at)
	`, rows)
	if err != nil {
		return fmt.Errorf("insert analysis history: %w", err)
	}
	return nil
}

// AnalysisHistoryForTest returns a test's stored analyses newest-first,
// capped at limit and optionally filtered to one analysisType. An empty
// analysisType returns every category.
func (s *Store) AnalysisHistoryForTest(ctx context.Context, testHistoryID int64, analysisType string, limit int) ([]models.AnalysisHistory, error) {
	var rows []models.AnalysisHistory
	var err error
	if analysisType == "" {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT * FROM analysis_history
			WHERE primary_test_id = $1
			ORDER BY analyzed_at DESC
			LIMIT $2
		`, testHistoryID, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT * FROM analysis_history
			WHERE primary_test_id = $1 AND analysis_type = $2
			ORDER BY analyzed_at DESC
			LIMIT $3
		`, testHistoryID, analysisType, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("analysis history for test %d: %w", testHistoryID, err)
	}
	return rows, nil
}

// MarkAnalysisCompleted flips a run's analysis-completion flag once every
// sub-analysis has been stored.
func (s *Store) MarkAnalysisCompleted(ctx context.Context, testHistoryID int64, completedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE test_history SET is_analysis_completed = true, analysis_completed_at = $1 WHERE id = $2
	`, completedAt, testHistoryID)
	if err != nil {
		return fmt.Errorf("mark analysis completed for %d: %w", testHistoryID, err)
	}
	return nil
}

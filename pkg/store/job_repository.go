package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

// FindTestHistoryByJobName looks up the run a k6 job belongs to, reporting
// found=false rather than an error when no row matches.
func (s *Store) FindTestHistoryByJobName(ctx context.Context, jobName string) (*models.TestHistory, bool, error) {
	var history models.TestHistory
	err := s.db.GetContext(ctx, &history, `SELECT * FROM test_history WHERE job_name = $1`, jobName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find test history by job name %s: %w", jobName, err)
	}
	return &history, true, nil
}

// UpdateTestHistoryMetrics persists the aggregate metrics/completion fields
// the job controller recomputes on every tick.
func (s *Store) UpdateTestHistoryMetrics(ctx context.Context, history *models.TestHistory) error {
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE test_history SET
			is_completed = :is_completed,
			completed_at = :completed_at,
			is_analysis_completed = :is_analysis_completed,
			analysis_completed_at = :analysis_completed_at,
			avg_tps = :avg_tps, min_tps = :min_tps, max_tps = :max_tps,
			avg_response_time = :avg_response_time, min_response_time = :min_response_time, max_response_time = :max_response_time,
			p50_response_time = :p50_response_time, p95_response_time = :p95_response_time, p99_response_time = :p99_response_time,
			min_error_rate = :min_error_rate, max_error_rate = :max_error_rate, avg_error_rate = :avg_error_rate,
			min_vus = :min_vus, max_vus = :max_vus, avg_vus = :avg_vus,
			total_requests = :total_requests, failed_requests = :failed_requests, test_duration = :test_duration
		WHERE id = :id
	`, history)
	if err != nil {
		return fmt.Errorf("update test history metrics for %d: %w", history.ID, err)
	}
	return nil
}

// ScenariosForTest returns every scenario recorded against a run.
func (s *Store) ScenariosForTest(ctx context.Context, testHistoryID int64) ([]models.ScenarioHistory, error) {
	var scenarios []models.ScenarioHistory
	err := s.db.SelectContext(ctx, &scenarios, `SELECT * FROM scenario_history WHERE test_history_id = $1 ORDER BY id`, testHistoryID)
	if err != nil {
		return nil, fmt.Errorf("scenarios for test %d: %w", testHistoryID, err)
	}
	return scenarios, nil
}

// UpdateScenarioMetrics persists the per-scenario aggregate metrics the job
// controller recomputes on every tick.
func (s *Store) UpdateScenarioMetrics(ctx context.Context, scenario *models.ScenarioHistory) error {
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE scenario_history SET
			avg_tps = :avg_tps, min_tps = :min_tps, max_tps = :max_tps,
			avg_response_time = :avg_response_time, avg_error_rate = :avg_error_rate
		WHERE id = :id
	`, scenario)
	if err != nil {
		return fmt.Errorf("update scenario metrics for %d: %w", scenario.ID, err)
	}
	return nil
}

// InsertMetricsTimeseries appends a batch of 10s-bucketed performance
// samples, each scoped to a run and optionally a scenario.
func (s *Store) InsertMetricsTimeseries(ctx context.Context, points []models.TestMetricsTimeseries) error {
	if len(points) == 0 {
		return nil
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO test_metrics_timeseries
			(test_history_id, scenario_history_id, timestamp, tps, error_rate, vus, avg_rt, p95_rt, p99_rt)
		VALUES
			(:test_history_id, :scenario_history_id, :timestamp, :tps, :error_rate, :vus, :avg_rt, :p95_rt, :p99_rt)
	`, points)
	if err != nil {
		return fmt.Errorf("insert metrics timeseries: %w", err)
	}
	return nil
}

// ServerInfrasForEndpoint returns the infrastructure backing an endpoint's
// spec, by way of the spec every server_infra row is tagged with.
func (s *Store) ServerInfrasForEndpoint(ctx context.Context, endpointID int64) ([]models.ServerInfra, error) {
	var infras []models.ServerInfra
	err := s.db.SelectContext(ctx, &infras, `
		SELECT si.* FROM server_infra si
		JOIN openapi_spec_version v ON v.spec_id = si.spec_id
		JOIN endpoint e ON e.version_id = v.id
		WHERE e.id = $1
	`, endpointID)
	if err != nil {
		return nil, fmt.Errorf("server infras for endpoint %d: %w", endpointID, err)
	}
	return infras, nil
}

// InsertResourceTimeseries appends a batch of 10s-bucketed container
// resource samples, each scoped to a scenario and the infra it was sampled
// from.
func (s *Store) InsertResourceTimeseries(ctx context.Context, points []models.TestResourceTimeseries) error {
	if len(points) == 0 {
		return nil
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO test_resource_timeseries
			(scenario_history_id, server_infra_id, timestamp, metric_type, unit, value, cpu_req, cpu_limit, mem_req_mb, mem_limit_mb)
		VALUES
			(:scenario_history_id, :server_infra_id, :timestamp, :metric_type, :unit, :value, :cpu_req, :cpu_limit, :mem_req_mb, :mem_limit_mb)
	`, points)
	if err != nil {
		return fmt.Errorf("insert resource timeseries: %w", err)
	}
	return nil
}

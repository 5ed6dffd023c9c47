package store

import (
	"context"
	"fmt"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

// ScenarioTagsForJob returns the k6 scenario tags recorded for a run, used
// by the realtime stream to report per-scenario k6 metrics.
func (s *Store) ScenarioTagsForJob(ctx context.Context, jobName string) ([]string, error) {
	var tags []string
	err := s.db.SelectContext(ctx, &tags, `
		SELECT sh.scenario_tag FROM scenario_history sh
		JOIN test_history th ON th.id = sh.test_history_id
		WHERE th.job_name = $1
		ORDER BY sh.id
	`, jobName)
	if err != nil {
		return nil, fmt.Errorf("scenario tags for job %s: %w", jobName, err)
	}
	return tags, nil
}

// ServerInfrasForJob returns the infra backing a run's job, by way of the
// endpoints its scenarios exercise.
func (s *Store) ServerInfrasForJob(ctx context.Context, jobName string) ([]models.ServerInfra, error) {
	var infras []models.ServerInfra
	err := s.db.SelectContext(ctx, &infras, `
		SELECT DISTINCT si.* FROM server_infra si
		JOIN openapi_spec_version v ON v.spec_id = si.spec_id
		JOIN endpoint e ON e.version_id = v.id
		JOIN scenario_history sh ON sh.endpoint_id = e.id
		JOIN test_history th ON th.id = sh.test_history_id
		WHERE th.job_name = $1
	`, jobName)
	if err != nil {
		return nil, fmt.Errorf("server infras for job %s: %w", jobName, err)
	}
	return infras, nil
}

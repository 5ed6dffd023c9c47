package jobcontroller

import (
	"context"
	"time"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

// ingestTimeseries walks [start, end] in bucketWidth windows and persists one
// overall point and one per-scenario point per window.
func (c *Controller) ingestTimeseries(ctx context.Context, history *models.TestHistory, scenarios []models.ScenarioHistory, start, end time.Time) error {
	points := make([]models.TestMetricsTimeseries, 0, 64)

	overall, err := c.bucketedSeries(ctx, history.JobName, "", start, end)
	if err != nil {
		return err
	}
	for _, p := range overall {
		p.TestHistoryID = history.ID
		points = append(points, p)
	}

	for _, scenario := range scenarios {
		series, err := c.bucketedSeries(ctx, history.JobName, scenario.ScenarioTag, start, end)
		if err != nil {
			continue
		}
		id := scenario.ID
		for _, p := range series {
			p.TestHistoryID = history.ID
			p.ScenarioHistoryID = &id
			points = append(points, p)
		}
	}

	if len(points) == 0 {
		return nil
	}
	return c.store.InsertMetricsTimeseries(ctx, points)
}

func (c *Controller) bucketedSeries(ctx context.Context, jobName, scenario string, start, end time.Time) ([]models.TestMetricsTimeseries, error) {
	tps, err := c.metrics.BucketedTPS(ctx, jobName, scenario, start, end, bucketWidth)
	if err != nil {
		return nil, err
	}
	errRate, err := c.metrics.BucketedErrorRate(ctx, jobName, scenario, start, end, bucketWidth)
	if err != nil {
		return nil, err
	}
	vus, err := c.metrics.BucketedVUs(ctx, jobName, scenario, start, end, bucketWidth)
	if err != nil {
		return nil, err
	}
	avg, p95, p99, err := c.metrics.BucketedLatency(ctx, jobName, scenario, start, end, bucketWidth)
	if err != nil {
		return nil, err
	}

	byTimestamp := map[time.Time]*models.TestMetricsTimeseries{}
	get := func(ts time.Time) *models.TestMetricsTimeseries {
		if p, ok := byTimestamp[ts]; ok {
			return p
		}
		p := &models.TestMetricsTimeseries{Timestamp: ts}
		byTimestamp[ts] = p
		return p
	}
	for _, s := range tps {
		get(s.Timestamp).TPS = s.Value
	}
	for _, s := range errRate {
		get(s.Timestamp).ErrorRate = s.Value
	}
	for _, s := range vus {
		get(s.Timestamp).VUs = s.Value
	}
	for _, s := range avg {
		get(s.Timestamp).AvgRT = s.Value
	}
	for _, s := range p95 {
		get(s.Timestamp).P95RT = s.Value
	}
	for _, s := range p99 {
		get(s.Timestamp).P99RT = s.Value
	}

	out := make([]models.TestMetricsTimeseries, 0, len(byTimestamp))
	for _, p := range byTimestamp {
		out = append(out, *p)
	}
	return out, nil
}

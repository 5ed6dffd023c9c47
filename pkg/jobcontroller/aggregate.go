package jobcontroller

import (
	"context"
	"time"

	sharedmath "github.com/team-Plog/plog-sub000/pkg/shared/math"

	"github.com/team-Plog/plog-sub000/pkg/metricsstore"
	"github.com/team-Plog/plog-sub000/pkg/models"
)

func (c *Controller) aggregateOverall(ctx context.Context, history *models.TestHistory, window time.Duration) error {
	total, err := c.metrics.TotalRequests(ctx, history.JobName, "", window)
	if err != nil {
		return err
	}
	failed, err := c.metrics.FailedRequests(ctx, history.JobName, "", window)
	if err != nil {
		return err
	}
	history.TotalRequests = ptrFloatToInt(total)
	history.FailedRequests = ptrFloatToInt(failed)

	tps, err := c.metrics.BucketedTPS(ctx, history.JobName, "", time.Now().Add(-window), time.Now(), 5*time.Second)
	if err == nil && len(tps) > 0 {
		values := valuesOf(tps)
		history.AvgTPS = ptrF(sharedmath.Mean(values))
		history.MinTPS = ptrF(sharedmath.Min(values))
		history.MaxTPS = ptrF(sharedmath.Max(values))
	}

	durStats, err := c.metrics.OverallDurationStats(ctx, history.JobName, window)
	if err == nil {
		history.AvgResponseTime = ptrF(durStats.Avg)
		history.MinResponseTime = ptrF(durStats.Min)
		history.MaxResponseTime = ptrF(durStats.Max)
		history.P50ResponseTime = ptrF(durStats.P50)
		history.P95ResponseTime = ptrF(durStats.P95)
		history.P99ResponseTime = ptrF(durStats.P99)
	}

	errRates, err := c.metrics.BucketedErrorRate(ctx, history.JobName, "", time.Now().Add(-window), time.Now(), 5*time.Second)
	if err == nil && len(errRates) > 0 {
		values := valuesOf(errRates)
		history.AvgErrorRate = ptrF(sharedmath.Mean(values))
		history.MinErrorRate = ptrF(sharedmath.Min(values))
		history.MaxErrorRate = ptrF(sharedmath.Max(values))
	}

	vus, err := c.metrics.BucketedVUs(ctx, history.JobName, "", time.Now().Add(-window), time.Now(), bucketWidth)
	if err == nil && len(vus) > 0 {
		values := valuesOf(vus)
		history.AvgVUs = ptrF(sharedmath.Mean(values))
		history.MinVUs = ptrF(sharedmath.Min(values))
		history.MaxVUs = ptrF(sharedmath.Max(values))
	}

	seconds := window.Seconds()
	history.TestDuration = &seconds
	return nil
}

func (c *Controller) aggregateScenario(ctx context.Context, jobName string, window time.Duration, scenario *models.ScenarioHistory) error {
	tps, err := c.metrics.BucketedTPS(ctx, jobName, scenario.ScenarioTag, time.Now().Add(-window), time.Now(), 5*time.Second)
	if err == nil && len(tps) > 0 {
		values := valuesOf(tps)
		scenario.AvgTPS = ptrF(sharedmath.Mean(values))
		scenario.MinTPS = ptrF(sharedmath.Min(values))
		scenario.MaxTPS = ptrF(sharedmath.Max(values))
	}

	durStats, err := c.metrics.ScenarioDurationStats(ctx, jobName, scenario.ScenarioTag, window)
	if err == nil {
		scenario.AvgResponseTime = ptrF(durStats.Avg)
	}

	errRate, err := c.metrics.ScenarioErrorRate(ctx, jobName, scenario.ScenarioTag)
	if err == nil {
		scenario.AvgErrorRate = ptrF(errRate * 100)
	}

	return c.store.UpdateScenarioMetrics(ctx, scenario)
}

func valuesOf(points []metricsstore.TimePoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}

func ptrF(v float64) *float64 { return &v }

func ptrFloatToInt(v float64) *int64 {
	n := int64(v)
	return &n
}

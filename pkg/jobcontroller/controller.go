// Package jobcontroller watches the generator namespace for finished k6 run
// jobs, pulls their metrics out of the metrics store, and persists the
// aggregated and time-series results against the TestHistory row the load
// generator created when it submitted the job.
package jobcontroller

import (
	"context"
	"time"

	batchv1 "k8s.io/api/batch/v1"

	"github.com/sirupsen/logrus"

	"github.com/team-Plog/plog-sub000/pkg/k8s"
	"github.com/team-Plog/plog-sub000/pkg/metricsstore"
	"github.com/team-Plog/plog-sub000/pkg/models"
	"github.com/team-Plog/plog-sub000/pkg/podspec"
)

const defaultPollInterval = 15 * time.Second

const bucketWidth = 10 * time.Second

// Store is the persistence surface the job controller writes aggregated and
// time-series results through. Implemented by pkg/store.
type Store interface {
	FindTestHistoryByJobName(ctx context.Context, jobName string) (*models.TestHistory, bool, error)
	UpdateTestHistoryMetrics(ctx context.Context, history *models.TestHistory) error
	ScenariosForTest(ctx context.Context, testHistoryID int64) ([]models.ScenarioHistory, error)
	UpdateScenarioMetrics(ctx context.Context, scenario *models.ScenarioHistory) error
	InsertMetricsTimeseries(ctx context.Context, points []models.TestMetricsTimeseries) error
	ServerInfrasForEndpoint(ctx context.Context, endpointID int64) ([]models.ServerInfra, error)
	InsertResourceTimeseries(ctx context.Context, points []models.TestResourceTimeseries) error
}

// AnalysisTrigger hands a completed test off to the analysis orchestrator
// without the job controller blocking on it.
type AnalysisTrigger interface {
	TriggerAnalysis(testHistoryID int64)
}

// Controller polls the generator namespace for finished k6 jobs and
// aggregates their results.
type Controller struct {
	client    k8s.Client
	metrics   *metricsstore.Client
	store     Store
	cache     *podspec.Cache
	analysis  AnalysisTrigger
	interval  time.Duration
	autoDelte bool
	location  *time.Location
	log       *logrus.Logger
}

func NewController(client k8s.Client, metrics *metricsstore.Client, store Store, cache *podspec.Cache, analysis AnalysisTrigger, interval time.Duration, autoDeleteJobs bool, location *time.Location, log *logrus.Logger) *Controller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if location == nil {
		location = time.UTC
	}
	return &Controller{
		client:    client,
		metrics:   metrics,
		store:     store,
		cache:     cache,
		analysis:  analysis,
		interval:  interval,
		autoDelte: autoDeleteJobs,
		location:  location,
		log:       log,
	}
}

// Run ticks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, namespace string) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Tick(ctx, namespace); err != nil {
				c.log.WithError(err).Warn("job controller tick failed")
			}
		}
	}
}

// Tick lists finished jobs in namespace and processes each one still
// pending completion.
func (c *Controller) Tick(ctx context.Context, namespace string) error {
	jobs, err := c.client.ListJobs(ctx, namespace)
	if err != nil {
		return err
	}
	for i := range jobs.Items {
		job := &jobs.Items[i]
		if !isFinished(job) {
			continue
		}
		if err := c.processJob(ctx, namespace, job); err != nil {
			c.log.WithError(err).WithField("job", job.Name).Warn("failed to process finished job")
		}
	}
	return nil
}

func isFinished(job *batchv1.Job) bool {
	if job.Status.Succeeded > 0 || job.Status.Failed > 0 {
		return true
	}
	for _, cond := range job.Status.Conditions {
		if (cond.Type == batchv1.JobComplete || cond.Type == batchv1.JobFailed) && cond.Status == "True" {
			return true
		}
	}
	return false
}

func (c *Controller) processJob(ctx context.Context, namespace string, job *batchv1.Job) error {
	history, found, err := c.store.FindTestHistoryByJobName(ctx, job.Name)
	if err != nil {
		return err
	}
	if !found || history.IsCompleted {
		return nil
	}

	start, end, ok, err := c.metrics.SeriesBounds(ctx, job.Name, 24*time.Hour, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		// No data landed yet; try again next tick rather than marking complete.
		return nil
	}
	window := end.Sub(start)
	if window <= 0 {
		window = bucketWidth
	}

	if err := c.aggregateOverall(ctx, history, window); err != nil {
		c.log.WithError(err).WithField("job", job.Name).Warn("overall aggregation skipped")
	}

	scenarios, err := c.store.ScenariosForTest(ctx, history.ID)
	if err != nil {
		return err
	}
	for i := range scenarios {
		if err := c.aggregateScenario(ctx, job.Name, window, &scenarios[i]); err != nil {
			c.log.WithError(err).WithField("scenario", scenarios[i].ScenarioTag).Warn("scenario aggregation skipped")
		}
	}

	if err := c.ingestTimeseries(ctx, history, scenarios, start, end); err != nil {
		c.log.WithError(err).WithField("job", job.Name).Warn("time-series ingestion failed")
	}

	if err := c.ingestResources(ctx, scenarios, start, end); err != nil {
		c.log.WithError(err).WithField("job", job.Name).Warn("resource ingestion failed")
	}

	now := time.Now().In(c.location)
	history.IsCompleted = true
	history.CompletedAt = &now
	if err := c.store.UpdateTestHistoryMetrics(ctx, history); err != nil {
		return err
	}

	if c.analysis != nil {
		go c.analysis.TriggerAnalysis(history.ID)
	}

	if c.autoDelte {
		if err := c.client.DeleteJob(ctx, namespace, job.Name); err != nil {
			c.log.WithError(err).WithField("job", job.Name).Warn("failed to auto-delete finished job")
		}
	}
	return nil
}

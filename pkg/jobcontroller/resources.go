package jobcontroller

import (
	"context"
	"time"

	"github.com/team-Plog/plog-sub000/pkg/buffer"
	"github.com/team-Plog/plog-sub000/pkg/k8s"
	"github.com/team-Plog/plog-sub000/pkg/metricsstore"
	"github.com/team-Plog/plog-sub000/pkg/models"
)

const resourceWindowExtension = time.Minute

// ingestResources walks every scenario's endpoint to its bound ServerInfra
// pods, pulls cAdvisor CPU/memory samples over an extended window, smooths
// gaps through a Smart Metrics Buffer per (pod, metric), and persists the
// result.
func (c *Controller) ingestResources(ctx context.Context, scenarios []models.ScenarioHistory, start, end time.Time) error {
	windowStart := start.Add(-resourceWindowExtension)
	windowEnd := end.Add(resourceWindowExtension)

	points := make([]models.TestResourceTimeseries, 0, 64)
	for _, scenario := range scenarios {
		infras, err := c.store.ServerInfrasForEndpoint(ctx, scenario.EndpointID)
		if err != nil {
			c.log.WithError(err).WithField("endpoint_id", scenario.EndpointID).Warn("failed to resolve server infra for endpoint")
			continue
		}
		for _, infra := range infras {
			specs, err := c.cache.Get(ctx, infra.Namespace, infra.Name)
			if err != nil {
				c.log.WithError(err).WithField("pod", infra.Name).Warn("failed to read pod resource spec")
				continue
			}
			agg := k8s.AggregatePodResourceSpecs(specs)

			cpuPoints, err := c.smoothedSeries(ctx, infra.Name, windowStart, windowEnd, models.MetricTypeCPU)
			if err == nil {
				for _, p := range cpuPoints {
					points = append(points, models.TestResourceTimeseries{
						ScenarioHistoryID: scenario.ID,
						ServerInfraID:     infra.ID,
						Timestamp:         p.Timestamp,
						MetricType:        models.MetricTypeCPU,
						Unit:              "millicores",
						Value:             p.Value,
						CPURequest:        agg.CPURequestMillicores,
						CPULimit:          agg.CPULimitMillicores,
						MemRequestMB:      agg.MemoryRequestMB,
						MemLimitMB:        agg.MemoryLimitMB,
					})
				}
			}

			memPoints, err := c.smoothedSeries(ctx, infra.Name, windowStart, windowEnd, models.MetricTypeMemory)
			if err == nil {
				for _, p := range memPoints {
					points = append(points, models.TestResourceTimeseries{
						ScenarioHistoryID: scenario.ID,
						ServerInfraID:     infra.ID,
						Timestamp:         p.Timestamp,
						MetricType:        models.MetricTypeMemory,
						Unit:              "MB",
						Value:             p.Value,
						CPURequest:        agg.CPURequestMillicores,
						CPULimit:          agg.CPULimitMillicores,
						MemRequestMB:      agg.MemoryRequestMB,
						MemLimitMB:        agg.MemoryLimitMB,
					})
				}
			}
		}
	}

	if len(points) == 0 {
		return nil
	}
	return c.store.InsertResourceTimeseries(ctx, points)
}

// smoothedSeries reads raw cAdvisor samples for pod over [start,end] and
// replays them through a fresh Smart Metrics Buffer, emitting a predicted
// point for any bucket the raw series skipped.
func (c *Controller) smoothedSeries(ctx context.Context, pod string, start, end time.Time, metricType models.MetricType) ([]metricsstore.TimePoint, error) {
	var raw []metricsstore.TimePoint
	var err error
	if metricType == models.MetricTypeCPU {
		raw, err = c.metrics.BucketedContainerCPU(ctx, pod, start, end, bucketWidth)
	} else {
		raw, err = c.metrics.BucketedContainerMemory(ctx, pod, start, end, bucketWidth)
	}
	if err != nil {
		return nil, err
	}

	byBucket := map[time.Time]float64{}
	for _, p := range raw {
		byBucket[p.Timestamp.Truncate(bucketWidth)] = p.Value
	}

	buf := buffer.New(string(metricType), buffer.MetricTypeAbsolute, buffer.WithLogger(c.log))
	out := make([]metricsstore.TimePoint, 0, int(end.Sub(start)/bucketWidth)+1)
	for ts := start.Truncate(bucketWidth); !ts.After(end); ts = ts.Add(bucketWidth) {
		if v, ok := byBucket[ts]; ok {
			buf.AddValue(v, false, ts)
			out = append(out, metricsstore.TimePoint{Timestamp: ts, Value: v})
			continue
		}
		predicted, ok := buf.PredictNext()
		if !ok {
			continue
		}
		buf.AddValue(predicted, true, ts)
		out = append(out, metricsstore.TimePoint{Timestamp: ts, Value: predicted})
	}
	return out, nil
}

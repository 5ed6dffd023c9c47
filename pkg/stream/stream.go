// Package stream renders the realtime SSE feed every active load test
// exposes: a 5s-ticked JSON snapshot of overall/per-scenario k6 metrics and,
// optionally, per-pod resource utilisation smoothed through a shared buffer
// registry.
package stream

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/team-Plog/plog-sub000/pkg/buffer"
	"github.com/team-Plog/plog-sub000/pkg/k8s"
	"github.com/team-Plog/plog-sub000/pkg/metricsstore"
	"github.com/team-Plog/plog-sub000/pkg/models"
	"github.com/team-Plog/plog-sub000/pkg/podspec"
)

const tickInterval = 5 * time.Second

// Include selects which sections a stream emits.
type Include string

const (
	IncludeAll             Include = "all"
	IncludeK6Only          Include = "k6_only"
	IncludeResourcesOnly   Include = "resources_only"
)

// ParseInclude defaults any unrecognised value to IncludeAll.
func ParseInclude(raw string) Include {
	switch Include(raw) {
	case IncludeK6Only:
		return IncludeK6Only
	case IncludeResourcesOnly:
		return IncludeResourcesOnly
	default:
		return IncludeAll
	}
}

// Store resolves the pods bound to a job's scenarios, via
// TestHistory -> ScenarioHistory -> Endpoint -> OpenAPISpec -> ServerInfra.
type Store interface {
	ScenarioTagsForJob(ctx context.Context, jobName string) ([]string, error)
	ServerInfrasForJob(ctx context.Context, jobName string) ([]models.ServerInfra, error)
}

type OverallMetrics struct {
	TPS          float64 `json:"tps"`
	VUs          float64 `json:"vus"`
	ResponseTime float64 `json:"response_time"`
	ErrorRate    float64 `json:"error_rate"`
}

type ScenarioMetrics struct {
	Name         string  `json:"name"`
	ScenarioTag  string  `json:"scenario_tag"`
	TPS          float64 `json:"tps"`
	VUs          float64 `json:"vus"`
	ResponseTime float64 `json:"response_time"`
	ErrorRate    float64 `json:"error_rate"`
}

type PredictionInfo struct {
	CPUStreak        int     `json:"cpu_streak"`
	MemoryStreak     int     `json:"memory_streak"`
	CPUConfidence    float64 `json:"cpu_confidence"`
	MemoryConfidence float64 `json:"memory_confidence"`
}

type ResourceSpecs struct {
	CPULimitMillicores float64 `json:"cpu_limit_millicores"`
	MemoryLimitMB      float64 `json:"memory_limit_mb"`
}

type ResourceMetrics struct {
	PodName            string         `json:"pod_name"`
	ServiceType        string         `json:"service_type"`
	CPUUsagePercent    float64        `json:"cpu_usage_percent"`
	MemoryUsagePercent float64        `json:"memory_usage_percent"`
	CPUIsPredicted     bool           `json:"cpu_is_predicted"`
	MemoryIsPredicted  bool           `json:"memory_is_predicted"`
	Specs              ResourceSpecs  `json:"specs"`
	PredictionInfo     PredictionInfo `json:"prediction_info"`
}

type Snapshot struct {
	Timestamp time.Time         `json:"timestamp"`
	Overall   OverallMetrics    `json:"overall"`
	Scenarios []ScenarioMetrics `json:"scenarios"`
	Resources []ResourceMetrics `json:"resources,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Emitter produces one Snapshot per tick for a job, per include mode.
type Emitter struct {
	metrics  *metricsstore.Client
	store    Store
	cache    *podspec.Cache
	buffers  *buffer.Registry
	location *time.Location
	log      *logrus.Logger
}

func NewEmitter(metrics *metricsstore.Client, store Store, cache *podspec.Cache, buffers *buffer.Registry, location *time.Location, log *logrus.Logger) *Emitter {
	if location == nil {
		location = time.UTC
	}
	return &Emitter{metrics: metrics, store: store, cache: cache, buffers: buffers, location: location, log: log}
}

// Stream calls emit(snapshot) every tickInterval until ctx is cancelled.
func (e *Emitter) Stream(ctx context.Context, jobName string, include Include, emit func(Snapshot)) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		emit(e.collect(ctx, jobName, include))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Emitter) collect(ctx context.Context, jobName string, include Include) Snapshot {
	now := time.Now().In(e.location)

	if include == IncludeResourcesOnly {
		resources := e.collectResources(ctx, jobName)
		return Snapshot{Timestamp: now, Resources: resources}
	}

	overallTPS, err := e.metrics.OverallTPS(ctx, jobName)
	if err != nil {
		return e.errorSnapshot(now, include, err)
	}
	overallVUs, err := e.metrics.OverallVUs(ctx, jobName)
	if err != nil {
		return e.errorSnapshot(now, include, err)
	}
	overallLatency, err := e.metrics.OverallLatency(ctx, jobName)
	if err != nil {
		return e.errorSnapshot(now, include, err)
	}
	overallErrorRate, err := e.metrics.OverallErrorRate(ctx, jobName)
	if err != nil {
		return e.errorSnapshot(now, include, err)
	}

	tags, err := e.store.ScenarioTagsForJob(ctx, jobName)
	if err != nil {
		tags = nil
	}

	scenarios := make([]ScenarioMetrics, 0, len(tags))
	for _, tag := range tags {
		tps, _ := e.metrics.ScenarioTPS(ctx, jobName, tag)
		vus, _ := e.metrics.ScenarioVUs(ctx, jobName, tag)
		latency, _ := e.metrics.ScenarioLatency(ctx, jobName, tag)
		errRate, _ := e.metrics.ScenarioErrorRate(ctx, jobName, tag)
		scenarios = append(scenarios, ScenarioMetrics{
			Name:         tag,
			ScenarioTag:  tag,
			TPS:          tps,
			VUs:          vus,
			ResponseTime: latency.Avg,
			ErrorRate:    errRate * 100,
		})
	}

	snapshot := Snapshot{
		Timestamp: now,
		Overall: OverallMetrics{
			TPS:          overallTPS,
			VUs:          overallVUs,
			ResponseTime: overallLatency.Avg,
			ErrorRate:    overallErrorRate * 100,
		},
		Scenarios: scenarios,
	}

	if include == IncludeAll {
		snapshot.Resources = e.collectResources(ctx, jobName)
	}
	return snapshot
}

func (e *Emitter) errorSnapshot(now time.Time, include Include, err error) Snapshot {
	snap := Snapshot{Timestamp: now, Error: err.Error()}
	if include != IncludeK6Only {
		snap.Resources = []ResourceMetrics{}
	}
	return snap
}

func (e *Emitter) collectResources(ctx context.Context, jobName string) []ResourceMetrics {
	infras, err := e.store.ServerInfrasForJob(ctx, jobName)
	if err != nil {
		e.log.WithError(err).WithField("job", jobName).Warn("failed to resolve server infra for resource stream")
		return []ResourceMetrics{}
	}

	out := make([]ResourceMetrics, 0, len(infras))
	for _, infra := range infras {
		metrics, ok := e.podResourceMetrics(ctx, jobName, infra)
		if !ok {
			continue
		}
		out = append(out, metrics)
	}
	return out
}

func (e *Emitter) podResourceMetrics(ctx context.Context, jobName string, infra models.ServerInfra) (ResourceMetrics, bool) {
	specs, err := e.cache.Get(ctx, infra.Namespace, infra.Name)
	if err != nil {
		return ResourceMetrics{}, false
	}
	limits := k8s.AggregatePodResourceSpecs(specs)

	cpuBuf := e.buffers.GetOrCreate(jobName, infra.Name, "cpu", buffer.MetricTypePercentage, buffer.WithMaxValue(100))
	memBuf := e.buffers.GetOrCreate(jobName, infra.Name, "memory", buffer.MetricTypePercentage, buffer.WithMaxValue(100))

	cpuPercent, cpuPredicted, cpuOK := e.sampleOrPredict(ctx, cpuBuf, func() (float64, bool) {
		samples, err := e.metrics.ContainerCPUUsage(ctx, infra.Name)
		if err != nil || len(samples) == 0 || limits.CPULimitMillicores == 0 {
			return 0, false
		}
		return samples[0].Value / limits.CPULimitMillicores * 100, true
	})
	memPercent, memPredicted, memOK := e.sampleOrPredict(ctx, memBuf, func() (float64, bool) {
		samples, err := e.metrics.ContainerMemoryUsage(ctx, infra.Name)
		if err != nil || len(samples) == 0 || limits.MemoryLimitMB == 0 {
			return 0, false
		}
		return samples[0].Value / limits.MemoryLimitMB * 100, true
	})
	if !cpuOK && !memOK {
		return ResourceMetrics{}, false
	}

	cpuState := cpuBuf.CurrentState()
	memState := memBuf.CurrentState()

	return ResourceMetrics{
		PodName:            infra.Name,
		ServiceType:        string(infra.ServiceType),
		CPUUsagePercent:    cpuPercent,
		MemoryUsagePercent: memPercent,
		CPUIsPredicted:     cpuPredicted,
		MemoryIsPredicted:  memPredicted,
		Specs: ResourceSpecs{
			CPULimitMillicores: limits.CPULimitMillicores,
			MemoryLimitMB:      limits.MemoryLimitMB,
		},
		PredictionInfo: PredictionInfo{
			CPUStreak:        cpuState.PredictionStreak,
			MemoryStreak:     memState.PredictionStreak,
			CPUConfidence:    cpuState.Confidence,
			MemoryConfidence: memState.Confidence,
		},
	}, true
}

// sampleOrPredict pushes a fresh value into buf when fetch() succeeds;
// otherwise asks the buffer to predict. Matches spec.md §4.7 step 2: emit 0
// only when both the fetch and the prediction come back empty.
func (e *Emitter) sampleOrPredict(_ context.Context, buf *buffer.Buffer, fetch func() (float64, bool)) (value float64, predicted bool, ok bool) {
	if v, fetched := fetch(); fetched {
		buf.AddValue(v, false, time.Now())
		return v, false, true
	}
	predictedValue, has := buf.PredictNext()
	if !has {
		return 0, false, true
	}
	buf.AddValue(predictedValue, true, time.Now())
	return predictedValue, true, true
}


package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/team-Plog/plog-sub000/pkg/detector"
	"github.com/team-Plog/plog-sub000/pkg/models"
	"github.com/team-Plog/plog-sub000/pkg/shared/logging"
)

// Store is the persistence surface the analysis orchestrator reads a
// completed test from and writes sub-analyses back through. Implemented by
// pkg/store.
type Store interface {
	FindTestHistory(ctx context.Context, testHistoryID int64) (*models.TestHistory, error)
	ScenariosForTest(ctx context.Context, testHistoryID int64) ([]models.ScenarioHistory, error)
	OverallMetricsTimeseries(ctx context.Context, testHistoryID int64) ([]models.TestMetricsTimeseries, error)
	ResourceTimeseriesForTest(ctx context.Context, testHistoryID int64) ([]models.TestResourceTimeseries, error)
	InsertAnalysisHistory(ctx context.Context, rows []models.AnalysisHistory) error
	MarkAnalysisCompleted(ctx context.Context, testHistoryID int64, completedAt time.Time) error
}

const analysisCategory = "performance"

// Orchestrator implements pkg/jobcontroller.AnalysisTrigger: each call runs
// off its own goroutine and never blocks test-run completion.
type Orchestrator struct {
	store Store
	llm   LLMClient
	log   *logrus.Logger
}

func NewOrchestrator(store Store, llm LLMClient, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{store: store, llm: llm, log: log}
}

// TriggerAnalysis runs Analyze in the background, logging rather than
// propagating any failure — there is no caller left to hand an error to.
func (o *Orchestrator) TriggerAnalysis(testHistoryID int64) {
	go func() {
		if err := o.Analyze(context.Background(), testHistoryID); err != nil {
			o.log.WithFields(logrus.Fields(logging.NewFields().
				Component("analysis").
				Operation("analyze").
				Error(err))).Error("analysis run failed")
		}
	}()
}

// Analyze loads a completed test's evidence and series, asks the LLM for a
// structured five-category analysis, and persists it. A failed LLM call or
// an unparseable response falls back to five canned analyses rather than
// propagating the error.
func (o *Orchestrator) Analyze(ctx context.Context, testHistoryID int64) error {
	history, err := o.store.FindTestHistory(ctx, testHistoryID)
	if err != nil {
		return fmt.Errorf("load test history %d: %w", testHistoryID, err)
	}

	scenarios, err := o.store.ScenariosForTest(ctx, testHistoryID)
	if err != nil {
		return fmt.Errorf("load scenarios for test %d: %w", testHistoryID, err)
	}
	resourceSeries, err := o.store.ResourceTimeseriesForTest(ctx, testHistoryID)
	if err != nil {
		return fmt.Errorf("load resource series for test %d: %w", testHistoryID, err)
	}
	perfSeries, err := o.store.OverallMetricsTimeseries(ctx, testHistoryID)
	if err != nil {
		return fmt.Errorf("load performance series for test %d: %w", testHistoryID, err)
	}

	problems := detector.Detect(ToBuckets(perfSeries), ToSamples(resourceSeries))
	evidenceContext := detector.GenerateAIAnalysisContext(problems, time.Local)
	summary := Summarize(perfSeries)
	prompt := BuildPrompt(history, scenarios, evidenceContext, summary)

	categories, modelName := o.complete(ctx, prompt)

	rows := make([]models.AnalysisHistory, 0, len(categoryOrder))
	now := time.Now()
	for _, category := range categoryOrder {
		rows = append(rows, models.AnalysisHistory{
			PrimaryTestID:  testHistoryID,
			Category:       analysisCategory,
			AnalysisType:   category,
			AnalysisResult: categories[category],
			ModelName:      modelName,
			AnalyzedAt:     now,
		})
	}

	if err := o.store.InsertAnalysisHistory(ctx, rows); err != nil {
		return fmt.Errorf("persist analysis history for test %d: %w", testHistoryID, err)
	}
	return o.store.MarkAnalysisCompleted(ctx, testHistoryID, now)
}

// complete calls the LLM and parses its response, falling back to canned
// analyses on any failure. It never returns an error: this is the
// recoverable-condition boundary the spec names for the orchestrator.
func (o *Orchestrator) complete(ctx context.Context, prompt string) (map[string]models.SubAnalysis, string) {
	raw, err := o.llm.Complete(ctx, prompt)
	if err != nil {
		o.log.WithFields(logrus.Fields(logging.NewFields().
			Component("analysis").
			Operation("llm-complete").
			Error(err))).Warn("LLM call failed, falling back")
		return fallbackEnvelope(), fallbackModelName
	}

	categories, err := ParseEnvelope(raw)
	if err != nil {
		o.log.WithFields(logrus.Fields(logging.NewFields().
			Component("analysis").
			Operation("parse-envelope").
			Error(err))).Warn("LLM response unparseable, falling back")
		return fallbackEnvelope(), fallbackModelName
	}
	return DedupInsights(categories), "anthropic"
}

// ToBuckets adapts a run's overall performance series to the detector's
// input shape. Exported so the debug bottleneck-analysis endpoint can
// re-run detection against the same persisted series outside a full
// Analyze call.
func ToBuckets(points []models.TestMetricsTimeseries) []detector.PerformanceBucket {
	out := make([]detector.PerformanceBucket, len(points))
	for i, p := range points {
		out[i] = detector.PerformanceBucket{
			Timestamp:       p.Timestamp,
			TPS:             p.TPS,
			VUs:             p.VUs,
			AvgResponseTime: p.AvgRT,
			ErrorRate:       p.ErrorRate,
		}
	}
	return out
}

// ToSamples merges CPU and memory rows that share a (pod, timestamp) key
// into one detector.ResourceSample, since the detector's correlation rules
// expect both metrics on a single sample.
func ToSamples(points []models.TestResourceTimeseries) []detector.ResourceSample {
	type key struct {
		infraID int64
		ts      int64
	}
	index := map[key]int{}
	out := make([]detector.ResourceSample, 0, len(points))

	for _, p := range points {
		k := key{infraID: p.ServerInfraID, ts: p.Timestamp.Unix()}
		i, ok := index[k]
		if !ok {
			out = append(out, detector.ResourceSample{Pod: podLabel(p.ServerInfraID), Timestamp: p.Timestamp})
			i = len(out) - 1
			index[k] = i
		}
		applyMetric(&out[i], p)
	}
	return out
}

func applyMetric(sample *detector.ResourceSample, p models.TestResourceTimeseries) {
	switch p.MetricType {
	case models.MetricTypeCPU:
		if p.CPULimit > 0 {
			sample.CPUPercent = p.Value / p.CPULimit * 100
		}
	case models.MetricTypeMemory:
		if p.MemLimitMB > 0 {
			sample.MemoryPercent = p.Value / p.MemLimitMB * 100
		}
	}
}

func podLabel(serverInfraID int64) string {
	return fmt.Sprintf("infra-%d", serverInfraID)
}

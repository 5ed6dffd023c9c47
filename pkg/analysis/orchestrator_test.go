package analysis

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

type fakeAnalysisStore struct {
	history         *models.TestHistory
	scenarios       []models.ScenarioHistory
	perfSeries      []models.TestMetricsTimeseries
	resourceSeries  []models.TestResourceTimeseries
	inserted        []models.AnalysisHistory
	completedID     int64
	completedAt     time.Time
	failOnLoad      bool
}

func (s *fakeAnalysisStore) FindTestHistory(_ context.Context, id int64) (*models.TestHistory, error) {
	if s.failOnLoad {
		return nil, errors.New("boom")
	}
	return s.history, nil
}

func (s *fakeAnalysisStore) ScenariosForTest(_ context.Context, _ int64) ([]models.ScenarioHistory, error) {
	return s.scenarios, nil
}

func (s *fakeAnalysisStore) OverallMetricsTimeseries(_ context.Context, _ int64) ([]models.TestMetricsTimeseries, error) {
	return s.perfSeries, nil
}

func (s *fakeAnalysisStore) ResourceTimeseriesForTest(_ context.Context, _ int64) ([]models.TestResourceTimeseries, error) {
	return s.resourceSeries, nil
}

func (s *fakeAnalysisStore) InsertAnalysisHistory(_ context.Context, rows []models.AnalysisHistory) error {
	s.inserted = rows
	return nil
}

func (s *fakeAnalysisStore) MarkAnalysisCompleted(_ context.Context, id int64, at time.Time) error {
	s.completedID = id
	s.completedAt = at
	return nil
}

type fakeLLMClient struct {
	response string
	err      error
}

func (f *fakeLLMClient) Complete(_ context.Context, _ string) (string, error) {
	return f.response, f.err
}

const validEnvelope = `{
  "comprehensive": {"summary": "ok overall", "detailed_analysis": "details", "insights": ["fine"], "performance_score": 80},
  "response_time": {"summary": "ok", "detailed_analysis": "details", "insights": [], "performance_score": 90},
  "tps": {"summary": "ok", "detailed_analysis": "details", "insights": [], "performance_score": 85},
  "error_rate": {"summary": "ok", "detailed_analysis": "details", "insights": [], "performance_score": 95},
  "resource_usage": {"summary": "ok", "detailed_analysis": "details", "insights": [], "performance_score": 70}
}`

var _ = Describe("Orchestrator", func() {
	var store *fakeAnalysisStore

	BeforeEach(func() {
		store = &fakeAnalysisStore{
			history: &models.TestHistory{ID: 1, Title: "checkout load", JobName: "job-A", TestedAt: time.Now()},
			perfSeries: []models.TestMetricsTimeseries{
				{Timestamp: time.Now(), TPS: 100, AvgRT: 50, ErrorRate: 0, VUs: 10},
				{Timestamp: time.Now().Add(10 * time.Second), TPS: 105, AvgRT: 52, ErrorRate: 0, VUs: 10},
			},
		}
	})

	It("persists five analyses and marks the test analysis-completed on a valid response", func() {
		o := NewOrchestrator(store, &fakeLLMClient{response: validEnvelope}, logrus.New())
		Expect(o.Analyze(context.Background(), 1)).To(Succeed())

		Expect(store.inserted).To(HaveLen(5))
		Expect(store.completedID).To(Equal(int64(1)))
		for _, row := range store.inserted {
			Expect(row.ModelName).To(Equal("anthropic"))
			Expect(row.PrimaryTestID).To(Equal(int64(1)))
		}
	})

	It("falls back to canned analyses when the LLM call fails", func() {
		o := NewOrchestrator(store, &fakeLLMClient{err: errors.New("rate limited")}, logrus.New())
		Expect(o.Analyze(context.Background(), 1)).To(Succeed())

		Expect(store.inserted).To(HaveLen(5))
		for _, row := range store.inserted {
			Expect(row.ModelName).To(Equal(fallbackModelName))
		}
	})

	It("falls back to canned analyses when the LLM response is unparseable", func() {
		o := NewOrchestrator(store, &fakeLLMClient{response: "not json at all"}, logrus.New())
		Expect(o.Analyze(context.Background(), 1)).To(Succeed())

		Expect(store.inserted).To(HaveLen(5))
		for _, row := range store.inserted {
			Expect(row.ModelName).To(Equal(fallbackModelName))
		}
	})

	It("propagates a failure to load the test history", func() {
		store.failOnLoad = true
		o := NewOrchestrator(store, &fakeLLMClient{response: validEnvelope}, logrus.New())
		Expect(o.Analyze(context.Background(), 1)).To(HaveOccurred())
	})
})

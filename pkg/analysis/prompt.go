package analysis

import (
	"fmt"
	"strings"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

const responseEnvelopeInstruction = `Respond with a single JSON object, no surrounding prose, of this exact shape:
{
  "comprehensive": {"summary": "...", "detailed_analysis": "...", "insights": ["..."], "performance_score": 0-100},
  "response_time": {"summary": "...", "detailed_analysis": "...", "insights": ["..."], "performance_score": 0-100},
  "tps": {"summary": "...", "detailed_analysis": "...", "insights": ["..."], "performance_score": 0-100},
  "error_rate": {"summary": "...", "detailed_analysis": "...", "insights": ["..."], "performance_score": 0-100},
  "resource_usage": {"summary": "...", "detailed_analysis": "...", "insights": ["..."], "performance_score": 0-100}
}`

// BuildPrompt embeds the detector's Markdown evidence context and a
// noise-trimmed summary of the test's series into a single LLM prompt.
func BuildPrompt(history *models.TestHistory, scenarios []models.ScenarioHistory, evidenceContext string, summary SeriesSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Load Test: %s (job %s)\n\n", history.Title, history.JobName)
	fmt.Fprintf(&b, "Tested at %s, duration %.0fs.\n\n", history.TestedAt.Format("2006-01-02 15:04:05 MST"), valueOrZero(history.TestDuration))

	b.WriteString("## Steady-State Summary\n\n")
	fmt.Fprintf(&b, "- Samples analyzed (trimmed): %d\n", summary.SampleCount)
	fmt.Fprintf(&b, "- TPS: avg %.1f, min %.1f, max %.1f\n", summary.AvgTPS, summary.MinTPS, summary.MaxTPS)
	fmt.Fprintf(&b, "- Response time: avg %.0fms, p95 %.0fms, p99 %.0fms\n", summary.AvgResponseTime, summary.P95ResponseTime, summary.P99ResponseTime)
	fmt.Fprintf(&b, "- Error rate: avg %.2f%%, max %.2f%%\n", summary.AvgErrorRate, summary.MaxErrorRate)
	fmt.Fprintf(&b, "- Virtual users: avg %.0f, max %.0f\n\n", summary.AvgVUs, summary.MaxVUs)

	if len(scenarios) > 0 {
		b.WriteString("## Scenarios\n\n")
		for _, s := range scenarios {
			fmt.Fprintf(&b, "- %s (%s): avg TPS %.1f, avg RT %.0fms, avg error rate %.2f%%\n",
				s.Name, s.ScenarioTag, valueOrZero(s.AvgTPS), valueOrZero(s.AvgResponseTime), valueOrZero(s.AvgErrorRate))
		}
		b.WriteString("\n")
	}

	b.WriteString(evidenceContext)
	b.WriteString("\n\n")
	b.WriteString(responseEnvelopeInstruction)
	return b.String()
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

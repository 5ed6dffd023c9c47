package analysis

import "github.com/team-Plog/plog-sub000/pkg/models"

const fallbackModelName = "fallback"

// fallbackCategory is the canned per-category analysis emitted when the
// LLM call or envelope parse fails, so a test still gets five
// AnalysisHistory rows instead of none.
func fallbackCategory(category string) models.SubAnalysis {
	return models.SubAnalysis{
		Summary:          "Automated analysis unavailable for this run.",
		DetailedAnalysis: fallbackDetail(category),
		Insights:         []string{"LLM analysis could not be completed; evidence-only detection results remain available."},
		PerformanceScore: 0,
	}
}

func fallbackDetail(category string) string {
	switch category {
	case "comprehensive":
		return "The comprehensive analysis could not be generated. Review the detected bottleneck evidence directly."
	case "response_time":
		return "Response time analysis could not be generated."
	case "tps":
		return "Throughput analysis could not be generated."
	case "error_rate":
		return "Error rate analysis could not be generated."
	case "resource_usage":
		return "Resource usage analysis could not be generated."
	default:
		return "Analysis could not be generated."
	}
}

// fallbackEnvelope returns all five categories as fallback analyses.
func fallbackEnvelope() map[string]models.SubAnalysis {
	out := make(map[string]models.SubAnalysis, len(categoryOrder))
	for _, category := range categoryOrder {
		out[category] = fallbackCategory(category)
	}
	return out
}

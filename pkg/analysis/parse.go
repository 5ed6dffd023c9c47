package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

// envelope mirrors the five-category JSON response the prompt instructs the
// LLM to return.
type envelope struct {
	Comprehensive models.SubAnalysis `json:"comprehensive"`
	ResponseTime  models.SubAnalysis `json:"response_time"`
	TPS           models.SubAnalysis `json:"tps"`
	ErrorRate     models.SubAnalysis `json:"error_rate"`
	ResourceUsage models.SubAnalysis `json:"resource_usage"`
}

// categoryOrder lists the envelope's categories, in order, by the
// AnalysisHistory analysis_type string each is persisted under.
var categoryOrder = []string{"comprehensive", "response_time", "tps", "error_rate", "resource_usage"}

// ParseEnvelope extracts the JSON object from raw (tolerating surrounding
// prose or a fenced code block, since LLMs routinely add either) and maps
// it to one SubAnalysis per category.
func ParseEnvelope(raw string) (map[string]models.SubAnalysis, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return nil, fmt.Errorf("no JSON object found in LLM response")
	}

	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response envelope: %w", err)
	}

	return map[string]models.SubAnalysis{
		"comprehensive":  env.Comprehensive,
		"response_time":  env.ResponseTime,
		"tps":            env.TPS,
		"error_rate":     env.ErrorRate,
		"resource_usage": env.ResourceUsage,
	}, nil
}

func extractJSONObject(raw string) string {
	raw = strings.TrimSpace(raw)
	if fenced := strings.TrimPrefix(raw, "```json"); fenced != raw {
		raw = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
		raw = strings.TrimSpace(raw)
	} else if fenced := strings.TrimPrefix(raw, "```"); fenced != raw {
		raw = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
		raw = strings.TrimSpace(raw)
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return ""
	}
	return raw[start : end+1]
}

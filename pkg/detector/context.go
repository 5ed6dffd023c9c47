package detector

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const timelineGranularity = 60 * time.Second

var problemEmoji = map[Severity]string{
	SeverityCritical: "\U0001F525", // 🔥
	SeverityWarning:  "⚠️", // ⚠️
	SeverityNormal:   "ℹ️", // ℹ️
}

var problemDisplayName = map[ProblemType]string{
	ResponseTimeSpike: "Response Time Spike",
	VUSTPSMismatch:    "VUS/TPS Mismatch",
	CPUOverload:       "CPU Overload",
	MemoryExhaustion:  "Memory Exhaustion",
	ErrorRateSurge:    "Error Rate Surge",
	OutOfMemoryKill:   "Out-of-Memory Kill",
}

const analysisRequestTrailer = `### 종합 분석 요청

위 타임라인과 문제 목록을 바탕으로 다음 순서로 분석해 주세요:
1. 타임라인 상의 전체 흐름
2. 문제들 간의 근본 원인 상호작용
3. 우선순위가 높은 문제
4. 구체적인 해결 방안
5. 재발 방지책`

// GenerateAIAnalysisContext renders the merged problem set as the Markdown
// context the analysis orchestrator embeds in its LLM prompt: a timeline
// snapshot, one section per problem sorted by severity, and a fixed
// instruction trailer.
func GenerateAIAnalysisContext(problems []Problem, location *time.Location) string {
	if location == nil {
		location = time.UTC
	}
	sorted := make([]Problem, len(problems))
	copy(sorted, problems)
	sort.Slice(sorted, func(i, j int) bool {
		if severityRank[sorted[i].Severity] != severityRank[sorted[j].Severity] {
			return severityRank[sorted[i].Severity] > severityRank[sorted[j].Severity]
		}
		return sorted[i].StartedAt.Before(sorted[j].StartedAt)
	})

	var b strings.Builder
	b.WriteString("## Timeline\n\n")
	for _, tick := range timelineTicks(sorted) {
		active := activeAt(sorted, tick)
		if len(active) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("- %s: ", tick.In(location).Format("15:04:05")))
		labels := make([]string, 0, len(active))
		for _, p := range active {
			labels = append(labels, fmt.Sprintf("%s %s", problemEmoji[p.Severity], problemDisplayName[p.ProblemType]))
		}
		b.WriteString(strings.Join(labels, ", "))
		b.WriteString("\n")
	}

	b.WriteString("\n## Problems\n\n")
	for i, p := range sorted {
		b.WriteString(fmt.Sprintf("### %d. %s %s (%s)\n\n", i+1, problemEmoji[p.Severity], problemDisplayName[p.ProblemType], p.Severity))
		b.WriteString(fmt.Sprintf("- Start: %s\n", p.StartedAt.In(location).Format(time.RFC3339)))
		b.WriteString(fmt.Sprintf("- End: %s\n", p.EndedAt.In(location).Format(time.RFC3339)))
		b.WriteString(fmt.Sprintf("- Confidence: %.2f\n", p.Confidence))
		b.WriteString(fmt.Sprintf("- Root cause: %s\n", p.RootCauseDescription))
		if len(p.DetectedEvidence) > 0 {
			b.WriteString(fmt.Sprintf("- Evidence: %s\n", strings.Join(p.DetectedEvidence, "; ")))
		}
		if p.AIPromptContext != "" {
			b.WriteString(fmt.Sprintf("- Context: %s\n", p.AIPromptContext))
		}
		b.WriteString("\n")
	}

	b.WriteString(analysisRequestTrailer)
	return b.String()
}

func timelineTicks(problems []Problem) []time.Time {
	if len(problems) == 0 {
		return nil
	}
	start, end := problems[0].StartedAt, problems[0].EndedAt
	for _, p := range problems[1:] {
		if p.StartedAt.Before(start) {
			start = p.StartedAt
		}
		if p.EndedAt.After(end) {
			end = p.EndedAt
		}
	}
	var ticks []time.Time
	for t := start; !t.After(end); t = t.Add(timelineGranularity) {
		ticks = append(ticks, t)
	}
	return ticks
}

func activeAt(problems []Problem, t time.Time) []Problem {
	var active []Problem
	for _, p := range problems {
		if !t.Before(p.StartedAt) && !t.After(p.EndedAt) {
			active = append(active, p)
		}
	}
	return active
}

// Detect runs every detection rule over buckets/resources and returns the
// merged result.
func Detect(buckets []PerformanceBucket, resources []ResourceSample) []Problem {
	var all []Problem
	all = append(all, DetectResponseTimeSpikes(buckets)...)
	all = append(all, DetectVUSTPSMismatch(buckets)...)
	all = append(all, DetectErrorRateSurges(buckets)...)
	all = append(all, DetectCPUOverload(buckets, resources)...)
	all = append(all, DetectMemoryExhaustion(buckets, resources)...)
	all = append(all, DetectOOMCorrelation(buckets, resources)...)
	return Merge(all)
}

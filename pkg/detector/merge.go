package detector

import (
	"sort"
	"time"
)

const adjacencyTolerance = 5 * time.Second

// Merge collapses overlapping or near-adjacent same-type problems into one,
// taking the union of intervals, the higher severity, the max confidence,
// and the union of evidence.
func Merge(problems []Problem) []Problem {
	byType := map[ProblemType][]Problem{}
	for _, p := range problems {
		byType[p.ProblemType] = append(byType[p.ProblemType], p)
	}

	var merged []Problem
	for _, group := range byType {
		sort.Slice(group, func(i, j int) bool { return group[i].StartedAt.Before(group[j].StartedAt) })

		current := group[0]
		for _, next := range group[1:] {
			if !next.StartedAt.After(current.EndedAt.Add(adjacencyTolerance)) {
				current = mergeTwo(current, next)
				continue
			}
			merged = append(merged, current)
			current = next
		}
		merged = append(merged, current)
	}

	sort.Slice(merged, func(i, j int) bool {
		if severityRank[merged[i].Severity] != severityRank[merged[j].Severity] {
			return severityRank[merged[i].Severity] > severityRank[merged[j].Severity]
		}
		return merged[i].StartedAt.Before(merged[j].StartedAt)
	})
	return merged
}

func mergeTwo(a, b Problem) Problem {
	out := a
	if b.StartedAt.Before(out.StartedAt) {
		out.StartedAt = b.StartedAt
	}
	if b.EndedAt.After(out.EndedAt) {
		out.EndedAt = b.EndedAt
	}
	out.DurationSeconds = out.EndedAt.Sub(out.StartedAt).Seconds()
	out.Severity = higherSeverity(a.Severity, b.Severity)
	if b.Confidence > out.Confidence {
		out.Confidence = b.Confidence
	}
	out.DetectedEvidence = append(append([]string{}, a.DetectedEvidence...), b.DetectedEvidence...)
	if out.MetricDetails == nil {
		out.MetricDetails = map[string]float64{}
	}
	for k, v := range b.MetricDetails {
		out.MetricDetails[k] = v
	}
	out.AIPromptContext = a.RootCauseDescription + " " + b.RootCauseDescription
	return out
}

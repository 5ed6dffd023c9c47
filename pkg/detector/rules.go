package detector

import (
	"fmt"
	"math"
	"time"
)

const (
	responseTimeIncreaseThreshold = 2.0  // 200%
	responseTimeMinMs             = 100.0
	vusIncreaseThreshold          = 0.30
	tpsStagnationThreshold        = 0.10
	vusMonotonicRatio             = 0.80
	highCPUThreshold              = 80.0
	highMemoryThreshold           = 85.0
	errorRateSpikeThreshold       = 5.0
	memoryDropThreshold           = 0.30
	timeMatchTolerance            = 5 * time.Second
	oomEvidenceWindow             = 45 * time.Second
)

// DetectResponseTimeSpikes flags sustained response-time surges against a
// baseline drawn from the first 5 buckets.
func DetectResponseTimeSpikes(buckets []PerformanceBucket) []Problem {
	if len(buckets) < 10 {
		return nil
	}
	baseline := meanOf(buckets[:5], func(b PerformanceBucket) float64 { return b.AvgResponseTime })
	if baseline <= 0 {
		return nil
	}

	const windowSize = 4
	var problems []Problem
	for start := 5; start+windowSize <= len(buckets); start += windowSize / 2 {
		window := buckets[start : start+windowSize]
		windowMean := meanOf(window, func(b PerformanceBucket) float64 { return b.AvgResponseTime })
		increase := (windowMean - baseline) / baseline

		if windowMean <= responseTimeMinMs || increase <= responseTimeIncreaseThreshold {
			continue
		}

		severity := SeverityWarning
		if increase > 3.0 {
			severity = SeverityCritical
		}

		problems = append(problems, Problem{
			ProblemType:          ResponseTimeSpike,
			Severity:             severity,
			Confidence:           confidenceFromMargin(increase-responseTimeIncreaseThreshold, responseTimeIncreaseThreshold),
			StartedAt:            window[0].Timestamp,
			EndedAt:              window[len(window)-1].Timestamp,
			DurationSeconds:      window[len(window)-1].Timestamp.Sub(window[0].Timestamp).Seconds(),
			RootCauseDescription: fmt.Sprintf("Average response time rose to %.0fms, %.0f%% above the %.0fms baseline.", windowMean, increase*100, baseline),
			DetectedEvidence:     []string{fmt.Sprintf("baseline=%.0fms window_mean=%.0fms increase=%.0f%%", baseline, windowMean, increase*100)},
			PerformanceImpact:    "Requests are taking substantially longer to complete than at test start.",
			MetricDetails:        map[string]float64{"baseline_ms": baseline, "window_mean_ms": windowMean, "increase_percent": increase * 100},
		})
	}
	return problems
}

// DetectVUSTPSMismatch flags windows where virtual users keep climbing but
// throughput has stopped following them — a saturation signature.
func DetectVUSTPSMismatch(buckets []PerformanceBucket) []Problem {
	const windowSize = 6
	var problems []Problem
	for start := 0; start+windowSize <= len(buckets); start++ {
		window := buckets[start : start+windowSize]
		vusStart, vusEnd := window[0].VUs, window[len(window)-1].VUs
		tpsStart, tpsEnd := window[0].TPS, window[len(window)-1].TPS
		if vusStart <= 0 || tpsStart <= 0 {
			continue
		}

		vusIncrease := vusEnd/vusStart - 1
		tpsChange := tpsEnd/tpsStart - 1
		if vusIncrease <= vusIncreaseThreshold || tpsChange >= tpsStagnationThreshold {
			continue
		}

		nonDecreasing := 0
		for i := 1; i < len(window); i++ {
			if window[i].VUs >= window[i-1].VUs {
				nonDecreasing++
			}
		}
		if float64(nonDecreasing)/float64(len(window)-1) < vusMonotonicRatio {
			continue
		}

		severity := SeverityWarning
		if vusIncrease > 0.60 {
			severity = SeverityCritical
		}

		problems = append(problems, Problem{
			ProblemType:          VUSTPSMismatch,
			Severity:             severity,
			Confidence:           confidenceFromMargin(vusIncrease-vusIncreaseThreshold, vusIncreaseThreshold),
			StartedAt:            window[0].Timestamp,
			EndedAt:              window[len(window)-1].Timestamp,
			DurationSeconds:      window[len(window)-1].Timestamp.Sub(window[0].Timestamp).Seconds(),
			RootCauseDescription: fmt.Sprintf("Virtual users grew %.0f%% while throughput changed only %.0f%%, suggesting the system under test has saturated.", vusIncrease*100, tpsChange*100),
			DetectedEvidence:     []string{fmt.Sprintf("vus %.0f->%.0f tps %.0f->%.0f", vusStart, vusEnd, tpsStart, tpsEnd)},
			PerformanceImpact:    "Additional load is not converting into additional completed requests.",
			MetricDetails:        map[string]float64{"vus_increase_percent": vusIncrease * 100, "tps_change_percent": tpsChange * 100},
		})
	}
	return problems
}

// DetectErrorRateSurges flags windows where the error rate climbs well past
// an early-test baseline.
func DetectErrorRateSurges(buckets []PerformanceBucket) []Problem {
	baselineCount := int(math.Ceil(float64(len(buckets)) / 3))
	if baselineCount < 3 {
		baselineCount = 3
	}
	if baselineCount > len(buckets) {
		return nil
	}
	baseline := meanOf(buckets[:baselineCount], func(b PerformanceBucket) float64 { return b.ErrorRate })

	const windowSize = 6
	var problems []Problem
	for start := 0; start+windowSize <= len(buckets); start += windowSize / 2 {
		window := buckets[start : start+windowSize]
		windowMean := meanOf(window, func(b PerformanceBucket) float64 { return b.ErrorRate })

		threshold := math.Max(3*baseline, errorRateSpikeThreshold)
		if windowMean <= threshold || windowMean <= baseline+1 {
			continue
		}

		severity := SeverityWarning
		if windowMean > 15 {
			severity = SeverityCritical
		} else if windowMean <= 8 {
			severity = SeverityNormal
		}

		problems = append(problems, Problem{
			ProblemType:          ErrorRateSurge,
			Severity:             severity,
			Confidence:           confidenceFromMargin(windowMean-threshold, threshold-baseline+1e-9),
			StartedAt:            window[0].Timestamp,
			EndedAt:              window[len(window)-1].Timestamp,
			DurationSeconds:      window[len(window)-1].Timestamp.Sub(window[0].Timestamp).Seconds(),
			RootCauseDescription: fmt.Sprintf("Error rate rose to %.1f%%, against a %.1f%% baseline.", windowMean, baseline),
			DetectedEvidence:     []string{fmt.Sprintf("baseline=%.1f%% window_mean=%.1f%%", baseline, windowMean)},
			PerformanceImpact:    "A growing share of requests are failing.",
			MetricDetails:        map[string]float64{"baseline_percent": baseline, "window_mean_percent": windowMean},
		})
	}
	return problems
}

// DetectCPUOverload time-matches performance buckets to resource samples and
// flags sustained high CPU correlated with degraded latency.
func DetectCPUOverload(buckets []PerformanceBucket, resources []ResourceSample) []Problem {
	return detectResourceCorrelation(buckets, resources, CPUOverload, highCPUThreshold,
		func(s ResourceSample) float64 { return s.CPUPercent },
		func(mean float64) bool { return mean >= highCPUThreshold },
		func(b PerformanceBucket) float64 { return b.AvgResponseTime },
		200,
		"CPU usage stayed at %.0f%% while average latency held at 200ms or above, suggesting CPU saturation is driving the slowdown.",
		"Compute is the limiting resource; requests queue behind saturated CPU.")
}

// DetectMemoryExhaustion time-matches performance buckets to resource
// samples and flags sustained high memory correlated with rising errors.
func DetectMemoryExhaustion(buckets []PerformanceBucket, resources []ResourceSample) []Problem {
	return detectResourceCorrelation(buckets, resources, MemoryExhaustion, highMemoryThreshold,
		func(s ResourceSample) float64 { return s.MemoryPercent },
		func(mean float64) bool { return mean >= highMemoryThreshold },
		func(b PerformanceBucket) float64 { return b.ErrorRate },
		errorRateSpikeThreshold,
		"Memory usage stayed at %.0f%% while the error rate climbed, suggesting memory pressure is causing failures.",
		"Memory is close to its limit; the pod is likely shedding requests or about to be OOM-killed.")
}

func detectResourceCorrelation(
	buckets []PerformanceBucket,
	resources []ResourceSample,
	problemType ProblemType,
	severityHighWaterMark float64,
	metric func(ResourceSample) float64,
	resourceCondition func(mean float64) bool,
	perfMetric func(PerformanceBucket) float64,
	perfThreshold float64,
	rootCauseFormat string,
	impact string,
) []Problem {
	const windowSize = 6
	if len(buckets) < windowSize || len(resources) == 0 {
		return nil
	}

	matched := make([]float64, len(buckets))
	haveMatch := make([]bool, len(buckets))
	for i, b := range buckets {
		best, ok := nearestSample(resources, b.Timestamp, timeMatchTolerance)
		if ok {
			matched[i] = metric(best)
			haveMatch[i] = true
		}
	}

	var problems []Problem
	for start := 0; start+windowSize <= len(buckets); start += windowSize / 2 {
		window := buckets[start : start+windowSize]
		var sum float64
		matchedCount := 0
		perfMean := meanOf(window, perfMetric)
		for i := start; i < start+windowSize; i++ {
			if haveMatch[i] {
				sum += matched[i]
				matchedCount++
			}
		}
		if matchedCount == 0 {
			continue
		}
		resourceMean := sum / float64(matchedCount)
		if !resourceCondition(resourceMean) || perfMean < perfThreshold {
			continue
		}

		severity := SeverityWarning
		if resourceMean >= 95 {
			severity = SeverityCritical
		}

		problems = append(problems, Problem{
			ProblemType:          problemType,
			Severity:             severity,
			Confidence:           confidenceFromMargin(resourceMean-severityHighWaterMark, 20),
			StartedAt:            window[0].Timestamp,
			EndedAt:              window[len(window)-1].Timestamp,
			DurationSeconds:      window[len(window)-1].Timestamp.Sub(window[0].Timestamp).Seconds(),
			RootCauseDescription: fmt.Sprintf(rootCauseFormat, resourceMean),
			DetectedEvidence:     []string{fmt.Sprintf("resource_mean=%.0f%% matched_samples=%d/%d", resourceMean, matchedCount, windowSize)},
			PerformanceImpact:    impact,
			MetricDetails:        map[string]float64{"resource_mean_percent": resourceMean},
		})
	}
	return problems
}

// DetectOOMCorrelation scans each pod's memory series for a sharp drop and
// emits one critical problem per pod if an error spike's timestamp falls
// within oomEvidenceWindow of the drop — the signature of a kernel OOM kill.
func DetectOOMCorrelation(buckets []PerformanceBucket, resources []ResourceSample) []Problem {
	byPod := map[string][]ResourceSample{}
	for _, s := range resources {
		byPod[s.Pod] = append(byPod[s.Pod], s)
	}

	errorSpikes := findErrorSpikes(buckets)

	var problems []Problem
	for pod, samples := range byPod {
		drop, ok := findMemoryDrop(samples)
		if !ok {
			continue
		}
		for _, spike := range errorSpikes {
			if absDuration(spike.Sub(drop.timestamp)) <= oomEvidenceWindow {
				problems = append(problems, Problem{
					ProblemType:          OutOfMemoryKill,
					Severity:             SeverityCritical,
					Confidence:           0.9,
					StartedAt:            drop.timestamp,
					EndedAt:              spike,
					DurationSeconds:      absDuration(spike.Sub(drop.timestamp)).Seconds(),
					RootCauseDescription: fmt.Sprintf("Pod %s's memory usage dropped %.0f%% just before an error spike, consistent with an out-of-memory kill.", pod, drop.dropPercent*100),
					DetectedEvidence:     []string{fmt.Sprintf("pod=%s memory_drop=%.0f%% error_spike_at=%s", pod, drop.dropPercent*100, spike.Format(time.RFC3339))},
					PerformanceImpact:    "The pod was likely killed and restarted mid-test, dropping in-flight requests.",
					PodName:              pod,
					MetricDetails:        map[string]float64{"memory_drop_percent": drop.dropPercent * 100},
				})
				break
			}
		}
	}
	return problems
}

type memoryDrop struct {
	timestamp   time.Time
	dropPercent float64
}

func findMemoryDrop(samples []ResourceSample) (memoryDrop, bool) {
	if len(samples) < 10 {
		return memoryDrop{}, false
	}
	for i := 5; i+5 <= len(samples); i++ {
		pre := meanOfSamples(samples[i-5 : i])
		post := meanOfSamples(samples[i : i+5])
		if pre <= 0 {
			continue
		}
		drop := (pre - post) / pre
		if drop >= memoryDropThreshold {
			return memoryDrop{timestamp: samples[i].Timestamp, dropPercent: drop}, true
		}
	}
	return memoryDrop{}, false
}

func findErrorSpikes(buckets []PerformanceBucket) []time.Time {
	var spikes []time.Time
	for i := 1; i < len(buckets); i++ {
		increment := buckets[i].ErrorRate - buckets[i-1].ErrorRate
		if increment >= 3 && buckets[i].ErrorRate >= errorRateSpikeThreshold {
			spikes = append(spikes, buckets[i].Timestamp)
		}
	}
	return spikes
}

func meanOfSamples(samples []ResourceSample) float64 {
	var sum float64
	for _, s := range samples {
		sum += s.MemoryPercent
	}
	return sum / float64(len(samples))
}

func nearestSample(samples []ResourceSample, ts time.Time, tolerance time.Duration) (ResourceSample, bool) {
	var best ResourceSample
	bestDiff := tolerance + 1
	found := false
	for _, s := range samples {
		diff := absDuration(s.Timestamp.Sub(ts))
		if diff <= tolerance && diff < bestDiff {
			best, bestDiff, found = s, diff, true
		}
	}
	return best, found
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func meanOf(buckets []PerformanceBucket, field func(PerformanceBucket) float64) float64 {
	if len(buckets) == 0 {
		return 0
	}
	var sum float64
	for _, b := range buckets {
		sum += field(b)
	}
	return sum / float64(len(buckets))
}

// confidenceFromMargin maps how far a metric exceeded its threshold to a
// [0.5, 1.0] confidence band: right at the threshold is 0.5, double the
// threshold's margin or more saturates at 1.0.
func confidenceFromMargin(value, threshold float64) float64 {
	if threshold <= 0 {
		return 0.75
	}
	ratio := value / threshold
	confidence := 0.5 + 0.5*math.Min(ratio, 1.0)
	return math.Max(0.5, math.Min(confidence, 1.0))
}

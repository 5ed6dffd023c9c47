package analysis

import (
	sharedmath "github.com/team-Plog/plog-sub000/pkg/shared/math"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

const (
	trimLeadingFraction  = 0.10
	trimTrailingFraction = 0.05
	tpsOutlierSigma       = 2.5
)

// SeriesSummary is the noise-trimmed view of a test's time series embedded
// in the LLM prompt: trimmed to the steady-state window and outlier-free on
// TPS, so startup ramp-up and shutdown drain don't skew the narrative.
type SeriesSummary struct {
	SampleCount     int
	AvgTPS          float64
	MinTPS          float64
	MaxTPS          float64
	AvgResponseTime float64
	P95ResponseTime float64
	P99ResponseTime float64
	AvgErrorRate    float64
	MaxErrorRate    float64
	AvgVUs          float64
	MaxVUs          float64
}

// Summarize trims the leading 10% and trailing 5% of points, drops TPS
// outliers beyond 2.5 standard deviations from the trimmed mean, and
// reduces what remains to the aggregates the prompt needs.
func Summarize(points []models.TestMetricsTimeseries) SeriesSummary {
	trimmed := trimEdges(points)
	trimmed = dropTPSOutliers(trimmed)
	if len(trimmed) == 0 {
		return SeriesSummary{}
	}

	tps := fieldValues(trimmed, func(p models.TestMetricsTimeseries) float64 { return p.TPS })
	rt := fieldValues(trimmed, func(p models.TestMetricsTimeseries) float64 { return p.AvgRT })
	p95 := fieldValues(trimmed, func(p models.TestMetricsTimeseries) float64 { return p.P95RT })
	p99 := fieldValues(trimmed, func(p models.TestMetricsTimeseries) float64 { return p.P99RT })
	errRate := fieldValues(trimmed, func(p models.TestMetricsTimeseries) float64 { return p.ErrorRate })
	vus := fieldValues(trimmed, func(p models.TestMetricsTimeseries) float64 { return p.VUs })

	return SeriesSummary{
		SampleCount:     len(trimmed),
		AvgTPS:          sharedmath.Mean(tps),
		MinTPS:          sharedmath.Min(tps),
		MaxTPS:          sharedmath.Max(tps),
		AvgResponseTime: sharedmath.Mean(rt),
		P95ResponseTime: sharedmath.Mean(p95),
		P99ResponseTime: sharedmath.Mean(p99),
		AvgErrorRate:    sharedmath.Mean(errRate),
		MaxErrorRate:    sharedmath.Max(errRate),
		AvgVUs:          sharedmath.Mean(vus),
		MaxVUs:          sharedmath.Max(vus),
	}
}

func trimEdges(points []models.TestMetricsTimeseries) []models.TestMetricsTimeseries {
	n := len(points)
	if n == 0 {
		return points
	}
	lead := int(float64(n) * trimLeadingFraction)
	trail := int(float64(n) * trimTrailingFraction)
	if lead+trail >= n {
		return points
	}
	return points[lead : n-trail]
}

func dropTPSOutliers(points []models.TestMetricsTimeseries) []models.TestMetricsTimeseries {
	if len(points) < 3 {
		return points
	}
	tps := fieldValues(points, func(p models.TestMetricsTimeseries) float64 { return p.TPS })
	mean := sharedmath.Mean(tps)
	stddev := sharedmath.StandardDeviation(tps)
	if stddev == 0 {
		return points
	}

	out := make([]models.TestMetricsTimeseries, 0, len(points))
	for _, p := range points {
		if absFloat(p.TPS-mean) <= tpsOutlierSigma*stddev {
			out = append(out, p)
		}
	}
	return out
}

func fieldValues(points []models.TestMetricsTimeseries, field func(models.TestMetricsTimeseries) float64) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = field(p)
	}
	return out
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

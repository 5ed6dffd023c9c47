// Package metricsstore talks to the Prometheus-compatible metrics store that
// k6 and cAdvisor publish into: http_reqs, http_req_duration, http_req_failed,
// vus, and container resource-usage series.
package metricsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	sharederrors "github.com/team-Plog/plog-sub000/pkg/shared/errors"
	sharedhttp "github.com/team-Plog/plog-sub000/pkg/shared/http"
)

type queryResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []interface{}      `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

// Client is a thin typed wrapper over the Prometheus HTTP API, scoped to the
// measurement/tag schema this system writes and reads.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewClient(endpoint string, timeout time.Duration, log *logrus.Logger) *Client {
	for len(endpoint) > 0 && endpoint[len(endpoint)-1] == '/' {
		endpoint = endpoint[:len(endpoint)-1]
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: sharedhttp.NewClient(sharedhttp.PrometheusClientConfig(timeout)),
		log:        log,
	}
}

// Sample is a single instant-query result, keyed by the series' label set.
type Sample struct {
	Labels map[string]string
	Value  float64
}

func (c *Client) instantQuery(ctx context.Context, query string) ([]Sample, error) {
	u := fmt.Sprintf("%s/api/v1/query?%s", c.endpoint, url.Values{"query": {query}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, sharederrors.Wrapf(err, "build metrics store request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, sharederrors.NetworkError("instant_query", c.endpoint, err)
	}
	defer resp.Body.Close()

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, sharederrors.FailedToWithDetails("decode response", "metricsstore", query, err)
	}
	if decoded.Status != "success" {
		return nil, fmt.Errorf("metrics store returned status: %s", decoded.Status)
	}

	samples := make([]Sample, 0, len(decoded.Data.Result))
	for _, r := range decoded.Data.Result {
		if len(r.Value) != 2 {
			continue
		}
		str, ok := r.Value[1].(string)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil, sharederrors.Wrapf(err, "failed to parse value %q", str)
		}
		samples = append(samples, Sample{Labels: r.Metric, Value: v})
	}
	return samples, nil
}

func sumOf(samples []Sample) float64 {
	var total float64
	for _, s := range samples {
		total += s.Value
	}
	return total
}

// OverallTPS is rate(http_reqs[10s]) summed across scenarios for a job.
func (c *Client) OverallTPS(ctx context.Context, jobName string) (float64, error) {
	q := fmt.Sprintf(`sum(rate(http_reqs{job_name="%s"}[10s]))`, jobName)
	samples, err := c.instantQuery(ctx, q)
	if err != nil {
		return 0, err
	}
	return sumOf(samples), nil
}

// ScenarioTPS is rate(http_reqs[10s]) for one scenario tag.
func (c *Client) ScenarioTPS(ctx context.Context, jobName, scenario string) (float64, error) {
	q := fmt.Sprintf(`sum(rate(http_reqs{job_name="%s",scenario="%s"}[10s]))`, jobName, scenario)
	samples, err := c.instantQuery(ctx, q)
	if err != nil {
		return 0, err
	}
	return sumOf(samples), nil
}

// OverallVUs is the current vus gauge summed across the job.
func (c *Client) OverallVUs(ctx context.Context, jobName string) (float64, error) {
	q := fmt.Sprintf(`sum(vus{job_name="%s"})`, jobName)
	samples, err := c.instantQuery(ctx, q)
	if err != nil {
		return 0, err
	}
	return sumOf(samples), nil
}

// ScenarioVUs is the vus gauge for one scenario tag.
func (c *Client) ScenarioVUs(ctx context.Context, jobName, scenario string) (float64, error) {
	q := fmt.Sprintf(`sum(vus{job_name="%s",scenario="%s"})`, jobName, scenario)
	samples, err := c.instantQuery(ctx, q)
	if err != nil {
		return 0, err
	}
	return sumOf(samples), nil
}

// LatencyQuantiles reads avg/p95/p99 http_req_duration over the last 10s.
type LatencyQuantiles struct {
	Avg float64
	P95 float64
	P99 float64
}

func (c *Client) OverallLatency(ctx context.Context, jobName string) (LatencyQuantiles, error) {
	return c.latency(ctx, fmt.Sprintf(`{job_name="%s"}`, jobName))
}

func (c *Client) ScenarioLatency(ctx context.Context, jobName, scenario string) (LatencyQuantiles, error) {
	return c.latency(ctx, fmt.Sprintf(`{job_name="%s",scenario="%s"}`, jobName, scenario))
}

func (c *Client) latency(ctx context.Context, selector string) (LatencyQuantiles, error) {
	var out LatencyQuantiles

	avgQ := fmt.Sprintf(`avg(avg_over_time(http_req_duration%s[10s]))`, selector)
	avgSamples, err := c.instantQuery(ctx, avgQ)
	if err != nil {
		return out, err
	}
	if len(avgSamples) > 0 {
		out.Avg = avgSamples[0].Value
	}

	p95Q := fmt.Sprintf(`histogram_quantile(0.95, rate(http_req_duration_bucket%s[10s]))`, selector)
	p95Samples, err := c.instantQuery(ctx, p95Q)
	if err != nil {
		return out, err
	}
	if len(p95Samples) > 0 {
		out.P95 = p95Samples[0].Value
	}

	p99Q := fmt.Sprintf(`histogram_quantile(0.99, rate(http_req_duration_bucket%s[10s]))`, selector)
	p99Samples, err := c.instantQuery(ctx, p99Q)
	if err != nil {
		return out, err
	}
	if len(p99Samples) > 0 {
		out.P99 = p99Samples[0].Value
	}

	return out, nil
}

// TotalRequests is SUM(http_reqs) over the whole test window for a job,
// optionally scoped to a scenario tag.
func (c *Client) TotalRequests(ctx context.Context, jobName, scenario string, testWindow time.Duration) (float64, error) {
	q := fmt.Sprintf(`sum(increase(http_reqs%s[%s]))`, scenarioSelector(jobName, scenario), promDuration(testWindow))
	samples, err := c.instantQuery(ctx, q)
	if err != nil || len(samples) == 0 {
		return 0, err
	}
	return samples[0].Value, nil
}

// FailedRequests is SUM(http_reqs where status !~ /^2../) over the whole
// test window for a job, optionally scoped to a scenario tag.
func (c *Client) FailedRequests(ctx context.Context, jobName, scenario string, testWindow time.Duration) (float64, error) {
	selector := scenarioSelector(jobName, scenario)
	// status is part of the selector's label set; drop the trailing "}" to
	// append a regex-negated status matcher.
	withStatus := selector[:len(selector)-1] + `,status!~"2.."}`
	q := fmt.Sprintf(`sum(increase(http_reqs%s[%s]))`, withStatus, promDuration(testWindow))
	samples, err := c.instantQuery(ctx, q)
	if err != nil || len(samples) == 0 {
		return 0, err
	}
	return samples[0].Value, nil
}

// DurationStats is avg/min/max/p50/p95/p99 of http_req_duration over the
// whole test window.
type DurationStats struct {
	Avg, Min, Max, P50, P95, P99 float64
}

// OverallDurationStats aggregates http_req_duration over the full test
// interval for a job.
func (c *Client) OverallDurationStats(ctx context.Context, jobName string, testWindow time.Duration) (DurationStats, error) {
	return c.durationStats(ctx, fmt.Sprintf(`{job_name="%s"}`, jobName), testWindow)
}

// ScenarioDurationStats aggregates http_req_duration over the full test
// interval for one scenario tag.
func (c *Client) ScenarioDurationStats(ctx context.Context, jobName, scenario string, testWindow time.Duration) (DurationStats, error) {
	return c.durationStats(ctx, fmt.Sprintf(`{job_name="%s",scenario="%s"}`, jobName, scenario), testWindow)
}

func (c *Client) durationStats(ctx context.Context, selector string, testWindow time.Duration) (DurationStats, error) {
	var out DurationStats
	rng := promDuration(testWindow)

	scalar := func(query string) (float64, error) {
		samples, err := c.instantQuery(ctx, query)
		if err != nil || len(samples) == 0 {
			return 0, err
		}
		return samples[0].Value, nil
	}

	var err error
	if out.Avg, err = scalar(fmt.Sprintf(`avg(avg_over_time(http_req_duration%s[%s]))`, selector, rng)); err != nil {
		return out, err
	}
	if out.Min, err = scalar(fmt.Sprintf(`min(min_over_time(http_req_duration%s[%s]))`, selector, rng)); err != nil {
		return out, err
	}
	if out.Max, err = scalar(fmt.Sprintf(`max(max_over_time(http_req_duration%s[%s]))`, selector, rng)); err != nil {
		return out, err
	}
	if out.P50, err = scalar(fmt.Sprintf(`histogram_quantile(0.50, rate(http_req_duration_bucket%s[%s]))`, selector, rng)); err != nil {
		return out, err
	}
	if out.P95, err = scalar(fmt.Sprintf(`histogram_quantile(0.95, rate(http_req_duration_bucket%s[%s]))`, selector, rng)); err != nil {
		return out, err
	}
	if out.P99, err = scalar(fmt.Sprintf(`histogram_quantile(0.99, rate(http_req_duration_bucket%s[%s]))`, selector, rng)); err != nil {
		return out, err
	}
	return out, nil
}

// OverallErrorRate is sum(rate(http_req_failed)) / sum(rate(http_reqs)).
func (c *Client) OverallErrorRate(ctx context.Context, jobName string) (float64, error) {
	return c.errorRate(ctx, fmt.Sprintf(`{job_name="%s"}`, jobName))
}

func (c *Client) ScenarioErrorRate(ctx context.Context, jobName, scenario string) (float64, error) {
	return c.errorRate(ctx, fmt.Sprintf(`{job_name="%s",scenario="%s"}`, jobName, scenario))
}

func (c *Client) errorRate(ctx context.Context, selector string) (float64, error) {
	failedQ := fmt.Sprintf(`sum(rate(http_req_failed%s[10s]))`, selector)
	failed, err := c.instantQuery(ctx, failedQ)
	if err != nil {
		return 0, err
	}

	totalQ := fmt.Sprintf(`sum(rate(http_reqs%s[10s]))`, selector)
	total, err := c.instantQuery(ctx, totalQ)
	if err != nil {
		return 0, err
	}

	totalVal := sumOf(total)
	if totalVal == 0 {
		return 0, nil
	}
	return sumOf(failed) / totalVal, nil
}

// ContainerCPUUsage returns cadvisor_metrics cpu usage samples for a pod.
func (c *Client) ContainerCPUUsage(ctx context.Context, pod string) ([]Sample, error) {
	q := fmt.Sprintf(`cadvisor_metrics{pod="%s",__name__="container_cpu_usage_seconds_total"}`, pod)
	return c.instantQuery(ctx, q)
}

// ContainerMemoryUsage returns cadvisor_metrics memory working-set samples for a pod.
func (c *Client) ContainerMemoryUsage(ctx context.Context, pod string) ([]Sample, error) {
	q := fmt.Sprintf(`cadvisor_metrics{pod="%s",__name__="container_memory_working_set_bytes"}`, pod)
	return c.instantQuery(ctx, q)
}

// TimePoint is one sample of a range query, already reduced to a single
// scalar by the query's own aggregation (sum/avg/...).
type TimePoint struct {
	Timestamp time.Time
	Value     float64
}

type rangeResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Values [][2]interface{}  `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// RangeSamples runs a PromQL range query and returns the first series'
// points. Callers are expected to pass an already-aggregated query (e.g.
// `sum(rate(http_reqs{...}[10s]))`) so there is exactly one series.
func (c *Client) RangeSamples(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]TimePoint, error) {
	vals := url.Values{
		"query": {query},
		"start": {strconv.FormatInt(start.Unix(), 10)},
		"end":   {strconv.FormatInt(end.Unix(), 10)},
		"step":  {strconv.FormatFloat(step.Seconds(), 'f', -1, 64)},
	}
	u := fmt.Sprintf("%s/api/v1/query_range?%s", c.endpoint, vals.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, sharederrors.Wrapf(err, "build metrics store range request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, sharederrors.NetworkError("range_query", c.endpoint, err)
	}
	defer resp.Body.Close()

	var decoded rangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, sharederrors.FailedToWithDetails("decode response", "metricsstore", query, err)
	}
	if decoded.Status != "success" {
		return nil, fmt.Errorf("metrics store returned status: %s", decoded.Status)
	}
	if len(decoded.Data.Result) == 0 {
		return nil, nil
	}

	points := make([]TimePoint, 0, len(decoded.Data.Result[0].Values))
	for _, v := range decoded.Data.Result[0].Values {
		ts, ok := v[0].(float64)
		if !ok {
			continue
		}
		str, ok := v[1].(string)
		if !ok {
			continue
		}
		val, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil, sharederrors.Wrapf(err, "failed to parse range value %q", str)
		}
		points = append(points, TimePoint{Timestamp: time.Unix(int64(ts), 0).UTC(), Value: val})
	}
	return points, nil
}

// SeriesBounds finds the first and last timestamp http_reqs has data for a
// job, scanning back up to lookback. Returns ok=false if the series is empty.
func (c *Client) SeriesBounds(ctx context.Context, jobName string, lookback time.Duration, now time.Time) (start, end time.Time, ok bool, err error) {
	q := fmt.Sprintf(`sum(http_reqs{job_name="%s"})`, jobName)
	points, err := c.RangeSamples(ctx, q, now.Add(-lookback), now, 5*time.Second)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if len(points) == 0 {
		return time.Time{}, time.Time{}, false, nil
	}
	return points[0].Timestamp, points[len(points)-1].Timestamp, true, nil
}

// BucketedTPS is SUM(http_reqs)/bucket GROUP BY time(bucket), one point per
// window, for the optional scenario tag.
func (c *Client) BucketedTPS(ctx context.Context, jobName, scenario string, start, end time.Time, bucket time.Duration) ([]TimePoint, error) {
	selector := scenarioSelector(jobName, scenario)
	q := fmt.Sprintf(`sum(rate(http_reqs%s[%s]))`, selector, promDuration(bucket))
	return c.RangeSamples(ctx, q, start, end, bucket)
}

// BucketedErrorRate is MEAN(http_req_failed) GROUP BY time(bucket), percent.
func (c *Client) BucketedErrorRate(ctx context.Context, jobName, scenario string, start, end time.Time, bucket time.Duration) ([]TimePoint, error) {
	selector := scenarioSelector(jobName, scenario)
	q := fmt.Sprintf(`avg(avg_over_time(http_req_failed%s[%s])) * 100`, selector, promDuration(bucket))
	return c.RangeSamples(ctx, q, start, end, bucket)
}

// BucketedVUs is LAST(vus) GROUP BY time(bucket).
func (c *Client) BucketedVUs(ctx context.Context, jobName, scenario string, start, end time.Time, bucket time.Duration) ([]TimePoint, error) {
	selector := scenarioSelector(jobName, scenario)
	q := fmt.Sprintf(`sum(vus%s)`, selector)
	return c.RangeSamples(ctx, q, start, end, bucket)
}

// BucketedLatency is MEAN/p95/p99 of http_req_duration GROUP BY time(bucket).
func (c *Client) BucketedLatency(ctx context.Context, jobName, scenario string, start, end time.Time, bucket time.Duration) (avg, p95, p99 []TimePoint, err error) {
	selector := scenarioSelector(jobName, scenario)
	avgQ := fmt.Sprintf(`avg(avg_over_time(http_req_duration%s[%s]))`, selector, promDuration(bucket))
	if avg, err = c.RangeSamples(ctx, avgQ, start, end, bucket); err != nil {
		return nil, nil, nil, err
	}
	p95Q := fmt.Sprintf(`histogram_quantile(0.95, rate(http_req_duration_bucket%s[%s]))`, selector, promDuration(bucket))
	if p95, err = c.RangeSamples(ctx, p95Q, start, end, bucket); err != nil {
		return nil, nil, nil, err
	}
	p99Q := fmt.Sprintf(`histogram_quantile(0.99, rate(http_req_duration_bucket%s[%s]))`, selector, promDuration(bucket))
	if p99, err = c.RangeSamples(ctx, p99Q, start, end, bucket); err != nil {
		return nil, nil, nil, err
	}
	return avg, p95, p99, nil
}

// BucketedContainerCPU is non_negative_derivative(cpu_usage_seconds,1s)*1000,
// in millicores, GROUP BY time(bucket), for one pod.
func (c *Client) BucketedContainerCPU(ctx context.Context, pod string, start, end time.Time, bucket time.Duration) ([]TimePoint, error) {
	q := fmt.Sprintf(`rate(cadvisor_metrics{pod="%s",__name__="container_cpu_usage_seconds_total"}[%s]) * 1000`, pod, promDuration(bucket))
	return c.RangeSamples(ctx, q, start, end, bucket)
}

// BucketedContainerMemory is MEAN(container_memory_working_set_bytes)/1048576
// (MB) GROUP BY time(bucket), for one pod.
func (c *Client) BucketedContainerMemory(ctx context.Context, pod string, start, end time.Time, bucket time.Duration) ([]TimePoint, error) {
	q := fmt.Sprintf(`avg(avg_over_time(cadvisor_metrics{pod="%s",__name__="container_memory_working_set_bytes"}[%s])) / 1048576`, pod, promDuration(bucket))
	return c.RangeSamples(ctx, q, start, end, bucket)
}

func scenarioSelector(jobName, scenario string) string {
	if scenario == "" {
		return fmt.Sprintf(`{job_name="%s"}`, jobName)
	}
	return fmt.Sprintf(`{job_name="%s",scenario="%s"}`, jobName, scenario)
}

func promDuration(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs <= 0 {
		secs = 1
	}
	return fmt.Sprintf("%ds", secs)
}

// HealthCheck mirrors Prometheus's /-/healthy convention.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/-/healthy", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sharederrors.NetworkError("health_check", c.endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}

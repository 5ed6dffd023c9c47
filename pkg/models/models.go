// Package models defines the persistent domain entities described in the
// data model: projects, OpenAPI specs, server infrastructure, test runs, and
// their time series.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Project struct {
	ID          int64  `db:"id" json:"id"`
	Title       string `db:"title" json:"title"`
	Summary     string `db:"summary" json:"summary"`
	Description string `db:"description" json:"description"`
}

type OpenAPISpec struct {
	ID        int64  `db:"id" json:"id"`
	ProjectID int64  `db:"project_id" json:"project_id"`
	Title     string `db:"title" json:"title"`
	Version   string `db:"version" json:"version"`
	BaseURL   string `db:"base_url" json:"base_url"`
}

type OpenAPISpecVersion struct {
	ID         int64     `db:"id" json:"id"`
	SpecID     int64     `db:"spec_id" json:"spec_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	CommitHash *string   `db:"commit_hash" json:"commit_hash,omitempty"`
	IsActive   bool      `db:"is_active" json:"is_active"`
}

type ParameterKind string

const (
	ParameterKindPath        ParameterKind = "path"
	ParameterKindQuery       ParameterKind = "query"
	ParameterKindRequestBody ParameterKind = "requestBody"
)

type Endpoint struct {
	ID              int64      `db:"id" json:"id"`
	VersionID       int64      `db:"version_id" json:"version_id"`
	Path            string     `db:"path" json:"path"`
	Method          string     `db:"method" json:"method"`
	Summary         string     `db:"summary" json:"summary"`
	Description     string     `db:"description" json:"description"`
	TagName         string     `db:"tag_name" json:"tag_name"`
	TagDescription  string     `db:"tag_description" json:"tag_description"`
	Parameters      []Parameter `db:"-" json:"parameters,omitempty"`
}

type Parameter struct {
	ID           int64         `db:"id" json:"id"`
	EndpointID   int64         `db:"endpoint_id" json:"endpoint_id"`
	Kind         ParameterKind `db:"kind" json:"kind"`
	Name         string        `db:"name" json:"name"`
	Required     bool          `db:"required" json:"required"`
	ValueType    string        `db:"value_type" json:"value_type"`
	Title        string        `db:"title" json:"title"`
	Description  string        `db:"description" json:"description"`
	DefaultValue string        `db:"default_value" json:"default_value,omitempty"`
}

type ResourceType string

const (
	ResourceTypePod         ResourceType = "Pod"
	ResourceTypeDeployment  ResourceType = "Deployment"
	ResourceTypeStatefulSet ResourceType = "StatefulSet"
	ResourceTypeDaemonSet   ResourceType = "DaemonSet"
	ResourceTypeReplicaSet  ResourceType = "ReplicaSet"
)

type ServiceType string

const (
	ServiceTypeServer   ServiceType = "SERVER"
	ServiceTypeDatabase ServiceType = "DATABASE"
)

type ServerInfra struct {
	ID           int64        `db:"id" json:"id"`
	SpecID       *int64       `db:"spec_id" json:"spec_id,omitempty"`
	Namespace    string       `db:"namespace" json:"namespace"`
	Name         string       `db:"name" json:"name"`
	GroupName    string       `db:"group_name" json:"group_name"`
	ResourceType ResourceType `db:"resource_type" json:"resource_type"`
	Environment  string       `db:"environment" json:"environment"`
	ServiceType  ServiceType  `db:"service_type" json:"service_type"`
	Labels       map[string]string `db:"-" json:"labels,omitempty"`
}

type TestHistory struct {
	ID                   int64      `db:"id" json:"id"`
	ProjectID            int64      `db:"project_id" json:"project_id"`
	Title                string     `db:"title" json:"title"`
	Description          string     `db:"description" json:"description"`
	TargetTPS            *float64   `db:"target_tps" json:"target_tps,omitempty"`
	TestedAt             time.Time  `db:"tested_at" json:"tested_at"`
	JobName              string     `db:"job_name" json:"job_name"`
	ScriptFilename       string     `db:"script_filename" json:"script_filename"`
	IsCompleted          bool       `db:"is_completed" json:"is_completed"`
	CompletedAt          *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	IsAnalysisCompleted  bool       `db:"is_analysis_completed" json:"is_analysis_completed"`
	AnalysisCompletedAt  *time.Time `db:"analysis_completed_at" json:"analysis_completed_at,omitempty"`

	AvgTPS *float64 `db:"avg_tps" json:"avg_tps,omitempty"`
	MinTPS *float64 `db:"min_tps" json:"min_tps,omitempty"`
	MaxTPS *float64 `db:"max_tps" json:"max_tps,omitempty"`

	AvgResponseTime *float64 `db:"avg_response_time" json:"avg_response_time,omitempty"`
	MinResponseTime *float64 `db:"min_response_time" json:"min_response_time,omitempty"`
	MaxResponseTime *float64 `db:"max_response_time" json:"max_response_time,omitempty"`
	P50ResponseTime *float64 `db:"p50_response_time" json:"p50_response_time,omitempty"`
	P95ResponseTime *float64 `db:"p95_response_time" json:"p95_response_time,omitempty"`
	P99ResponseTime *float64 `db:"p99_response_time" json:"p99_response_time,omitempty"`

	MinErrorRate *float64 `db:"min_error_rate" json:"min_error_rate,omitempty"`
	MaxErrorRate *float64 `db:"max_error_rate" json:"max_error_rate,omitempty"`
	AvgErrorRate *float64 `db:"avg_error_rate" json:"avg_error_rate,omitempty"`

	MinVUs *float64 `db:"min_vus" json:"min_vus,omitempty"`
	MaxVUs *float64 `db:"max_vus" json:"max_vus,omitempty"`
	AvgVUs *float64 `db:"avg_vus" json:"avg_vus,omitempty"`

	TotalRequests  *int64   `db:"total_requests" json:"total_requests,omitempty"`
	FailedRequests *int64   `db:"failed_requests" json:"failed_requests,omitempty"`
	TestDuration   *float64 `db:"test_duration" json:"test_duration,omitempty"`
}

// OverallErrorRate is derived on read, never stored.
func (t *TestHistory) OverallErrorRate() float64 {
	if t.TotalRequests == nil || *t.TotalRequests == 0 || t.FailedRequests == nil {
		return 0.0
	}
	return float64(*t.FailedRequests) / float64(*t.TotalRequests)
}

type StageConfig struct {
	Duration string `json:"duration"`
	Target   int    `json:"target"`
}

type ScenarioHistory struct {
	ID             int64         `db:"id" json:"id"`
	TestHistoryID  int64         `db:"test_history_id" json:"test_history_id"`
	EndpointID     int64         `db:"endpoint_id" json:"endpoint_id"`
	Name           string        `db:"name" json:"name"`
	ScenarioTag    string        `db:"scenario_tag" json:"scenario_tag"`
	Executor       string        `db:"executor" json:"executor"`
	ThinkTime      string        `db:"think_time" json:"think_time"`
	Stages         []StageConfig `db:"-" json:"stages,omitempty"`

	AvgTPS          *float64 `db:"avg_tps" json:"avg_tps,omitempty"`
	MinTPS          *float64 `db:"min_tps" json:"min_tps,omitempty"`
	MaxTPS          *float64 `db:"max_tps" json:"max_tps,omitempty"`
	AvgResponseTime *float64 `db:"avg_response_time" json:"avg_response_time,omitempty"`
	AvgErrorRate    *float64 `db:"avg_error_rate" json:"avg_error_rate,omitempty"`
}

type StageHistory struct {
	ID         int64  `db:"id" json:"id"`
	ScenarioID int64  `db:"scenario_id" json:"scenario_id"`
	Duration   string `db:"duration" json:"duration"`
	Target     int    `db:"target" json:"target"`
}

// TestMetricsTimeseries is a 10s bucketed performance sample.
// ScenarioHistoryID == nil denotes the overall (job-wide) series.
type TestMetricsTimeseries struct {
	ID                int64     `db:"id" json:"id"`
	TestHistoryID     int64     `db:"test_history_id" json:"test_history_id"`
	ScenarioHistoryID *int64    `db:"scenario_history_id" json:"scenario_history_id,omitempty"`
	Timestamp         time.Time `db:"timestamp" json:"timestamp"`
	TPS               float64   `db:"tps" json:"tps"`
	ErrorRate         float64   `db:"error_rate" json:"error_rate"`
	VUs               float64   `db:"vus" json:"vus"`
	AvgRT             float64   `db:"avg_rt" json:"avg_rt"`
	P95RT             float64   `db:"p95_rt" json:"p95_rt"`
	P99RT             float64   `db:"p99_rt" json:"p99_rt"`
}

type MetricType string

const (
	MetricTypeCPU    MetricType = "cpu"
	MetricTypeMemory MetricType = "memory"
)

// TestResourceTimeseries is a 10s bucketed container sample.
type TestResourceTimeseries struct {
	ID                int64      `db:"id" json:"id"`
	ScenarioHistoryID int64      `db:"scenario_history_id" json:"scenario_history_id"`
	ServerInfraID     int64      `db:"server_infra_id" json:"server_infra_id"`
	Timestamp         time.Time  `db:"timestamp" json:"timestamp"`
	MetricType        MetricType `db:"metric_type" json:"metric_type"`
	Unit              string     `db:"unit" json:"unit"`
	Value             float64    `db:"value" json:"value"`
	CPURequest        float64    `db:"cpu_req" json:"cpu_req"`
	CPULimit          float64    `db:"cpu_limit" json:"cpu_limit"`
	MemRequestMB      float64    `db:"mem_req_mb" json:"mem_req_mb"`
	MemLimitMB        float64    `db:"mem_limit_mb" json:"mem_limit_mb"`
}

type SubAnalysis struct {
	Summary          string   `json:"summary"`
	DetailedAnalysis string   `json:"detailed_analysis"`
	Insights         []string `json:"insights"`
	PerformanceScore float64  `json:"performance_score"`
}

// Value marshals SubAnalysis to JSON for the analysis_result JSONB column.
func (s SubAnalysis) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan unmarshals the analysis_result JSONB column into SubAnalysis.
func (s *SubAnalysis) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = SubAnalysis{}
		return nil
	default:
		return fmt.Errorf("unsupported type %T for SubAnalysis", src)
	}
}

type AnalysisHistory struct {
	ID            int64     `db:"id" json:"id"`
	PrimaryTestID int64     `db:"primary_test_id" json:"primary_test_id"`
	Category      string    `db:"category" json:"category"`
	AnalysisType  string    `db:"analysis_type" json:"analysis_type"`
	AnalysisResult SubAnalysis `db:"analysis_result" json:"analysis_result"`
	ModelName     string    `db:"model_name" json:"model_name"`
	AnalyzedAt    time.Time `db:"analyzed_at" json:"analyzed_at"`
}

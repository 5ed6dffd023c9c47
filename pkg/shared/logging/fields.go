// Package logging builds structured logrus.Fields for the control plane so
// every component logs the same field names for the same concepts.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Fields is a chainable builder around logrus.Fields.
type Fields map[string]interface{}

// NewFields starts an empty field set.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(resourceType, name string) Fields {
	f["resource_type"] = resourceType
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	f["request_id"] = id
	return f
}

func (f Fields) TraceID(id string) Fields {
	f["trace_id"] = id
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// ToLogrus converts to logrus.Fields for WithFields.
func (f Fields) ToLogrus() logrus.Fields {
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DatabaseFields builds fields for a State Store operation.
func DatabaseFields(operation, table string) Fields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields builds fields for an inbound or outbound HTTP call.
func HTTPFields(method, url string, statusCode int) Fields {
	return NewFields().Component("http").Method(method).URL(url).StatusCode(statusCode)
}

// WorkflowFields builds fields for a scheduled job/controller run.
func WorkflowFields(operation, workflowID string) Fields {
	return NewFields().Component("workflow").Operation(operation).Resource("workflow", workflowID)
}

// KubernetesFields builds fields for a cluster-client operation.
func KubernetesFields(operation, resourceType, name, namespace string) Fields {
	f := NewFields().Component("kubernetes").Operation(operation).Resource(resourceType, name)
	if namespace != "" {
		f["namespace"] = namespace
	}
	return f
}

// AIFields builds fields for an LLM call.
func AIFields(operation, model string) Fields {
	f := NewFields().Component("ai").Operation(operation)
	f["model"] = model
	return f
}

// MetricsFields builds fields for a recorded metric sample.
func MetricsFields(operation, metricName string, value float64) Fields {
	f := NewFields().Component("metrics").Operation(operation)
	f["metric_name"] = metricName
	f["value"] = value
	return f
}

// SecurityFields builds fields for an authn/authz event.
func SecurityFields(operation, subject string) Fields {
	f := NewFields().Component("security").Operation(operation)
	f["subject"] = subject
	return f
}

// PerformanceFields builds fields for a timed operation's outcome.
func PerformanceFields(operation string, duration time.Duration, success bool) Fields {
	f := NewFields().Component("performance").Operation(operation).Duration(duration)
	f["success"] = success
	return f
}

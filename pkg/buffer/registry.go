package buffer

import (
	"sync"
	"time"
)

// Registry holds one Buffer per (job, pod, metric) triple, the process-local
// resource-metrics-buffer map the realtime stream writes into and the
// cleanup controller periodically sweeps.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]map[string]map[string]*Buffer
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]map[string]map[string]*Buffer)}
}

// GetOrCreate returns the buffer for (job, pod, metric), creating it with
// metricType on first use.
func (r *Registry) GetOrCreate(job, pod, metric string, metricType MetricType, opts ...Option) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()

	pods, ok := r.jobs[job]
	if !ok {
		pods = make(map[string]map[string]*Buffer)
		r.jobs[job] = pods
	}
	metrics, ok := pods[pod]
	if !ok {
		metrics = make(map[string]*Buffer)
		pods[pod] = metrics
	}
	buf, ok := metrics[metric]
	if !ok {
		buf = New(metric, metricType, opts...)
		metrics[metric] = buf
	}
	return buf
}

// Jobs lists every job currently tracked.
func (r *Registry) Jobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.jobs))
	for job := range r.jobs {
		out = append(out, job)
	}
	return out
}

// DropJob removes every buffer tracked for job.
func (r *Registry) DropJob(job string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, job)
}

// IsEmpty reports whether job has no pods with any samples.
func (r *Registry) IsEmpty(job string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pods, ok := r.jobs[job]
	if !ok {
		return true
	}
	for _, metrics := range pods {
		for _, buf := range metrics {
			if buf.CurrentState().CurrentValue != nil {
				return false
			}
		}
	}
	return true
}

// LastSampleTime returns the most recent sample timestamp anywhere in job's
// buffer map, and false if there are none.
func (r *Registry) LastSampleTime(job string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pods, ok := r.jobs[job]
	if !ok {
		return time.Time{}, false
	}
	var latest time.Time
	found := false
	for _, metrics := range pods {
		for _, buf := range metrics {
			if ts, ok := buf.LastTimestamp(); ok {
				if !found || ts.After(latest) {
					latest = ts
					found = true
				}
			}
		}
	}
	return latest, found
}

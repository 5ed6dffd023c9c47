// Package cleanup periodically evicts stale process-local state: expired
// pod-spec cache entries and resource-metrics buffers for jobs that have
// gone quiet, with an RSS-pressure fallback that clears buffers more
// aggressively when the process is close to its memory ceiling.
package cleanup

import (
	"context"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/team-Plog/plog-sub000/pkg/buffer"
	"github.com/team-Plog/plog-sub000/pkg/podspec"
)

const (
	defaultInterval           = 60 * time.Second
	defaultMemoryCheckInterval = 5 * time.Minute
	staleBufferAge            = 30 * time.Minute
	rssPressureThresholdBytes = 1 << 30 // 1 GiB
	rssPressureBufferAge      = 15 * time.Minute
)

// ReadRSS reports the process's current resident set size in bytes. The
// default implementation reads Go's own heap/sys stats, which tracks actual
// process memory closely enough to gate the RSS-pressure rule without an
// OS-specific /proc read.
func ReadRSS() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Sys
}

// Controller sweeps the pod-spec cache and buffer registry on independent
// ticks.
type Controller struct {
	cache               *podspec.Cache
	buffers             *buffer.Registry
	interval            time.Duration
	memoryCheckInterval time.Duration
	readRSS             func() uint64
	log                 *logrus.Logger
}

func NewController(cache *podspec.Cache, buffers *buffer.Registry, interval, memoryCheckInterval time.Duration, log *logrus.Logger) *Controller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if memoryCheckInterval <= 0 {
		memoryCheckInterval = defaultMemoryCheckInterval
	}
	return &Controller{
		cache:               cache,
		buffers:             buffers,
		interval:            interval,
		memoryCheckInterval: memoryCheckInterval,
		readRSS:             ReadRSS,
		log:                 log,
	}
}

// Run ticks the cache/buffer sweep on interval and the RSS check on
// memoryCheckInterval until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	sweepTicker := time.NewTicker(c.interval)
	defer sweepTicker.Stop()
	memTicker := time.NewTicker(c.memoryCheckInterval)
	defer memTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweepTicker.C:
			c.Sweep()
		case <-memTicker.C:
			c.CheckMemoryPressure()
		}
	}
}

// Sweep drops expired pod-spec cache entries and any job buffer map that is
// either entirely empty or has gone stale for longer than staleBufferAge.
func (c *Controller) Sweep() {
	evicted := c.cache.Cleanup()
	if evicted > 0 {
		c.log.WithField("evicted", evicted).Debug("pod-spec cache cleanup")
	}

	for _, job := range c.buffers.Jobs() {
		if c.buffers.IsEmpty(job) {
			c.buffers.DropJob(job)
			continue
		}
		if last, ok := c.buffers.LastSampleTime(job); ok && time.Since(last) > staleBufferAge {
			c.buffers.DropJob(job)
			c.log.WithField("job", job).Info("dropped stale resource buffer map")
		}
	}
}

// CheckMemoryPressure force-drops any buffer map idle for more than
// rssPressureBufferAge when readRSS exceeds rssPressureThresholdBytes.
func (c *Controller) CheckMemoryPressure() {
	if c.readRSS() <= rssPressureThresholdBytes {
		return
	}
	for _, job := range c.buffers.Jobs() {
		last, ok := c.buffers.LastSampleTime(job)
		if !ok || time.Since(last) > rssPressureBufferAge {
			c.buffers.DropJob(job)
			c.log.WithField("job", job).Warn("force-dropped resource buffer map under memory pressure")
		}
	}
}

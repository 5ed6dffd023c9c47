// Package podspec caches normalized pod resource specs behind a short TTL so
// the job controller and realtime stream don't re-query the cluster API
// on every metrics tick. The cache is intentionally process-local: sharing it
// across replicas would require coordinating invalidation on every pod
// restart, which the single-writer job controller doesn't need.
package podspec

import (
	"context"
	"sync"
	"time"

	"github.com/team-Plog/plog-sub000/pkg/k8s"
)

const defaultTTL = 10 * time.Minute

type entry struct {
	specs     []k8s.PodResourceSpec
	expiresAt time.Time
}

// Cache is a thread-safe TTL map from "namespace/pod" to its normalized
// resource specs.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	client  k8s.Client
}

func New(client k8s.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		client:  client,
	}
}

func key(namespace, pod string) string {
	return namespace + "/" + pod
}

// Get returns the cached specs if still fresh, fetching and normalizing from
// the cluster otherwise.
func (c *Cache) Get(ctx context.Context, namespace, pod string) ([]k8s.PodResourceSpec, error) {
	k := key(namespace, pod)

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expiresAt) {
		return e.specs, nil
	}

	p, err := c.client.GetPod(ctx, namespace, pod)
	if err != nil {
		return nil, err
	}
	specs := k8s.NormalizePodResourceSpecs(p)

	c.mu.Lock()
	c.entries[k] = entry{specs: specs, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return specs, nil
}

// Invalidate drops a single cached entry, used when a pod is known to have
// been recreated with a different spec.
func (c *Cache) Invalidate(namespace, pod string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(namespace, pod))
}

// Cleanup evicts all expired entries and returns how many were removed.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Status reports cache size for debug endpoints.
type Status struct {
	Entries int `json:"entries"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

func (c *Cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{Entries: len(c.entries), TTLSeconds: c.ttl.Seconds()}
}

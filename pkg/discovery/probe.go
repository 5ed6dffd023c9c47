// Package discovery implements the cluster discovery controller: a 30s-tick
// task that diffs known services/pods against the cluster, classifies new
// pods, and probes newly-seen services for an OpenAPI document.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
)

// swaggerPaths is the fixed set of paths probed against every candidate base
// URL when looking for an OpenAPI document.
var swaggerPaths = []string{
	"/v3/api-docs", "/swagger-ui", "/swagger-ui/index.html",
	"/api/swagger", "/swagger", "/docs", "/api/docs",
	"/openapi.json", "/swagger.json", "/v1/api-docs",
}

var swaggerKeywords = []string{
	"swagger", "openapi", "api documentation", "swagger-ui", "redoc", "rapidoc",
}

const probeConcurrency = 5

// Prober probes a set of candidate base URLs for an OpenAPI/swagger document,
// rewriting NodePort localhost hits back to their cluster-internal DNS name.
type Prober struct {
	httpClient *http.Client
}

func NewProber(httpClient *http.Client) *Prober {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 3 * time.Second}
	}
	return &Prober{httpClient: httpClient}
}

// ProbeResult is an accepted swagger URL, and the rewritten base_url to
// persist for NodePort discoveries.
type ProbeResult struct {
	URL     string
	BaseURL string
}

// ProbeService tries every swagger path against clusterURL (the in-cluster
// DNS name) and, when the service is NodePort, against each of
// localhost:nodePort too. A hit found via localhost is reported with its
// base_url rewritten to the cluster-internal DNS form.
func (p *Prober) ProbeService(ctx context.Context, serviceName, namespace, clusterURL string, nodePorts []int32, servicePort int32) []ProbeResult {
	var results []ProbeResult
	var mu sync.Mutex

	found := p.checkEndpoints(ctx, clusterURL)
	for _, url := range found {
		mu.Lock()
		results = append(results, ProbeResult{URL: url, BaseURL: clusterURL})
		mu.Unlock()
	}

	for _, nodePort := range nodePorts {
		localURL := fmt.Sprintf("http://localhost:%d", nodePort)
		localFound := p.checkEndpoints(ctx, localURL)
		if len(localFound) == 0 {
			continue
		}
		rewritten := fmt.Sprintf("%s.%s.svc.cluster.local:%d", serviceName, namespace, servicePort)
		for _, url := range localFound {
			results = append(results, ProbeResult{URL: url, BaseURL: rewritten})
		}
	}

	return results
}

// checkEndpoints fans swaggerPaths out against baseURL, limited to
// probeConcurrency in-flight requests, and returns every accepted full URL.
func (p *Prober) checkEndpoints(ctx context.Context, baseURL string) []string {
	sem := make(chan struct{}, probeConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var hits []string

	for _, path := range swaggerPaths {
		url := baseURL + path
		wg.Add(1)
		sem <- struct{}{}
		go func(url string) {
			defer wg.Done()
			defer func() { <-sem }()
			if p.checkURL(ctx, url) {
				mu.Lock()
				hits = append(hits, url)
				mu.Unlock()
			}
		}(url)
	}
	wg.Wait()
	return hits
}

func (p *Prober) checkURL(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return false
	}
	lower := bytes.ToLower(body)

	for _, keyword := range swaggerKeywords {
		if bytes.Contains(lower, []byte(keyword)) {
			return true
		}
	}

	content := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(content, "application/json") {
		for _, key := range []string{"\"swagger\"", "\"openapi\"", "\"info\""} {
			if bytes.Contains(lower, []byte(key)) {
				return true
			}
		}
	}
	return false
}

// NodePorts extracts NodePort values from a Service, empty when the service
// is not of type NodePort.
func NodePorts(svc *corev1.Service) []int32 {
	if svc.Spec.Type != corev1.ServiceTypeNodePort {
		return nil
	}
	ports := make([]int32, 0, len(svc.Spec.Ports))
	for _, p := range svc.Spec.Ports {
		if p.NodePort != 0 {
			ports = append(ports, p.NodePort)
		}
	}
	return ports
}

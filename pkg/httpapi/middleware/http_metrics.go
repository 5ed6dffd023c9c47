// Package middleware holds chi middleware shared across the HTTP surface.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	plogmetrics "github.com/team-Plog/plog-sub000/pkg/httpapi/metrics"
)

// HTTPMetrics times every request and records it against m, labelled by the
// matched chi route pattern rather than the raw path so that path
// parameters (job names, numeric IDs) don't each mint their own series.
func HTTPMetrics(m *plogmetrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			endpoint := routePattern(r)
			status := strconv.Itoa(ww.Status())
			m.HTTPRequestDuration.WithLabelValues(endpoint, r.Method, status).Observe(time.Since(start).Seconds())
			m.HTTPRequestsTotal.WithLabelValues(endpoint, r.Method, status).Inc()
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

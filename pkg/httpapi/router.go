package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/team-Plog/plog-sub000/pkg/analysis"
	"github.com/team-Plog/plog-sub000/pkg/buffer"
	"github.com/team-Plog/plog-sub000/pkg/cleanup"
	plogmiddleware "github.com/team-Plog/plog-sub000/pkg/httpapi/middleware"
	plogmetrics "github.com/team-Plog/plog-sub000/pkg/httpapi/metrics"
	"github.com/team-Plog/plog-sub000/pkg/podspec"
	"github.com/team-Plog/plog-sub000/pkg/stream"
)

// Server holds every dependency the HTTP surface's handlers read through.
// Construct one per process and mount Router() under net/http.
type Server struct {
	log     *logrus.Logger
	metrics *plogmetrics.Metrics

	store             Pinger
	analysisStore     AnalysisStore
	analysisFullStore analysis.Store
	llm               LLMHealthChecker

	cache   *podspec.Cache
	buffers *buffer.Registry
	cleanup *cleanup.Controller
	emitter *stream.Emitter

	corsAllowedOrigins []string
}

// Config collects the dependencies NewServer needs. AllowedOrigins empty
// means "allow any origin", matching a single-tenant cluster-internal
// deployment where the dashboard is the only caller.
type Config struct {
	Store             Pinger
	AnalysisStore      AnalysisStore
	AnalysisFullStore  analysis.Store
	LLM                LLMHealthChecker
	Cache              *podspec.Cache
	Buffers            *buffer.Registry
	Cleanup            *cleanup.Controller
	Emitter            *stream.Emitter
	Metrics            *plogmetrics.Metrics
	AllowedOrigins     []string
	Log                *logrus.Logger
}

func NewServer(cfg Config) *Server {
	return &Server{
		log:                cfg.Log,
		metrics:            cfg.Metrics,
		store:              cfg.Store,
		analysisStore:      cfg.AnalysisStore,
		analysisFullStore:  cfg.AnalysisFullStore,
		llm:                cfg.LLM,
		cache:              cfg.Cache,
		buffers:            cfg.Buffers,
		cleanup:            cfg.Cleanup,
		emitter:            cfg.Emitter,
		corsAllowedOrigins: cfg.AllowedOrigins,
	}
}

// Router builds the chi mux: request logging/recovery, CORS, HTTP metrics,
// then the SSE, analysis, and debug route groups from spec.md §6.
func (s *Server) Router() http.Handler {
	origins := s.corsAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		MaxAge:           300,
	}))
	if s.metrics != nil {
		r.Use(plogmiddleware.HTTPMetrics(s.metrics))
	}

	r.Get("/sse/k6data/{job_name}", s.handleSSE)

	r.Route("/analysis", func(r chi.Router) {
		r.Get("/history/{test_history_id}", s.handleAnalysisHistory)
		r.Get("/health", s.handleAnalysisHealth)
	})

	r.Route("/debug", func(r chi.Router) {
		r.Get("/cache/status", s.handleCacheStatus)
		r.Post("/cache/cleanup", s.handleCacheCleanup)
		r.Get("/bottleneck-analysis/{test_history_id}", s.handleBottleneckAnalysis)
	})

	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

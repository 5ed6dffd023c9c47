// Command plog-server runs the control plane: cluster discovery, the job
// controller, the cleanup sweep, the realtime SSE stream, the analysis
// orchestrator, and the HTTP surface that fronts all of it.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/team-Plog/plog-sub000/internal/config"
	"github.com/team-Plog/plog-sub000/pkg/analysis"
	"github.com/team-Plog/plog-sub000/pkg/buffer"
	"github.com/team-Plog/plog-sub000/pkg/cleanup"
	"github.com/team-Plog/plog-sub000/pkg/discovery"
	"github.com/team-Plog/plog-sub000/pkg/httpapi"
	plogmetrics "github.com/team-Plog/plog-sub000/pkg/httpapi/metrics"
	"github.com/team-Plog/plog-sub000/pkg/jobcontroller"
	"github.com/team-Plog/plog-sub000/pkg/k8s"
	"github.com/team-Plog/plog-sub000/pkg/metricsstore"
	"github.com/team-Plog/plog-sub000/pkg/openapi"
	"github.com/team-Plog/plog-sub000/pkg/podspec"
	plogshttp "github.com/team-Plog/plog-sub000/pkg/shared/http"
	"github.com/team-Plog/plog-sub000/pkg/store"
	"github.com/team-Plog/plog-sub000/pkg/stream"
)

const configPathEnv = "PLOG_CONFIG_PATH"
const defaultConfigPath = "config.yaml"
const shutdownGrace = 15 * time.Second

func main() {
	log := newLogger()

	cfg, err := config.Load(configPath())
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	applyLogConfig(log, cfg.Logging)

	location, err := time.LoadLocation(cfg.Scheduler.DisplayTimezone)
	if err != nil {
		log.WithError(err).WithField("timezone", cfg.Scheduler.DisplayTimezone).Warn("invalid display timezone, defaulting to UTC")
		location = time.UTC
	}

	db, err := store.Open(store.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Name,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to state store")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to apply state store migrations")
	}
	repo := store.New(db, log)

	k8sClient, err := k8s.NewClient(cfg.Kubernetes, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build Kubernetes client")
	}

	metrics := metricsstore.NewClient(cfg.MetricsStore.Endpoint, cfg.MetricsStore.Timeout, log)
	cache := podspec.New(k8sClient, 0)
	buffers := buffer.NewRegistry()

	llmClient := analysis.NewAnthropicClient(analysis.Config{
		ModelName:   cfg.LLM.Model,
		BaseURL:     cfg.LLM.Endpoint,
		APIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		Temperature: float64(cfg.LLM.Temperature),
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, log)
	orchestrator := analysis.NewOrchestrator(repo, llmClient, log)

	prober := discovery.NewProber(plogshttp.NewDefaultClient())
	parser := openapi.NewParser(plogshttp.NewDefaultClient())
	discoveryController := discovery.NewController(k8sClient, repo, prober, parser, cfg.Scheduler.DiscoveryInterval, log)

	jobController := jobcontroller.NewController(k8sClient, metrics, repo, cache, orchestrator,
		cfg.Scheduler.JobPollInterval, cfg.Scheduler.AutoDeleteJobs, location, log)

	cleanupController := cleanup.NewController(cache, buffers, cfg.Scheduler.CleanupInterval, 5*time.Minute, log)

	emitter := stream.NewEmitter(metrics, repo, cache, buffers, location, log)

	registry := prometheus.NewRegistry()
	appMetrics := plogmetrics.NewWithRegistry(registry)

	server := httpapi.NewServer(httpapi.Config{
		Store:             repo,
		AnalysisStore:     repo,
		AnalysisFullStore: repo,
		LLM:               llmClient,
		Cache:             cache,
		Buffers:           buffers,
		Cleanup:           cleanupController,
		Emitter:           emitter,
		Metrics:           appMetrics,
		Log:               log,
	})

	var wg sync.WaitGroup
	runTicked(&wg, "discovery", appMetrics, log, func() error {
		discoveryController.Run(ctx, cfg.Kubernetes.Namespace)
		return nil
	})
	runTicked(&wg, "jobcontroller", appMetrics, log, func() error {
		jobController.Run(ctx, cfg.Kubernetes.Namespace)
		return nil
	})
	runTicked(&wg, "cleanup", appMetrics, log, func() error {
		cleanupController.Run(ctx)
		return nil
	})

	httpServer := &http.Server{Addr: ":" + cfg.Server.Port, Handler: server.Router()}
	metricsServer := &http.Server{
		Addr:    ":" + cfg.Server.MetricsPort,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		log.WithField("port", cfg.Server.Port).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()
	go func() {
		defer wg.Done()
		log.WithField("port", cfg.Server.MetricsPort).Info("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped unexpectedly")
		}
	}()

	waitForShutdown(log)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	wg.Wait()
	log.Info("shutdown complete")
}

func configPath() string {
	if v := os.Getenv(configPathEnv); v != "" {
		return v
	}
	return defaultConfigPath
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	return log
}

func applyLogConfig(log *logrus.Logger, cfg config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	}
	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{})
	}
}

// runTicked starts a controller's own Run loop on its own goroutine,
// observing a single "tick" against appMetrics when it returns (Run itself
// only returns on shutdown, so this mostly exists to keep the three
// controllers' startup/shutdown logging uniform).
func runTicked(wg *sync.WaitGroup, name string, appMetrics *plogmetrics.Metrics, log *logrus.Logger, run func() error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.WithField("controller", name).Info("controller starting")
		err := run()
		appMetrics.TickObserved(name, err)
		log.WithField("controller", name).Info("controller stopped")
	}()
}

func waitForShutdown(log *logrus.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	log.WithField("signal", received.String()).Info("shutdown signal received")
}

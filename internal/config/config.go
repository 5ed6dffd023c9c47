// Package config loads and validates the control plane's configuration: a
// YAML file on disk, overridden by environment variables, then validated.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP surface (health, debug, SSE, analysis API).
type ServerConfig struct {
	Port        string `yaml:"port"`
	MetricsPort string `yaml:"metrics_port"`
}

// SchedulerConfig controls the discovery/job/cleanup controller tick cadence.
type SchedulerConfig struct {
	DiscoveryInterval time.Duration `yaml:"discovery_interval"`
	JobPollInterval   time.Duration `yaml:"job_poll_interval"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxConcurrentJobs int           `yaml:"max_concurrent_jobs"`
	AutoDeleteJobs    bool          `yaml:"auto_delete_jobs"`
	DisplayTimezone   string        `yaml:"display_timezone"`
	TestTTL           time.Duration `yaml:"test_ttl"`
}

// MetricsStoreConfig points at the Prometheus-compatible time-series store.
type MetricsStoreConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// KubernetesConfig selects the cluster context/namespace to observe.
type KubernetesConfig struct {
	Context   string `yaml:"context"`
	Namespace string `yaml:"namespace"`
}

// LLMConfig configures the analysis orchestrator's model caller.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Endpoint    string        `yaml:"endpoint"`
	Timeout     time.Duration `yaml:"timeout"`
	RetryCount  int           `yaml:"retry_count"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// LoggingConfig tunes logrus's output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig points the state store at its Postgres instance.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// Config is the top-level configuration tree.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	MetricsStore MetricsStoreConfig `yaml:"metrics_store"`
	Kubernetes   KubernetesConfig   `yaml:"kubernetes"`
	LLM          LLMConfig          `yaml:"llm"`
	Database     DatabaseConfig     `yaml:"database"`
	Logging      LoggingConfig      `yaml:"logging"`
}

const (
	defaultServerPort        = "8080"
	defaultMetricsPort       = "9090"
	defaultDiscoveryInterval = 30 * time.Second
	defaultJobPollInterval   = 15 * time.Second
	defaultCleanupInterval   = 5 * time.Minute
	defaultMaxConcurrentJobs = 5
	defaultDisplayTimezone   = "Asia/Seoul"
	defaultTestTTL           = 7 * 24 * time.Hour
	defaultMetricsTimeout    = 10 * time.Second
	defaultNamespace         = "default"
	defaultLLMProvider       = "anthropic"
	defaultLLMTimeout        = 60 * time.Second
	defaultLLMMaxTokens      = 2000
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultDBPort            = 5432
	defaultDBSSLMode         = "disable"
)

func applyDefaults(c *Config) {
	if c.Server.Port == "" {
		c.Server.Port = defaultServerPort
	}
	if c.Server.MetricsPort == "" {
		c.Server.MetricsPort = defaultMetricsPort
	}
	if c.Scheduler.DiscoveryInterval == 0 {
		c.Scheduler.DiscoveryInterval = defaultDiscoveryInterval
	}
	if c.Scheduler.JobPollInterval == 0 {
		c.Scheduler.JobPollInterval = defaultJobPollInterval
	}
	if c.Scheduler.CleanupInterval == 0 {
		c.Scheduler.CleanupInterval = defaultCleanupInterval
	}
	if c.Scheduler.MaxConcurrentJobs == 0 {
		c.Scheduler.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if c.Scheduler.DisplayTimezone == "" {
		c.Scheduler.DisplayTimezone = defaultDisplayTimezone
	}
	if c.Scheduler.TestTTL == 0 {
		c.Scheduler.TestTTL = defaultTestTTL
	}
	if c.MetricsStore.Timeout == 0 {
		c.MetricsStore.Timeout = defaultMetricsTimeout
	}
	if c.Kubernetes.Namespace == "" {
		c.Kubernetes.Namespace = defaultNamespace
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultLLMProvider
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = defaultLLMTimeout
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Database.Port == 0 {
		c.Database.Port = defaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = defaultDBSSLMode
	}
}

// Load reads path, parses it as YAML, applies environment overrides,
// defaults missing values, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(config)

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func loadFromEnv(c *Config) error {
	if v := os.Getenv("LLM_ENDPOINT"); v != "" {
		c.LLM.Endpoint = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("METRICS_STORE_ENDPOINT"); v != "" {
		c.MetricsStore.Endpoint = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		c.Server.MetricsPort = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KUBERNETES_NAMESPACE"); v != "" {
		c.Kubernetes.Namespace = v
	}
	if v := os.Getenv("MAX_CONCURRENT_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MAX_CONCURRENT_JOBS: %w", err)
		}
		c.Scheduler.MaxConcurrentJobs = n
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT: %w", err)
		}
		c.Database.Port = n
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	return nil
}

var supportedLLMProviders = map[string]bool{
	"anthropic": true,
	"localai":   true,
}

func validate(c *Config) error {
	if c.MetricsStore.Endpoint == "" {
		return fmt.Errorf("metrics store endpoint is required")
	}
	if !supportedLLMProviders[c.LLM.Provider] {
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM model is required for provider %s", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0.0 || c.LLM.Temperature > 1.0 {
		return fmt.Errorf("LLM temperature must be between 0.0 and 1.0")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM max tokens must be greater than 0")
	}
	if c.Kubernetes.Namespace == "" {
		return fmt.Errorf("Kubernetes namespace is required")
	}
	if c.Scheduler.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("max concurrent jobs must be greater than 0")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

package goSession

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration. Obtain one from [DefaultConfig] or
// [LoadConfigFile] and adjust it before handing it to [Builder.WithConfig].
type Config struct {
	Endpoint  EndpointConfig  `yaml:"endpoint"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Storage   StorageConfig   `yaml:"storage"`
	Sync      SyncConfig      `yaml:"sync"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

/*
====================================
ENDPOINT CONFIG
====================================
*/

// EndpointConfig points at the GraphQL API that serves both authentication
// mutations and data operations.
type EndpointConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

/*
====================================
RENEWAL CONFIG
====================================
*/

// RefreshConfig bounds one network renewal.
type RefreshConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// SchedulerConfig drives pre-emptive renewal. A renewal is triggered once
// the access credential has less than Margin left; the check runs every
// Interval.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Margin   time.Duration `yaml:"margin"`
}

/*
====================================
PIPELINE CONFIG
====================================
*/

// PipelineConfig tunes credential injection and fault interception.
type PipelineConfig struct {
	// MaxRetries caps replays of one call after credential faults.
	MaxRetries          int    `yaml:"max_retries"`
	AuthorizationHeader string `yaml:"authorization_header"`
	TenantHeader        string `yaml:"tenant_header"`
	RequestIDHeader     string `yaml:"request_id_header"`
}

/*
====================================
STORAGE / SYNC CONFIG
====================================
*/

// StorageConfig names the persisted renewal credential record. FilePath
// selects the file backend when no backend is supplied to the builder.
type StorageConfig struct {
	Key      string `yaml:"key"`
	FilePath string `yaml:"file_path"`
}

// SyncConfig toggles mirroring of other instances' changes.
type SyncConfig struct {
	Enabled bool `yaml:"enabled"`
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the recommended settings. Endpoint.URL is left
// empty and must be filled in.
func DefaultConfig() Config {
	return Config{
		Endpoint: EndpointConfig{
			Timeout: 30 * time.Second,
		},
		Refresh: RefreshConfig{
			Timeout: 15 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Interval: 60 * time.Second,
			Margin:   5 * time.Minute,
		},
		Pipeline: PipelineConfig{
			MaxRetries:          2,
			AuthorizationHeader: "Authorization",
			TenantHeader:        "X-Tenant-ID",
			RequestIDHeader:     "X-Request-ID",
		},
		Storage: StorageConfig{
			Key: "erp.session",
		},
		Sync: SyncConfig{
			Enabled: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	// Endpoint
	if strings.TrimSpace(c.Endpoint.URL) == "" {
		return errors.New("Endpoint URL must be set")
	}
	u, err := url.Parse(c.Endpoint.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("Endpoint URL must be an absolute http(s) URL")
	}
	if c.Endpoint.Timeout <= 0 {
		return errors.New("Endpoint Timeout must be > 0")
	}

	// Renewal
	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh Timeout must be > 0")
	}
	if c.Scheduler.Enabled {
		if c.Scheduler.Interval <= 0 {
			return errors.New("Scheduler Interval must be > 0 when enabled")
		}
		if c.Scheduler.Margin <= 0 {
			return errors.New("Scheduler Margin must be > 0 when enabled")
		}
	}

	// Pipeline
	if c.Pipeline.MaxRetries < 0 {
		return errors.New("Pipeline MaxRetries must be >= 0")
	}
	if c.Pipeline.MaxRetries > 10 {
		return errors.New("Pipeline MaxRetries must be <= 10")
	}
	if c.Pipeline.AuthorizationHeader == "" || c.Pipeline.TenantHeader == "" || c.Pipeline.RequestIDHeader == "" {
		return errors.New("Pipeline header names must be non-empty")
	}
	if strings.EqualFold(c.Pipeline.AuthorizationHeader, c.Pipeline.TenantHeader) {
		return errors.New("Pipeline AuthorizationHeader and TenantHeader must differ")
	}

	// Storage
	if strings.TrimSpace(c.Storage.Key) == "" {
		return errors.New("Storage Key must be set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

/*
====================================
FILE / ENV LOADING
====================================
*/

// LoadConfigFile reads a YAML document over [DefaultConfig]. Durations are
// Go duration strings ("90s", "5m"). Missing fields keep their defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrConfigLoad, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrConfigLoad, path, err)
	}
	return cfg, nil
}

// Environment variables read by [ApplyEnv].
const (
	EnvEndpointURL       = "GOSESSION_ENDPOINT_URL"
	EnvEndpointTimeout   = "GOSESSION_ENDPOINT_TIMEOUT"
	EnvRefreshTimeout    = "GOSESSION_REFRESH_TIMEOUT"
	EnvSchedulerEnabled  = "GOSESSION_SCHEDULER_ENABLED"
	EnvSchedulerInterval = "GOSESSION_SCHEDULER_INTERVAL"
	EnvSchedulerMargin   = "GOSESSION_SCHEDULER_MARGIN"
	EnvMaxRetries        = "GOSESSION_PIPELINE_MAX_RETRIES"
	EnvStorageKey        = "GOSESSION_STORAGE_KEY"
	EnvStorageFile       = "GOSESSION_STORAGE_FILE"
	EnvSyncEnabled       = "GOSESSION_SYNC_ENABLED"
	EnvAuditEnabled      = "GOSESSION_AUDIT_ENABLED"
	EnvMetricsEnabled    = "GOSESSION_METRICS_ENABLED"
)

// ApplyEnv overrides cfg from GOSESSION_* variables that are set. Unset or
// empty variables leave the field alone.
func ApplyEnv(cfg *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := GetEnv(name, ""); v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := GetEnv(name, ""); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %v", name, err))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v := GetEnv(name, ""); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %v", name, err))
				return
			}
			*dst = b
		}
	}

	str(EnvEndpointURL, &cfg.Endpoint.URL)
	dur(EnvEndpointTimeout, &cfg.Endpoint.Timeout)
	dur(EnvRefreshTimeout, &cfg.Refresh.Timeout)
	flag(EnvSchedulerEnabled, &cfg.Scheduler.Enabled)
	dur(EnvSchedulerInterval, &cfg.Scheduler.Interval)
	dur(EnvSchedulerMargin, &cfg.Scheduler.Margin)
	if v := GetEnv(EnvMaxRetries, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %v", EnvMaxRetries, err))
		} else {
			cfg.Pipeline.MaxRetries = n
		}
	}
	str(EnvStorageKey, &cfg.Storage.Key)
	str(EnvStorageFile, &cfg.Storage.FilePath)
	flag(EnvSyncEnabled, &cfg.Sync.Enabled)
	flag(EnvAuditEnabled, &cfg.Audit.Enabled)
	flag(EnvMetricsEnabled, &cfg.Metrics.Enabled)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrConfigLoad, errors.Join(errs...))
	}
	return nil
}

// GetEnv returns the value of envVar, or defaultValue when it is unset or
// empty.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

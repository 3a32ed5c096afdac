package config

import (
	"strings"
	"time"

	"github.com/eclipse-pass/depositsvc/internal/telemetry"
	"github.com/eclipse-pass/depositsvc/pkg/store/gormstore"
)

// GetDefaultConfig returns a Config with every field defaulted, for
// use when no config file is present.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
// Zero values (0, "", false, nil) are replaced; explicit values are
// preserved. Repository configurations have no defaults — a
// repository entry with no protocol or packaging dialect is a
// configuration error Validate rejects.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyProfilingDefaults(&cfg.Profiling)
	applyDatabaseDefaults(&cfg.Database)
	applyMetricsDefaults(&cfg.Metrics)
	applyAdminAPIDefaults(&cfg.AdminAPI)
	applyDispatchDefaults(&cfg.Dispatch)
	applyStatusDefaults(&cfg.Status)
	applyAggregateDefaults(&cfg.Aggregate)
	applyIngressDefaults(&cfg.Ingress)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *telemetry.Config) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "depositsvc"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyProfilingDefaults(cfg *telemetry.ProfilingConfig) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "depositsvc"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "inuse_objects"}
	}
}

func applyDatabaseDefaults(cfg *gormstore.Config) {
	cfg.ApplyDefaults()
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyAdminAPIDefaults(cfg *AdminAPIConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8443"
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "depositsvc"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
}

func applyDispatchDefaults(cfg *DispatchConfig) {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
}

// applyStatusDefaults mirrors spec.md §4.9 step 5's retry schedule:
// initial delay 10s, factor 2, cap 1h, total cap 7d.
func applyStatusDefaults(cfg *StatusConfig) {
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 10 * time.Second
	}
	if cfg.Factor == 0 {
		cfg.Factor = 2
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = time.Hour
	}
	if cfg.TotalCap == 0 {
		cfg.TotalCap = 7 * 24 * time.Hour
	}
}

func applyAggregateDefaults(cfg *AggregateConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Minute
	}
}

func applyIngressDefaults(cfg *IngressConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
}

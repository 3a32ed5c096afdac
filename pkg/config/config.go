// Package config loads and validates this service's static
// configuration: ambient concerns (logging, telemetry, database,
// metrics, admin API, scheduler tuning) plus the per-repository
// configuration spec.md §6 describes as "file, one object per
// repository" — transport binding, packaging dialect, and status-term
// mapping. Loading follows the teacher's pkg/config idiom: viper reads
// a YAML file and DEPOSITSVC_-prefixed environment overrides into this
// package's Config, ApplyDefaults fills in the zero-valued fields, and
// Validate runs go-playground/validator/v10 struct-tag rules before
// the caller ever sees the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/eclipse-pass/depositsvc/internal/telemetry"
	"github.com/eclipse-pass/depositsvc/pkg/archiver"
	"github.com/eclipse-pass/depositsvc/pkg/store/gormstore"
)

// Config is this service's top-level configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DEPOSITSVC_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry telemetry.Config `mapstructure:"telemetry" yaml:"telemetry"`

	// Profiling controls continuous Pyroscope profiling.
	Profiling telemetry.ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`

	// ShutdownTimeout bounds how long graceful shutdown waits for the
	// dispatch pool, status resolver, and ingress subscriber to drain.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the record store backend (SQLite or
	// PostgreSQL), reusing pkg/store/gormstore's own config shape.
	Database gormstore.Config `mapstructure:"database" yaml:"database"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// AdminAPI configures the operator-facing HTTP surface (health
	// probes, deposit remediation).
	AdminAPI AdminAPIConfig `mapstructure:"admin_api" yaml:"admin_api"`

	// Dispatch tunes the deposit task worker pool (C8).
	Dispatch DispatchConfig `mapstructure:"dispatch" yaml:"dispatch"`

	// Status tunes the status resolver's retry schedule (C9).
	Status StatusConfig `mapstructure:"status" yaml:"status"`

	// Aggregate tunes the submission-aggregator sweep interval (C10).
	Aggregate AggregateConfig `mapstructure:"aggregate" yaml:"aggregate"`

	// Ingress tunes the event subscriber's worker pool (C11b).
	Ingress IngressConfig `mapstructure:"ingress" yaml:"ingress"`

	// Archiver optionally mirrors every assembled package to an
	// S3-compatible bucket for durable audit retention.
	Archiver archiver.Config `mapstructure:"archiver" yaml:"archiver"`

	// Repositories is the set of repository configurations (spec.md
	// §6), keyed at runtime by RepositoryKey.
	Repositories []RepositoryConfig `mapstructure:"repositories" validate:"dive" yaml:"repositories"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a
	// file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server. When
// Enabled is false, no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// AdminAPIConfig configures the operator HTTP surface (pkg/adminapi).
type AdminAPIConfig struct {
	// ListenAddr is the address the admin API binds to.
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	// OperatorSecret is the HMAC secret bearer tokens are signed and
	// verified with. There is no user account model in this service —
	// a single shared secret authenticates every operator.
	OperatorSecret string `mapstructure:"operator_secret" validate:"required,min=16" yaml:"operator_secret"`

	// Issuer is the JWT issuer claim tokens are checked against.
	Issuer string `mapstructure:"issuer" yaml:"issuer"`

	// TokenTTL is the lifetime of a token minted by the 'depositsvc
	// token issue' command.
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// DispatchConfig tunes pkg/dispatch.PoolConfig.
type DispatchConfig struct {
	QueueSize int `mapstructure:"queue_size" validate:"omitempty,gt=0" yaml:"queue_size"`
	Workers   int `mapstructure:"workers" validate:"omitempty,gt=0" yaml:"workers"`
}

// StatusConfig tunes pkg/status.RetryPolicy (spec.md §4.9 step 5:
// "initial delay 10s, factor 2, cap 1h, total cap 7d").
type StatusConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	Factor       float64       `mapstructure:"factor" validate:"omitempty,gt=1" yaml:"factor"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	TotalCap     time.Duration `mapstructure:"total_cap" yaml:"total_cap"`
}

// AggregateConfig tunes pkg/aggregate.Aggregator (spec.md §4.10:
// "default every 10 min").
type AggregateConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// IngressConfig tunes pkg/ingress.Subscriber.
type IngressConfig struct {
	Workers      int           `mapstructure:"workers" validate:"omitempty,gt=0" yaml:"workers"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout" yaml:"drain_timeout"`
}

// RepositoryConfig is one repository's configuration (spec.md §6).
type RepositoryConfig struct {
	// RepositoryKey identifies this configuration; it is also stored
	// on the corresponding store.Repository row so the running system
	// can look a binding up from a persisted entity.
	RepositoryKey string `mapstructure:"repository_key" validate:"required" yaml:"repository_key"`

	// RepositoryConfigID is an opaque identifier for this configuration
	// version, carried for audit/traceability only.
	RepositoryConfigID string `mapstructure:"repository_config_id" yaml:"repository_config_id"`

	Transport TransportConfig         `mapstructure:"transport" validate:"required" yaml:"transport"`
	Assembly  AssemblySpec            `mapstructure:"assembly" validate:"required" yaml:"assembly"`
	Deposit   RepositoryDepositConfig `mapstructure:"deposit" validate:"required" yaml:"deposit"`
}

// TransportConfig is spec.md §6's transportConfig.
type TransportConfig struct {
	ProtocolBinding ProtocolBinding `mapstructure:"protocol_binding" validate:"required" yaml:"protocol_binding"`

	// AuthRealms lists the credential sets this repository accepts.
	// This service picks the first entry as the active realm — spec.md
	// §6 leaves realm selection open beyond listing them.
	AuthRealms []AuthRealm `mapstructure:"auth_realms" yaml:"auth_realms"`

	// ProtocolSpecific carries dialect-specific overrides (e.g.
	// onBehalfOf for SWORD2) not otherwise modeled here.
	ProtocolSpecific map[string]string `mapstructure:"protocol_specific" yaml:"protocol_specific,omitempty"`
}

// ProtocolBinding is spec.md §6's protocolBinding.
type ProtocolBinding struct {
	// Protocol selects the transport: swordv2, ftp, or filesystem.
	Protocol string `mapstructure:"protocol" validate:"required,oneof=swordv2 ftp filesystem" yaml:"protocol"`

	ServerFQDN    string `mapstructure:"server_fqdn" yaml:"server_fqdn,omitempty"`
	ServerPort    int    `mapstructure:"server_port" validate:"omitempty,min=1,max=65535" yaml:"server_port,omitempty"`
	CollectionURL string `mapstructure:"collection_url" yaml:"collection_url,omitempty"`
	BaseDir       string `mapstructure:"base_dir" yaml:"base_dir,omitempty"`
	Overwrite     bool   `mapstructure:"overwrite" yaml:"overwrite,omitempty"`
	BinaryMode    bool   `mapstructure:"binary_mode" yaml:"binary_mode,omitempty"`
}

// AuthRealm is spec.md §6's authRealms entry.
type AuthRealm struct {
	// Mech selects the authentication mode: userpass, implicit, or
	// reference.
	Mech     string `mapstructure:"mech" validate:"required,oneof=userpass implicit reference" yaml:"mech"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Username string `mapstructure:"username" yaml:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
}

// AssemblySpec is spec.md §6's assemblySpec.
type AssemblySpec struct {
	SpecURI     string   `mapstructure:"spec_uri" validate:"required" yaml:"spec_uri"`
	Compression string   `mapstructure:"compression" validate:"omitempty,oneof=none gzip" yaml:"compression"`
	Archive     string   `mapstructure:"archive" validate:"omitempty,oneof=zip tar" yaml:"archive"`
	Checksums   []string `mapstructure:"checksums" validate:"omitempty,dive,oneof=md5 sha256 sha512" yaml:"checksums"`
}

// RepositoryDepositConfig is spec.md §6's repositoryDepositConfig.
type RepositoryDepositConfig struct {
	DepositProcessing DepositProcessingConfig `mapstructure:"deposit_processing" validate:"required" yaml:"deposit_processing"`
	StatusMapping     StatusMappingConfig     `mapstructure:"status_mapping" yaml:"status_mapping"`
}

// DepositProcessingConfig is spec.md §6's depositProcessing.
type DepositProcessingConfig struct {
	// BeanName selects the packaging dialect: dspace or nihms,
	// matching pkg/assemble/dspace and pkg/assemble/nihms.
	BeanName string `mapstructure:"bean_name" validate:"required,oneof=dspace nihms" yaml:"bean_name"`
}

// StatusMappingConfig is spec.md §6's statusMapping.
type StatusMappingConfig struct {
	Scheme string            `mapstructure:"scheme" yaml:"scheme"`
	Map    map[string]string `mapstructure:"map" validate:"omitempty,dive,oneof=accepted rejected inProgress" yaml:"map"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, translating a missing file into a
// user-friendly instruction to run 'depositsvc init'.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  depositsvc init\n\n"+
				"Or specify a custom config file:\n"+
				"  depositsvc <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  depositsvc init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves cfg to path in YAML format, restricting permissions
// since repository auth realms carry plaintext credentials.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New()

// Validate checks cfg against its struct-tag rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Repositories))
	for _, rc := range cfg.Repositories {
		if seen[rc.RepositoryKey] {
			return fmt.Errorf("config: duplicate repository_key %q", rc.RepositoryKey)
		}
		seen[rc.RepositoryKey] = true
	}

	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DEPOSITSVC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "depositsvc")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "depositsvc")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default
// location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

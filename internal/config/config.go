package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/fluxreg/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "fluxreg.json"

	// DefaultManifest is the default module manifest path.
	DefaultManifest = "fluxreg.hcl"

	// DefaultQueueSize is the async dispatcher queue size.
	DefaultQueueSize = 1024

	// DefaultSnapshotDir is where the file backend writes snapshots.
	DefaultSnapshotDir = ".fluxreg/snapshots"

	// DefaultSnapshotPrefix is the S3 key prefix for snapshots.
	DefaultSnapshotPrefix = "fluxreg/"

	// DefaultNamespace is the Prometheus namespace and tracer name.
	DefaultNamespace = "fluxreg"
)

// Dispatcher modes.
const (
	DispatcherSync  = "sync"
	DispatcherAsync = "async"
)

// Snapshot backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendS3     = "s3"
)

// Config represents the complete fluxreg.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Manifest is the path to the HCL module manifest.
	Manifest string `json:"manifest,omitempty"`

	// Dispatcher controls how action deliveries are scheduled.
	Dispatcher DispatcherConfig `json:"dispatcher,omitempty"`

	// Actions controls action name handling across modules.
	Actions ActionsConfig `json:"actions,omitempty"`

	// Snapshot configures snapshot persistence.
	Snapshot SnapshotConfig `json:"snapshot,omitempty"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Tracing configures OpenTelemetry tracing.
	Tracing TracingConfig `json:"tracing,omitempty"`

	// Log configures the logger.
	Log LogConfig `json:"log,omitempty"`

	configPath string
}

// DispatcherConfig contains dispatcher settings.
type DispatcherConfig struct {
	// Mode is "sync" or "async".
	Mode string `json:"mode,omitempty"`

	// QueueSize bounds the async dispatcher queue.
	QueueSize int `json:"queueSize,omitempty"`
}

// ActionsConfig contains action settings.
type ActionsConfig struct {
	// Policy is "shared" or "exclusive".
	Policy string `json:"policy,omitempty"`
}

// SnapshotConfig contains snapshot storage settings.
type SnapshotConfig struct {
	// Backend is "memory", "file" or "s3".
	Backend string `json:"backend,omitempty"`

	// Dir is the file backend directory.
	Dir string `json:"dir,omitempty"`

	// Bucket is the S3 bucket.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the S3 key prefix.
	Prefix string `json:"prefix,omitempty"`

	// Region is the S3 region.
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint for compatible servers.
	Endpoint string `json:"endpoint,omitempty"`

	// TTL is how long snapshots are kept (e.g., "24h"). Empty keeps them
	// until deleted.
	TTL string `json:"ttl,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	TracerName string `json:"tracerName,omitempty"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `json:"level,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory.
// It looks for fluxreg.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E162").
				WithDetail("No fluxreg.json found in " + filepath.Dir(path)).
				WithSuggestion("Create fluxreg.json or pass --config")
		}
		return nil, errors.New("E160").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E160").
			WithDetail("Failed to parse fluxreg.json: " + err.Error()).
			WithSuggestion("Check that fluxreg.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E160").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E160").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

func (c *Config) applyDefaults() {
	if c.Manifest == "" {
		c.Manifest = DefaultManifest
	}

	if c.Dispatcher.Mode == "" {
		c.Dispatcher.Mode = DispatcherSync
	}
	if c.Dispatcher.QueueSize == 0 {
		c.Dispatcher.QueueSize = DefaultQueueSize
	}

	if c.Actions.Policy == "" {
		c.Actions.Policy = "shared"
	}

	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = BackendFile
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = DefaultSnapshotDir
	}
	if c.Snapshot.Prefix == "" {
		c.Snapshot.Prefix = DefaultSnapshotPrefix
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultNamespace
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Dispatcher.Mode {
	case DispatcherSync, DispatcherAsync:
	default:
		return errors.New("E161").
			WithDetailf("dispatcher.mode %q must be %q or %q", c.Dispatcher.Mode, DispatcherSync, DispatcherAsync)
	}
	if c.Dispatcher.QueueSize < 0 {
		return errors.New("E161").
			WithDetail("dispatcher.queueSize must not be negative")
	}

	switch c.Actions.Policy {
	case "shared", "exclusive":
	default:
		return errors.New("E161").
			WithDetailf("actions.policy %q must be \"shared\" or \"exclusive\"", c.Actions.Policy)
	}

	switch c.Snapshot.Backend {
	case BackendMemory, BackendFile:
	case BackendS3:
		if c.Snapshot.Bucket == "" {
			return errors.New("E161").
				WithDetail("snapshot.bucket is required for the s3 backend")
		}
	default:
		return errors.New("E200").
			WithDetailf("snapshot.backend %q", c.Snapshot.Backend)
	}
	if _, err := c.SnapshotTTL(); err != nil {
		return err
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// SnapshotTTL parses Snapshot.TTL. An empty TTL is zero.
func (c *Config) SnapshotTTL() (time.Duration, error) {
	if c.Snapshot.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Snapshot.TTL)
	if err != nil || d < 0 {
		return 0, errors.New("E161").
			WithDetailf("snapshot.ttl %q is not a positive duration", c.Snapshot.TTL).
			WithSuggestion(`Use a Go duration such as "30m" or "24h"`)
	}
	return d, nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(c.Log.Level))); err != nil {
		return slog.LevelInfo, errors.New("E161").
			WithDetailf("log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	return level, nil
}

// ManifestPath returns the absolute path to the module manifest.
func (c *Config) ManifestPath() string {
	return c.resolve(c.Manifest)
}

// SnapshotDir returns the absolute path to the file backend directory.
func (c *Config) SnapshotDir() string {
	return c.resolve(c.Snapshot.Dir)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing fluxreg.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E162").
				WithDetail("No fluxreg.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
// When no project root is found it returns the defaults rooted at the
// working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		if errors.HasCode(err, "E162") {
			cfg := New()
			cfg.configPath = filepath.Join(wd, ConfigFileName)
			return cfg, nil
		}
		return nil, err
	}

	return Load(root)
}

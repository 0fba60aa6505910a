// Package config loads the docdelta configuration file.
package config

import "time"

// Config is the root of the configuration file.
type Config struct {
	State       StateConfig       `yaml:"state"`
	Build       BuildConfig       `yaml:"build"`
	VCS         VCSConfig         `yaml:"vcs"`
	Versions    []VersionConfig   `yaml:"versions" validate:"required,min=1,unique=Name,dive"`
	Processors  []ProcessorConfig `yaml:"processors" validate:"unique=Name,dive"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Incremental IncrementalConfig `yaml:"incremental"`
	Journal     JournalConfig     `yaml:"journal"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Notify      NotifyConfig      `yaml:"notify"`
	Watch       WatchConfig       `yaml:"watch"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StateBackend selects where build state is persisted.
type StateBackend string

const (
	StateBackendFS     StateBackend = "fs"
	StateBackendBadger StateBackend = "badger"
)

// StateConfig locates persisted build state.
type StateConfig struct {
	Dir     string       `yaml:"dir" validate:"required"`
	Backend StateBackend `yaml:"backend" validate:"oneof=fs badger"`
}

// BuildConfig holds the global build inputs. Plugins and Templates are files
// or directories whose content is hashed into the plugin and template hashes.
type BuildConfig struct {
	ToolVersion     string         `yaml:"tool_version"`
	Plugins         []string       `yaml:"plugins"`
	Templates       []string       `yaml:"templates"`
	Params          map[string]any `yaml:"params"`
	ForceRebuild    bool           `yaml:"force_rebuild"`
	ExportRawModel  bool           `yaml:"export_raw_model"`
	ExportViewModel bool           `yaml:"export_view_model"`
}

// VCSConfig points at the git repository the documentation is built from.
// An empty Repository disables commit range tracking.
type VCSConfig struct {
	Repository string `yaml:"repository"`
}

// VersionConfig describes one documentation version.
type VersionConfig struct {
	Name    string         `yaml:"name" validate:"required"`
	Root    string         `yaml:"root" validate:"required"`
	Include []string       `yaml:"include"`
	Params  map[string]any `yaml:"params"`
}

// ProcessorConfig declares a content processor and its steps.
type ProcessorConfig struct {
	Name    string         `yaml:"name" validate:"required"`
	Context map[string]any `yaml:"context"`
	Steps   []StepConfig   `yaml:"steps" validate:"dive"`
}

// StepConfig declares one processor step. Incremental defaults to true.
type StepConfig struct {
	Name        string         `yaml:"name" validate:"required"`
	Context     map[string]any `yaml:"context"`
	Incremental *bool          `yaml:"incremental"`
}

// IsIncremental reports whether the step supports incremental tracking.
func (s StepConfig) IsIncremental() bool {
	return s.Incremental == nil || *s.Incremental
}

// FingerprintConfig tunes input hashing.
type FingerprintConfig struct {
	Workers       int  `yaml:"workers" validate:"gte=0"`
	MarkdownAware bool `yaml:"markdown_aware"`
}

// PropagationMode selects how far change propagation cascades.
type PropagationMode string

const (
	PropagationSinglePass PropagationMode = "single_pass"
	PropagationFixedPoint PropagationMode = "fixed_point"
)

// IncrementalConfig tunes planning.
type IncrementalConfig struct {
	MaxParallelVersions int             `yaml:"max_parallel_versions" validate:"gte=0"`
	Propagation         PropagationMode `yaml:"propagation" validate:"oneof=single_pass fixed_point"`
}

// JournalConfig enables the SQLite decision journal when Path is set.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig enables the Prometheus endpoint of the watch daemon.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen" validate:"required_if=Enabled true"`
}

// NotifyConfig enables NATS plan notifications when URL is set.
type NotifyConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Stream  string `yaml:"stream"`
}

// WatchConfig tunes the watch daemon.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level" validate:"oneof=debug info warn error"`
	Format LogFormat `yaml:"format" validate:"oneof=json text"`
}

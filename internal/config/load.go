package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
	"git.home.luguber.info/inful/docdelta/internal/version"
)

// Defaults applied to unset fields.
const (
	DefaultStateDir        = ".docdelta"
	DefaultNotifySubject   = "docdelta.plans"
	DefaultNotifyStream    = "DOCDELTA_PLANS"
	DefaultMetricsListen   = ":9464"
	DefaultWatchDebounce   = 2 * time.Second
	DefaultWatchInterval   = 10 * time.Minute
	DefaultParallelVersion = 2
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configPath, expands ${ENV} references (after loading .env and
// .env.local from the working directory when present), normalizes enums,
// applies defaults and validates the result. Relative paths are resolved
// against the directory of configPath.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath) // #nosec G304 -- user supplied config path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				UserAction().
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "read configuration file").
			WithContext("path", configPath).
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(configPath))
	return cfg, nil
}

// Parse decodes and validates configuration bytes without touching the
// filesystem. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.WrapError(err, errors.CategoryConfig, "decode configuration").
			UserAction().
			Build()
	}

	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		// godotenv.Load never overrides variables already set in the process.
		_ = godotenv.Load(name)
	}
}

func (c *Config) normalize() {
	c.State.Backend = StateBackend(strings.ToLower(strings.TrimSpace(string(c.State.Backend))))
	c.Incremental.Propagation = PropagationMode(strings.ToLower(strings.TrimSpace(string(c.Incremental.Propagation))))
	c.Logging.Level = NormalizeLogLevel(string(c.Logging.Level))
	c.Logging.Format = NormalizeLogFormat(string(c.Logging.Format))
	for i := range c.Versions {
		c.Versions[i].Name = strings.TrimSpace(c.Versions[i].Name)
	}
}

func (c *Config) applyDefaults() {
	if c.State.Dir == "" {
		c.State.Dir = DefaultStateDir
	}
	if c.State.Backend == "" {
		c.State.Backend = StateBackendFS
	}
	if c.Build.ToolVersion == "" {
		c.Build.ToolVersion = version.Version
	}
	if c.Incremental.Propagation == "" {
		c.Incremental.Propagation = PropagationSinglePass
	}
	if c.Incremental.MaxParallelVersions == 0 {
		c.Incremental.MaxParallelVersions = DefaultParallelVersion
	}
	if c.Notify.URL != "" && c.Notify.Subject == "" {
		c.Notify.Subject = DefaultNotifySubject
	}
	if c.Notify.URL != "" && c.Notify.Stream == "" {
		c.Notify.Stream = DefaultNotifyStream
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultMetricsListen
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = DefaultWatchDebounce
	}
	if c.Watch.Interval == 0 {
		c.Watch.Interval = DefaultWatchInterval
	}
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.State.Dir = abs(c.State.Dir)
	c.Journal.Path = abs(c.Journal.Path)
	c.VCS.Repository = abs(c.VCS.Repository)
	for i := range c.Versions {
		c.Versions[i].Root = abs(c.Versions[i].Root)
	}
	for i := range c.Build.Plugins {
		c.Build.Plugins[i] = abs(c.Build.Plugins[i])
	}
	for i := range c.Build.Templates {
		c.Build.Templates[i] = abs(c.Build.Templates[i])
	}
}

// Validate checks struct constraints and reports the first violation as a
// validation error naming the offending field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errors.ValidationError(fmt.Sprintf("invalid configuration: %s failed %q", fe.Namespace(), fe.Tag())).
			WithContext("field", fe.Namespace()).
			WithContext("rule", fe.Tag()).
			WithContext("violations", len(verrs)).
			UserAction().
			Build()
	}
	return errors.WrapError(err, errors.CategoryValidation, "validate configuration").Build()
}

// Version returns the named version config, or nil.
func (c *Config) Version(name string) *VersionConfig {
	for i := range c.Versions {
		if c.Versions[i].Name == name {
			return &c.Versions[i]
		}
	}
	return nil
}

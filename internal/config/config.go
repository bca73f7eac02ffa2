// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/certledger/database/plugin"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "certledger.config"

const (
	DefaultBlobPlugin      = "badger"
	DefaultDataDir         = ".certledger"
	DefaultCodec           = "cbor"
	DefaultListenAddress   = ":8080"
	DefaultMetricsAddress  = ":12799"
	DefaultShutdownTimeout = "30s"
	DefaultAddressPrefix   = "cert"
	DefaultMaxHashAttempts = 16
	DefaultConflictRetries = 3
	DefaultSampleRatio     = 1.0

	TracingExporterOtlp   = "otlp"
	TracingExporterStdout = "stdout"
)

// ErrPluginListRequested is returned when the user asked for the plugin list
// instead of a normal run
var ErrPluginListRequested = errors.New("plugin list requested")

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type tempConfig struct {
	Config   *Config                   `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
}

type databaseConfig struct {
	Blob map[string]any `yaml:"blob,omitempty"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sampleRatio" split_words:"true"`
}

type Config struct {
	BlobPlugin      string `yaml:"blobPlugin"      envconfig:"blob_plugin"`
	DataDir         string `yaml:"dataDir"         split_words:"true"`
	Codec           string `yaml:"codec"`
	ListenAddress   string `yaml:"listenAddress"   split_words:"true"`
	MetricsAddress  string `yaml:"metricsAddress"  split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	AddressPrefix   string `yaml:"addressPrefix"   split_words:"true"`
	AllowReinit     bool   `yaml:"allowReinit"     split_words:"true"`
	MaxHashAttempts int    `yaml:"maxHashAttempts" split_words:"true"`
	ConflictRetries int    `yaml:"conflictRetries" split_words:"true"`
	// Seed fixes the certificate identifier sequence. 0 seeds from the OS.
	Seed    uint64        `yaml:"seed"`
	Tracing TracingConfig `yaml:"tracing"`
}

// Default returns a config populated with the built-in defaults
func Default() *Config {
	return &Config{
		BlobPlugin:      DefaultBlobPlugin,
		DataDir:         DefaultDataDir,
		Codec:           DefaultCodec,
		ListenAddress:   DefaultListenAddress,
		MetricsAddress:  DefaultMetricsAddress,
		ShutdownTimeout: DefaultShutdownTimeout,
		AddressPrefix:   DefaultAddressPrefix,
		MaxHashAttempts: DefaultMaxHashAttempts,
		ConflictRetries: DefaultConflictRetries,
		Tracing: TracingConfig{
			Exporter:    TracingExporterOtlp,
			SampleRatio: DefaultSampleRatio,
		},
	}
}

var globalConfig = Default()

// ShutdownTimeoutDuration parses ShutdownTimeout, returning the default for
// an empty value
func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return time.ParseDuration(DefaultShutdownTimeout)
	}
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return d, nil
}

// Validate checks values that cannot be caught while parsing
func (c *Config) Validate() error {
	if c.BlobPlugin == "" {
		return errors.New("blob plugin must not be empty")
	}
	if c.MaxHashAttempts < 1 {
		return fmt.Errorf(
			"invalid maxHashAttempts: %d (must be at least 1)",
			c.MaxHashAttempts,
		)
	}
	if c.ConflictRetries < 0 {
		return fmt.Errorf(
			"invalid conflictRetries: %d (must not be negative)",
			c.ConflictRetries,
		)
	}
	if c.AddressPrefix == "" {
		return errors.New("address prefix must not be empty")
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	switch c.Tracing.Exporter {
	case TracingExporterOtlp, TracingExporterStdout:
	default:
		return fmt.Errorf(
			"invalid tracing exporter: %q (must be '%s' or '%s')",
			c.Tracing.Exporter,
			TracingExporterOtlp,
			TracingExporterStdout,
		)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf(
			"invalid tracing sampleRatio: %v (must be between 0 and 1)",
			c.Tracing.SampleRatio,
		)
	}
	return nil
}

// findConfigFile returns the first existing default config path
func findConfigFile() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".certledger", "certledger.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/certledger/certledger.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// LoadConfig builds the config from defaults, the YAML file (configFile or
// a default location), then the environment
func LoadConfig(configFile string) (*Config, error) {
	cfg := Default()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := loadFile(cfg, configFile); err != nil {
			return nil, err
		}
	}
	// Process environment variables
	if err := envconfig.Process("certledger", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	// Process plugin environment variables
	if err := plugin.ProcessEnvVars(); err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func loadFile(cfg *Config, configFile string) error {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	// First unmarshal into temp config to split out plugin sections. The
	// config section decodes straight onto cfg so unset keys keep defaults.
	tempCfg := tempConfig{Config: cfg}
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if !hasConfigSection(buf) {
		// Otherwise the whole file is the main config
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}

	blobConfig := make(map[string]map[string]any)
	maps.Copy(blobConfig, tempCfg.Blob)
	if tempCfg.Database != nil && tempCfg.Database.Blob != nil {
		if pluginVal, ok := tempCfg.Database.Blob["plugin"]; ok {
			pluginName, ok := pluginVal.(string)
			if !ok {
				return fmt.Errorf(
					"error parsing config file: database.blob.plugin must be a string, got %T",
					pluginVal,
				)
			}
			cfg.BlobPlugin = pluginName
			delete(tempCfg.Database.Blob, "plugin")
		}
		for k, v := range tempCfg.Database.Blob {
			opts, err := toStringMap(v)
			if err != nil {
				return fmt.Errorf("error parsing database.blob.%s: %w", k, err)
			}
			if blobConfig[k] == nil {
				blobConfig[k] = opts
			} else {
				maps.Copy(blobConfig[k], opts)
			}
		}
	}
	if len(blobConfig) > 0 {
		err := plugin.ProcessConfig(
			map[string]map[string]map[string]any{
				plugin.PluginTypeName(plugin.PluginTypeBlob): blobConfig,
			},
		)
		if err != nil {
			return fmt.Errorf("error processing plugin config: %w", err)
		}
	}
	return nil
}

// hasConfigSection reports whether the document has a top-level config key
func hasConfigSection(buf []byte) bool {
	var keys map[string]yaml.Node
	if err := yaml.Unmarshal(buf, &keys); err != nil {
		return false
	}
	_, ok := keys["config"]
	return ok
}

func toStringMap(v any) (map[string]any, error) {
	switch val := v.(type) {
	case map[string]any:
		return val, nil
	case map[any]any:
		ret := make(map[string]any, len(val))
		for k, vv := range val {
			keyStr, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string option name %v", k)
			}
			ret[keyStr] = vv
		}
		return ret, nil
	default:
		return nil, fmt.Errorf("expected map, got %T", v)
	}
}

// GetConfig returns the most recently loaded config
func GetConfig() *Config {
	return globalConfig
}

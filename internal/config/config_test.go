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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/certledger/database/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlugin struct{}

func (stubPlugin) Start() error { return nil }
func (stubPlugin) Stop() error  { return nil }

// isolate keeps the default config file locations out of the test
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "certledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Same(t, cfg, GetConfig())
}

func TestLoadTopLevelYaml(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
blobPlugin: bolt
dataDir: /var/lib/certledger
codec: json
listenAddress: "127.0.0.1:9000"
allowReinit: true
maxHashAttempts: 4
seed: 42
tracing:
  enabled: true
  exporter: stdout
  sampleRatio: 0.25
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	expected := Default()
	expected.BlobPlugin = "bolt"
	expected.DataDir = "/var/lib/certledger"
	expected.Codec = "json"
	expected.ListenAddress = "127.0.0.1:9000"
	expected.AllowReinit = true
	expected.MaxHashAttempts = 4
	expected.Seed = 42
	expected.Tracing.Enabled = true
	expected.Tracing.Exporter = TracingExporterStdout
	expected.Tracing.SampleRatio = 0.25
	assert.Equal(t, expected, cfg)
}

func TestLoadConfigSectionKeepsDefaults(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
config:
  metricsAddress: ":9100"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.MetricsAddress)
	assert.Equal(t, DefaultListenAddress, cfg.ListenAddress)
	assert.Equal(t, DefaultMaxHashAttempts, cfg.MaxHashAttempts)
	assert.Equal(t, DefaultBlobPlugin, cfg.BlobPlugin)
}

func TestLoadConfigSectionOverrides(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
config:
  blobPlugin: bolt
  maxHashAttempts: 2
  conflictRetries: 5
  tracing:
    exporter: stdout
# Ignored outside the config section
listenAddress: ":7000"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt", cfg.BlobPlugin)
	assert.Equal(t, 2, cfg.MaxHashAttempts)
	assert.Equal(t, 5, cfg.ConflictRetries)
	assert.Equal(t, TracingExporterStdout, cfg.Tracing.Exporter)
	assert.InDelta(t, DefaultSampleRatio, cfg.Tracing.SampleRatio, 1e-9)
	assert.Equal(t, DefaultListenAddress, cfg.ListenAddress)
}

func TestLoadDatabaseBlobSection(t *testing.T) {
	isolate(t)
	var dataDir string
	var workers int
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               "cfgtest",
		NewFromOptionsFunc: func() plugin.Plugin { return stubPlugin{} },
		Options: []plugin.PluginOption{
			{
				Name: "data-dir",
				Type: plugin.PluginOptionTypeString,
				Dest: &dataDir,
			},
			{
				Name: "workers",
				Type: plugin.PluginOptionTypeInt,
				Dest: &workers,
			},
		},
	})
	path := writeConfig(t, `
database:
  blob:
    plugin: cfgtest
    cfgtest:
      data-dir: /tmp/cfgtest
      workers: 3
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "cfgtest", cfg.BlobPlugin)
	assert.Equal(t, "/tmp/cfgtest", dataDir)
	assert.Equal(t, 3, workers)
}

func TestLoadDatabaseBlobSectionErrors(t *testing.T) {
	isolate(t)
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "unknown plugin",
			content: `
database:
  blob:
    nosuchplugin:
      data-dir: /tmp
`,
		},
		{
			name: "non-map entry",
			content: `
database:
  blob:
    badger: 12
`,
		},
		{
			name: "non-string plugin name",
			content: `
database:
  blob:
    plugin: [a, b]
`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			require.Error(t, err)
		})
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
listenAddress: ":9000"
blobPlugin: bolt
`)
	t.Setenv("CERTLEDGER_LISTEN_ADDRESS", ":9001")
	t.Setenv("CERTLEDGER_BLOB_PLUGIN", "sqlite")
	t.Setenv("CERTLEDGER_ALLOW_REINIT", "true")
	t.Setenv("CERTLEDGER_TRACING_SAMPLE_RATIO", "0.5")
	t.Setenv("CERTLEDGER_MAX_HASH_ATTEMPTS", "2")
	t.Setenv("CERTLEDGER_CONFLICT_RETRIES", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9001", cfg.ListenAddress)
	assert.Equal(t, "sqlite", cfg.BlobPlugin)
	assert.True(t, cfg.AllowReinit)
	assert.InDelta(t, 0.5, cfg.Tracing.SampleRatio, 1e-9)
	assert.Equal(t, 2, cfg.MaxHashAttempts)
	assert.Equal(t, 7, cfg.ConflictRetries)
}

func TestLoadErrors(t *testing.T) {
	isolate(t)
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.ErrorContains(t, err, "error reading config file")
	})
	t.Run("bad yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "listenAddress: [unterminated"))
		require.ErrorContains(t, err, "error parsing config file")
	})
	t.Run("bad environment", func(t *testing.T) {
		t.Setenv("CERTLEDGER_MAX_HASH_ATTEMPTS", "many")
		_, err := LoadConfig("")
		require.ErrorContains(t, err, "error processing environment")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty blob plugin", func(c *Config) { c.BlobPlugin = "" }, "blob plugin"},
		{"zero hash attempts", func(c *Config) { c.MaxHashAttempts = 0 }, "maxHashAttempts"},
		{"negative conflict retries", func(c *Config) { c.ConflictRetries = -1 }, "conflictRetries"},
		{"no conflict retries", func(c *Config) { c.ConflictRetries = 0 }, ""},
		{"empty prefix", func(c *Config) { c.AddressPrefix = "" }, "address prefix"},
		{"bad timeout", func(c *Config) { c.ShutdownTimeout = "soon" }, "shutdown timeout"},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "zipkin" }, "tracing exporter"},
		{"bad ratio", func(c *Config) { c.Tracing.SampleRatio = 1.5 }, "sampleRatio"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestShutdownTimeoutDuration(t *testing.T) {
	cfg := Default()
	d, err := cfg.ShutdownTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	cfg.ShutdownTimeout = ""
	d, err = cfg.ShutdownTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	cfg.ShutdownTimeout = "5s"
	d, err = cfg.ShutdownTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := Default()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}

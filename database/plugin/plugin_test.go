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

package plugin_test

import (
	"errors"
	"testing"

	"github.com/blinklabs-io/certledger/database/plugin"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type optionDest struct {
	dataDir   string
	gc        bool
	workers   int
	cacheSize uint64
}

// registerOptionPlugin registers a plugin with one option of each type,
// named after the test so that tests do not share destinations
func registerOptionPlugin(t *testing.T, name string) *optionDest {
	t.Helper()
	dest := &optionDest{}
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               name,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
		Options: []plugin.PluginOption{
			{
				Name:         "data-dir",
				Type:         plugin.PluginOptionTypeString,
				DefaultValue: ".data",
				Dest:         &dest.dataDir,
			},
			{
				Name: "gc",
				Type: plugin.PluginOptionTypeBool,
				Dest: &dest.gc,
			},
			{
				Name: "workers",
				Type: plugin.PluginOptionTypeInt,
				Dest: &dest.workers,
			},
			{
				Name:         "cache-size",
				Type:         plugin.PluginOptionTypeUint,
				DefaultValue: uint64(1024),
				Dest:         &dest.cacheSize,
			},
		},
	})
	return dest
}

func TestSetPluginOption(t *testing.T) {
	dest := registerOptionPlugin(t, "opts")

	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, "opts", "data-dir", "/tmp/x"),
	)
	assert.Equal(t, "/tmp/x", dest.dataDir)

	// Wrong value type
	require.Error(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, "opts", "data-dir", 123),
	)

	// Unknown options are ignored
	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, "opts", "does-not-exist", "x"),
	)

	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, "opts", "gc", true),
	)
	assert.True(t, dest.gc)

	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, "opts", "workers", 4),
	)
	assert.Equal(t, 4, dest.workers)

	// Uint options accept the numeric forms produced by config decoders
	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, "opts", "cache-size", uint64(100000000)),
	)
	assert.Equal(t, uint64(100000000), dest.cacheSize)
	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, "opts", "cache-size", 512),
	)
	assert.Equal(t, uint64(512), dest.cacheSize)
	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, "opts", "cache-size", float64(2048)),
	)
	assert.Equal(t, uint64(2048), dest.cacheSize)
	require.Error(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, "opts", "cache-size", -1),
	)
	require.Error(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, "opts", "cache-size", 1.5),
	)

	// Plugin not found
	require.Error(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, "nonexistent", "data-dir", "x"),
	)
}

func TestProcessConfig(t *testing.T) {
	dest := registerOptionPlugin(t, "cfgtest")
	err := plugin.ProcessConfig(map[string]map[string]map[string]any{
		"blob": {
			"cfgtest": {
				"data-dir":   "/var/lib/certledger",
				"gc":         true,
				"cache-size": 4096,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/certledger", dest.dataDir)
	assert.True(t, dest.gc)
	assert.Equal(t, uint64(4096), dest.cacheSize)

	err = plugin.ProcessConfig(map[string]map[string]map[string]any{
		"metadata": {"cfgtest": {"data-dir": "x"}},
	})
	require.ErrorContains(t, err, "unknown plugin type")
}

func TestProcessEnvVars(t *testing.T) {
	dest := registerOptionPlugin(t, "envtest")
	t.Setenv("CERTLEDGER_BLOB_ENVTEST_DATA_DIR", "/srv/ledger")
	t.Setenv("CERTLEDGER_BLOB_ENVTEST_GC", "true")
	t.Setenv("CERTLEDGER_BLOB_ENVTEST_WORKERS", "8")
	t.Setenv("CERTLEDGER_BLOB_ENVTEST_CACHE_SIZE", "65536")
	require.NoError(t, plugin.ProcessEnvVars())
	assert.Equal(t, "/srv/ledger", dest.dataDir)
	assert.True(t, dest.gc)
	assert.Equal(t, 8, dest.workers)
	assert.Equal(t, uint64(65536), dest.cacheSize)

	t.Setenv("CERTLEDGER_BLOB_ENVTEST_GC", "maybe")
	require.ErrorContains(t, plugin.ProcessEnvVars(), "CERTLEDGER_BLOB_ENVTEST_GC")
}

func TestPopulateCmdlineOptions(t *testing.T) {
	dest := registerOptionPlugin(t, "flagtest")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, plugin.PopulateCmdlineOptions(fs))

	f := fs.Lookup("blob-flagtest-data-dir")
	require.NotNil(t, f)
	assert.Equal(t, ".data", f.DefValue)
	require.NotNil(t, fs.Lookup("blob-flagtest-cache-size"))

	require.NoError(t, fs.Parse([]string{
		"--blob-flagtest-data-dir", "/opt/ledger",
		"--blob-flagtest-gc",
		"--blob-flagtest-cache-size", "99",
	}))
	assert.Equal(t, "/opt/ledger", dest.dataDir)
	assert.True(t, dest.gc)
	assert.Equal(t, uint64(99), dest.cacheSize)
}

func TestStartPlugin(t *testing.T) {
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               "start-ok",
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
	})
	p, err := plugin.StartPlugin(plugin.PluginTypeBlob, "start-ok")
	require.NoError(t, err)
	require.NotNil(t, p)

	errBoom := errors.New("boom")
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               "start-fail",
		NewFromOptionsFunc: func() plugin.Plugin { return plugin.NewErrorPlugin(errBoom) },
	})
	_, err = plugin.StartPlugin(plugin.PluginTypeBlob, "start-fail")
	require.ErrorIs(t, err, errBoom)

	_, err = plugin.StartPlugin(plugin.PluginTypeBlob, "missing")
	require.ErrorContains(t, err, "not found")
}

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
	"testing"

	"github.com/blinklabs-io/certledger/database/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock plugin implementation for testing
type mockPlugin struct {
	id int
}

func (m *mockPlugin) Start() error { return nil }
func (m *mockPlugin) Stop() error  { return nil }

func TestRegister(t *testing.T) {
	pluginName := "test-plugin-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               pluginName,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
	})

	// Check that GetPlugin finds it
	require.NotNil(t, plugin.GetPlugin(plugin.PluginTypeBlob, pluginName))

	// Check that GetPlugins includes it
	found := false
	for _, pl := range plugin.GetPlugins(plugin.PluginTypeBlob) {
		if pl.Name == pluginName && pl.Type == plugin.PluginTypeBlob {
			found = true
			break
		}
	}
	assert.True(t, found, "plugin not in GetPlugins list")
}

func TestRegisterReplaces(t *testing.T) {
	pluginName := "test-replace-" + t.Name()
	for i := 1; i <= 2; i++ {
		id := i
		plugin.Register(plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               pluginName,
			NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{id: id} },
		})
	}
	count := 0
	for _, pl := range plugin.GetPlugins(plugin.PluginTypeBlob) {
		if pl.Name == pluginName {
			count++
		}
	}
	assert.Equal(t, 1, count)
	p, ok := plugin.GetPlugin(plugin.PluginTypeBlob, pluginName).(*mockPlugin)
	require.True(t, ok)
	assert.Equal(t, 2, p.id)
}

func TestGetPluginsSorted(t *testing.T) {
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               "zz-sorted",
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
	})
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               "aa-sorted",
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
	})
	entries := plugin.GetPlugins(plugin.PluginTypeBlob)
	for i := 1; i < len(entries); i++ {
		assert.LessOrEqual(t, entries[i-1].Name, entries[i].Name)
	}
}

func TestGetPlugin(t *testing.T) {
	pluginName := "test-get-plugin-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               pluginName,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
	})

	p := plugin.GetPlugin(plugin.PluginTypeBlob, pluginName)
	require.NotNil(t, p)
	assert.IsType(t, &mockPlugin{}, p)

	// Test getting non-existent plugin
	assert.Nil(t, plugin.GetPlugin(plugin.PluginTypeBlob, "non-existent-"+t.Name()))
}

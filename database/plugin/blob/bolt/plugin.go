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

package bolt

import (
	"sync"

	"github.com/blinklabs-io/certledger/database/plugin"
)

var (
	cmdlineOptions struct {
		dataDir string
		noSync  bool
	}
	cmdlineOptionsMutex sync.RWMutex
)

// Register plugin
func init() {
	cmdlineOptions.dataDir = ".certledger"
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               "bolt",
			Description:        "bbolt embedded key-value store",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "data-dir",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Data directory for bolt storage",
					DefaultValue: ".certledger",
					Dest:         &(cmdlineOptions.dataDir),
				},
				{
					Name:         "no-sync",
					Type:         plugin.PluginOptionTypeBool,
					Description:  "Skip fsync after each commit",
					DefaultValue: false,
					Dest:         &(cmdlineOptions.noSync),
				},
			},
		},
	)
}

func NewFromCmdlineOptions() plugin.Plugin {
	cmdlineOptionsMutex.RLock()
	opts := []BlobStoreBoltOptionFunc{
		WithDataDir(cmdlineOptions.dataDir),
		WithNoSync(cmdlineOptions.noSync),
	}
	cmdlineOptionsMutex.RUnlock()
	rt := plugin.GetRuntime()
	opts = append(
		opts,
		WithLogger(rt.Logger),
		WithPromRegistry(rt.PromRegistry),
	)
	p, err := New(opts...)
	if err != nil {
		// Return a plugin that defers the error to Start()
		return plugin.NewErrorPlugin(err)
	}
	return p
}

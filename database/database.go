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

package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/certledger/database/plugin"
	"github.com/blinklabs-io/certledger/database/plugin/blob"
	"github.com/prometheus/client_golang/prometheus"

	// Register blob plugins
	_ "github.com/blinklabs-io/certledger/database/plugin/blob/aws"
	_ "github.com/blinklabs-io/certledger/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/certledger/database/plugin/blob/bolt"
	_ "github.com/blinklabs-io/certledger/database/plugin/blob/gcs"
	_ "github.com/blinklabs-io/certledger/database/plugin/blob/redis"
	_ "github.com/blinklabs-io/certledger/database/plugin/blob/sqlite"
)

// DefaultBlobPlugin is used when Config.BlobPlugin is empty
const DefaultBlobPlugin = "badger"

type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// BlobStore is used as-is when set, bypassing plugin selection
	BlobStore  blob.BlobStore
	BlobPlugin string
	// DataDir is passed to the blob plugin's data-dir option. An empty
	// value selects in-memory storage for plugins that support it.
	DataDir string
}

type Database struct {
	logger     *slog.Logger
	blob       blob.BlobStore
	blobPlugin string
	dataDir    string
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// BlobPlugin returns the name of the blob plugin in use
func (d *Database) BlobPlugin() string {
	return d.blobPlugin
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

// New creates a new database instance from the provided config
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	db := &Database{
		logger:     cfg.Logger,
		blob:       cfg.BlobStore,
		blobPlugin: cfg.BlobPlugin,
		dataDir:    cfg.DataDir,
	}
	if db.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if db.blob != nil {
		return db, nil
	}
	if db.blobPlugin == "" {
		db.blobPlugin = DefaultBlobPlugin
	}
	// Pass shared settings through to the plugin before it is created.
	// Plugins without a given option ignore it.
	settings := []struct {
		name  string
		value any
	}{
		{"data-dir", cfg.DataDir},
	}
	for _, setting := range settings {
		if err := plugin.SetPluginOption(
			plugin.PluginTypeBlob,
			db.blobPlugin,
			setting.name,
			setting.value,
		); err != nil {
			return nil, fmt.Errorf("configure blob plugin: %w", err)
		}
	}
	plugin.SetRuntime(plugin.Runtime{
		Logger:       db.logger,
		PromRegistry: cfg.PromRegistry,
	})
	blobDb, err := blob.New(db.blobPlugin)
	if err != nil {
		return nil, err
	}
	db.blob = blobDb
	db.logger.Debug(
		"opened blob store",
		"component", "database",
		"plugin", db.blobPlugin,
		"data_dir", db.dataDir,
	)
	return db, nil
}

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

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/blinklabs-io/certledger/database/plugin/blob/internal/blobmetrics"
	"github.com/blinklabs-io/certledger/database/types"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// BlobEntry is a single key/value row
type BlobEntry struct {
	Key   []byte `gorm:"column:blob_key;primaryKey"`
	Value []byte `gorm:"column:blob_value;not null"`
}

func (BlobEntry) TableName() string {
	return "blob"
}

// In-memory databases are named so that each store gets its own
var memoryDbSeq atomic.Uint64

// BlobStoreSqlite stores data in a single sqlite table through gorm
type BlobStoreSqlite struct {
	promRegistry prometheus.Registerer
	metrics      *blobmetrics.Metrics
	db           *gorm.DB
	logger       *slog.Logger
	dataDir      string
}

type sqliteTxn struct {
	ctx       context.Context
	store     *BlobStoreSqlite
	tx        *gorm.DB
	finished  bool
	readWrite bool
}

// New creates a new database. An empty data dir keeps all data in memory.
func New(opts ...BlobStoreSqliteOptionFunc) (*BlobStoreSqlite, error) {
	db := &BlobStoreSqlite{}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	gormConfig := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	var blobDb *gorm.DB
	var err error
	if db.dataDir == "" {
		dsn := fmt.Sprintf(
			"file:certledger-blob-%d?mode=memory&cache=shared",
			memoryDbSeq.Add(1),
		)
		blobDb, err = gorm.Open(sqlite.Open(dsn), gormConfig)
		if err != nil {
			return nil, err
		}
		sqlDb, err := blobDb.DB()
		if err != nil {
			return nil, err
		}
		// The database lives only as long as its connection
		sqlDb.SetMaxOpenConns(1)
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(db.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			// Create data directory
			if err := os.MkdirAll(db.dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		blobDbPath := filepath.Join(
			db.dataDir,
			"blob.sqlite",
		)
		connOpts := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=cache_size(-50000)"
		blobDb, err = gorm.Open(
			sqlite.Open(
				fmt.Sprintf("file:%s?%s", blobDbPath, connOpts),
			),
			gormConfig,
		)
		if err != nil {
			return nil, err
		}
	}
	db.db = blobDb
	if err := db.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (d *BlobStoreSqlite) init() error {
	// Configure tracing for GORM
	if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	d.logger.Debug(
		fmt.Sprintf("creating table: %#v", &BlobEntry{}),
		"component", "database",
	)
	if err := d.db.AutoMigrate(&BlobEntry{}); err != nil {
		return err
	}
	d.metrics = blobmetrics.New(d.promRegistry, "sqlite")
	return nil
}

// Start implements the plugin.Plugin interface
func (d *BlobStoreSqlite) Start() error {
	// Database is already opened in New(), so this is a no-op
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreSqlite) Stop() error {
	return d.Close()
}

func (d *BlobStoreSqlite) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDb, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	d.db = nil
	return sqlDb.Close()
}

// DB returns the database handle
func (d *BlobStoreSqlite) DB() *gorm.DB {
	return d.db
}

// NewTransaction starts a database transaction for read-write use. Read-only
// transactions read the latest committed rows directly.
func (d *BlobStoreSqlite) NewTransaction(
	ctx context.Context,
	readWrite bool,
) types.Txn {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &sqliteTxn{ctx: ctx, store: d, readWrite: readWrite}
	if d.db == nil {
		return t
	}
	if readWrite {
		t.tx = d.db.WithContext(ctx).Begin()
	} else {
		t.tx = d.db.WithContext(ctx)
	}
	return t
}

func (d *BlobStoreSqlite) validateTxn(txn types.Txn) (*sqliteTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	t, ok := txn.(*sqliteTxn)
	if !ok || t.store != d {
		return nil, types.ErrTxnWrongType
	}
	if t.finished {
		return nil, types.ErrTxnFinished
	}
	if t.tx == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	if t.tx.Error != nil {
		return nil, t.tx.Error
	}
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (d *BlobStoreSqlite) Get(txn types.Txn, key []byte) ([]byte, error) {
	t, err := d.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	var entry BlobEntry
	result := t.tx.Where("blob_key = ?", key).First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, result.Error
	}
	d.metrics.Op("get", len(entry.Value))
	return entry.Value, nil
}

func (d *BlobStoreSqlite) Set(txn types.Txn, key, val []byte) error {
	t, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.readWrite {
		return types.ErrTxnReadOnly
	}
	if val == nil {
		val = []byte{}
	}
	result := t.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "blob_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"blob_value"}),
	}).Create(&BlobEntry{Key: key, Value: val})
	if result.Error != nil {
		return result.Error
	}
	d.metrics.Op("set", len(val))
	return nil
}

func (d *BlobStoreSqlite) Delete(txn types.Txn, key []byte) error {
	t, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.readWrite {
		return types.ErrTxnReadOnly
	}
	result := t.tx.Where("blob_key = ?", key).Delete(&BlobEntry{})
	if result.Error != nil {
		return result.Error
	}
	d.metrics.Op("delete", 0)
	return nil
}

func (t *sqliteTxn) Commit() error {
	if t.finished {
		return nil
	}
	if !t.readWrite || t.tx == nil {
		t.finished = true
		return nil
	}
	if err := t.ctx.Err(); err != nil {
		_ = t.Rollback()
		return err
	}
	t.finished = true
	if err := t.tx.Commit().Error; err != nil {
		return err
	}
	t.store.metrics.Commit()
	return nil
}

func (t *sqliteTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if !t.readWrite || t.tx == nil {
		return nil
	}
	t.store.metrics.Rollback()
	return t.tx.Rollback().Error
}

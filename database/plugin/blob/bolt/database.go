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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/blinklabs-io/certledger/database/plugin/blob/internal/blobmetrics"
	"github.com/blinklabs-io/certledger/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.etcd.io/bbolt"
)

const (
	dbFileName = "blob.bolt"
	bucketName = "certledger"
)

// BlobStoreBolt stores data in a single bbolt bucket
type BlobStoreBolt struct {
	promRegistry prometheus.Registerer
	metrics      *blobmetrics.Metrics
	db           *bbolt.DB
	logger       *slog.Logger
	dataDir      string
	timeout      time.Duration
	noSync       bool
}

type boltTxn struct {
	ctx       context.Context
	store     *BlobStoreBolt
	tx        *bbolt.Tx
	err       error
	finished  bool
	readWrite bool
}

// New creates a new bbolt-backed blob store. The database file is opened
// on Start.
func New(opts ...BlobStoreBoltOptionFunc) (*BlobStoreBolt, error) {
	db := &BlobStoreBolt{
		timeout: time.Second,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if db.dataDir == "" {
		return nil, errors.New("bolt blob: data dir not set")
	}
	return db, nil
}

// Start opens the database file and creates the bucket
func (d *BlobStoreBolt) Start() error {
	if d.db != nil {
		return nil
	}
	if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(filepath.Clean(d.dataDir), dbFileName)
	boltDb, err := bbolt.Open(
		dbPath,
		0o600,
		&bbolt.Options{Timeout: d.timeout, NoSync: d.noSync},
	)
	if err != nil {
		return fmt.Errorf("open bolt db: %w", err)
	}
	err = boltDb.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketName)); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = boltDb.Close()
		return err
	}
	d.db = boltDb
	d.metrics = blobmetrics.New(d.promRegistry, "bolt")
	d.logger.Debug(
		"opened bolt blob store",
		"component", "database",
		"path", dbPath,
	)
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreBolt) Stop() error {
	return d.Close()
}

func (d *BlobStoreBolt) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// NewTransaction begins a bbolt transaction. Only one read-write
// transaction may be open at a time, so this blocks until any other writer
// finishes.
func (d *BlobStoreBolt) NewTransaction(
	ctx context.Context,
	readWrite bool,
) types.Txn {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &boltTxn{ctx: ctx, store: d, readWrite: readWrite}
	if d.db == nil {
		t.err = types.ErrBlobStoreUnavailable
		return t
	}
	tx, err := d.db.Begin(readWrite)
	if err != nil {
		t.err = err
		return t
	}
	t.tx = tx
	return t
}

func (d *BlobStoreBolt) validateTxn(txn types.Txn) (*boltTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	t, ok := txn.(*boltTxn)
	if !ok || t.store != d {
		return nil, types.ErrTxnWrongType
	}
	if t.finished {
		return nil, types.ErrTxnFinished
	}
	if t.err != nil {
		return nil, t.err
	}
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *boltTxn) bucket() (*bbolt.Bucket, error) {
	b := t.tx.Bucket([]byte(bucketName))
	if b == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return b, nil
}

func (d *BlobStoreBolt) Get(txn types.Txn, key []byte) ([]byte, error) {
	t, err := d.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	b, err := t.bucket()
	if err != nil {
		return nil, err
	}
	val := b.Get(key)
	if val == nil {
		return nil, types.ErrBlobKeyNotFound
	}
	d.metrics.Op("get", len(val))
	// Values are only valid for the life of the transaction
	return slices.Clone(val), nil
}

func (d *BlobStoreBolt) Set(txn types.Txn, key, val []byte) error {
	t, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.readWrite {
		return types.ErrTxnReadOnly
	}
	b, err := t.bucket()
	if err != nil {
		return err
	}
	// bbolt treats a nil value as missing
	if val == nil {
		val = []byte{}
	}
	if err := b.Put(key, val); err != nil {
		return err
	}
	d.metrics.Op("set", len(val))
	return nil
}

func (d *BlobStoreBolt) Delete(txn types.Txn, key []byte) error {
	t, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.readWrite {
		return types.ErrTxnReadOnly
	}
	b, err := t.bucket()
	if err != nil {
		return err
	}
	if err := b.Delete(key); err != nil {
		return err
	}
	d.metrics.Op("delete", 0)
	return nil
}

func (t *boltTxn) Commit() error {
	if t.finished {
		return nil
	}
	if t.tx == nil {
		t.finished = true
		return t.err
	}
	// Read-only bbolt transactions cannot be committed
	if !t.readWrite {
		return t.Rollback()
	}
	if err := t.ctx.Err(); err != nil {
		_ = t.Rollback()
		return err
	}
	t.finished = true
	if err := t.tx.Commit(); err != nil {
		return err
	}
	t.store.metrics.Commit()
	return nil
}

func (t *boltTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.tx == nil {
		return nil
	}
	t.store.metrics.Rollback()
	return t.tx.Rollback()
}

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

package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/certledger/database/plugin/blob/internal/blobmetrics"
	"github.com/blinklabs-io/certledger/database/plugin/blob/internal/writebuf"
	"github.com/blinklabs-io/certledger/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "certledger:"

// BlobStoreRedis stores data in a Redis server. Writes are buffered until
// commit and applied in a MULTI/EXEC block guarded by WATCH on every key the
// transaction touched.
type BlobStoreRedis struct {
	promRegistry prometheus.Registerer
	metrics      *blobmetrics.Metrics
	client       *redis.Client
	logger       *slog.Logger
	url          string
	prefix       string
	timeout      time.Duration
}

type redisTxn struct {
	ctx       context.Context
	store     *BlobStoreRedis
	writes    *writebuf.Buffer
	reads     map[string][]byte
	finished  bool
	readWrite bool
}

// New creates a new Redis-backed blob store. The connection is made on
// Start.
func New(opts ...BlobStoreRedisOptionFunc) (*BlobStoreRedis, error) {
	db := &BlobStoreRedis{
		prefix:  DefaultKeyPrefix,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return db, nil
}

// Start implements the plugin.Plugin interface
func (d *BlobStoreRedis) Start() error {
	if d.client != nil {
		return nil
	}
	if d.url == "" {
		return errors.New("redis blob: url not set")
	}
	opts, err := redis.ParseURL(d.url)
	if err != nil {
		return fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := d.opContext(context.Background())
	defer cancel()
	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}
	d.client = client
	d.metrics = blobmetrics.New(d.promRegistry, "redis")
	d.logger.Debug(
		"connected to redis blob store",
		"component", "database",
		"addr", opts.Addr,
	)
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreRedis) Stop() error {
	return d.Close()
}

func (d *BlobStoreRedis) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

// Client returns the Redis client
func (d *BlobStoreRedis) Client() *redis.Client {
	return d.client
}

func (d *BlobStoreRedis) opContext(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.timeout)
}

func (d *BlobStoreRedis) fullKey(key []byte) string {
	return d.prefix + string(key)
}

func (d *BlobStoreRedis) NewTransaction(
	ctx context.Context,
	readWrite bool,
) types.Txn {
	if ctx == nil {
		ctx = context.Background()
	}
	return &redisTxn{
		ctx:       ctx,
		store:     d,
		writes:    writebuf.New(),
		reads:     make(map[string][]byte),
		readWrite: readWrite,
	}
}

func (d *BlobStoreRedis) validateTxn(txn types.Txn) (*redisTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	t, ok := txn.(*redisTxn)
	if !ok || t.store != d {
		return nil, types.ErrTxnWrongType
	}
	if t.finished {
		return nil, types.ErrTxnFinished
	}
	if d.client == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (d *BlobStoreRedis) Get(txn types.Txn, key []byte) ([]byte, error) {
	t, err := d.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	if val, deleted, found := t.writes.Lookup(key); found {
		if deleted {
			return nil, types.ErrBlobKeyNotFound
		}
		return val, nil
	}
	ctx, cancel := d.opContext(t.ctx)
	defer cancel()
	val, err := d.client.Get(ctx, d.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Remember the miss so that commit can detect a concurrent create
		t.reads[string(key)] = nil
		return nil, types.ErrBlobKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	t.reads[string(key)] = val
	d.metrics.Op("get", len(val))
	return bytes.Clone(val), nil
}

func (d *BlobStoreRedis) Set(txn types.Txn, key, val []byte) error {
	t, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.readWrite {
		return types.ErrTxnReadOnly
	}
	t.writes.Set(key, val)
	return nil
}

func (d *BlobStoreRedis) Delete(txn types.Txn, key []byte) error {
	t, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.readWrite {
		return types.ErrTxnReadOnly
	}
	t.writes.Delete(key)
	return nil
}

func (t *redisTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if !t.readWrite || t.writes.Len() == 0 {
		return nil
	}
	d := t.store
	if d.client == nil {
		return types.ErrBlobStoreUnavailable
	}
	ctx, cancel := d.opContext(t.ctx)
	defer cancel()
	watchKeys := make([]string, 0, len(t.reads))
	for key := range t.reads {
		watchKeys = append(watchKeys, d.fullKey([]byte(key)))
	}
	err := d.client.Watch(ctx, func(tx *redis.Tx) error {
		// Values read earlier must be unchanged
		for key, expected := range t.reads {
			current, err := tx.Get(ctx, d.fullKey([]byte(key))).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
				if expected != nil {
					return types.ErrTxnConflict
				}
			case err != nil:
				return err
			default:
				if expected == nil || !bytes.Equal(current, expected) {
					return types.ErrTxnConflict
				}
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, entry := range t.writes.Entries() {
				if entry.Deleted {
					pipe.Del(ctx, d.fullKey(entry.Key))
					continue
				}
				pipe.Set(ctx, d.fullKey(entry.Key), entry.Value, 0)
			}
			return nil
		})
		return err
	}, watchKeys...)
	if errors.Is(err, redis.TxFailedErr) {
		err = fmt.Errorf("%w: %w", types.ErrTxnConflict, err)
	}
	if err != nil {
		d.logger.Error(
			fmt.Sprintf("redis commit failed: %s", err),
			"component", "database",
		)
		return err
	}
	for _, entry := range t.writes.Entries() {
		d.metrics.Op("set", len(entry.Value))
	}
	d.metrics.Commit()
	return nil
}

func (t *redisTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	t.writes.Reset()
	t.store.metrics.Rollback()
	return nil
}

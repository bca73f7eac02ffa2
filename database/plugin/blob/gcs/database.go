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

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/blinklabs-io/certledger/database/plugin/blob/internal/blobmetrics"
	"github.com/blinklabs-io/certledger/database/plugin/blob/internal/printflog"
	"github.com/blinklabs-io/certledger/database/plugin/blob/internal/writebuf"
	"github.com/blinklabs-io/certledger/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/option"
)

const defaultTimeout = 30 * time.Second

// BlobStoreGCS stores data in a Google Cloud Storage bucket, one object per
// key
type BlobStoreGCS struct {
	promRegistry    prometheus.Registerer
	metrics         *blobmetrics.Metrics
	logger          *printflog.Logger
	client          *storage.Client
	bucket          *storage.BucketHandle
	bucketName      string
	prefix          string
	credentialsFile string
	timeout         time.Duration
}

// gcsTxn buffers writes until commit, which applies them in order
type gcsTxn struct {
	ctx       context.Context
	store     *BlobStoreGCS
	writes    *writebuf.Buffer
	finished  bool
	readWrite bool
}

// NewWithOptions creates a new GCS-backed blob store using options.
func NewWithOptions(opts ...BlobStoreGCSOptionFunc) (*BlobStoreGCS, error) {
	db := &BlobStoreGCS{}

	// Apply options
	for _, opt := range opts {
		opt(db)
	}

	// Set defaults
	if db.logger == nil {
		db.logger = printflog.New(nil, "gcs")
	}
	if db.timeout == 0 {
		db.timeout = defaultTimeout
	}

	return db, nil
}

// validateCredentials checks that a configured credentials file exists
func validateCredentials(credentialsFile string) error {
	if credentialsFile == "" {
		return nil
	}
	if _, err := os.Stat(credentialsFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf(
				"GCS credentials file does not exist: %s",
				credentialsFile,
			)
		}
		return fmt.Errorf("GCS credentials file: %w", err)
	}
	return nil
}

// Close closes the GCS client.
func (d *BlobStoreGCS) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	d.bucket = nil
	return err
}

// Returns the GCS client.
func (d *BlobStoreGCS) Client() *storage.Client {
	return d.client
}

// Start implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Start() error {
	// Validate required fields
	if d.bucketName == "" {
		return errors.New("gcs blob: bucket not set")
	}
	if err := validateCredentials(d.credentialsFile); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var clientOpts []option.ClientOption
	clientOpts = append(clientOpts, storage.WithDisabledClientMetrics())
	if d.credentialsFile != "" {
		clientOpts = append(
			clientOpts,
			option.WithCredentialsFile(d.credentialsFile),
		)
	}

	client, err := storage.NewGRPCClient(
		ctx,
		clientOpts...,
	)
	if err != nil {
		return fmt.Errorf(
			"gcs blob: failed in creating storage client: %w",
			err,
		)
	}

	d.client = client
	d.bucket = client.Bucket(d.bucketName)
	d.metrics = blobmetrics.New(d.promRegistry, "gcs")
	return nil
}

// Stop implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Stop() error {
	return d.Close()
}

func (d *BlobStoreGCS) opContext(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.timeout)
}

func (d *BlobStoreGCS) object(key string) *storage.ObjectHandle {
	return d.bucket.Object(d.prefix + key)
}

func (d *BlobStoreGCS) NewTransaction(
	ctx context.Context,
	readWrite bool,
) types.Txn {
	if ctx == nil {
		ctx = context.Background()
	}
	return &gcsTxn{
		ctx:       ctx,
		store:     d,
		writes:    writebuf.New(),
		readWrite: readWrite,
	}
}

func (d *BlobStoreGCS) validateTxn(txn types.Txn) (*gcsTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	t, ok := txn.(*gcsTxn)
	if !ok || t.store != d {
		return nil, types.ErrTxnWrongType
	}
	if t.finished {
		return nil, types.ErrTxnFinished
	}
	if d.bucket == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (d *BlobStoreGCS) Get(txn types.Txn, key []byte) ([]byte, error) {
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
	r, err := d.object(string(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, types.ErrBlobKeyNotFound
		}
		d.logger.Errorf("gcs get %q failed: %v", string(key), err)
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		d.logger.Errorf("gcs read %q failed: %v", string(key), err)
		return nil, err
	}
	d.metrics.Op("get", len(data))
	return data, nil
}

func (d *BlobStoreGCS) Set(txn types.Txn, key, val []byte) error {
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

func (d *BlobStoreGCS) Delete(txn types.Txn, key []byte) error {
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

func (d *BlobStoreGCS) put(ctx context.Context, key string, val []byte) error {
	w := d.object(key).NewWriter(ctx)
	if _, err := w.Write(val); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	d.metrics.Op("set", len(val))
	return nil
}

func (d *BlobStoreGCS) delete(ctx context.Context, key string) error {
	err := d.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	d.metrics.Op("delete", 0)
	return nil
}

func (t *gcsTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if !t.readWrite || t.writes.Len() == 0 {
		return nil
	}
	d := t.store
	if d.bucket == nil {
		return types.ErrBlobStoreUnavailable
	}
	for _, entry := range t.writes.Entries() {
		ctx, cancel := d.opContext(t.ctx)
		var err error
		if entry.Deleted {
			err = d.delete(ctx, string(entry.Key))
		} else {
			err = d.put(ctx, string(entry.Key), entry.Value)
		}
		cancel()
		if err != nil {
			d.logger.Errorf("gcs commit %q failed: %v", string(entry.Key), err)
			return fmt.Errorf("gcs commit: %w", err)
		}
	}
	d.metrics.Commit()
	return nil
}

func (t *gcsTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	t.writes.Reset()
	t.store.metrics.Rollback()
	return nil
}

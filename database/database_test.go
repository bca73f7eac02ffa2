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

package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/blinklabs-io/certledger/database"
	"github.com/blinklabs-io/certledger/database/plugin/blob/badger"
	"github.com/blinklabs-io/certledger/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDb(t *testing.T) *database.Database {
	t.Helper()
	store, err := badger.New()
	require.NoError(t, err)
	db, err := database.New(&database.Config{BlobStore: store})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTxnDo(t *testing.T) {
	db := newTestDb(t)
	key := []byte(types.StateBlobKey)

	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		return txn.Set(key, []byte("hello"))
	})
	require.NoError(t, err)

	txn := db.Transaction(false)
	defer txn.Release()
	val, err := txn.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), val)
}

func TestTxnDoRollsBackOnError(t *testing.T) {
	db := newTestDb(t)
	key := []byte(types.StateBlobKey)
	errBoom := errors.New("boom")

	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := txn.Set(key, []byte("discarded")); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	txn := db.Transaction(false)
	defer txn.Release()
	_, err = txn.Get(key)
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestTxnFinished(t *testing.T) {
	db := newTestDb(t)
	txn := db.Transaction(true)
	require.NoError(t, txn.Commit())
	// Repeated commit and rollback are no-ops
	require.NoError(t, txn.Commit())
	require.NoError(t, txn.Rollback())
	require.ErrorIs(t, txn.Set([]byte("k"), []byte("v")), types.ErrTxnFinished)
}

func TestTxnReadOnly(t *testing.T) {
	db := newTestDb(t)
	txn := db.Transaction(false)
	defer txn.Release()
	require.ErrorIs(t, txn.Set([]byte("k"), []byte("v")), types.ErrTxnReadOnly)
}

func TestTxnReadWrite(t *testing.T) {
	db := newTestDb(t)
	ro := db.Transaction(false)
	defer ro.Release()
	assert.False(t, ro.ReadWrite())
	rw := db.Transaction(true)
	defer rw.Release()
	assert.True(t, rw.ReadWrite())
}

func TestTxnContextCanceled(t *testing.T) {
	db := newTestDb(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	txn := database.NewTxnWithContext(ctx, db, false)
	defer txn.Release()
	_, err := txn.Get([]byte("k"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNoStore(t *testing.T) {
	db := &database.Database{}
	txn := database.NewTxn(db, true)
	_, err := txn.Get([]byte("k"))
	require.ErrorIs(t, err, types.ErrNoStoreAvailable)
	require.ErrorIs(t, txn.Commit(), types.ErrNoStoreAvailable)
}

func TestNewFromPlugin(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(&database.Config{
		BlobPlugin:   "bolt",
		DataDir:      dataDir,
		PromRegistry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	assert.Equal(t, "bolt", db.BlobPlugin())
	assert.Equal(t, dataDir, db.DataDir())

	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))
	require.NoError(t, db.Close())

	// Data survives a reopen
	db, err = database.New(&database.Config{
		BlobPlugin: "bolt",
		DataDir:    dataDir,
	})
	require.NoError(t, err)
	defer db.Close()
	txn := db.Transaction(false)
	defer txn.Release()
	val, err := txn.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
}

func TestNewUnknownPlugin(t *testing.T) {
	_, err := database.New(&database.Config{BlobPlugin: "nope"})
	require.Error(t, err)
}

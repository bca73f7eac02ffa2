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

// Package blobtest provides the behavior checks shared by blob backend tests
package blobtest

import (
	"context"
	"testing"

	"github.com/blinklabs-io/certledger/database/plugin/blob"
	"github.com/blinklabs-io/certledger/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreTests exercises the transactional contract of a blob store. The
// newStore func must return a fresh, empty, started store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) blob.BlobStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		s := newStore(t)
		txn := s.NewTransaction(ctx, false)
		defer txn.Rollback() //nolint:errcheck
		_, err := s.Get(txn, []byte("missing"))
		require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	})

	t.Run("commit persists", func(t *testing.T) {
		s := newStore(t)
		txn := s.NewTransaction(ctx, true)
		require.NoError(t, s.Set(txn, []byte("key"), []byte("value")))
		require.NoError(t, txn.Commit())

		readTxn := s.NewTransaction(ctx, false)
		defer readTxn.Rollback() //nolint:errcheck
		val, err := s.Get(readTxn, []byte("key"))
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), val)
	})

	t.Run("rollback discards", func(t *testing.T) {
		s := newStore(t)
		txn := s.NewTransaction(ctx, true)
		require.NoError(t, s.Set(txn, []byte("key"), []byte("value")))
		require.NoError(t, txn.Rollback())

		readTxn := s.NewTransaction(ctx, false)
		defer readTxn.Rollback() //nolint:errcheck
		_, err := s.Get(readTxn, []byte("key"))
		require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	})

	t.Run("read own write", func(t *testing.T) {
		s := newStore(t)
		txn := s.NewTransaction(ctx, true)
		defer txn.Rollback() //nolint:errcheck
		require.NoError(t, s.Set(txn, []byte("key"), []byte("first")))
		require.NoError(t, s.Set(txn, []byte("key"), []byte("second")))
		val, err := s.Get(txn, []byte("key"))
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), val)
	})

	t.Run("overwrite and delete", func(t *testing.T) {
		s := newStore(t)
		txn := s.NewTransaction(ctx, true)
		require.NoError(t, s.Set(txn, []byte("key"), []byte("first")))
		require.NoError(t, txn.Commit())

		txn = s.NewTransaction(ctx, true)
		require.NoError(t, s.Set(txn, []byte("key"), []byte("second")))
		require.NoError(t, txn.Commit())

		readTxn := s.NewTransaction(ctx, false)
		val, err := s.Get(readTxn, []byte("key"))
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), val)
		require.NoError(t, readTxn.Rollback())

		txn = s.NewTransaction(ctx, true)
		require.NoError(t, s.Delete(txn, []byte("key")))
		_, err = s.Get(txn, []byte("key"))
		require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
		require.NoError(t, txn.Commit())

		readTxn = s.NewTransaction(ctx, false)
		defer readTxn.Rollback() //nolint:errcheck
		_, err = s.Get(readTxn, []byte("key"))
		require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	})

	t.Run("read-only rejects writes", func(t *testing.T) {
		s := newStore(t)
		txn := s.NewTransaction(ctx, false)
		defer txn.Rollback() //nolint:errcheck
		require.ErrorIs(
			t,
			s.Set(txn, []byte("key"), []byte("value")),
			types.ErrTxnReadOnly,
		)
	})

	t.Run("finished transaction", func(t *testing.T) {
		s := newStore(t)
		txn := s.NewTransaction(ctx, true)
		require.NoError(t, txn.Commit())
		// Finishing twice is a no-op
		require.NoError(t, txn.Commit())
		require.NoError(t, txn.Rollback())
		_, err := s.Get(txn, []byte("key"))
		require.ErrorIs(t, err, types.ErrTxnFinished)
		require.ErrorIs(
			t,
			s.Set(txn, []byte("key"), []byte("value")),
			types.ErrTxnFinished,
		)
	})

	t.Run("nil transaction", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(nil, []byte("key"))
		require.ErrorIs(t, err, types.ErrNilTxn)
	})

	t.Run("values are copies", func(t *testing.T) {
		s := newStore(t)
		input := []byte("value")
		txn := s.NewTransaction(ctx, true)
		require.NoError(t, s.Set(txn, []byte("key"), input))
		require.NoError(t, txn.Commit())
		input[0] = 'X'

		readTxn := s.NewTransaction(ctx, false)
		val, err := s.Get(readTxn, []byte("key"))
		require.NoError(t, err)
		require.NoError(t, readTxn.Rollback())
		assert.Equal(t, []byte("value"), val)
		val[0] = 'Y'

		readTxn = s.NewTransaction(ctx, false)
		defer readTxn.Rollback() //nolint:errcheck
		again, err := s.Get(readTxn, []byte("key"))
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), again)
	})
}

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

package bolt_test

import (
	"context"
	"testing"

	"github.com/blinklabs-io/certledger/database/plugin/blob"
	"github.com/blinklabs-io/certledger/database/plugin/blob/bolt"
	"github.com/blinklabs-io/certledger/database/plugin/blob/internal/blobtest"
	"github.com/blinklabs-io/certledger/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, dataDir string) *bolt.BlobStoreBolt {
	t.Helper()
	s, err := bolt.New(bolt.WithDataDir(dataDir), bolt.WithNoSync(true))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBlobStore(t *testing.T) {
	blobtest.RunStoreTests(t, func(t *testing.T) blob.BlobStore {
		return newStore(t, t.TempDir())
	})
}

func TestBlobStoreRequiresDataDir(t *testing.T) {
	_, err := bolt.New()
	require.Error(t, err)
}

func TestBlobStoreReopen(t *testing.T) {
	dataDir := t.TempDir()
	s := newStore(t, dataDir)
	txn := s.NewTransaction(context.Background(), true)
	require.NoError(t, s.Set(txn, []byte(types.StateBlobKey), []byte("snapshot")))
	require.NoError(t, txn.Commit())
	require.NoError(t, s.Close())

	s = newStore(t, dataDir)
	readTxn := s.NewTransaction(context.Background(), false)
	defer readTxn.Rollback() //nolint:errcheck
	val, err := s.Get(readTxn, []byte(types.StateBlobKey))
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot"), val)
}

func TestBlobStoreClosed(t *testing.T) {
	s := newStore(t, t.TempDir())
	require.NoError(t, s.Close())
	txn := s.NewTransaction(context.Background(), false)
	_, err := s.Get(txn, []byte("key"))
	require.ErrorIs(t, err, types.ErrBlobStoreUnavailable)
}

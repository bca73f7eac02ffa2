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

package sqlite_test

import (
	"context"
	"testing"

	"github.com/blinklabs-io/certledger/database/plugin/blob"
	"github.com/blinklabs-io/certledger/database/plugin/blob/internal/blobtest"
	"github.com/blinklabs-io/certledger/database/plugin/blob/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStoreInMemory(t *testing.T) {
	blobtest.RunStoreTests(t, func(t *testing.T) blob.BlobStore {
		s, err := sqlite.New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBlobStoreOnDisk(t *testing.T) {
	blobtest.RunStoreTests(t, func(t *testing.T) blob.BlobStore {
		s, err := sqlite.New(sqlite.WithDataDir(t.TempDir()))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestInMemoryStoresAreIsolated(t *testing.T) {
	s1, err := sqlite.New()
	require.NoError(t, err)
	defer s1.Close()
	s2, err := sqlite.New()
	require.NoError(t, err)
	defer s2.Close()

	txn := s1.NewTransaction(context.Background(), true)
	require.NoError(t, s1.Set(txn, []byte("key"), []byte("value")))
	require.NoError(t, txn.Commit())

	readTxn := s2.NewTransaction(context.Background(), false)
	defer readTxn.Rollback() //nolint:errcheck
	_, err = s2.Get(readTxn, []byte("key"))
	assert.Error(t, err)
}

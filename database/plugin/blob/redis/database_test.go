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

package redis_test

import (
	"context"
	"os"
	"testing"

	"github.com/blinklabs-io/certledger/database/plugin/blob"
	"github.com/blinklabs-io/certledger/database/plugin/blob/internal/blobtest"
	"github.com/blinklabs-io/certledger/database/plugin/blob/redis"
	"github.com/blinklabs-io/certledger/database/types"
	"github.com/stretchr/testify/require"
)

func TestStartRequiresURL(t *testing.T) {
	s, err := redis.New()
	require.NoError(t, err)
	require.Error(t, s.Start())
}

func TestStartInvalidURL(t *testing.T) {
	s, err := redis.New(redis.WithURL("not a url"))
	require.NoError(t, err)
	require.Error(t, s.Start())
}

func TestNotStarted(t *testing.T) {
	s, err := redis.New(redis.WithURL("redis://localhost:6379"))
	require.NoError(t, err)
	txn := s.NewTransaction(context.Background(), true)
	_, err = s.Get(txn, []byte("key"))
	require.ErrorIs(t, err, types.ErrBlobStoreUnavailable)
}

// Runs against a live server when CERTLEDGER_TEST_REDIS_URL is set
func TestBlobStore(t *testing.T) {
	url := os.Getenv("CERTLEDGER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CERTLEDGER_TEST_REDIS_URL not set")
	}
	blobtest.RunStoreTests(t, func(t *testing.T) blob.BlobStore {
		s, err := redis.New(
			redis.WithURL(url),
			redis.WithPrefix("certledger-test:"+t.Name()+":"),
		)
		require.NoError(t, err)
		require.NoError(t, s.Start())
		t.Cleanup(func() {
			ctx := context.Background()
			keys, _ := s.Client().Keys(ctx, "certledger-test:"+t.Name()+":*").Result()
			if len(keys) > 0 {
				_ = s.Client().Del(ctx, keys...).Err()
			}
			_ = s.Close()
		})
		return s
	})
}

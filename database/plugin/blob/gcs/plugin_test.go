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
	"os"
	"path/filepath"
	"testing"

	"github.com/blinklabs-io/certledger/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialValidation(t *testing.T) {
	tempDir := t.TempDir()
	existing := filepath.Join(tempDir, "credentials.json")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0o600))

	tests := []struct {
		name            string
		credentialsFile string
		errorMessage    string
	}{
		{
			name:            "valid credentials file",
			credentialsFile: existing,
		},
		{
			name:            "nonexistent credentials file",
			credentialsFile: filepath.Join(tempDir, "nonexistent-credentials.json"),
			errorMessage:    "GCS credentials file does not exist",
		},
		{
			name:            "empty credentials file path",
			credentialsFile: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCredentials(tt.credentialsFile)
			if tt.errorMessage == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.errorMessage)
		})
	}
}

func TestStartValidation(t *testing.T) {
	s, err := NewWithOptions()
	require.NoError(t, err)
	require.ErrorContains(t, s.Start(), "bucket not set")

	s, err = NewWithOptions(
		WithBucket("test"),
		WithCredentialsFile(filepath.Join(t.TempDir(), "missing.json")),
	)
	require.NoError(t, err)
	require.ErrorContains(t, s.Start(), "does not exist")
}

func TestOptions(t *testing.T) {
	s, err := NewWithOptions(WithBucket("bucket"), WithPrefix("/ledger/"))
	require.NoError(t, err)
	assert.Equal(t, "bucket", s.bucketName)
	assert.Equal(t, "ledger/", s.prefix)
	assert.Equal(t, defaultTimeout, s.timeout)
}

func TestTxnWithoutClient(t *testing.T) {
	s, err := NewWithOptions(WithBucket("bucket"))
	require.NoError(t, err)
	txn := s.NewTransaction(context.Background(), false)
	_, err = s.Get(txn, []byte("key"))
	require.ErrorIs(t, err, types.ErrBlobStoreUnavailable)
	require.NoError(t, txn.Commit())
}

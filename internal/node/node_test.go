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

package node_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/blinklabs-io/certledger/address"
	"github.com/blinklabs-io/certledger/contract"
	"github.com/blinklabs-io/certledger/database/plugin/blob/badger"
	"github.com/blinklabs-io/certledger/internal/config"
	"github.com/blinklabs-io/certledger/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.MetricsAddress = "127.0.0.1:0"
	cfg.Seed = 7
	return cfg
}

func newMemoryNode(t *testing.T, cfg *config.Config) *node.Node {
	t.Helper()
	blobStore, err := badger.New()
	require.NoError(t, err)
	n, err := node.New(
		context.Background(),
		cfg,
		nil,
		node.WithBlobStore(blobStore),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Stop(context.Background()) })
	return n
}

func owner(t *testing.T) address.CanonicalAddr {
	t.Helper()
	return address.CanonicalAddr(bytes.Repeat([]byte{1}, address.DefaultLength))
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec,noctx
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestNodeServesApiAndMetrics(t *testing.T) {
	n := newMemoryNode(t, testConfig())
	require.NoError(t, n.Start(context.Background()))
	require.NotNil(t, n.APIAddr())
	require.NotNil(t, n.MetricsAddr())

	status, body := get(t, "http://"+n.APIAddr().String()+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"healthy": true}`, string(body))

	_, err := n.Contract().Init(
		context.Background(),
		contract.Env{Message: contract.MessageInfo{Signer: owner(t)}},
		contract.InitMsg{},
		false,
	)
	require.NoError(t, err)

	status, body = get(t, "http://"+n.APIAddr().String()+"/v1/count")
	require.Equal(t, http.StatusOK, status)
	var count contract.CountResponse
	require.NoError(t, json.Unmarshal(body, &count))
	assert.Equal(t, uint64(0), count.Count)

	status, body = get(t, "http://"+n.MetricsAddr().String()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "go_goroutines")
	assert.Contains(t, string(body), "certledger_contract_certificates")

	require.NoError(t, n.Stop(context.Background()))
	// Repeated stops are harmless
	require.NoError(t, n.Stop(context.Background()))
}

func TestNodeWithoutMetricsListener(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsAddress = ""
	n := newMemoryNode(t, cfg)
	require.NoError(t, n.Start(context.Background()))
	assert.Nil(t, n.MetricsAddr())
	assert.NotNil(t, n.APIAddr())
}

func TestNodeBoltPlugin(t *testing.T) {
	cfg := testConfig()
	cfg.BlobPlugin = "bolt"
	cfg.DataDir = filepath.Join(t.TempDir(), "bolt")
	signer := contract.Env{Message: contract.MessageInfo{Signer: owner(t)}}

	n, err := node.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	_, err = n.Contract().Init(context.Background(), signer, contract.InitMsg{}, false)
	require.NoError(t, err)
	require.NoError(t, n.Stop(context.Background()))

	// State survives a restart
	n, err = node.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer n.Stop(context.Background()) //nolint:errcheck
	_, err = n.Contract().Init(context.Background(), signer, contract.InitMsg{}, false)
	require.ErrorIs(t, err, contract.ErrAlreadyInitialized)
}

func TestNodeStdoutTracing(t *testing.T) {
	cfg := testConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = config.TracingExporterStdout
	n := newMemoryNode(t, cfg)
	count, err := n.Contract().Count(context.Background())
	require.Error(t, err)
	assert.Equal(t, contract.CountResponse{}, count)
}

func TestNodeConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"unknown codec", func(c *config.Config) { c.Codec = "xml" }},
		{"unknown blob plugin", func(c *config.Config) {
			c.BlobPlugin = "nosuchplugin"
			c.DataDir = ""
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.modify(cfg)
			_, err := node.New(context.Background(), cfg, nil)
			require.Error(t, err)
		})
	}
	_, err := node.New(context.Background(), nil, nil)
	require.Error(t, err)
}

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

package contract_test

import (
	"testing"

	"github.com/blinklabs-io/certledger/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHandleMsg(t *testing.T) {
	msg, err := contract.ParseHandleMsg([]byte(`{"addinstitute":{
		"name":"Acme U","year":1890,"website":"w","email":"e",
		"location":"l","wallet_address":"cert1xyz"}}`))
	require.NoError(t, err)
	require.NotNil(t, msg.AddInstitute)
	assert.Equal(t, "addinstitute", msg.Kind())
	assert.Equal(t, uint64(1890), msg.AddInstitute.Year)

	msg, err = contract.ParseHandleMsg([]byte(`{"storecertificate":{
		"name":"n","join_date":"j","end_date":"e","domain":"d","address":"a"}}`))
	require.NoError(t, err)
	assert.Equal(t, "storecertificate", msg.Kind())
	assert.Equal(t, "d", msg.StoreCertificate.Domain)

	for _, input := range []string{
		`{}`,
		`{"unknown":{}}`,
		`{"addinstitute":{},"storecertificate":{}}`,
		`{"addinstitute":{"name":"x","extra":1}}`,
		`{"addinstitute":{}} {}`,
		`not json`,
	} {
		_, err := contract.ParseHandleMsg([]byte(input))
		require.ErrorIs(t, err, contract.ErrInvalidMessage, input)
	}
}

func TestParseQueryMsg(t *testing.T) {
	msg, err := contract.ParseQueryMsg([]byte(`{"getcount":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "getcount", msg.Kind())

	msg, err = contract.ParseQueryMsg([]byte(`{"getcertificatebyhash":{"hash":"ab c"}}`))
	require.NoError(t, err)
	assert.Equal(t, "ab c", msg.GetCertificateByHash.Hash)

	msg, err = contract.ParseQueryMsg([]byte(`{"getusercertificates":{"user":"cert1q"}}`))
	require.NoError(t, err)
	assert.Equal(t, "cert1q", msg.GetUserCertificates.User.String())

	_, err = contract.ParseQueryMsg([]byte(`{"getcount":null}`))
	require.ErrorIs(t, err, contract.ErrInvalidMessage)
}

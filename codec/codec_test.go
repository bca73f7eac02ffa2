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

package codec_test

import (
	"testing"

	"github.com/blinklabs-io/certledger/address"
	"github.com/blinklabs-io/certledger/codec"
	"github.com/blinklabs-io/certledger/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState() *state.State {
	owner := address.CanonicalAddr{0x01, 0x02, 0x03, 0x04}
	holder := address.CanonicalAddr{0x05, 0x06, 0x07, 0x08}
	issuer := address.CanonicalAddr{0x09, 0x0a, 0x0b, 0x0c}
	s := state.New(owner)
	s.Institutes["issuer"] = state.Institute{
		Name:          "Example University",
		Year:          2001,
		Website:       "https://example.edu",
		Email:         "registrar@example.edu",
		Location:      "Springfield",
		WalletAddress: issuer,
	}
	cert := state.Certificate{
		Name:             "Bob",
		Institute:        "Example University",
		JoinDate:         "2019",
		EndDate:          "2023",
		Domain:           "Mathematics",
		Hash:             "x\x7f!~",
		UserAddress:      holder,
		InstituteAddress: issuer,
	}
	s.Hashes[cert.Hash] = cert
	s.Users["holder"] = state.User{
		Count:   1,
		Details: map[string]state.Certificate{cert.Hash: cert},
	}
	s.Count = 1
	return s
}

func TestStateRoundTrip(t *testing.T) {
	for _, name := range codec.Names() {
		t.Run(name, func(t *testing.T) {
			c, err := codec.ByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())
			orig := testState()
			data, err := c.Marshal(orig)
			require.NoError(t, err)
			var decoded state.State
			require.NoError(t, c.Unmarshal(data, &decoded))
			decoded.Normalize()
			assert.Equal(t, orig, &decoded)
			require.NoError(t, decoded.Validate())
		})
	}
}

func TestByName(t *testing.T) {
	c, err := codec.ByName("")
	require.NoError(t, err)
	assert.Equal(t, codec.DefaultName, c.Name())
	c, err = codec.ByName("JSON")
	require.NoError(t, err)
	assert.Equal(t, codec.NameJson, c.Name())
	_, err = codec.ByName("xml")
	require.ErrorIs(t, err, codec.ErrUnknownCodec)
}

func TestUnmarshalGarbage(t *testing.T) {
	var s state.State
	require.Error(t, codec.Json().Unmarshal([]byte("{"), &s))
	require.Error(t, codec.Cbor().Unmarshal([]byte{0xff, 0x00}, &s))
}

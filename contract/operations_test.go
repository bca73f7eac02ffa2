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
	"strings"
	"testing"

	"github.com/blinklabs-io/certledger/address"
	"github.com/blinklabs-io/certledger/contract"
	"github.com/blinklabs-io/certledger/identifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformsAreExplicit(t *testing.T) {
	_, owner := party(t, 1)
	instHuman, inst := party(t, 2)
	holderHuman, _ := party(t, 3)
	deps := contract.Deps{
		Api: api,
		Ids: identifier.GeneratorFunc(func() string { return "h#1!" }),
	}

	st := contract.Instantiate(envFor(owner), contract.InitMsg{})
	assert.Equal(t, owner, st.Owner)
	assert.Equal(t, uint64(0), st.Count)

	st, err := contract.RegisterInstitute(deps, envFor(owner), st, *addInstitute("Acme U", instHuman).AddInstitute)
	require.NoError(t, err)

	st, hash, err := contract.IssueCertificate(deps, envFor(inst), st, *storeCertificate(holderHuman, "CS").StoreCertificate)
	require.NoError(t, err)
	assert.Equal(t, "h#1!", hash)
	require.NoError(t, st.Validate())

	byHash, err := contract.QueryCertificateByHash(st, hash)
	require.NoError(t, err)
	user, err := contract.QueryUserCertificates(api, st, holderHuman)
	require.NoError(t, err)
	assert.Equal(t, byHash.Certificate, user.Certificates.Details[hash])
	assert.Equal(t, uint64(1), contract.QueryCount(st).Count)

	// The generator only returns a taken hash now
	_, _, err = contract.IssueCertificate(deps, envFor(inst), st, *storeCertificate(holderHuman, "CS").StoreCertificate)
	require.ErrorIs(t, err, contract.ErrHashCollision)
}

func TestUserLookupNormalizesAddress(t *testing.T) {
	_, owner := party(t, 1)
	instHuman, inst := party(t, 2)
	holderHuman, _ := party(t, 3)
	deps := contract.Deps{
		Api: api,
		Ids: identifier.GeneratorFunc(func() string { return "abcd" }),
	}
	st := contract.Instantiate(envFor(owner), contract.InitMsg{})
	st, err := contract.RegisterInstitute(deps, envFor(owner), st, *addInstitute("Acme U", instHuman).AddInstitute)
	require.NoError(t, err)
	st, _, err = contract.IssueCertificate(deps, envFor(inst), st, *storeCertificate(holderHuman, "CS").StoreCertificate)
	require.NoError(t, err)

	upper := address.HumanAddr(strings.ToUpper(holderHuman.String()))
	resp, err := contract.QueryUserCertificates(api, st, upper)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.Certificates.Count)
}

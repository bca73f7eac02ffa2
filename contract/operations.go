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

package contract

import (
	"fmt"
	"slices"

	"github.com/blinklabs-io/certledger/address"
	"github.com/blinklabs-io/certledger/identifier"
	"github.com/blinklabs-io/certledger/state"
)

// DefaultMaxHashAttempts bounds hash generation when a candidate is taken
const DefaultMaxHashAttempts = 16

// Deps are the host capabilities used by the domain transforms
type Deps struct {
	Api             address.Api
	Ids             identifier.Generator
	MaxHashAttempts int
	// OnCollision, if set, is called for each generated hash that is taken
	OnCollision func(hash string)
}

// Instantiate returns a fresh state owned by the signer
func Instantiate(env Env, _ InitMsg) *state.State {
	return state.New(env.Message.Signer)
}

// RegisterInstitute inserts or replaces the institute keyed by the wallet
// address. Only the owner may call it.
func RegisterInstitute(
	deps Deps,
	env Env,
	st *state.State,
	msg AddInstitute,
) (*state.State, error) {
	if !env.Message.Signer.Equal(st.Owner) {
		return nil, ErrUnauthorized
	}
	human, canonical, err := address.Normalize(deps.Api, msg.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("wallet address: %w", err)
	}
	st.Institutes[human.String()] = state.Institute{
		Name:          msg.Name,
		Year:          msg.Year,
		Website:       msg.Website,
		Email:         msg.Email,
		Location:      msg.Location,
		WalletAddress: canonical,
	}
	return st, nil
}

// IssueCertificate records a certificate from the signing institute to the
// holder address and returns the new certificate hash
func IssueCertificate(
	deps Deps,
	env Env,
	st *state.State,
	msg StoreCertificate,
) (*state.State, string, error) {
	signer, err := deps.Api.HumanAddress(env.Message.Signer)
	if err != nil {
		return nil, "", fmt.Errorf("signer address: %w", err)
	}
	holder, holderCanonical, err := address.Normalize(deps.Api, msg.Address)
	if err != nil {
		return nil, "", fmt.Errorf("holder address: %w", err)
	}
	institute, ok := st.Institutes[signer.String()]
	if !ok {
		return nil, "", ErrNoInstitute
	}
	hash, err := uniqueHash(deps, st)
	if err != nil {
		return nil, "", err
	}
	cert := state.Certificate{
		Name:             msg.Name,
		Institute:        institute.Name,
		JoinDate:         msg.JoinDate,
		EndDate:          msg.EndDate,
		Domain:           msg.Domain,
		Hash:             hash,
		UserAddress:      holderCanonical,
		InstituteAddress: slices.Clone(institute.WalletAddress),
	}
	user, ok := st.Users[holder.String()]
	if !ok {
		user = state.User{Details: make(map[string]state.Certificate)}
	}
	user.Count++
	user.Details[hash] = cert
	st.Users[holder.String()] = user
	st.Hashes[hash] = cert.Clone()
	st.Count++
	return st, hash, nil
}

func uniqueHash(deps Deps, st *state.State) (string, error) {
	attempts := deps.MaxHashAttempts
	if attempts <= 0 {
		attempts = DefaultMaxHashAttempts
	}
	for range attempts {
		hash := deps.Ids.Generate()
		if _, exists := st.Hashes[hash]; !exists {
			return hash, nil
		}
		if deps.OnCollision != nil {
			deps.OnCollision(hash)
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrHashCollision, attempts)
}

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

	"github.com/blinklabs-io/certledger/address"
	"github.com/blinklabs-io/certledger/state"
)

func QueryCount(st *state.State) CountResponse {
	return CountResponse{Count: st.Count}
}

func QueryCertificateByHash(
	st *state.State,
	hash string,
) (HashCertResponse, error) {
	cert, ok := st.Hashes[hash]
	if !ok {
		return HashCertResponse{}, fmt.Errorf(
			"%w: certificate %q",
			ErrNotFound,
			hash,
		)
	}
	return HashCertResponse{Certificate: cert.Clone()}, nil
}

// QueryUserCertificates looks up a holder by address. Any spelling of the
// address that decodes to the same canonical form matches.
func QueryUserCertificates(
	api address.Api,
	st *state.State,
	user address.HumanAddr,
) (UserCertsResponse, error) {
	human, _, err := address.Normalize(api, user)
	if err != nil {
		return UserCertsResponse{}, fmt.Errorf("user address: %w", err)
	}
	u, ok := st.Users[human.String()]
	if !ok {
		return UserCertsResponse{}, fmt.Errorf(
			"%w: user %s",
			ErrNotFound,
			human,
		)
	}
	details := make(map[string]state.Certificate, len(u.Details))
	for h, c := range u.Details {
		details[h] = c.Clone()
	}
	return UserCertsResponse{
		Certificates: state.User{Count: u.Count, Details: details},
	}, nil
}

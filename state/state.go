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

// Package state defines the certificate ledger aggregate and its records.
package state

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/blinklabs-io/certledger/address"
)

var ErrInvariant = errors.New("state invariant violated")

// Institute is an organization allowed to issue certificates
type Institute struct {
	Name          string                `json:"name"           cbor:"0,keyasint"`
	Year          uint64                `json:"year"           cbor:"1,keyasint"`
	Website       string                `json:"website"        cbor:"2,keyasint"`
	Email         string                `json:"email"          cbor:"3,keyasint"`
	Location      string                `json:"location"       cbor:"4,keyasint"`
	WalletAddress address.CanonicalAddr `json:"wallet_address" cbor:"5,keyasint"`
}

// Certificate is an issued credential. It is never modified after issue.
type Certificate struct {
	Name             string                `json:"name"              cbor:"0,keyasint"`
	Institute        string                `json:"institute"         cbor:"1,keyasint"`
	JoinDate         string                `json:"join_date"         cbor:"2,keyasint"`
	EndDate          string                `json:"end_date"          cbor:"3,keyasint"`
	Domain           string                `json:"domain"            cbor:"4,keyasint"`
	Hash             string                `json:"hash"              cbor:"5,keyasint"`
	UserAddress      address.CanonicalAddr `json:"user_address"      cbor:"6,keyasint"`
	InstituteAddress address.CanonicalAddr `json:"institute_address" cbor:"7,keyasint"`
}

// User holds the certificates issued to one holder address, keyed by hash
type User struct {
	Count   uint64                 `json:"count"   cbor:"0,keyasint"`
	Details map[string]Certificate `json:"details" cbor:"1,keyasint"`
}

// State is the singleton aggregate persisted under StateKey
type State struct {
	Users      map[string]User        `json:"users"      cbor:"0,keyasint"`
	Hashes     map[string]Certificate `json:"hashes"     cbor:"1,keyasint"`
	Institutes map[string]Institute   `json:"institutes" cbor:"2,keyasint"`
	Owner      address.CanonicalAddr  `json:"owner"      cbor:"3,keyasint"`
	Count      uint64                 `json:"count"      cbor:"4,keyasint"`
}

// New returns an empty State owned by owner
func New(owner address.CanonicalAddr) *State {
	return &State{
		Users:      make(map[string]User),
		Hashes:     make(map[string]Certificate),
		Institutes: make(map[string]Institute),
		Owner:      slices.Clone(owner),
	}
}

// Normalize replaces nil maps with empty ones. Decoders produce nil maps
// for empty collections.
func (s *State) Normalize() {
	if s.Users == nil {
		s.Users = make(map[string]User)
	}
	if s.Hashes == nil {
		s.Hashes = make(map[string]Certificate)
	}
	if s.Institutes == nil {
		s.Institutes = make(map[string]Institute)
	}
	for k, u := range s.Users {
		if u.Details == nil {
			u.Details = make(map[string]Certificate)
			s.Users[k] = u
		}
	}
}

// Clone returns a deep copy
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	ret := &State{
		Users:      make(map[string]User, len(s.Users)),
		Hashes:     make(map[string]Certificate, len(s.Hashes)),
		Institutes: make(map[string]Institute, len(s.Institutes)),
		Owner:      slices.Clone(s.Owner),
		Count:      s.Count,
	}
	for k, u := range s.Users {
		details := make(map[string]Certificate, len(u.Details))
		for h, c := range u.Details {
			details[h] = c.Clone()
		}
		ret.Users[k] = User{Count: u.Count, Details: details}
	}
	for k, c := range s.Hashes {
		ret.Hashes[k] = c.Clone()
	}
	for k, i := range s.Institutes {
		i.WalletAddress = slices.Clone(i.WalletAddress)
		ret.Institutes[k] = i
	}
	return ret
}

func (c Certificate) Clone() Certificate {
	c.UserAddress = slices.Clone(c.UserAddress)
	c.InstituteAddress = slices.Clone(c.InstituteAddress)
	return c
}

// Equal reports whether two certificates have identical fields
func (c Certificate) Equal(other Certificate) bool {
	return c.Name == other.Name &&
		c.Institute == other.Institute &&
		c.JoinDate == other.JoinDate &&
		c.EndDate == other.EndDate &&
		c.Domain == other.Domain &&
		c.Hash == other.Hash &&
		c.UserAddress.Equal(other.UserAddress) &&
		c.InstituteAddress.Equal(other.InstituteAddress)
}

// Validate checks the counting and duplication invariants of the aggregate:
// count matches the number of hashes and the sum of user counts, every
// user count matches its details, and every detail is the same record as
// the hashes entry it mirrors
func (s *State) Validate() error {
	if s.Count != uint64(len(s.Hashes)) {
		return fmt.Errorf(
			"%w: count %d does not match %d hashes",
			ErrInvariant,
			s.Count,
			len(s.Hashes),
		)
	}
	var userTotal uint64
	// Sorted for stable error messages
	for _, key := range slices.Sorted(maps.Keys(s.Users)) {
		u := s.Users[key]
		if u.Count != uint64(len(u.Details)) {
			return fmt.Errorf(
				"%w: user %s count %d does not match %d certificates",
				ErrInvariant,
				key,
				u.Count,
				len(u.Details),
			)
		}
		for hash, cert := range u.Details {
			stored, ok := s.Hashes[hash]
			if !ok {
				return fmt.Errorf(
					"%w: user %s certificate %q missing from hashes",
					ErrInvariant,
					key,
					hash,
				)
			}
			if !stored.Equal(cert) {
				return fmt.Errorf(
					"%w: user %s certificate %q differs from hashes entry",
					ErrInvariant,
					key,
					hash,
				)
			}
		}
		userTotal += u.Count
	}
	if userTotal != s.Count {
		return fmt.Errorf(
			"%w: user total %d does not match count %d",
			ErrInvariant,
			userTotal,
			s.Count,
		)
	}
	return nil
}

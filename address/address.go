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

// Package address provides the two representations of a participant
// identity and the capability that converts between them.
package address

import (
	"bytes"
	"encoding/hex"
	"errors"
)

var ErrMalformedAddress = errors.New("malformed address")

// HumanAddr is the human-readable form of an address. It is used in
// requests and as the key of address-indexed maps.
type HumanAddr string

func (h HumanAddr) String() string {
	return string(h)
}

// CanonicalAddr is the binary form of an address. Ownership checks compare
// canonical addresses.
type CanonicalAddr []byte

func (c CanonicalAddr) Equal(other CanonicalAddr) bool {
	return bytes.Equal(c, other)
}

func (c CanonicalAddr) String() string {
	return hex.EncodeToString(c)
}

// Api converts between human-readable and canonical addresses. Both
// directions fail with ErrMalformedAddress on invalid input.
type Api interface {
	CanonicalAddress(HumanAddr) (CanonicalAddr, error)
	HumanAddress(CanonicalAddr) (HumanAddr, error)
}

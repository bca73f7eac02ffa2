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

package address

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	DefaultPrefix = "cert"
	DefaultLength = 20
)

// Bech32Api encodes canonical addresses as bech32 strings with a fixed
// human-readable prefix
type Bech32Api struct {
	prefix string
	length int
}

type Bech32ApiOptionFunc func(*Bech32Api)

// WithPrefix sets the bech32 human-readable part
func WithPrefix(prefix string) Bech32ApiOptionFunc {
	return func(a *Bech32Api) {
		a.prefix = prefix
	}
}

// WithLength sets the required canonical address length in bytes. A
// length of 0 accepts any non-empty address.
func WithLength(length int) Bech32ApiOptionFunc {
	return func(a *Bech32Api) {
		a.length = length
	}
}

func NewBech32Api(opts ...Bech32ApiOptionFunc) *Bech32Api {
	a := &Bech32Api{
		prefix: DefaultPrefix,
		length: DefaultLength,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Bech32Api) Prefix() string {
	return a.prefix
}

func (a *Bech32Api) CanonicalAddress(human HumanAddr) (CanonicalAddr, error) {
	if human == "" {
		return nil, fmt.Errorf("%w: empty address", ErrMalformedAddress)
	}
	hrp, data, err := bech32.Decode(string(human))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedAddress, err)
	}
	if hrp != a.prefix {
		return nil, fmt.Errorf(
			"%w: unexpected prefix %q, wanted %q",
			ErrMalformedAddress,
			hrp,
			a.prefix,
		)
	}
	// Convert from base32 back to bytes
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedAddress, err)
	}
	if err := a.checkLength(raw); err != nil {
		return nil, err
	}
	return CanonicalAddr(raw), nil
}

func (a *Bech32Api) HumanAddress(canonical CanonicalAddr) (HumanAddr, error) {
	if err := a.checkLength(canonical); err != nil {
		return "", err
	}
	convData, err := bech32.ConvertBits(canonical, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedAddress, err)
	}
	encoded, err := bech32.Encode(a.prefix, convData)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedAddress, err)
	}
	return HumanAddr(encoded), nil
}

// Normalize returns the canonical human-readable spelling of an address,
// so that differently cased inputs map to the same key
func Normalize(api Api, human HumanAddr) (HumanAddr, CanonicalAddr, error) {
	canonical, err := api.CanonicalAddress(
		HumanAddr(strings.TrimSpace(string(human))),
	)
	if err != nil {
		return "", nil, err
	}
	normalized, err := api.HumanAddress(canonical)
	if err != nil {
		return "", nil, err
	}
	return normalized, canonical, nil
}

func (a *Bech32Api) checkLength(raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty address", ErrMalformedAddress)
	}
	if a.length > 0 && len(raw) != a.length {
		return fmt.Errorf(
			"%w: invalid length %d, wanted %d",
			ErrMalformedAddress,
			len(raw),
			a.length,
		)
	}
	return nil
}

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

// Package identifier produces the short tokens that identify issued
// certificates.
package identifier

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

const (
	// Length is the number of characters in a generated token
	Length = 4

	// Every character is 0x20 plus a value in [0, 96), so 0x7F is possible
	charBase  = 0x20
	charRange = 96
)

// Generator produces certificate tokens
type Generator interface {
	Generate() string
}

// GeneratorFunc adapts a plain function to the Generator interface
type GeneratorFunc func() string

func (f GeneratorFunc) Generate() string {
	return f()
}

// RandomGenerator draws tokens from a PCG source. It is safe for
// concurrent use.
type RandomGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

type RandomGeneratorOptionFunc func(*randomGeneratorOptions)

type randomGeneratorOptions struct {
	seed    uint64
	hasSeed bool
}

// WithSeed fixes the generator seed for reproducible output
func WithSeed(seed uint64) RandomGeneratorOptionFunc {
	return func(o *randomGeneratorOptions) {
		o.seed = seed
		o.hasSeed = true
	}
}

// NewRandomGenerator returns a generator seeded from crypto/rand unless a
// fixed seed is given
func NewRandomGenerator(
	opts ...RandomGeneratorOptionFunc,
) (*RandomGenerator, error) {
	o := randomGeneratorOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasSeed {
		seed, err := NewSeed()
		if err != nil {
			return nil, err
		}
		o.seed = seed
	}
	return &RandomGenerator{
		rng: rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (g *RandomGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ret := make([]byte, Length)
	for i := range ret {
		ret[i] = byte(charBase + g.rng.IntN(charRange))
	}
	return string(ret)
}

// NewSeed reads a seed from crypto/rand
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Valid reports whether s has the shape of a generated token
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := range len(s) {
		if s[i] < charBase || s[i] >= charBase+charRange {
			return false
		}
	}
	return true
}

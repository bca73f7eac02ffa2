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

// Package codec serializes ledger snapshots for storage
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/blinklabs-io/gouroboros/cbor"
)

const (
	NameCbor = "cbor"
	NameJson = "json"

	DefaultName = NameCbor
)

var ErrUnknownCodec = errors.New("unknown codec")

// Codec converts values to and from their stored byte form
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type cborCodec struct{}

func (cborCodec) Name() string { return NameCbor }

func (cborCodec) Marshal(v any) ([]byte, error) {
	return cbor.Encode(v)
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	if _, err := cbor.Decode(data, v); err != nil {
		return fmt.Errorf("cbor decode: %w", err)
	}
	return nil
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return NameJson }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	return nil
}

var codecs = map[string]Codec{
	NameCbor: cborCodec{},
	NameJson: jsonCodec{},
}

// Cbor returns the CBOR codec
func Cbor() Codec { return codecs[NameCbor] }

// Json returns the JSON codec
func Json() Codec { return codecs[NameJson] }

// ByName returns the codec with the given name. An empty name selects the
// default codec.
func ByName(name string) (Codec, error) {
	if name == "" {
		name = DefaultName
	}
	c, ok := codecs[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
	return c, nil
}

// Names returns the names of the available codecs
func Names() []string {
	ret := make([]string, 0, len(codecs))
	for name := range codecs {
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}

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
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/blinklabs-io/certledger/address"
	"github.com/blinklabs-io/certledger/state"
)

// MessageInfo describes the transaction that carries a message
type MessageInfo struct {
	// Signer is the already authenticated caller
	Signer address.CanonicalAddr
}

// Env is the execution environment supplied by the host for each message
type Env struct {
	Message MessageInfo
}

type InitMsg struct{}

// HandleMsg is a mutation request. Exactly one field must be set.
type HandleMsg struct {
	AddInstitute     *AddInstitute     `json:"addinstitute,omitempty"`
	StoreCertificate *StoreCertificate `json:"storecertificate,omitempty"`
}

type AddInstitute struct {
	Name          string            `json:"name"`
	Year          uint64            `json:"year"`
	Website       string            `json:"website"`
	Email         string            `json:"email"`
	Location      string            `json:"location"`
	WalletAddress address.HumanAddr `json:"wallet_address"`
}

type StoreCertificate struct {
	Name     string            `json:"name"`
	JoinDate string            `json:"join_date"`
	EndDate  string            `json:"end_date"`
	Domain   string            `json:"domain"`
	Address  address.HumanAddr `json:"address"`
}

// Kind returns the wire name of the variant that is set
func (m HandleMsg) Kind() string {
	switch {
	case m.AddInstitute != nil:
		return "addinstitute"
	case m.StoreCertificate != nil:
		return "storecertificate"
	default:
		return ""
	}
}

func (m HandleMsg) Validate() error {
	return exactlyOne(m.AddInstitute != nil, m.StoreCertificate != nil)
}

// QueryMsg is a read-only request. Exactly one field must be set.
type QueryMsg struct {
	GetCount             *GetCount             `json:"getcount,omitempty"`
	GetCertificateByHash *GetCertificateByHash `json:"getcertificatebyhash,omitempty"`
	GetUserCertificates  *GetUserCertificates  `json:"getusercertificates,omitempty"`
}

type GetCount struct{}

type GetCertificateByHash struct {
	Hash string `json:"hash"`
}

type GetUserCertificates struct {
	User address.HumanAddr `json:"user"`
}

func (m QueryMsg) Kind() string {
	switch {
	case m.GetCount != nil:
		return "getcount"
	case m.GetCertificateByHash != nil:
		return "getcertificatebyhash"
	case m.GetUserCertificates != nil:
		return "getusercertificates"
	default:
		return ""
	}
}

func (m QueryMsg) Validate() error {
	return exactlyOne(
		m.GetCount != nil,
		m.GetCertificateByHash != nil,
		m.GetUserCertificates != nil,
	)
}

type CountResponse struct {
	Count uint64 `json:"count"`
}

type HashCertResponse struct {
	Certificate state.Certificate `json:"certificate"`
}

type UserCertsResponse struct {
	Certificates state.User `json:"certificates"`
}

// Response acknowledges a successful init or mutation. It carries no data.
type Response struct{}

// ParseHandleMsg decodes a JSON mutation request, rejecting unknown fields
func ParseHandleMsg(data []byte) (HandleMsg, error) {
	var msg HandleMsg
	if err := decodeStrict(data, &msg); err != nil {
		return msg, err
	}
	if err := msg.Validate(); err != nil {
		return msg, err
	}
	return msg, nil
}

// ParseQueryMsg decodes a JSON query request, rejecting unknown fields
func ParseQueryMsg(data []byte) (QueryMsg, error) {
	var msg QueryMsg
	if err := decodeStrict(data, &msg); err != nil {
		return msg, err
	}
	if err := msg.Validate(); err != nil {
		return msg, err
	}
	return msg, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrInvalidMessage)
	}
	return nil
}

func exactlyOne(set ...bool) error {
	count := 0
	for _, s := range set {
		if s {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf(
			"%w: expected exactly one variant, got %d",
			ErrInvalidMessage,
			count,
		)
	}
	return nil
}

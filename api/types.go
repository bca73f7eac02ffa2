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

package api

import (
	"encoding/json"

	"github.com/blinklabs-io/certledger/address"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Healthy bool `json:"healthy"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// InitRequest is the body of POST /v1/init
type InitRequest struct {
	Signer address.HumanAddr `json:"signer"`
}

// ExecuteRequest is the body of POST /v1/execute. Msg is a HandleMsg.
type ExecuteRequest struct {
	Signer address.HumanAddr `json:"signer"`
	Msg    json.RawMessage   `json:"msg"`
}

// AckResponse is returned by successful init and execute requests
type AckResponse struct{}

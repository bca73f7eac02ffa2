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
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/blinklabs-io/certledger/address"
	"github.com/blinklabs-io/certledger/contract"
	"github.com/blinklabs-io/certledger/store"
)

func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck
	w.Write(data)
}

func writeError(
	w http.ResponseWriter,
	status int,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}

// statusFor maps contract and store errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, contract.ErrUnauthorized),
		errors.Is(err, contract.ErrNoInstitute):
		return http.StatusForbidden
	case errors.Is(err, contract.ErrNotFound),
		errors.Is(err, store.ErrNotInitialized):
		return http.StatusNotFound
	case errors.Is(err, address.ErrMalformedAddress),
		errors.Is(err, contract.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, contract.ErrAlreadyInitialized):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(
			"request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, status, "internal error")
		return
	}
	s.logger.Debug(
		"request rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	writeError(w, status, err.Error())
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contract.ErrInvalidMessage, err)
	}
	return data, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", contract.ErrInvalidMessage, err)
	}
	return nil
}

// signerEnv converts the request signer into the contract environment
func (s *Server) signerEnv(signer address.HumanAddr) (contract.Env, error) {
	_, canonical, err := address.Normalize(s.ledger.Api(), signer)
	if err != nil {
		return contract.Env{}, fmt.Errorf("signer: %w", err)
	}
	return contract.Env{
		Message: contract.MessageInfo{Signer: canonical},
	}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Healthy: true})
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		var err error
		force, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid force parameter")
			return
		}
	}
	env, err := s.signerEnv(req.Signer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.ledger.Init(r.Context(), env, contract.InitMsg{}, force); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AckResponse{})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	msg, err := contract.ParseHandleMsg(req.Msg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	env, err := s.signerEnv(req.Signer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.ledger.Handle(r.Context(), env, msg); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AckResponse{})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	msg, err := contract.ParseQueryMsg(data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.query(w, r, msg)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, contract.QueryMsg{GetCount: &contract.GetCount{}})
}

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, contract.QueryMsg{
		GetCertificateByHash: &contract.GetCertificateByHash{
			Hash: r.PathValue("hash"),
		},
	})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, contract.QueryMsg{
		GetUserCertificates: &contract.GetUserCertificates{
			User: address.HumanAddr(r.PathValue("address")),
		},
	})
}

func (s *Server) query(
	w http.ResponseWriter,
	r *http.Request,
	msg contract.QueryMsg,
) {
	out, err := s.ledger.Query(r.Context(), msg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeRaw(w, out)
}

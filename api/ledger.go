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
	"context"

	"github.com/blinklabs-io/certledger/address"
	"github.com/blinklabs-io/certledger/contract"
)

// Ledger is the interface that the API server uses to drive the contract.
// *contract.Contract implements it.
type Ledger interface {
	Api() address.Api
	Init(
		ctx context.Context,
		env contract.Env,
		msg contract.InitMsg,
		force bool,
	) (contract.Response, error)
	Handle(
		ctx context.Context,
		env contract.Env,
		msg contract.HandleMsg,
	) (contract.Response, error)
	Query(ctx context.Context, msg contract.QueryMsg) ([]byte, error)
}

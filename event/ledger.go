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

package event

const (
	LedgerInitializedEventType   EventType = "ledger.initialized"
	InstituteRegisteredEventType EventType = "institute.registered"
	CertificateIssuedEventType   EventType = "certificate.issued"
)

// LedgerInitializedEvent is published after a fresh state has been saved
type LedgerInitializedEvent struct {
	// Owner is the human-readable address allowed to register institutes
	Owner string
	// Reinitialized is set when an existing state was replaced
	Reinitialized bool
}

// InstituteRegisteredEvent is published after an institute record has been
// created or overwritten
type InstituteRegisteredEvent struct {
	Address string
	Name    string
	// Replaced is set when a record already existed for Address
	Replaced bool
}

// CertificateIssuedEvent is published after a certificate has been committed
type CertificateIssuedEvent struct {
	Hash      string
	Holder    string
	Institute string
	// Count is the total number of certificates after this one
	Count uint64
}

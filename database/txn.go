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

package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/blinklabs-io/certledger/database/types"
)

// Txn wraps a blob store transaction
type Txn struct {
	db        *Database
	blobTxn   types.Txn
	lock      sync.Mutex
	finished  bool
	readWrite bool
}

func NewTxn(db *Database, readWrite bool) *Txn {
	return NewTxnWithContext(context.Background(), db, readWrite)
}

// NewTxnWithContext starts a transaction bound to ctx. Backends check ctx
// before each operation.
func NewTxnWithContext(
	ctx context.Context,
	db *Database,
	readWrite bool,
) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if bs := db.Blob(); bs != nil {
		t.blobTxn = bs.NewTransaction(ctx, readWrite)
	}
	return t
}

func (t *Txn) DB() *Database {
	return t.db
}

// Blob returns the blob transaction handle
func (t *Txn) Blob() types.Txn {
	return t.blobTxn
}

// ReadWrite reports whether the transaction accepts writes
func (t *Txn) ReadWrite() bool {
	return t.readWrite
}

// Get returns the value stored at key
func (t *Txn) Get(key []byte) ([]byte, error) {
	if t.blobTxn == nil {
		return nil, types.ErrNoStoreAvailable
	}
	return t.db.Blob().Get(t.blobTxn, key)
}

// Set stores val at key
func (t *Txn) Set(key, val []byte) error {
	if t.blobTxn == nil {
		return types.ErrNoStoreAvailable
	}
	return t.db.Blob().Set(t.blobTxn, key, val)
}

func (t *Txn) Delete(key []byte) error {
	if t.blobTxn == nil {
		return types.ErrNoStoreAvailable
	}
	return t.db.Blob().Delete(t.blobTxn, key)
}

// Do executes the specified function in the context of the transaction. Any errors returned will result
// in the transaction being rolled back
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if err2 := t.Rollback(); err2 != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				err2,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (t *Txn) Commit() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	if t.blobTxn == nil {
		t.finished = true
		if t.readWrite {
			return types.ErrNoStoreAvailable
		}
		return nil
	}
	// No need to commit for read-only, but we do want to free up resources
	if !t.readWrite {
		return t.rollback()
	}
	t.finished = true
	if err := t.blobTxn.Commit(); err != nil {
		return fmt.Errorf("blob commit failed: %w", err)
	}
	return nil
}

func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.blobTxn == nil {
		return nil
	}
	if err := t.blobTxn.Rollback(); err != nil {
		return fmt.Errorf("blob rollback: %w", err)
	}
	return nil
}

// Release releases transaction resources. For read-write transactions, this
// is equivalent to Rollback. Errors are logged but not returned, making this
// safe for deferred calls.
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"error", err,
			"read_write", t.readWrite,
		)
	}
}

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

// Package store persists the ledger state as a single versioned record and
// provides the atomic load-transform-save cycle used by every mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/certledger/codec"
	"github.com/blinklabs-io/certledger/database"
	"github.com/blinklabs-io/certledger/database/types"
	"github.com/blinklabs-io/certledger/state"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/blinklabs-io/certledger/store"

	// DefaultConflictRetries is the number of times Update re-runs after an
	// optimistic backend reports a conflicting write
	DefaultConflictRetries = 3
)

var (
	ErrNotInitialized     = errors.New("state not initialized")
	ErrInvariantViolation = errors.New("refusing to save inconsistent state")
)

type Store struct {
	db              *database.Database
	codec           codec.Codec
	logger          *slog.Logger
	tracer          trace.Tracer
	key             []byte
	conflictRetries int
}

type StoreOptionFunc func(*Store)

// WithCodec specifies the codec used for the stored snapshot
func WithCodec(c codec.Codec) StoreOptionFunc {
	return func(s *Store) {
		s.codec = c
	}
}

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) StoreOptionFunc {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithTracerProvider specifies the tracer provider used for spans
func WithTracerProvider(tp trace.TracerProvider) StoreOptionFunc {
	return func(s *Store) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithConflictRetries specifies how many times to retry Update on a
// transaction conflict
func WithConflictRetries(retries int) StoreOptionFunc {
	return func(s *Store) {
		s.conflictRetries = retries
	}
}

func New(db *database.Database, opts ...StoreOptionFunc) *Store {
	s := &Store{
		db:              db,
		key:             []byte(types.StateBlobKey),
		conflictRetries: DefaultConflictRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.codec == nil {
		s.codec = codec.Cbor()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if s.tracer == nil {
		s.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	return s
}

// Codec returns the codec used for the stored snapshot
func (s *Store) Codec() codec.Codec {
	return s.codec
}

// Exists reports whether a state has been saved
func (s *Store) Exists(ctx context.Context) (bool, error) {
	txn := database.NewTxnWithContext(ctx, s.db, false)
	defer txn.Release()
	_, err := txn.Get(s.key)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Load returns the current state
func (s *Store) Load(ctx context.Context) (*state.State, error) {
	ctx, span := s.tracer.Start(ctx, "store.Load")
	defer span.End()
	txn := database.NewTxnWithContext(ctx, s.db, false)
	defer txn.Release()
	st, err := s.load(txn)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return st, nil
}

// Save writes st unconditionally, replacing any existing state
func (s *Store) Save(ctx context.Context, st *state.State) error {
	ctx, span := s.tracer.Start(ctx, "store.Save")
	defer span.End()
	txn := database.NewTxnWithContext(ctx, s.db, true)
	err := txn.Do(func(txn *database.Txn) error {
		return s.save(txn, st)
	})
	if err != nil {
		recordError(span, err)
		return err
	}
	return nil
}

// Update loads the current state, passes a deep copy of it to fn, and saves
// the state fn returns. Nothing is written when fn fails, and its error is
// returned unchanged.
func (s *Store) Update(
	ctx context.Context,
	fn func(*state.State) (*state.State, error),
) error {
	ctx, span := s.tracer.Start(ctx, "store.Update")
	defer span.End()
	var err error
	for attempt := 0; ; attempt++ {
		span.SetAttributes(attribute.Int("store.attempt", attempt))
		err = s.update(ctx, fn)
		if !errors.Is(err, types.ErrTxnConflict) ||
			attempt >= s.conflictRetries {
			break
		}
		s.logger.Debug(
			"retrying state update after conflict",
			"component", "store",
			"attempt", attempt+1,
		)
	}
	if err != nil {
		recordError(span, err)
		return err
	}
	return nil
}

func (s *Store) update(
	ctx context.Context,
	fn func(*state.State) (*state.State, error),
) error {
	txn := database.NewTxnWithContext(ctx, s.db, true)
	return txn.Do(func(txn *database.Txn) error {
		current, err := s.load(txn)
		if err != nil {
			return err
		}
		next, err := fn(current.Clone())
		if err != nil {
			return err
		}
		return s.save(txn, next)
	})
}

func (s *Store) load(txn *database.Txn) (*state.State, error) {
	data, err := txn.Get(s.key)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	st := &state.State{}
	if err := s.codec.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.Normalize()
	return st, nil
}

func (s *Store) save(txn *database.Txn, st *state.State) error {
	if !txn.ReadWrite() {
		return fmt.Errorf("save state: %w", types.ErrTxnReadOnly)
	}
	if st == nil {
		return fmt.Errorf("%w: nil state", ErrInvariantViolation)
	}
	if err := st.Validate(); err != nil {
		s.logger.Error(
			"refusing to save state",
			"component", "store",
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrInvariantViolation, err)
	}
	data, err := s.codec.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := txn.Set(s.key, data); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

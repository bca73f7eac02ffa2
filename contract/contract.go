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

// Package contract implements the certificate ledger state machine: the
// init, handle and query entrypoints a host drives, and the domain
// transforms behind them.
package contract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/certledger/address"
	"github.com/blinklabs-io/certledger/codec"
	"github.com/blinklabs-io/certledger/event"
	"github.com/blinklabs-io/certledger/identifier"
	"github.com/blinklabs-io/certledger/state"
	"github.com/blinklabs-io/certledger/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/blinklabs-io/certledger/contract"

// Contract serializes access to the store. Mutations hold the write lock
// for the whole load-transform-save cycle and queries hold the read lock.
type Contract struct {
	store           *store.Store
	api             address.Api
	ids             identifier.Generator
	eventBus        *event.EventBus
	logger          *slog.Logger
	tracer          trace.Tracer
	promRegistry    prometheus.Registerer
	metrics         *contractMetrics
	maxHashAttempts int
	allowReinit     bool
	mu              sync.RWMutex
}

type ContractOptionFunc func(*Contract)

// WithApi specifies the address conversion capability
func WithApi(api address.Api) ContractOptionFunc {
	return func(c *Contract) {
		c.api = api
	}
}

// WithGenerator specifies the certificate hash generator
func WithGenerator(ids identifier.Generator) ContractOptionFunc {
	return func(c *Contract) {
		c.ids = ids
	}
}

// WithEventBus specifies the event bus that receives domain events
func WithEventBus(eventBus *event.EventBus) ContractOptionFunc {
	return func(c *Contract) {
		c.eventBus = eventBus
	}
}

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ContractOptionFunc {
	return func(c *Contract) {
		c.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) ContractOptionFunc {
	return func(c *Contract) {
		c.promRegistry = registry
	}
}

// WithTracerProvider specifies the tracer provider used for spans
func WithTracerProvider(tp trace.TracerProvider) ContractOptionFunc {
	return func(c *Contract) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithMaxHashAttempts specifies how many hashes to try before giving up
func WithMaxHashAttempts(attempts int) ContractOptionFunc {
	return func(c *Contract) {
		c.maxHashAttempts = attempts
	}
}

// WithAllowReinit lets Init replace an existing state without force
func WithAllowReinit(allow bool) ContractOptionFunc {
	return func(c *Contract) {
		c.allowReinit = allow
	}
}

func New(s *store.Store, opts ...ContractOptionFunc) (*Contract, error) {
	if s == nil {
		return nil, errors.New("contract: store is required")
	}
	c := &Contract{
		store:           s,
		maxHashAttempts: DefaultMaxHashAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.api == nil {
		c.api = address.NewBech32Api()
	}
	if c.ids == nil {
		ids, err := identifier.NewRandomGenerator()
		if err != nil {
			return nil, fmt.Errorf("contract: %w", err)
		}
		c.ids = ids
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if c.tracer == nil {
		c.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	if c.promRegistry != nil {
		c.metrics = &contractMetrics{}
		c.metrics.init(c.promRegistry)
	}
	return c, nil
}

// Api returns the address conversion capability in use
func (c *Contract) Api() address.Api {
	return c.api
}

func (c *Contract) deps() Deps {
	return Deps{
		Api:             c.api,
		Ids:             c.ids,
		MaxHashAttempts: c.maxHashAttempts,
		OnCollision: func(hash string) {
			c.logger.Debug(
				"certificate hash already taken, retrying",
				"component", "contract",
				"hash", hash,
			)
			if c.metrics != nil {
				c.metrics.hashRetries.Inc()
			}
		},
	}
}

// Init creates a fresh state owned by the signer. An existing state is
// replaced only when force is set or reinitialization is allowed.
func (c *Contract) Init(
	ctx context.Context,
	env Env,
	msg InitMsg,
	force bool,
) (Response, error) {
	ctx, span := c.tracer.Start(ctx, "contract.Init")
	defer span.End()
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, err := c.api.HumanAddress(env.Message.Signer)
	if err != nil {
		err = fmt.Errorf("signer address: %w", err)
		c.finish(span, "init", err)
		return Response{}, err
	}
	exists, err := c.store.Exists(ctx)
	if err != nil {
		c.finish(span, "init", err)
		return Response{}, err
	}
	if exists && !force && !c.allowReinit {
		c.finish(span, "init", ErrAlreadyInitialized)
		return Response{}, ErrAlreadyInitialized
	}
	st := Instantiate(env, msg)
	if err := c.store.Save(ctx, st); err != nil {
		c.finish(span, "init", err)
		return Response{}, err
	}
	c.finish(span, "init", nil)
	c.observe(st)
	if exists {
		c.logger.Warn(
			"replaced existing state",
			"component", "contract",
			"owner", owner.String(),
		)
	} else {
		c.logger.Info(
			"initialized state",
			"component", "contract",
			"owner", owner.String(),
		)
	}
	c.publish(
		event.LedgerInitializedEventType,
		event.LedgerInitializedEvent{
			Owner:         owner.String(),
			Reinitialized: exists,
		},
	)
	return Response{}, nil
}

// Handle applies a mutation on behalf of the signer
func (c *Contract) Handle(
	ctx context.Context,
	env Env,
	msg HandleMsg,
) (Response, error) {
	ctx, span := c.tracer.Start(
		ctx,
		"contract.Handle",
		trace.WithAttributes(attribute.String("contract.msg", msg.Kind())),
	)
	defer span.End()
	if err := msg.Validate(); err != nil {
		c.finish(span, "invalid", err)
		return Response{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	switch {
	case msg.AddInstitute != nil:
		err = c.registerInstitute(ctx, env, *msg.AddInstitute)
	case msg.StoreCertificate != nil:
		err = c.issueCertificate(ctx, env, *msg.StoreCertificate)
	}
	c.finish(span, msg.Kind(), err)
	if err != nil {
		c.logger.Debug(
			"message rejected",
			"component", "contract",
			"msg", msg.Kind(),
			"error", err,
		)
		return Response{}, err
	}
	return Response{}, nil
}

func (c *Contract) registerInstitute(
	ctx context.Context,
	env Env,
	msg AddInstitute,
) error {
	var replaced bool
	var updated *state.State
	// A malformed address is reported by RegisterInstitute
	key, _, _ := address.Normalize(c.api, msg.WalletAddress)
	err := c.store.Update(ctx, func(st *state.State) (*state.State, error) {
		_, replaced = st.Institutes[key.String()]
		next, err := RegisterInstitute(c.deps(), env, st, msg)
		if err != nil {
			return nil, err
		}
		updated = next
		return next, nil
	})
	if err != nil {
		return err
	}
	c.observe(updated)
	c.logger.Info(
		"registered institute",
		"component", "contract",
		"address", key.String(),
		"name", msg.Name,
		"replaced", replaced,
	)
	c.publish(
		event.InstituteRegisteredEventType,
		event.InstituteRegisteredEvent{
			Address:  key.String(),
			Name:     msg.Name,
			Replaced: replaced,
		},
	)
	return nil
}

func (c *Contract) issueCertificate(
	ctx context.Context,
	env Env,
	msg StoreCertificate,
) error {
	var hash string
	var updated *state.State
	err := c.store.Update(ctx, func(st *state.State) (*state.State, error) {
		next, h, err := IssueCertificate(c.deps(), env, st, msg)
		if err != nil {
			return nil, err
		}
		hash = h
		updated = next
		return next, nil
	})
	if err != nil {
		return err
	}
	cert := updated.Hashes[hash]
	holder, _, _ := address.Normalize(c.api, msg.Address)
	c.observe(updated)
	c.logger.Info(
		"issued certificate",
		"component", "contract",
		"hash", hash,
		"holder", holder.String(),
		"institute", cert.Institute,
	)
	c.publish(
		event.CertificateIssuedEventType,
		event.CertificateIssuedEvent{
			Hash:      hash,
			Holder:    holder.String(),
			Institute: cert.Institute,
			Count:     updated.Count,
		},
	)
	return nil
}

// Query answers a read-only request with its JSON encoded response
func (c *Contract) Query(ctx context.Context, msg QueryMsg) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	var resp any
	var err error
	switch {
	case msg.GetCount != nil:
		resp, err = c.Count(ctx)
	case msg.GetCertificateByHash != nil:
		resp, err = c.CertificateByHash(ctx, msg.GetCertificateByHash.Hash)
	case msg.GetUserCertificates != nil:
		resp, err = c.UserCertificates(ctx, msg.GetUserCertificates.User)
	}
	if err != nil {
		return nil, err
	}
	return codec.Json().Marshal(resp)
}

// Count returns the number of issued certificates
func (c *Contract) Count(ctx context.Context) (CountResponse, error) {
	var resp CountResponse
	err := c.query(ctx, "getcount", func(st *state.State) error {
		resp = QueryCount(st)
		return nil
	})
	return resp, err
}

// CertificateByHash returns the certificate with the given hash
func (c *Contract) CertificateByHash(
	ctx context.Context,
	hash string,
) (HashCertResponse, error) {
	var resp HashCertResponse
	err := c.query(ctx, "getcertificatebyhash", func(st *state.State) error {
		var err error
		resp, err = QueryCertificateByHash(st, hash)
		return err
	})
	return resp, err
}

// UserCertificates returns all certificates held by an address
func (c *Contract) UserCertificates(
	ctx context.Context,
	user address.HumanAddr,
) (UserCertsResponse, error) {
	var resp UserCertsResponse
	err := c.query(ctx, "getusercertificates", func(st *state.State) error {
		var err error
		resp, err = QueryUserCertificates(c.api, st, user)
		return err
	})
	return resp, err
}

func (c *Contract) query(
	ctx context.Context,
	kind string,
	fn func(*state.State) error,
) error {
	ctx, span := c.tracer.Start(
		ctx,
		"contract.Query",
		trace.WithAttributes(attribute.String("contract.query", kind)),
	)
	defer span.End()
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, err := c.store.Load(ctx)
	if err == nil {
		c.observe(st)
		err = fn(st)
	}
	if c.metrics != nil {
		c.metrics.queriesTotal.WithLabelValues(kind, outcome(err)).Inc()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// finish records the outcome of a message on its span and in metrics
func (c *Contract) finish(span trace.Span, kind string, err error) {
	if c.metrics != nil {
		c.metrics.messagesTotal.WithLabelValues(kind, outcome(err)).Inc()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (c *Contract) observe(st *state.State) {
	if c.metrics == nil || st == nil {
		return
	}
	c.metrics.certificatesIssued.Set(float64(st.Count))
	c.metrics.institutesRegistered.Set(float64(len(st.Institutes)))
}

func (c *Contract) publish(eventType event.EventType, data any) {
	if c.eventBus == nil {
		return
	}
	c.eventBus.Publish(event.NewEvent(eventType, data))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNoInstitute):
		return "unauthorized"
	case errors.Is(err, ErrNotFound), errors.Is(err, store.ErrNotInitialized):
		return "not_found"
	case errors.Is(err, address.ErrMalformedAddress),
		errors.Is(err, ErrInvalidMessage):
		return "invalid"
	default:
		return "error"
	}
}

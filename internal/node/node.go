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

// Package node wires the ledger components together and runs them as a
// long-lived service.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/blinklabs-io/certledger/address"
	"github.com/blinklabs-io/certledger/api"
	"github.com/blinklabs-io/certledger/codec"
	"github.com/blinklabs-io/certledger/contract"
	"github.com/blinklabs-io/certledger/database"
	"github.com/blinklabs-io/certledger/database/plugin/blob"
	"github.com/blinklabs-io/certledger/event"
	"github.com/blinklabs-io/certledger/identifier"
	"github.com/blinklabs-io/certledger/internal/config"
	"github.com/blinklabs-io/certledger/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

// Node owns the ledger components and the listeners in front of them
type Node struct {
	config          *config.Config
	logger          *slog.Logger
	promRegistry    *prometheus.Registry
	tracerProvider  trace.TracerProvider
	tracingShutdown shutdownFunc
	blobStore       blob.BlobStore
	db              *database.Database
	store           *store.Store
	contract        *contract.Contract
	eventBus        *event.EventBus
	apiServer       *api.Server
	metricsServer   *http.Server
	metricsAddr     net.Addr
	cancel          context.CancelFunc
	stopOnce        sync.Once
	stopErr         error
}

type NodeOptionFunc func(*Node)

// WithBlobStore uses an already started blob store instead of the
// configured plugin. The node closes it on Stop.
func WithBlobStore(blobStore blob.BlobStore) NodeOptionFunc {
	return func(n *Node) {
		n.blobStore = blobStore
	}
}

// New builds the ledger from config. Listeners are not started until Start.
func New(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	opts ...NodeOptionFunc,
) (*Node, error) {
	if cfg == nil {
		return nil, errors.New("node: config is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	n := &Node{
		config:          cfg,
		logger:          logger,
		promRegistry:    prometheus.NewRegistry(),
		tracingShutdown: noopShutdown,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := n.init(ctx); err != nil {
		// Release whatever was set up before the failure
		_ = n.Stop(context.Background())
		return nil, err
	}
	return n, nil
}

func (n *Node) init(ctx context.Context) error {
	cfg := n.config
	tp, tracingShutdown, err := setupTracing(ctx, cfg.Tracing, n.logger)
	if err != nil {
		return err
	}
	n.tracerProvider = tp
	n.tracingShutdown = tracingShutdown

	stateCodec, err := codec.ByName(cfg.Codec)
	if err != nil {
		return err
	}
	ids, err := n.generator()
	if err != nil {
		return err
	}

	n.db, err = database.New(&database.Config{
		Logger:       n.logger,
		PromRegistry: n.promRegistry,
		BlobStore:    n.blobStore,
		BlobPlugin:   cfg.BlobPlugin,
		DataDir:      cfg.DataDir,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	n.store = store.New(
		n.db,
		store.WithCodec(stateCodec),
		store.WithLogger(n.logger),
		store.WithTracerProvider(tp),
		store.WithConflictRetries(cfg.ConflictRetries),
	)
	addrApi := address.NewBech32Api(address.WithPrefix(cfg.AddressPrefix))
	n.eventBus = event.NewEventBus(n.promRegistry, n.logger)
	n.contract, err = contract.New(
		n.store,
		contract.WithApi(addrApi),
		contract.WithGenerator(ids),
		contract.WithEventBus(n.eventBus),
		contract.WithLogger(n.logger),
		contract.WithPromRegistry(n.promRegistry),
		contract.WithTracerProvider(tp),
		contract.WithMaxHashAttempts(cfg.MaxHashAttempts),
		contract.WithAllowReinit(cfg.AllowReinit),
	)
	if err != nil {
		return err
	}
	n.logger.Debug(
		"ledger ready",
		"component", "node",
		"blob_plugin", n.db.BlobPlugin(),
		"codec", n.store.Codec().Name(),
		"address_prefix", addrApi.Prefix(),
		"conflict_retries", cfg.ConflictRetries,
	)
	return nil
}

func (n *Node) generator() (identifier.Generator, error) {
	if n.config.Seed != 0 {
		return identifier.NewRandomGenerator(identifier.WithSeed(n.config.Seed))
	}
	return identifier.NewRandomGenerator()
}

// Contract returns the ledger contract
func (n *Node) Contract() *contract.Contract {
	return n.contract
}

// EventBus returns the bus the contract publishes domain events on
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// PromRegistry returns the registry holding the node metrics
func (n *Node) PromRegistry() *prometheus.Registry {
	return n.promRegistry
}

// APIAddr returns the bound API address, or nil when not listening
func (n *Node) APIAddr() net.Addr {
	if n.apiServer == nil {
		return nil
	}
	return n.apiServer.Addr()
}

// MetricsAddr returns the bound metrics address, or nil when not listening
func (n *Node) MetricsAddr() net.Addr {
	return n.metricsAddr
}

// Start starts the API listener and, when configured, the metrics listener
func (n *Node) Start(ctx context.Context) error {
	ctx, n.cancel = context.WithCancel(ctx)
	if n.config.MetricsAddress != "" {
		if err := n.startMetrics(); err != nil {
			return err
		}
	}
	n.apiServer = api.New(
		api.Config{ListenAddress: n.config.ListenAddress},
		n.contract,
		n.logger,
	)
	return n.apiServer.Start(ctx)
}

func (n *Node) startMetrics() error {
	mux := http.NewServeMux()
	mux.Handle(
		"/metrics",
		promhttp.HandlerFor(
			n.promRegistry,
			promhttp.HandlerOpts{Registry: n.promRegistry},
		),
	)
	ln, err := net.Listen("tcp", n.config.MetricsAddress)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}
	n.metricsAddr = ln.Addr()
	n.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	server := n.metricsServer
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			n.logger.Error(
				fmt.Sprintf("metrics listener failed: %s", err),
				"component", "node",
			)
		}
	}()
	n.logger.Info(
		"serving prometheus metrics on "+ln.Addr().String(),
		"component", "node",
	)
	return nil
}

// Stop shuts down the listeners and releases the ledger. It is safe to call
// more than once.
func (n *Node) Stop(ctx context.Context) error {
	n.stopOnce.Do(func() {
		var errs []error
		if n.apiServer != nil {
			errs = append(errs, n.apiServer.Stop(ctx))
		}
		if n.cancel != nil {
			n.cancel()
		}
		if n.metricsServer != nil {
			if err := n.metricsServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		if n.eventBus != nil {
			n.eventBus.Stop()
		}
		if n.db != nil {
			errs = append(errs, n.db.Close())
		}
		if err := n.tracingShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
		n.stopErr = errors.Join(errs...)
	})
	return n.stopErr
}

// Run serves the ledger until SIGINT or SIGTERM
func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	n, err := New(signalCtx, cfg, logger)
	if err != nil {
		return err
	}
	if err := n.Start(signalCtx); err != nil {
		_ = n.Stop(context.Background())
		return err
	}

	<-signalCtx.Done()
	logger.Info("signal received, initiating graceful shutdown", "component", "node")
	//nolint:contextcheck
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	//nolint:contextcheck
	if err := n.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown errors occurred", "component", "node", "error", err)
		return err
	}
	logger.Info("shutdown complete", "component", "node")
	return nil
}

// Copyright 2026 Blink Labs Software
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/api"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/event"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/governance"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/internal/config"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/journal"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/verifier"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Node owns every long-running component of the service
type Node struct {
	config         *config.Config
	logger         *slog.Logger
	promRegistry   *prometheus.Registry
	tracerProvider *sdktrace.TracerProvider
	db             *database.Database
	eventBus       *event.EventBus
	journal        *journal.Journal
	coordinator    *governance.Coordinator
	api            *api.Server
	metricsServer  *http.Server
	metricsAddr    net.Addr
	ethVerifier    *verifier.EthereumVerifier
	verifierWorker *verifier.Worker
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	mu             sync.Mutex
	started        bool
	stopped        bool
}

func New(cfg *config.Config, logger *slog.Logger) (*Node, error) {
	if cfg == nil {
		return nil, errors.New("node: missing config")
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Node{
		config:       cfg,
		logger:       logger,
		promRegistry: reg,
	}, nil
}

// Coordinator returns the governance coordinator. It is nil before Start.
func (n *Node) Coordinator() *governance.Coordinator {
	return n.coordinator
}

// Journal returns the event journal, or nil when it is disabled
func (n *Node) Journal() *journal.Journal {
	return n.journal
}

// MetricsAddr returns the bound address of the metrics listener, or nil
// when metrics are disabled
func (n *Node) MetricsAddr() net.Addr {
	return n.metricsAddr
}

// Start opens storage and starts the API, metrics and background workers.
// Components started before a failure are stopped again.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return errors.New("node already started")
	}
	n.started = true
	if err := n.start(ctx); err != nil {
		return errors.Join(err, n.stop(context.WithoutCancel(ctx)))
	}
	return nil
}

func (n *Node) start(ctx context.Context) error {
	cfg := n.config
	n.logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	if cfg.Tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	db, err := database.New(&database.Config{
		DataDir:        cfg.DatabasePath,
		Logger:         n.logger,
		PromRegistry:   n.promRegistry,
		MaxConnections: cfg.DatabaseMaxConnections,
		Tracing:        cfg.Tracing,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	n.eventBus = event.NewEventBus(n.promRegistry, n.logger)
	var eventLog api.EventLog
	if cfg.JournalEnabled {
		j, err := journal.New(
			journal.WithLogger(n.logger),
			journal.WithPromRegistry(n.promRegistry),
			journal.WithDataDir(cfg.DatabasePath),
		)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		j.Attach(n.eventBus)
		n.journal = j
		eventLog = j
	}
	opts := []governance.ConfigOptionFunc{
		governance.WithDatabase(db),
		governance.WithLogger(n.logger),
		governance.WithPrometheusRegistry(n.promRegistry),
		governance.WithDispatcher(n.eventBus),
		governance.WithLockWindow(cfg.LockWindow),
		governance.WithMaxRetries(cfg.MaxRetries),
		governance.WithRetryBackoff(cfg.RetryBackoff),
	}
	if n.tracerProvider != nil {
		opts = append(opts, governance.WithTracerProvider(n.tracerProvider))
	}
	coordinator, err := governance.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	n.coordinator = coordinator

	// Background work stops with the node rather than with the caller context
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n.cancel = cancel
	if cfg.VerifierRpcUrl != "" {
		if err := n.startVerifier(runCtx); err != nil {
			return err
		}
	}
	n.api = api.New(
		api.Config{
			ListenAddress:  cfg.ApiAddress(),
			RequestTimeout: cfg.RequestTimeout,
		},
		coordinator,
		eventLog,
		n.logger,
	)
	if err := n.api.Start(runCtx); err != nil {
		return err
	}
	if addr := cfg.MetricsAddress(); addr != "" {
		if err := n.startMetrics(addr); err != nil {
			return err
		}
	}
	if cfg.ResolveInterval > 0 {
		n.wg.Add(1)
		go n.resolveLoop(runCtx, cfg.ResolveInterval)
	}
	n.logger.Info("node started", "component", "node")
	return nil
}

func (n *Node) startVerifier(ctx context.Context) error {
	v, err := verifier.DialEthereum(
		ctx,
		n.config.VerifierRpcUrl,
		n.config.VerifierConfirmations,
	)
	if err != nil {
		return fmt.Errorf("failed to connect verifier: %w", err)
	}
	n.ethVerifier = v
	worker, err := verifier.NewWorker(
		n.db,
		n.coordinator.Ledger(),
		v,
		verifier.WithLogger(n.logger),
		verifier.WithPromRegistry(n.promRegistry),
		verifier.WithInterval(n.config.VerifierInterval),
		verifier.WithBatchSize(n.config.VerifierBatchSize),
		verifier.WithConcurrency(n.config.VerifierConcurrency),
	)
	if err != nil {
		return fmt.Errorf("failed to create verifier worker: %w", err)
	}
	n.verifierWorker = worker
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		worker.Run(ctx)
	}()
	return nil
}

func (n *Node) startMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle(
		"/metrics",
		promhttp.HandlerFor(n.promRegistry, promhttp.HandlerOpts{
			Registry: n.promRegistry,
		}),
	)
	ln, err := net.Listen("tcp", addr)
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
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			n.logger.Error(
				fmt.Sprintf("metrics listener failed: %s", err),
				"component", "node",
			)
		}
	}(n.metricsServer)
	n.logger.Info(
		"serving prometheus metrics on "+ln.Addr().String(),
		"component", "node",
	)
	return nil
}

// resolveLoop periodically transitions active proposals whose window closed
func (n *Node) resolveLoop(ctx context.Context, interval time.Duration) {
	defer n.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := n.coordinator.ResolveExpired(ctx)
			if err != nil && ctx.Err() == nil {
				n.logger.Warn(
					"expired proposal sweep incomplete",
					"component", "node",
					"error", err,
				)
			}
			if count > 0 {
				n.logger.Info(
					"resolved expired proposals",
					"component", "node",
					"count", count,
				)
			}
		}
	}
}

// Stop shuts every component down within the deadline of ctx. Queued events
// are delivered to the journal before it closes.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stop(ctx)
}

func (n *Node) stop(ctx context.Context) error {
	if n.stopped {
		return nil
	}
	n.stopped = true
	var errs []error
	if n.cancel != nil {
		n.cancel()
	}
	if n.api != nil {
		if err := n.api.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if n.metricsServer != nil {
		if err := n.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	n.wg.Wait()
	if n.eventBus != nil {
		n.eventBus.Stop()
	}
	if n.journal != nil {
		if err := n.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if n.ethVerifier != nil {
		n.ethVerifier.Close()
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if n.tracerProvider != nil {
		if err := n.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run starts a node and blocks until SIGINT or SIGTERM, then shuts it down
// within the configured timeout
func Run(cfg *config.Config, logger *slog.Logger) error {
	n, err := New(cfg, logger)
	if err != nil {
		return err
	}
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()
	if err := n.Start(signalCtx); err != nil {
		logger.Error("node failed to start", "error", err)
		return err
	}
	<-signalCtx.Done()
	logger.Info("signal received, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.ShutdownTimeout,
	)
	defer cancel()
	if err := n.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

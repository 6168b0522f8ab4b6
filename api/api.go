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

// Package api exposes the governance operations over HTTP/JSON.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/governance"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/journal"
)

const (
	DefaultListenAddress  = ":8080"
	DefaultRequestTimeout = 30 * time.Second
	shutdownTimeout       = 30 * time.Second
)

// Governance is the set of coordinator operations served by the API
type Governance interface {
	CreateProposal(context.Context, governance.Caller, governance.CreateProposalRequest) (*models.Proposal, error)
	GetProposal(context.Context, string) (*models.Proposal, error)
	ListProposals(context.Context, governance.ListOptions) (governance.ProposalPage, error)
	ApproveProposal(context.Context, governance.Caller, string) (*models.Proposal, error)
	CancelProposal(context.Context, governance.Caller, string, string) (*models.Proposal, error)
	ExecuteProposal(context.Context, governance.Caller, string, string) (*models.Proposal, error)
	ReconcileProposal(context.Context, governance.Caller, string) (*models.Proposal, bool, error)
	StakeTokens(context.Context, governance.Caller, governance.StakeRequest) (*governance.StakeResult, error)
	UnstakeTokens(context.Context, governance.Caller, string) (*governance.StakeResult, error)
	ListStakes(context.Context, string) ([]models.Stake, error)
	CastVote(context.Context, governance.Caller, governance.VoteRequest) (*governance.VoteResult, error)
	ListVotes(context.Context, string) ([]models.Vote, error)
}

// EventLog returns the recorded events of a proposal
type EventLog interface {
	List(proposalID string) ([]journal.Entry, error)
}

type Config struct {
	ListenAddress  string
	RequestTimeout time.Duration
}

type Server struct {
	config     Config
	logger     *slog.Logger
	gov        Governance
	events     EventLog
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates the API server. events may be nil, in which case the event
// history endpoint reports 501.
func New(
	cfg Config,
	gov Governance,
	events EventLog,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Server{
		config: cfg,
		logger: logger.With("component", "api"),
		gov:    gov,
		events: events,
	}
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1/proposals", func(r chi.Router) {
		r.Get("/", s.handleListProposals)
		r.Post("/", s.handleCreateProposal)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProposal)
			r.Post("/approve", s.handleApproveProposal)
			r.Post("/cancel", s.handleCancelProposal)
			r.Post("/execute", s.handleExecuteProposal)
			r.Post("/reconcile", s.handleReconcileProposal)
			r.Get("/stakes", s.handleListStakes)
			r.Post("/stakes", s.handleStake)
			r.Delete("/stakes", s.handleUnstake)
			r.Get("/votes", s.handleListVotes)
			r.Post("/votes", s.handleVote)
			r.Get("/events", s.handleListEvents)
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// requestLogger logs each request at debug level
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug(
			"request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Start starts the HTTP server in a background goroutine. The server shuts
// down when ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.httpServer = server
	s.mu.Unlock()

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		s.mu.Lock()
		s.httpServer = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	s.logger.Info("API listener started on " + ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx),
			shutdownTimeout,
		)
		defer cancel()
		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Error(
				"failed to shutdown API server on context cancellation",
				"error", err,
			)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Debug("shutting down API server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}
	return nil
}

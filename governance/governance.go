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

// Package governance is the coordinator in front of the proposal store, the
// stake ledger and the vote tally. Every mutating operation runs under a
// per-proposal lock inside a single database transaction, so the cached
// proposal aggregates always match the stake and vote rows.
package governance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/event"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/proposal"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/stake"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/tally"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errNoDatabase = errors.New("governance: a database is required")

// Dispatcher receives the events emitted after each committed operation
type Dispatcher interface {
	PublishAsync(event.EventType, event.Event) bool
}

// Coordinator runs every governance operation. Mutations of one proposal are
// serialized and each commits in a single transaction.
type Coordinator struct {
	config  Config
	db      *database.Database
	logger  *slog.Logger
	ledger  *stake.Ledger
	tally   *tally.Tally
	store   *proposal.Store
	locks   *keyedLock
	metrics *coordinatorMetrics
	tracer  trace.Tracer
}

// New returns a coordinator built from the given options. WithDatabase is
// required.
func New(opts ...ConfigOptionFunc) (*Coordinator, error) {
	cfg := NewConfig(opts...)
	if cfg.db == nil {
		return nil, errNoDatabase
	}
	ledger := stake.NewLedger(cfg.lockWindow)
	t := tally.New(ledger, cfg.powerStrategy)
	c := &Coordinator{
		config: cfg,
		db:     cfg.db,
		logger: cfg.logger.With("component", "governance"),
		ledger: ledger,
		tally:  t,
		store:  proposal.NewStore(ledger, t),
		locks:  newKeyedLock(),
		tracer: cfg.tracerProvider.Tracer(
			"github.com/vishalishere/DEX-VC-PLAT-sub002/governance",
		),
	}
	c.metrics = newCoordinatorMetrics(cfg.promRegistry)
	return c, nil
}

// Ledger returns the stake ledger used by the coordinator
func (c *Coordinator) Ledger() *stake.Ledger {
	return c.ledger
}

func (c *Coordinator) now() time.Time {
	return c.config.clock()
}

// pendingEvent is an event held back until its transaction commits
type pendingEvent struct {
	eventType event.EventType
	data      event.GovernanceEvent
}

// mutation is the state handed to a mutating operation for one attempt
type mutation struct {
	txn      *database.Txn
	proposal *models.Proposal
	now      time.Time
	dirty    bool
	events   []pendingEvent
}

func (m *mutation) emit(eventType event.EventType, data event.GovernanceEvent) {
	if data.ProposalID == "" {
		data.ProposalID = m.proposal.ID
	}
	if data.Status == "" {
		data.Status = string(m.proposal.Status)
	}
	m.events = append(m.events, pendingEvent{eventType: eventType, data: data})
}

// mutate loads the proposal, hands it to fn and saves it if fn marked it
// dirty. The whole attempt is one transaction under the proposal lock and
// is retried on contention. Events emitted by fn are published after the
// commit of the successful attempt.
func (c *Coordinator) mutate(
	ctx context.Context,
	op string,
	proposalID string,
	fn func(*mutation) error,
) (*models.Proposal, error) {
	unlock, err := c.locks.Lock(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var m *mutation
	err = c.withRetry(ctx, op, func() error {
		// Once started, the transaction runs to completion even if the caller
		// goes away
		return c.db.Transaction(
			context.WithoutCancel(ctx),
			func(txn *database.Txn) error {
				p, err := c.store.Get(txn, proposalID)
				if err != nil {
					return err
				}
				m = &mutation{txn: txn, proposal: p, now: c.now()}
				if err := fn(m); err != nil {
					return err
				}
				if !m.dirty {
					return nil
				}
				return c.store.Save(txn, p)
			},
		)
	})
	if err != nil {
		return nil, err
	}
	c.publish(m.events)
	return m.proposal, nil
}

// resolve applies the pending Active -> Passed/Failed transition, if any
func (c *Coordinator) resolve(m *mutation, now time.Time) (bool, error) {
	t := proposal.EvaluateTransition(m.proposal, now)
	if !t.Changed() {
		return false, nil
	}
	if err := proposal.Apply(m.proposal, t.To, now); err != nil {
		return false, err
	}
	m.dirty = true
	m.emit(event.ProposalResolvedEventType, event.GovernanceEvent{
		Outcome: string(t.To),
	})
	c.metrics.transitions.WithLabelValues(string(t.To)).Inc()
	return true, nil
}

func (c *Coordinator) publish(events []pendingEvent) {
	if c.config.dispatcher == nil {
		return
	}
	for _, pe := range events {
		if !c.config.dispatcher.PublishAsync(
			pe.eventType,
			event.NewEvent(pe.eventType, pe.data),
		) {
			c.logger.Warn(
				"event not dispatched",
				"type", pe.eventType,
				"proposal", pe.data.ProposalID,
			)
		}
	}
}

// begin opens the span and the timer of an operation. The returned func
// records the outcome and must be called with the final error.
func (c *Coordinator) begin(
	ctx context.Context,
	op string,
) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "governance."+op)
	return ctx, func(err error) {
		category := errorCategory(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, category)
		}
		span.End()
		c.metrics.observe(op, category, time.Since(start))
	}
}

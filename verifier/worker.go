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

package verifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/stake"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultBatchSize   = 100
	DefaultConcurrency = 4
)

var errMissingDependency = errors.New("verifier: database, ledger and verifier are required")

type WorkerOptionFunc func(*Worker)

func WithLogger(logger *slog.Logger) WorkerOptionFunc {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithPromRegistry(registry prometheus.Registerer) WorkerOptionFunc {
	return func(w *Worker) {
		w.promRegistry = registry
	}
}

func WithInterval(interval time.Duration) WorkerOptionFunc {
	return func(w *Worker) {
		w.interval = interval
	}
}

func WithBatchSize(size int) WorkerOptionFunc {
	return func(w *Worker) {
		w.batchSize = size
	}
}

// WithConcurrency limits the number of receipt lookups in flight
func WithConcurrency(n int) WorkerOptionFunc {
	return func(w *Worker) {
		w.concurrency = n
	}
}

func WithClock(now func() time.Time) WorkerOptionFunc {
	return func(w *Worker) {
		w.now = now
	}
}

// Worker periodically checks pending deposits and records the confirmed ones
type Worker struct {
	db           *database.Database
	ledger       *stake.Ledger
	verifier     Verifier
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	checks       *prometheus.CounterVec
	interval     time.Duration
	batchSize    int
	concurrency  int
	now          func() time.Time
}

func NewWorker(
	db *database.Database,
	ledger *stake.Ledger,
	verifier Verifier,
	opts ...WorkerOptionFunc,
) (*Worker, error) {
	if db == nil || ledger == nil || verifier == nil {
		return nil, errMissingDependency
	}
	w := &Worker{
		db:          db,
		ledger:      ledger,
		verifier:    verifier,
		interval:    DefaultInterval,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	w.logger = w.logger.With("component", "verifier")
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = DefaultBatchSize
	}
	if w.concurrency <= 0 {
		w.concurrency = DefaultConcurrency
	}
	if w.promRegistry != nil {
		w.checks = promauto.With(w.promRegistry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "govd_verifier_checks_total",
				Help: "Deposit verification checks by result",
			},
			[]string{"result"},
		)
	}
	return w, nil
}

// Run checks pending deposits on every tick until ctx is done
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.VerifyPending(ctx)
			if err != nil && ctx.Err() == nil {
				w.logger.Warn(
					"deposit verification incomplete",
					"error", err,
				)
			}
			if n > 0 {
				w.logger.Info(
					"verified stake deposits",
					"count", n,
				)
			}
		}
	}
}

// VerifyPending checks one batch of pending deposits and returns how many
// were confirmed. Reverted transactions and malformed references are final
// and leave the pending set. Lookup failures are joined into the returned
// error; every final result is recorded regardless.
func (w *Worker) VerifyPending(ctx context.Context) (int, error) {
	pending, err := w.ledger.PendingDeposits(w.db.Reader(ctx), w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	var (
		mu        sync.Mutex
		confirmed []uint
		rejected  = make(map[uint]models.DepositStatus)
		failures  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, deposit := range pending {
		g.Go(func() error {
			status, err := w.verifier.Verify(gctx, deposit.TxReference)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrInvalidReference) {
				w.count("invalid")
				w.logger.Warn(
					"stake deposit reference is not a transaction hash",
					"deposit", deposit.ID,
					"proposal", deposit.ProposalID,
					"tx", deposit.TxReference,
				)
				rejected[deposit.ID] = models.DepositStatusInvalid
				return nil
			}
			if err != nil {
				w.count("error")
				failures = append(failures, fmt.Errorf("deposit %d: %w", deposit.ID, err))
				return nil
			}
			w.count(status.String())
			switch status {
			case StatusConfirmed:
				confirmed = append(confirmed, deposit.ID)
			case StatusReverted:
				w.logger.Warn(
					"stake deposit transaction reverted",
					"deposit", deposit.ID,
					"proposal", deposit.ProposalID,
					"tx", deposit.TxReference,
				)
				rejected[deposit.ID] = models.DepositStatusReverted
			}
			return nil
		})
	}
	// Workers never return an error; failures are collected above
	_ = g.Wait()
	now := w.now()
	for id, status := range rejected {
		err := w.db.Transaction(context.WithoutCancel(ctx), func(txn *database.Txn) error {
			return w.ledger.MarkDepositRejected(txn, id, status, now)
		})
		if err != nil && !errors.Is(err, models.ErrStakeNotFound) {
			failures = append(failures, fmt.Errorf("reject deposit %d: %w", id, err))
		}
	}
	var verified int
	for _, id := range confirmed {
		err := w.db.Transaction(context.WithoutCancel(ctx), func(txn *database.Txn) error {
			return w.ledger.MarkDepositVerified(txn, id, now)
		})
		if err != nil {
			if errors.Is(err, models.ErrStakeNotFound) {
				continue
			}
			failures = append(failures, fmt.Errorf("mark deposit %d: %w", id, err))
			continue
		}
		verified++
	}
	return verified, errors.Join(failures...)
}

func (w *Worker) count(result string) {
	if w.checks != nil {
		w.checks.WithLabelValues(result).Inc()
	}
}

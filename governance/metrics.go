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

package governance

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type coordinatorMetrics struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	retries     *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// newCoordinatorMetrics creates the coordinator metrics. A nil registry
// leaves them unregistered.
func newCoordinatorMetrics(promRegistry prometheus.Registerer) *coordinatorMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &coordinatorMetrics{
		operations: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "govd_governance_operations_total",
				Help: "governance operations by result",
			},
			[]string{"op", "result"},
		),
		duration: promautoFactory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "govd_governance_operation_duration_seconds",
				Help:    "governance operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		retries: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "govd_governance_retries_total",
				Help: "attempts retried after contention",
			},
			[]string{"op"},
		),
		transitions: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "govd_governance_transitions_total",
				Help: "proposal status transitions by target status",
			},
			[]string{"to"},
		),
	}
}

func (m *coordinatorMetrics) observe(op, result string, d time.Duration) {
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// errorCategory maps an operation error to a metric label
func errorCategory(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

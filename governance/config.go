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
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/tally"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxRetries   = 5
	DefaultRetryBackoff = 10 * time.Millisecond
)

type Config struct {
	db             *database.Database
	logger         *slog.Logger
	promRegistry   prometheus.Registerer
	dispatcher     Dispatcher
	tracerProvider trace.TracerProvider
	powerStrategy  tally.PowerStrategy
	clock          func() time.Time
	lockWindow     time.Duration
	maxRetries     int
	retryBackoff   time.Duration
}

// ConfigOptionFunc is a type that represents functions that modify the coordinator config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new coordinator config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		tracerProvider: otel.GetTracerProvider(),
		powerStrategy:  tally.NeutralStrategy{},
		clock:          time.Now,
		lockWindow:     models.DefaultLockWindow,
		maxRetries:     DefaultMaxRetries,
		retryBackoff:   DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabase specifies the governance database
func WithDatabase(db *database.Database) ConfigOptionFunc {
	return func(c *Config) {
		c.db = db
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDispatcher specifies where committed operations publish their events
func WithDispatcher(dispatcher Dispatcher) ConfigOptionFunc {
	return func(c *Config) {
		c.dispatcher = dispatcher
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) ConfigOptionFunc {
	return func(c *Config) {
		if tp != nil {
			c.tracerProvider = tp
		}
	}
}

// WithPowerStrategy specifies how voting power multipliers are computed
func WithPowerStrategy(strategy tally.PowerStrategy) ConfigOptionFunc {
	return func(c *Config) {
		if strategy != nil {
			c.powerStrategy = strategy
		}
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(clock func() time.Time) ConfigOptionFunc {
	return func(c *Config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLockWindow specifies how long stakes stay locked after a proposal ends
func WithLockWindow(window time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		if window > 0 {
			c.lockWindow = window
		}
	}
}

// WithMaxRetries specifies how many attempts a contended operation gets
func WithMaxRetries(maxRetries int) ConfigOptionFunc {
	return func(c *Config) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
	}
}

// WithRetryBackoff specifies the delay before the first retry. It doubles on
// each further attempt.
func WithRetryBackoff(backoff time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		if backoff > 0 {
			c.retryBackoff = backoff
		}
	}
}

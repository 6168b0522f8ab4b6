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
	"fmt"
	"time"

	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/proposal"
)

// retryable reports whether err is contention that a fresh attempt can clear
func retryable(err error) bool {
	return errors.Is(err, proposal.ErrVersionConflict) ||
		database.IsBusy(err) ||
		database.IsUniqueViolation(err)
}

// withRetry runs fn until it succeeds, fails with a non-retryable error or
// runs out of attempts. Nothing is committed by a failed attempt, so giving
// up between attempts when ctx is done leaves no partial state.
func (c *Coordinator) withRetry(
	ctx context.Context,
	op string,
	fn func() error,
) error {
	backoff := c.config.retryBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
		if attempt >= c.config.maxRetries {
			break
		}
		c.metrics.retries.WithLabelValues(op).Inc()
		c.logger.Debug(
			"retrying contended operation",
			"op", op,
			"attempt", attempt,
			"error", err,
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	c.logger.Warn(
		"operation retries exhausted",
		"op", op,
		"attempts", c.config.maxRetries,
		"error", err,
	)
	return fmt.Errorf("%w: %s: %w", ErrConcurrentUpdate, op, err)
}

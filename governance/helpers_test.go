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

package governance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/event"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/governance"
)

var (
	testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	admin = governance.Caller{
		ID:          "admin-1",
		Role:        governance.RolePrivileged,
		DisplayName: "Admin",
	}
	alice = governance.Caller{ID: "alice", Role: governance.RoleStakingEligible}
	bob   = governance.Caller{ID: "bob", Role: governance.RoleStakingEligible}
)

// testClock is a settable clock. Readings queued with Queue are returned
// first, one per call.
type testClock struct {
	mu     sync.Mutex
	now    time.Time
	queued []time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testStart}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queued) > 0 {
		ret := c.queued[0]
		c.queued = c.queued[1:]
		return ret
	}
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Queue(readings ...time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = append(c.queued, readings...)
}

// recordingDispatcher keeps every published event
type recordingDispatcher struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recordingDispatcher) PublishAsync(_ event.EventType, evt event.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return true
}

func (r *recordingDispatcher) Types() []event.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]event.EventType, 0, len(r.events))
	for _, evt := range r.events {
		ret = append(ret, evt.Type)
	}
	return ret
}

func (r *recordingDispatcher) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

type fixture struct {
	coord      *governance.Coordinator
	db         *database.Database
	clock      *testClock
	dispatcher *recordingDispatcher
}

func newFixture(t *testing.T, opts ...governance.ConfigOptionFunc) *fixture {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	f := &fixture{
		db:         db,
		clock:      newTestClock(),
		dispatcher: &recordingDispatcher{},
	}
	opts = append([]governance.ConfigOptionFunc{
		governance.WithDatabase(db),
		governance.WithClock(f.clock.Now),
		governance.WithDispatcher(f.dispatcher),
	}, opts...)
	coord, err := governance.New(opts...)
	require.NoError(t, err)
	f.coord = coord
	return f
}

func defaultRequest() governance.CreateProposalRequest {
	return governance.CreateProposalRequest{
		ProjectID:         "project-1",
		Title:             "Fund the audit",
		Description:       "Release the audit budget",
		Kind:              models.ProposalKindFundingRelease,
		EndTime:           testStart.Add(time.Hour),
		MinTokensRequired: decimal.NewFromInt(100),
		QuorumRequired:    decimal.NewFromInt(51),
	}
}

func (f *fixture) createProposal(
	t *testing.T,
	mod func(*governance.CreateProposalRequest),
) *models.Proposal {
	t.Helper()
	req := defaultRequest()
	if mod != nil {
		mod(&req)
	}
	p, err := f.coord.CreateProposal(context.Background(), admin, req)
	require.NoError(t, err)
	return p
}

func (f *fixture) stake(
	t *testing.T,
	caller governance.Caller,
	proposalID string,
	amount int64,
) *governance.StakeResult {
	t.Helper()
	ret, err := f.coord.StakeTokens(
		context.Background(),
		caller,
		governance.StakeRequest{
			ProposalID: proposalID,
			Amount:     decimal.NewFromInt(amount),
			WalletID:   "wallet-" + caller.ID,
		},
	)
	require.NoError(t, err)
	return ret
}

func (f *fixture) vote(
	caller governance.Caller,
	proposalID string,
	choice models.VoteChoice,
) (*governance.VoteResult, error) {
	return f.coord.CastVote(
		context.Background(),
		caller,
		governance.VoteRequest{ProposalID: proposalID, Choice: choice},
	)
}

func (f *fixture) get(t *testing.T, id string) *models.Proposal {
	t.Helper()
	p, err := f.coord.GetProposal(context.Background(), id)
	require.NoError(t, err)
	return p
}

// requireDecimal compares decimals by value
func requireDecimal(t *testing.T, expected int64, actual decimal.Decimal) {
	t.Helper()
	require.True(
		t,
		decimal.NewFromInt(expected).Equal(actual),
		"expected %d, got %s",
		expected,
		actual.String(),
	)
}

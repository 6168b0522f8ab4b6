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

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/api"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/event"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/governance"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/journal"
)

var start = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	*httptest.Server
	clock *clock
}

type identity struct {
	id   string
	role governance.Role
}

var (
	admin  = identity{"admin-1", governance.RolePrivileged}
	alice  = identity{"alice", governance.RoleStakingEligible}
	bob    = identity{"bob", governance.RoleStakingEligible}
	nobody identity
)

func newTestServer(t *testing.T, withJournal bool) *testServer {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c := &clock{now: start}
	opts := []governance.ConfigOptionFunc{
		governance.WithDatabase(db),
		governance.WithClock(c.Now),
	}
	var events api.EventLog
	if withJournal {
		bus := event.NewEventBus(nil, nil)
		j, err := journal.New()
		require.NoError(t, err)
		j.Attach(bus)
		t.Cleanup(func() {
			bus.Stop()
			_ = j.Close()
		})
		opts = append(opts, governance.WithDispatcher(bus))
		events = j
	}
	coord, err := governance.New(opts...)
	require.NoError(t, err)
	srv := httptest.NewServer(api.New(api.Config{}, coord, events, nil).Handler())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, clock: c}
}

func (ts *testServer) do(
	t *testing.T,
	who identity,
	method string,
	path string,
	body any,
	out any,
) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, ts.URL+path, reader)
	require.NoError(t, err)
	if who.id != "" {
		req.Header.Set(api.HeaderCallerID, who.id)
		req.Header.Set(api.HeaderCallerRole, string(who.role))
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return resp
}

func (ts *testServer) create(t *testing.T, quorum string) api.ProposalResponse {
	t.Helper()
	var p api.ProposalResponse
	resp := ts.do(t, admin, http.MethodPost, "/api/v1/proposals", map[string]any{
		"title":               "Release milestone 2 funds",
		"kind":                "funding_release",
		"end_time":            start.Add(time.Hour),
		"min_tokens_required": "100",
		"quorum_required":     quorum,
	}, &p)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return p
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	var health api.HealthResponse
	resp := ts.do(t, nobody, http.MethodGet, "/health", nil, &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, health.IsHealthy)
}

func TestProposalLifecycle(t *testing.T) {
	ts := newTestServer(t, false)
	p := ts.create(t, "51")
	assert.Equal(t, "active", p.Status)
	assert.Equal(t, "admin-1", p.CreatorID)

	var stake api.StakeResultResponse
	resp := ts.do(t, alice, http.MethodPost, "/api/v1/proposals/"+p.ID+"/stakes", map[string]any{
		"amount": "600",
	}, &stake)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "600", stake.TotalStakedForProposal.String())
	resp = ts.do(t, bob, http.MethodPost, "/api/v1/proposals/"+p.ID+"/stakes", map[string]any{
		"amount": "400",
	}, &stake)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1000", stake.TotalStakedForProposal.String())

	var vote api.VoteResultResponse
	resp = ts.do(t, alice, http.MethodPost, "/api/v1/proposals/"+p.ID+"/votes", map[string]any{
		"choice": "support",
	}, &vote)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "60", vote.SupportPct.String())
	assert.True(t, vote.QuorumMet)
	assert.Equal(t, "active", vote.Status)

	var errResp api.ErrorResponse
	resp = ts.do(t, alice, http.MethodPost, "/api/v1/proposals/"+p.ID+"/votes", map[string]any{
		"choice": "against",
	}, &errResp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, http.StatusConflict, errResp.StatusCode)

	// Executing while the window is open is an invalid state
	resp = ts.do(t, admin, http.MethodPost, "/api/v1/proposals/"+p.ID+"/execute", nil, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	ts.clock.Advance(2 * time.Hour)
	var executed api.ProposalResponse
	resp = ts.do(t, admin, http.MethodPost, "/api/v1/proposals/"+p.ID+"/execute", map[string]any{
		"notes": "funds released",
	}, &executed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "executed", executed.Status)
	assert.Equal(t, "passed", executed.Outcome)
	assert.Contains(t, executed.ExecutionNotes, "funds released")

	// Executing again returns the executed proposal unchanged
	var again api.ProposalResponse
	resp = ts.do(t, admin, http.MethodPost, "/api/v1/proposals/"+p.ID+"/execute", nil, &again)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, executed.Version, again.Version)

	var got api.ProposalResponse
	resp = ts.do(t, nobody, http.MethodGet, "/api/v1/proposals/"+p.ID, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1000", got.TotalTokensStaked.String())
	assert.Equal(t, int64(2), got.TotalStakers)
	assert.Equal(t, int64(1), got.TotalVoters)
}

func TestErrorStatusMapping(t *testing.T) {
	ts := newTestServer(t, false)
	p := ts.create(t, "51")
	body := map[string]any{
		"title":           "x",
		"kind":            "funding_release",
		"end_time":        start.Add(time.Hour),
		"quorum_required": "51",
	}
	testDefs := []struct {
		name   string
		who    identity
		method string
		path   string
		body   any
		status int
	}{
		{"missing caller", nobody, http.MethodPost, "/api/v1/proposals", body, http.StatusUnauthorized},
		{"wrong role", alice, http.MethodPost, "/api/v1/proposals", body, http.StatusForbidden},
		{"admin cannot stake", admin, http.MethodPost, "/api/v1/proposals/" + p.ID + "/stakes", map[string]any{"amount": "1"}, http.StatusForbidden},
		{"unknown proposal", nobody, http.MethodGet, "/api/v1/proposals/nope", nil, http.StatusNotFound},
		{"unknown route", nobody, http.MethodGet, "/api/v2/anything", nil, http.StatusNotFound},
		{"bad quorum", admin, http.MethodPost, "/api/v1/proposals", map[string]any{
			"title":           "x",
			"kind":            "funding_release",
			"end_time":        start.Add(time.Hour),
			"quorum_required": "150",
		}, http.StatusBadRequest},
		{"unknown field", admin, http.MethodPost, "/api/v1/proposals", map[string]any{"bogus": true}, http.StatusBadRequest},
		{"zero stake", alice, http.MethodPost, "/api/v1/proposals/" + p.ID + "/stakes", map[string]any{"amount": "0"}, http.StatusBadRequest},
		{"bad choice", alice, http.MethodPost, "/api/v1/proposals/" + p.ID + "/votes", map[string]any{"choice": "maybe"}, http.StatusBadRequest},
		{"vote without stake", bob, http.MethodPost, "/api/v1/proposals/" + p.ID + "/votes", map[string]any{"choice": "support"}, http.StatusUnprocessableEntity},
		{"bad pagination", nobody, http.MethodGet, "/api/v1/proposals?count=abc", nil, http.StatusBadRequest},
		{"bad status filter", nobody, http.MethodGet, "/api/v1/proposals?status=bogus", nil, http.StatusBadRequest},
		{"journal disabled", nobody, http.MethodGet, "/api/v1/proposals/" + p.ID + "/events", nil, http.StatusNotImplemented},
		{"method not allowed", nobody, http.MethodPut, "/api/v1/proposals/" + p.ID, nil, http.StatusMethodNotAllowed},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			var errResp api.ErrorResponse
			resp := ts.do(t, testDef.who, testDef.method, testDef.path, testDef.body, &errResp)
			assert.Equal(t, testDef.status, resp.StatusCode)
			assert.Equal(t, testDef.status, errResp.StatusCode)
			assert.NotEmpty(t, errResp.Message)
		})
	}
}

func TestUnstakeLocked(t *testing.T) {
	ts := newTestServer(t, false)
	p := ts.create(t, "51")
	resp := ts.do(t, alice, http.MethodPost, "/api/v1/proposals/"+p.ID+"/stakes", map[string]any{"amount": "5"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(t, alice, http.MethodDelete, "/api/v1/proposals/"+p.ID+"/stakes", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	ts.clock.Advance(models.DefaultLockWindow + 2*time.Hour)
	var result api.StakeResultResponse
	resp = ts.do(t, alice, http.MethodDelete, "/api/v1/proposals/"+p.ID+"/stakes", nil, &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "unstaked", result.Stake.Status)
	assert.True(t, result.TotalStakedForProposal.IsZero())
	// Nothing left to withdraw
	resp = ts.do(t, alice, http.MethodDelete, "/api/v1/proposals/"+p.ID+"/stakes", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestListPagination(t *testing.T) {
	ts := newTestServer(t, false)
	for range 5 {
		ts.create(t, "51")
	}
	var page []api.ProposalResponse
	resp := ts.do(t, nobody, http.MethodGet, "/api/v1/proposals?count=2&page=3", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, page, 1)
	assert.Equal(t, "5", resp.Header.Get("X-Pagination-Count-Total"))
	assert.Equal(t, "3", resp.Header.Get("X-Pagination-Page-Total"))

	resp = ts.do(t, nobody, http.MethodGet, "/api/v1/proposals?status=draft", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, page)
}

func TestAnonymousVotesRedacted(t *testing.T) {
	ts := newTestServer(t, false)
	p := ts.create(t, "51")
	for _, who := range []identity{alice, bob} {
		resp := ts.do(t, who, http.MethodPost, "/api/v1/proposals/"+p.ID+"/stakes", map[string]any{"amount": "10"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := ts.do(t, alice, http.MethodPost, "/api/v1/proposals/"+p.ID+"/votes", map[string]any{
		"choice":    "against",
		"anonymous": true,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(t, bob, http.MethodPost, "/api/v1/proposals/"+p.ID+"/votes", map[string]any{
		"choice": "abstain",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var votes []api.VoteResponse
	resp = ts.do(t, nobody, http.MethodGet, "/api/v1/proposals/"+p.ID+"/votes", nil, &votes)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, votes, 2)
	assert.Empty(t, votes[0].VoterID)
	assert.True(t, votes[0].IsAnonymous)
	assert.Equal(t, "against", votes[0].Choice)
	assert.Equal(t, "bob", votes[1].VoterID)

	var stakes []api.StakeResponse
	resp = ts.do(t, nobody, http.MethodGet, "/api/v1/proposals/"+p.ID+"/stakes?order=desc", nil, &stakes)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, stakes, 2)
	assert.Equal(t, "bob", stakes[0].ParticipantID)
}

func TestEventHistory(t *testing.T) {
	ts := newTestServer(t, true)
	p := ts.create(t, "51")
	resp := ts.do(t, alice, http.MethodPost, "/api/v1/proposals/"+p.ID+"/stakes", map[string]any{"amount": "10"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(t, alice, http.MethodPost, "/api/v1/proposals/"+p.ID+"/votes", map[string]any{"choice": "support"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Delivery is asynchronous
	var events []api.EventResponse
	require.Eventually(t, func() bool {
		events = nil
		ts.do(t, nobody, http.MethodGet, "/api/v1/proposals/"+p.ID+"/events", nil, &events)
		return len(events) == 3
	}, 5*time.Second, 10*time.Millisecond)
	types := make(map[string]bool)
	for _, e := range events {
		types[e.Type] = true
	}
	for _, eventType := range []event.EventType{
		event.ProposalCreatedEventType,
		event.StakeAddedEventType,
		event.VoteCastEventType,
	} {
		assert.True(t, types[string(eventType)], eventType)
	}

	resp = ts.do(t, nobody, http.MethodGet, "/api/v1/proposals/missing/events", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartStop(t *testing.T) {
	srv := api.New(api.Config{ListenAddress: "127.0.0.1:0"}, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))
	require.Error(t, srv.Start(ctx))
	require.NoError(t, srv.Stop(context.Background()))
	// Stopping twice is harmless
	require.NoError(t, srv.Stop(context.Background()))
}

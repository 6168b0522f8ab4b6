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

package proposal_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/proposal"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/stake"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/tally"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func testDraft() proposal.Draft {
	return proposal.Draft{
		ProjectID:         "project-7",
		CreatorID:         "admin",
		Title:             "Adopt new fee schedule",
		Kind:              models.ProposalKindGovernanceChange,
		EndTime:           now.Add(time.Hour),
		MinTokensRequired: decimal.Zero,
		QuorumRequired:    decimal.NewFromInt(60),
	}
}

func newStore(t *testing.T) (*proposal.Store, *stake.Ledger, *tally.Tally, *database.Database) {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ledger := stake.NewLedger(0)
	ta := tally.New(ledger, nil)
	return proposal.NewStore(ledger, ta), ledger, ta, db
}

func TestEvaluateTransition(t *testing.T) {
	base := models.Proposal{
		Status:            models.ProposalStatusActive,
		EndTime:           now,
		QuorumRequired:    decimal.NewFromInt(50),
		TotalTokensStaked: decimal.NewFromInt(100),
		SupportTokens:     decimal.NewFromInt(50),
	}
	testDefs := []struct {
		name     string
		mod      func(*models.Proposal)
		at       time.Time
		expected proposal.Transition
	}{
		{
			name:     "open window",
			at:       now,
			expected: proposal.Transition{Kind: proposal.NoChange, From: models.ProposalStatusActive, To: models.ProposalStatusActive},
		},
		{
			name:     "closed with quorum",
			at:       now.Add(time.Second),
			expected: proposal.Transition{Kind: proposal.Transitioned, From: models.ProposalStatusActive, To: models.ProposalStatusPassed},
		},
		{
			name:     "closed without quorum",
			mod:      func(p *models.Proposal) { p.SupportTokens = decimal.NewFromInt(49) },
			at:       now.Add(time.Second),
			expected: proposal.Transition{Kind: proposal.Transitioned, From: models.ProposalStatusActive, To: models.ProposalStatusFailed},
		},
		{
			name:     "closed with nothing staked",
			mod:      func(p *models.Proposal) { p.TotalTokensStaked = decimal.Zero; p.SupportTokens = decimal.Zero },
			at:       now.Add(time.Second),
			expected: proposal.Transition{Kind: proposal.Transitioned, From: models.ProposalStatusActive, To: models.ProposalStatusFailed},
		},
		{
			name:     "draft is never resolved",
			mod:      func(p *models.Proposal) { p.Status = models.ProposalStatusDraft },
			at:       now.Add(time.Hour),
			expected: proposal.Transition{Kind: proposal.NoChange, From: models.ProposalStatusDraft, To: models.ProposalStatusDraft},
		},
		{
			name:     "already passed",
			mod:      func(p *models.Proposal) { p.Status = models.ProposalStatusPassed },
			at:       now.Add(time.Hour),
			expected: proposal.Transition{Kind: proposal.NoChange, From: models.ProposalStatusPassed, To: models.ProposalStatusPassed},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			p := base
			if testDef.mod != nil {
				testDef.mod(&p)
			}
			got := proposal.EvaluateTransition(&p, testDef.at)
			assert.Equal(t, testDef.expected, got)
			// Evaluation never modifies the proposal
			assert.Equal(t, testDef.expected.From, p.Status)
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, proposal.CanTransition(models.ProposalStatusDraft, models.ProposalStatusActive))
	assert.True(t, proposal.CanTransition(models.ProposalStatusFailed, models.ProposalStatusExecuted))
	assert.True(t, proposal.CanTransition(models.ProposalStatusPassed, models.ProposalStatusCancelled))
	assert.False(t, proposal.CanTransition(models.ProposalStatusDraft, models.ProposalStatusPassed))
	assert.False(t, proposal.CanTransition(models.ProposalStatusActive, models.ProposalStatusExecuted))
	assert.False(t, proposal.CanTransition(models.ProposalStatusExecuted, models.ProposalStatusCancelled))
	assert.False(t, proposal.CanTransition(models.ProposalStatusCancelled, models.ProposalStatusActive))
}

func TestApply(t *testing.T) {
	p := &models.Proposal{Status: models.ProposalStatusActive}
	require.NoError(t, proposal.Apply(p, models.ProposalStatusPassed, now))
	assert.Equal(t, models.ProposalStatusPassed, p.Outcome)
	require.NotNil(t, p.ResolvedAt)
	require.NoError(t, proposal.Apply(p, models.ProposalStatusExecuted, now))
	require.NotNil(t, p.ExecutedAt)
	assert.Equal(t, models.ProposalStatusPassed, p.Outcome)
	err := proposal.Apply(p, models.ProposalStatusCancelled, now)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, models.ProposalStatusExecuted, p.Status)
}

func TestCreateAndGet(t *testing.T) {
	store, _, _, db := newStore(t)
	var created *models.Proposal
	err := db.Transaction(context.Background(), func(txn *database.Txn) error {
		var err error
		created, err = store.Create(txn, testDraft(), now)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusActive, created.Status)
	assert.Len(t, created.ID, 36)

	got, err := store.Get(db.Reader(context.Background()), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)
	assert.True(t, got.QuorumRequired.Equal(decimal.NewFromInt(60)))
	assert.True(t, got.EndTime.Equal(now.Add(time.Hour)))
	assert.Equal(t, uint64(0), got.Version)

	_, err = store.Get(db.Reader(context.Background()), "nope")
	require.ErrorIs(t, err, models.ErrProposalNotFound)
}

func TestCreateOnReaderFails(t *testing.T) {
	store, _, _, db := newStore(t)
	_, err := store.Create(db.Reader(context.Background()), testDraft(), now)
	require.ErrorIs(t, err, database.ErrReadOnlyTxn)
}

func TestSaveDetectsStaleVersion(t *testing.T) {
	store, _, _, db := newStore(t)
	ctx := context.Background()
	var p *models.Proposal
	require.NoError(t, db.Transaction(ctx, func(txn *database.Txn) error {
		var err error
		p, err = store.Create(txn, testDraft(), now)
		return err
	}))
	stale := *p
	require.NoError(t, db.Transaction(ctx, func(txn *database.Txn) error {
		p.TotalVoters = 3
		return store.Save(txn, p)
	}))
	assert.Equal(t, uint64(1), p.Version)
	err := db.Transaction(ctx, func(txn *database.Txn) error {
		stale.TotalVoters = 9
		return store.Save(txn, &stale)
	})
	require.ErrorIs(t, err, proposal.ErrVersionConflict)
	got, err := store.Get(db.Reader(ctx), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalVoters)
	assert.Equal(t, uint64(1), got.Version)
}

func TestReconcile(t *testing.T) {
	store, ledger, ta, db := newStore(t)
	ctx := context.Background()
	var id string
	require.NoError(t, db.Transaction(ctx, func(txn *database.Txn) error {
		p, err := store.Create(txn, testDraft(), now)
		if err != nil {
			return err
		}
		id = p.ID
		for _, who := range []string{"a", "b"} {
			if _, err := ledger.Stake(txn, p, stake.Input{
				ParticipantID: who,
				Amount:        decimal.NewFromInt(40),
			}, now); err != nil {
				return err
			}
		}
		if _, err := ta.Cast(txn, p, tally.Ballot{VoterID: "a", Choice: models.VoteSupport}, now); err != nil {
			return err
		}
		return store.Save(txn, p)
	}))
	reader := db.Reader(ctx)
	got, err := store.Get(reader, id)
	require.NoError(t, err)
	changed, err := store.Reconcile(reader, got)
	require.NoError(t, err)
	assert.False(t, changed)

	// Corrupt the cached counters and reconcile them back
	got.TotalTokensStaked = decimal.NewFromInt(1)
	got.SupportTokens = decimal.Zero
	changed, err = store.Reconcile(reader, got)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, got.TotalTokensStaked.Equal(decimal.NewFromInt(80)))
	assert.True(t, got.SupportTokens.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, int64(2), got.TotalStakers)
	assert.Equal(t, int64(1), got.TotalVoters)
}

func TestListResolvable(t *testing.T) {
	store, _, _, db := newStore(t)
	ctx := context.Background()
	require.NoError(t, db.Transaction(ctx, func(txn *database.Txn) error {
		for _, end := range []time.Duration{time.Hour, 2 * time.Hour, 3 * time.Hour} {
			d := testDraft()
			d.EndTime = now.Add(end)
			if _, err := store.Create(txn, d, now); err != nil {
				return err
			}
		}
		return nil
	}))
	got, err := store.ListResolvable(db.Reader(ctx), now.Add(150*time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

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

	"github.com/shopspring/decimal"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/event"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/tally"
)

// VoteRequest is a single ballot on a proposal
type VoteRequest struct {
	ProposalID    string
	Choice        models.VoteChoice
	Comment       string
	Anonymous     bool
	DelegatedFrom string
}

// VoteResult is the proposal state observed right after the vote committed
type VoteResult struct {
	Vote       *models.Vote
	SupportPct decimal.Decimal
	AgainstPct decimal.Decimal
	AbstainPct decimal.Decimal
	QuorumMet  bool
	Status     models.ProposalStatus
	Resolved   bool
}

// CastVote records the caller's single vote on a proposal, weighted by
// their active stake. If the voting window has closed by the time the vote
// is recorded, the proposal is resolved in the same transaction.
func (c *Coordinator) CastVote(
	ctx context.Context,
	caller Caller,
	req VoteRequest,
) (ret *VoteResult, err error) {
	ctx, end := c.begin(ctx, "cast_vote")
	defer func() { end(err) }()
	if err := caller.Require(RoleStakingEligible); err != nil {
		return nil, err
	}
	if !req.Choice.Valid() {
		return nil, ErrInvalidChoice
	}
	var vote *models.Vote
	var resolved bool
	p, err := c.mutate(ctx, "cast_vote", req.ProposalID, func(m *mutation) error {
		var err error
		vote, err = c.tally.Cast(m.txn, m.proposal, tally.Ballot{
			VoterID:       caller.ID,
			Choice:        req.Choice,
			Comment:       req.Comment,
			Anonymous:     req.Anonymous,
			DelegatedFrom: req.DelegatedFrom,
		}, m.now)
		if err != nil {
			return err
		}
		m.dirty = true
		data := event.GovernanceEvent{
			Choice: req.Choice.String(),
			Amount: vote.VotingPower.String(),
		}
		if !req.Anonymous {
			data.ActorID = caller.ID
		}
		m.emit(event.VoteCastEventType, data)
		// Read the clock again: the window may have closed while the vote
		// was being recorded
		resolved, err = c.resolve(m, c.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug(
		"vote cast",
		"proposal", p.ID,
		"choice", req.Choice.String(),
		"power", vote.VotingPower.String(),
	)
	if resolved {
		c.logger.Info(
			"proposal resolved",
			"proposal", p.ID,
			"outcome", p.Outcome,
		)
	}
	return &VoteResult{
		Vote:       vote,
		SupportPct: p.SupportPct(),
		AgainstPct: p.AgainstPct(),
		AbstainPct: p.AbstainPct(),
		QuorumMet:  p.HasMetQuorum(),
		Status:     p.Status,
		Resolved:   resolved,
	}, nil
}

// ListVotes returns the votes of a proposal with anonymous voters redacted
func (c *Coordinator) ListVotes(
	ctx context.Context,
	proposalID string,
) (ret []models.Vote, err error) {
	ctx, end := c.begin(ctx, "list_votes")
	defer func() { end(err) }()
	txn := c.db.Reader(ctx)
	if _, err := c.store.Get(txn, proposalID); err != nil {
		return nil, err
	}
	votes, err := c.tally.List(txn, proposalID)
	if err != nil {
		return nil, err
	}
	ret = make([]models.Vote, 0, len(votes))
	for _, v := range votes {
		ret = append(ret, v.Redacted())
	}
	return ret, nil
}

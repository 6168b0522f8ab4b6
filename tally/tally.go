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

// Package tally records weighted votes. A voter's power is taken from their
// active stake at the moment the vote is cast.
package tally

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/stake"
	"gorm.io/gorm/clause"
)

var errNegativeMultiplier = errors.New("power strategy returned a negative multiplier")

// Ballot is a vote as submitted by a participant
type Ballot struct {
	VoterID       string
	Choice        models.VoteChoice
	Comment       string
	Anonymous     bool
	DelegatedFrom string
}

// Tally casts ballots against a proposal, weighting each by the voter's
// active stake and the configured power strategy
type Tally struct {
	ledger   *stake.Ledger
	strategy PowerStrategy
}

// New returns a tally reading stakes from ledger. A nil strategy selects
// NeutralStrategy.
func New(ledger *stake.Ledger, strategy PowerStrategy) *Tally {
	if strategy == nil {
		strategy = NeutralStrategy{}
	}
	return &Tally{
		ledger:   ledger,
		strategy: strategy,
	}
}

// Cast records the ballot on p and adds its power to the matching aggregate
// of p. The caller persists p.
func (t *Tally) Cast(
	txn *database.Txn,
	p *models.Proposal,
	b Ballot,
	now time.Time,
) (*models.Vote, error) {
	if err := txn.Writable(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(b.VoterID) == "" {
		return nil, fmt.Errorf("%w: voter id is required", models.ErrInvalidInput)
	}
	if !b.Choice.Valid() {
		return nil, models.ErrInvalidChoice
	}
	if utf8.RuneCountInString(b.Comment) > models.MaxCommentLength {
		return nil, fmt.Errorf(
			"%w: comment exceeds %d characters",
			models.ErrInvalidInput,
			models.MaxCommentLength,
		)
	}
	if err := p.CheckOpen(now); err != nil {
		return nil, err
	}
	voted, err := t.HasVoted(txn, p.ID, b.VoterID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, models.ErrDuplicateVote
	}
	s, err := t.ledger.Active(txn, p.ID, b.VoterID)
	if err != nil {
		return nil, err
	}
	if s == nil || !s.TokenAmount.IsPositive() {
		return nil, models.ErrNoActiveStake
	}
	m, err := t.strategy.Multipliers(p, s)
	if err != nil {
		return nil, fmt.Errorf("compute voting power: %w", err)
	}
	if m.Stake.IsNegative() || m.Reputation.IsNegative() {
		return nil, errNegativeMultiplier
	}
	vote := &models.Vote{
		ProposalID:           p.ID,
		VoterID:              b.VoterID,
		Choice:               b.Choice,
		BaseVotingPower:      s.TokenAmount,
		VotingPower:          VotingPower(s.TokenAmount, m),
		StakeMultiplier:      m.Stake,
		ReputationMultiplier: m.Reputation,
		CastAt:               now,
		Comment:              b.Comment,
		IsAnonymous:          b.Anonymous,
		DelegatedFrom:        b.DelegatedFrom,
	}
	// The unique index decides: a conflicting insert affects no rows
	result := txn.DB().Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "proposal_id"},
			{Name: "voter_id"},
		},
		DoNothing: true,
	}).Create(vote)
	if result.Error != nil {
		return nil, fmt.Errorf("record vote: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, models.ErrDuplicateVote
	}
	switch b.Choice {
	case models.VoteSupport:
		p.SupportTokens = p.SupportTokens.Add(vote.VotingPower)
	case models.VoteAgainst:
		p.AgainstTokens = p.AgainstTokens.Add(vote.VotingPower)
	case models.VoteAbstain:
		p.AbstainTokens = p.AbstainTokens.Add(vote.VotingPower)
	}
	p.TotalVoters++
	return vote, nil
}

// HasVoted reports whether a vote row exists for the voter
func (t *Tally) HasVoted(
	txn *database.Txn,
	proposalID string,
	voterID string,
) (bool, error) {
	var count int64
	if result := txn.DB().Model(&models.Vote{}).Where(
		"proposal_id = ? AND voter_id = ?",
		proposalID,
		voterID,
	).Count(&count); result.Error != nil {
		return false, fmt.Errorf("check vote: %w", result.Error)
	}
	return count > 0, nil
}

// List returns the votes of a proposal in cast order
func (t *Tally) List(
	txn *database.Txn,
	proposalID string,
) ([]models.Vote, error) {
	var votes []models.Vote
	if result := txn.DB().Where(
		"proposal_id = ?",
		proposalID,
	).Order("id").Find(&votes); result.Error != nil {
		return nil, fmt.Errorf("list votes: %w", result.Error)
	}
	return votes, nil
}

// Totals is the recomputed vote aggregate of a proposal
type Totals struct {
	Support decimal.Decimal
	Against decimal.Decimal
	Abstain decimal.Decimal
	Voters  int64
}

// Sum recomputes the aggregate from the vote rows
func (t *Tally) Sum(
	txn *database.Txn,
	proposalID string,
) (Totals, error) {
	votes, err := t.List(txn, proposalID)
	if err != nil {
		return Totals{}, err
	}
	totals := Totals{
		Support: decimal.Zero,
		Against: decimal.Zero,
		Abstain: decimal.Zero,
		Voters:  int64(len(votes)),
	}
	for _, v := range votes {
		switch v.Choice {
		case models.VoteSupport:
			totals.Support = totals.Support.Add(v.VotingPower)
		case models.VoteAgainst:
			totals.Against = totals.Against.Add(v.VotingPower)
		case models.VoteAbstain:
			totals.Abstain = totals.Abstain.Add(v.VotingPower)
		}
	}
	return totals, nil
}

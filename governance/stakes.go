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
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/event"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/stake"
)

const maxTxReferenceLength = 128

// StakeRequest is a caller's commitment of tokens to a proposal. A
// non-empty TxReference queues the deposit for on-chain verification.
type StakeRequest struct {
	ProposalID  string
	Amount      decimal.Decimal
	WalletID    string
	Notes       string
	TxReference string
}

// StakeResult carries the caller's stake row and the proposal total after
// the change
type StakeResult struct {
	TotalStakedForProposal decimal.Decimal
	Stake                  *models.Stake
}

// StakeTokens commits tokens from the caller to a proposal
func (c *Coordinator) StakeTokens(
	ctx context.Context,
	caller Caller,
	req StakeRequest,
) (ret *StakeResult, err error) {
	ctx, end := c.begin(ctx, "stake_tokens")
	defer func() { end(err) }()
	if err := caller.Require(RoleStakingEligible); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if utf8.RuneCountInString(req.Notes) > models.MaxNotesLength {
		return nil, fmt.Errorf(
			"%w: notes exceed %d characters",
			ErrInvalidInput,
			models.MaxNotesLength,
		)
	}
	if len(req.TxReference) > maxTxReferenceLength {
		return nil, fmt.Errorf(
			"%w: transaction reference exceeds %d characters",
			ErrInvalidInput,
			maxTxReferenceLength,
		)
	}
	var row *models.Stake
	p, err := c.mutate(ctx, "stake_tokens", req.ProposalID, func(m *mutation) error {
		var err error
		row, err = c.ledger.Stake(m.txn, m.proposal, stake.Input{
			ParticipantID: caller.ID,
			WalletID:      req.WalletID,
			Amount:        req.Amount,
			Notes:         req.Notes,
			TxReference:   req.TxReference,
		}, m.now)
		if err != nil {
			return err
		}
		m.dirty = true
		m.emit(event.StakeAddedEventType, event.GovernanceEvent{
			ActorID: caller.ID,
			Amount:  req.Amount.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug(
		"tokens staked",
		"proposal", p.ID,
		"participant", caller.ID,
		"amount", req.Amount.String(),
		"total", p.TotalTokensStaked.String(),
	)
	return &StakeResult{
		TotalStakedForProposal: p.TotalTokensStaked,
		Stake:                  row,
	}, nil
}

// UnstakeTokens withdraws the caller's active stake after its lock window
func (c *Coordinator) UnstakeTokens(
	ctx context.Context,
	caller Caller,
	proposalID string,
) (ret *StakeResult, err error) {
	ctx, end := c.begin(ctx, "unstake_tokens")
	defer func() { end(err) }()
	if err := caller.Require(RoleStakingEligible); err != nil {
		return nil, err
	}
	var row *models.Stake
	p, err := c.mutate(ctx, "unstake_tokens", proposalID, func(m *mutation) error {
		// Settle a closed window first so the outcome uses the totals the
		// voters saw
		if _, err := c.resolve(m, m.now); err != nil {
			return err
		}
		var err error
		row, err = c.ledger.Unstake(m.txn, m.proposal, caller.ID, m.now)
		if err != nil {
			return err
		}
		m.dirty = true
		m.emit(event.StakeWithdrawnEventType, event.GovernanceEvent{
			ActorID: caller.ID,
			Amount:  row.TokenAmount.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug(
		"tokens unstaked",
		"proposal", p.ID,
		"participant", caller.ID,
		"amount", row.TokenAmount.String(),
	)
	return &StakeResult{
		TotalStakedForProposal: p.TotalTokensStaked,
		Stake:                  row,
	}, nil
}

// ListStakes returns every stake row of a proposal
func (c *Coordinator) ListStakes(
	ctx context.Context,
	proposalID string,
) (ret []models.Stake, err error) {
	ctx, end := c.begin(ctx, "list_stakes")
	defer func() { end(err) }()
	txn := c.db.Reader(ctx)
	if _, err := c.store.Get(txn, proposalID); err != nil {
		return nil, err
	}
	return c.ledger.List(txn, proposalID)
}

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

// Package stake implements the stake ledger: the record of token commitments
// per (proposal, participant) and the proposal aggregates derived from them.
package stake

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"gorm.io/gorm"
)

// Input describes a single stake call
type Input struct {
	ParticipantID string
	WalletID      string
	Amount        decimal.Decimal
	Notes         string
	TxReference   string
}

// Ledger records stakes. It holds no state of its own; every method runs on
// the caller's transaction so the stake rows and the proposal aggregates it
// mutates commit together.
type Ledger struct {
	lockWindow time.Duration
}

// NewLedger returns a ledger using the given lock window. A non-positive
// window selects models.DefaultLockWindow.
func NewLedger(lockWindow time.Duration) *Ledger {
	if lockWindow <= 0 {
		lockWindow = models.DefaultLockWindow
	}
	return &Ledger{lockWindow: lockWindow}
}

// LockWindow returns the configured lock window
func (l *Ledger) LockWindow() time.Duration {
	return l.lockWindow
}

// Stake adds in.Amount to the participant's active stake on p, creating the
// row if needed, and updates p.TotalTokensStaked and p.TotalStakers. The
// caller persists p.
func (l *Ledger) Stake(
	txn *database.Txn,
	p *models.Proposal,
	in Input,
	now time.Time,
) (*models.Stake, error) {
	if err := txn.Writable(); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if strings.TrimSpace(in.ParticipantID) == "" {
		return nil, fmt.Errorf("%w: participant id is required", models.ErrInvalidInput)
	}
	if err := p.CheckOpen(now); err != nil {
		return nil, err
	}
	db := txn.DB()
	row, err := l.Active(txn, p.ID, in.ParticipantID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		row.TokenAmount = row.TokenAmount.Add(in.Amount)
		if in.WalletID != "" {
			row.WalletID = in.WalletID
		}
		if in.Notes != "" {
			row.Notes = in.Notes
		}
		if in.TxReference != "" {
			row.TxReference = in.TxReference
			row.IsVerifiedOnChain = false
		}
		if result := db.Save(row); result.Error != nil {
			return nil, fmt.Errorf("update stake: %w", result.Error)
		}
	} else {
		row = &models.Stake{
			ProposalID:    p.ID,
			ParticipantID: in.ParticipantID,
			WalletID:      in.WalletID,
			TokenAmount:   in.Amount,
			Status:        models.StakeStatusActive,
			StakedAt:      now,
			LockUntil:     p.EndTime.Add(l.lockWindow),
			TxReference:   in.TxReference,
			RewardAmount:  decimal.Zero,
			PenaltyAmount: decimal.Zero,
			Notes:         in.Notes,
		}
		if result := db.Create(row); result.Error != nil {
			return nil, fmt.Errorf("create stake: %w", result.Error)
		}
	}
	deposit := &models.StakeDeposit{
		StakeID:            row.ID,
		ProposalID:         p.ID,
		ParticipantID:      in.ParticipantID,
		Amount:             in.Amount,
		TxReference:        in.TxReference,
		VerificationStatus: models.DepositStatusUnreferenced,
	}
	if in.TxReference != "" {
		deposit.VerificationStatus = models.DepositStatusPending
	}
	if result := db.Create(deposit); result.Error != nil {
		return nil, fmt.Errorf("record deposit: %w", result.Error)
	}
	p.TotalTokensStaked = p.TotalTokensStaked.Add(in.Amount)
	stakers, err := l.CountActiveStakers(txn, p.ID)
	if err != nil {
		return nil, err
	}
	p.TotalStakers = stakers
	return row, nil
}

// Unstake withdraws the participant's active stake once its lock window has
// passed. Votes already cast keep their recorded power.
func (l *Ledger) Unstake(
	txn *database.Txn,
	p *models.Proposal,
	participantID string,
	now time.Time,
) (*models.Stake, error) {
	if err := txn.Writable(); err != nil {
		return nil, err
	}
	row, err := l.Active(txn, p.ID, participantID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, models.ErrNoActiveStake
	}
	if row.Locked(now) {
		return nil, models.ErrStakeLocked
	}
	row.Status = models.StakeStatusUnstaked
	row.UnstakedAt = &now
	if result := txn.DB().Save(row); result.Error != nil {
		return nil, fmt.Errorf("update stake: %w", result.Error)
	}
	p.TotalTokensStaked = p.TotalTokensStaked.Sub(row.TokenAmount)
	stakers, err := l.CountActiveStakers(txn, p.ID)
	if err != nil {
		return nil, err
	}
	p.TotalStakers = stakers
	return row, nil
}

// Active returns the participant's active stake, or nil if there is none
func (l *Ledger) Active(
	txn *database.Txn,
	proposalID string,
	participantID string,
) (*models.Stake, error) {
	var row models.Stake
	if result := txn.DB().Where(
		"proposal_id = ? AND participant_id = ? AND status = ?",
		proposalID,
		participantID,
		models.StakeStatusActive,
	).First(&row); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active stake: %w", result.Error)
	}
	return &row, nil
}

// List returns every stake row of a proposal in creation order
func (l *Ledger) List(
	txn *database.Txn,
	proposalID string,
) ([]models.Stake, error) {
	var rows []models.Stake
	if result := txn.DB().Where(
		"proposal_id = ?",
		proposalID,
	).Order("id").Find(&rows); result.Error != nil {
		return nil, fmt.Errorf("list stakes: %w", result.Error)
	}
	return rows, nil
}

// SumActive adds up the active stakes of a proposal. Amounts are summed in Go
// because sqlite would fold the TEXT decimals to floating point.
func (l *Ledger) SumActive(
	txn *database.Txn,
	proposalID string,
) (decimal.Decimal, error) {
	var rows []models.Stake
	if result := txn.DB().Select("token_amount").Where(
		"proposal_id = ? AND status = ?",
		proposalID,
		models.StakeStatusActive,
	).Find(&rows); result.Error != nil {
		return decimal.Zero, fmt.Errorf("sum stakes: %w", result.Error)
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.TokenAmount)
	}
	return total, nil
}

// CountActiveStakers returns the number of distinct participants with an
// active stake on the proposal
func (l *Ledger) CountActiveStakers(
	txn *database.Txn,
	proposalID string,
) (int64, error) {
	var count int64
	if result := txn.DB().Model(&models.Stake{}).Where(
		"proposal_id = ? AND status = ?",
		proposalID,
		models.StakeStatusActive,
	).Distinct("participant_id").Count(&count); result.Error != nil {
		return 0, fmt.Errorf("count stakers: %w", result.Error)
	}
	return count, nil
}

// Deposits returns the deposit history of a stake row
func (l *Ledger) Deposits(
	txn *database.Txn,
	stakeID uint,
) ([]models.StakeDeposit, error) {
	var rows []models.StakeDeposit
	if result := txn.DB().Where(
		"stake_id = ?",
		stakeID,
	).Order("id").Find(&rows); result.Error != nil {
		return nil, fmt.Errorf("list deposits: %w", result.Error)
	}
	return rows, nil
}

// PendingDeposits returns deposits still waiting for a final verification
// result, oldest first
func (l *Ledger) PendingDeposits(
	txn *database.Txn,
	limit int,
) ([]models.StakeDeposit, error) {
	var rows []models.StakeDeposit
	query := txn.DB().Where(
		"verification_status = ?",
		models.DepositStatusPending,
	).Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if result := query.Find(&rows); result.Error != nil {
		return nil, fmt.Errorf("list pending deposits: %w", result.Error)
	}
	return rows, nil
}

// MarkDepositVerified flags a deposit as confirmed on chain. The owning stake
// is flagged once none of its referenced deposits remain unconfirmed.
func (l *Ledger) MarkDepositVerified(
	txn *database.Txn,
	depositID uint,
	now time.Time,
) error {
	if err := txn.Writable(); err != nil {
		return err
	}
	db := txn.DB()
	deposit, err := l.deposit(txn, depositID)
	if err != nil {
		return err
	}
	if result := db.Model(deposit).Updates(map[string]any{
		"is_verified_on_chain": true,
		"verification_status":  models.DepositStatusVerified,
		"verified_at":          now,
	}); result.Error != nil {
		return fmt.Errorf("update deposit: %w", result.Error)
	}
	// A rejected deposit keeps the stake unverified for good
	var remaining int64
	if result := db.Model(&models.StakeDeposit{}).Where(
		"stake_id = ? AND tx_reference <> '' AND verification_status <> ?",
		deposit.StakeID,
		models.DepositStatusVerified,
	).Count(&remaining); result.Error != nil {
		return fmt.Errorf("count pending deposits: %w", result.Error)
	}
	if remaining > 0 {
		return nil
	}
	if result := db.Model(&models.Stake{}).Where(
		"id = ?",
		deposit.StakeID,
	).Update("is_verified_on_chain", true); result.Error != nil {
		return fmt.Errorf("update stake: %w", result.Error)
	}
	return nil
}

// MarkDepositRejected records a final verification failure so the deposit is
// no longer checked. The owning stake stays unverified.
func (l *Ledger) MarkDepositRejected(
	txn *database.Txn,
	depositID uint,
	status models.DepositStatus,
	now time.Time,
) error {
	if err := txn.Writable(); err != nil {
		return err
	}
	if status != models.DepositStatusReverted &&
		status != models.DepositStatusInvalid {
		return fmt.Errorf("%w: deposit status %q", models.ErrInvalidInput, status)
	}
	deposit, err := l.deposit(txn, depositID)
	if err != nil {
		return err
	}
	if deposit.VerificationStatus.Final() {
		return nil
	}
	if result := txn.DB().Model(deposit).Updates(map[string]any{
		"verification_status": status,
		"rejected_at":         now,
	}); result.Error != nil {
		return fmt.Errorf("update deposit: %w", result.Error)
	}
	return nil
}

func (l *Ledger) deposit(
	txn *database.Txn,
	depositID uint,
) (*models.StakeDeposit, error) {
	var deposit models.StakeDeposit
	if result := txn.DB().First(&deposit, depositID); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrStakeNotFound
		}
		return nil, fmt.Errorf("get deposit: %w", result.Error)
	}
	return &deposit, nil
}

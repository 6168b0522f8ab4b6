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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLockWindow is how long after the proposal end staked tokens stay locked
const DefaultLockWindow = 7 * 24 * time.Hour

type StakeStatus string

const (
	StakeStatusPending  StakeStatus = "pending"
	StakeStatusActive   StakeStatus = "active"
	StakeStatusUnstaked StakeStatus = "unstaked"
	StakeStatusSlashed  StakeStatus = "slashed"
	StakeStatusExpired  StakeStatus = "expired"
)

// Stake is a participant's accumulated token commitment on a proposal.
// At most one active row exists per (proposal, participant); the partial
// unique index enforces it in storage.
type Stake struct {
	ID                uint            `gorm:"primarykey"`
	ProposalID        string          `gorm:"size:36;not null;index:idx_stake_participant,priority:1;uniqueIndex:idx_stake_active,priority:1,where:status = 'active'"`
	ParticipantID     string          `gorm:"size:64;not null;index:idx_stake_participant,priority:2;uniqueIndex:idx_stake_active,priority:2"`
	WalletID          string          `gorm:"size:128"`
	TokenAmount       decimal.Decimal `gorm:"type:text;not null"`
	Status            StakeStatus     `gorm:"size:16;not null;index"`
	StakedAt          time.Time       `gorm:"not null"`
	LockUntil         time.Time       `gorm:"not null"`
	UnstakedAt        *time.Time
	TxReference       string          `gorm:"size:128"`
	IsVerifiedOnChain bool            `gorm:"not null"`
	RewardAmount      decimal.Decimal `gorm:"type:text;not null"`
	PenaltyAmount     decimal.Decimal `gorm:"type:text;not null"`
	Notes             string          `gorm:"size:2000"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName returns the table name
func (Stake) TableName() string {
	return "governance_stake"
}

// Locked reports whether the stake can not be withdrawn yet at now
func (s *Stake) Locked(now time.Time) bool {
	return now.Before(s.LockUntil)
}

// DepositStatus is the on-chain verification state of a deposit
type DepositStatus string

const (
	// No transaction reference, nothing to verify
	DepositStatusUnreferenced DepositStatus = "unreferenced"
	DepositStatusPending      DepositStatus = "pending"
	DepositStatusVerified     DepositStatus = "verified"
	// The transaction was mined but reverted
	DepositStatusReverted DepositStatus = "reverted"
	// The reference can never name a transaction
	DepositStatusInvalid DepositStatus = "invalid"
)

// Final reports whether the verifier is done with a deposit in this state
func (s DepositStatus) Final() bool {
	return s != DepositStatusPending
}

// StakeDeposit records a single stake call that was accumulated into a Stake
// row. Deposits carrying a transaction reference are checked by the on-chain
// verifier until they reach a final status.
type StakeDeposit struct {
	ID                 uint            `gorm:"primarykey"`
	StakeID            uint            `gorm:"index;not null"`
	ProposalID         string          `gorm:"size:36;index;not null"`
	ParticipantID      string          `gorm:"size:64;not null"`
	Amount             decimal.Decimal `gorm:"type:text;not null"`
	TxReference        string          `gorm:"size:128"`
	IsVerifiedOnChain  bool            `gorm:"not null"`
	VerificationStatus DepositStatus   `gorm:"size:16;index;not null"`
	VerifiedAt         *time.Time
	// Set when the deposit reached a final status other than verified
	RejectedAt *time.Time
	CreatedAt  time.Time
}

// TableName returns the table name
func (StakeDeposit) TableName() string {
	return "governance_stake_deposit"
}

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

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxNotesLength       = 2000
)

// ProposalKind identifies what a proposal asks the participants to decide.
type ProposalKind string

const (
	ProposalKindProjectApproval   ProposalKind = "project_approval"
	ProposalKindFundingRelease    ProposalKind = "funding_release"
	ProposalKindMilestoneApproval ProposalKind = "milestone_approval"
	ProposalKindGovernanceChange  ProposalKind = "governance_change"
	ProposalKindEmergencyAction   ProposalKind = "emergency_action"
)

// Valid returns true if the kind is one of the known proposal kinds
func (k ProposalKind) Valid() bool {
	switch k {
	case ProposalKindProjectApproval,
		ProposalKindFundingRelease,
		ProposalKindMilestoneApproval,
		ProposalKindGovernanceChange,
		ProposalKindEmergencyAction:
		return true
	default:
		return false
	}
}

// ProposalStatus is a state of the proposal lifecycle:
// draft -> active -> (passed | failed) -> executed, with cancelled reachable
// from any non-terminal state.
type ProposalStatus string

const (
	ProposalStatusDraft     ProposalStatus = "draft"
	ProposalStatusActive    ProposalStatus = "active"
	ProposalStatusPassed    ProposalStatus = "passed"
	ProposalStatusFailed    ProposalStatus = "failed"
	ProposalStatusExecuted  ProposalStatus = "executed"
	ProposalStatusCancelled ProposalStatus = "cancelled"
)

// Valid returns true if the status is a known proposal status
func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalStatusDraft,
		ProposalStatusActive,
		ProposalStatusPassed,
		ProposalStatusFailed,
		ProposalStatusExecuted,
		ProposalStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true for statuses that accept no further transitions
func (s ProposalStatus) Terminal() bool {
	return s == ProposalStatusExecuted || s == ProposalStatusCancelled
}

var hundred = decimal.NewFromInt(100)

// Proposal is a governance item subject to staking and voting. The aggregate
// columns are cached counters maintained in the same transaction as the
// stake and vote rows they summarize.
type Proposal struct {
	ID                string          `gorm:"primaryKey;size:36"`
	ProjectID         string          `gorm:"index;size:64"`
	CreatorID         string          `gorm:"size:64;not null"`
	Title             string          `gorm:"size:200;not null"`
	Description       string          `gorm:"size:2000"`
	Kind              ProposalKind    `gorm:"size:32;not null"`
	Status            ProposalStatus  `gorm:"index;size:16;not null"`
	Outcome           ProposalStatus  `gorm:"size:16"`
	StartTime         time.Time       `gorm:"not null"`
	EndTime           time.Time       `gorm:"index;not null"`
	// MinTokensRequired is advertised to participants but not enforced.
	// Votes are weighted by stake, so a small stake only carries little power.
	MinTokensRequired decimal.Decimal `gorm:"type:text;not null"`
	QuorumRequired    decimal.Decimal `gorm:"type:text;not null"`
	RequiresApproval  bool            `gorm:"not null"`
	ApprovedBy        string          `gorm:"size:64"`
	ApprovedAt        *time.Time
	TotalTokensStaked decimal.Decimal `gorm:"type:text;not null"`
	TotalStakers      int64           `gorm:"not null"`
	TotalVoters       int64           `gorm:"not null"`
	SupportTokens     decimal.Decimal `gorm:"type:text;not null"`
	AgainstTokens     decimal.Decimal `gorm:"type:text;not null"`
	AbstainTokens     decimal.Decimal `gorm:"type:text;not null"`
	ResolvedAt        *time.Time
	ExecutedAt        *time.Time
	ExecutedBy        string `gorm:"size:64"`
	ExecutionNotes    string `gorm:"size:2000"`
	CancelledAt       *time.Time
	CancelReason      string `gorm:"size:2000"`
	Version           uint64 `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Stakes            []Stake        `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE"`
	Deposits          []StakeDeposit `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE"`
	Votes             []Vote         `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name
func (Proposal) TableName() string {
	return "governance_proposal"
}

func percentOf(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred)
}

// SupportPct is the share of staked tokens that voted support, in percent.
// It is zero while nothing is staked.
func (p *Proposal) SupportPct() decimal.Decimal {
	return percentOf(p.SupportTokens, p.TotalTokensStaked)
}

// AgainstPct is the share of staked tokens that voted against, in percent
func (p *Proposal) AgainstPct() decimal.Decimal {
	return percentOf(p.AgainstTokens, p.TotalTokensStaked)
}

// AbstainPct is the share of staked tokens that abstained, in percent
func (p *Proposal) AbstainPct() decimal.Decimal {
	return percentOf(p.AbstainTokens, p.TotalTokensStaked)
}

// HasMetQuorum reports whether the support share reaches the required quorum
func (p *Proposal) HasMetQuorum() bool {
	if !p.TotalTokensStaked.IsPositive() {
		return false
	}
	return p.SupportPct().GreaterThanOrEqual(p.QuorumRequired)
}

// IsExpired reports whether the voting window has closed at now
func (p *Proposal) IsExpired(now time.Time) bool {
	return now.After(p.EndTime)
}

// CanExecute reports whether an active proposal is ready to be resolved
// as passed
func (p *Proposal) CanExecute(now time.Time) bool {
	return p.HasMetQuorum() && p.CanResolve(now)
}

// CanResolve reports whether an active proposal's window has closed, so that
// it must move to passed or failed depending on quorum
func (p *Proposal) CanResolve(now time.Time) bool {
	return p.IsExpired(now) && p.Status == ProposalStatusActive
}

// CheckOpen returns an error unless the proposal accepts stakes and votes at now
func (p *Proposal) CheckOpen(now time.Time) error {
	if p.Status != ProposalStatusActive {
		return ErrProposalNotActive
	}
	if p.IsExpired(now) {
		return ErrProposalExpired
	}
	return nil
}

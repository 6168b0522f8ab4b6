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
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VoteChoice is the choice recorded by a vote
type VoteChoice uint8

const (
	VoteAgainst VoteChoice = 0
	VoteSupport VoteChoice = 1
	VoteAbstain VoteChoice = 2
)

func (c VoteChoice) Valid() bool {
	return c <= VoteAbstain
}

func (c VoteChoice) String() string {
	switch c {
	case VoteAgainst:
		return "against"
	case VoteSupport:
		return "support"
	case VoteAbstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// ParseVoteChoice converts the textual form of a choice
func ParseVoteChoice(s string) (VoteChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "against", "no":
		return VoteAgainst, nil
	case "support", "yes", "for":
		return VoteSupport, nil
	case "abstain":
		return VoteAbstain, nil
	default:
		return 0, ErrInvalidChoice
	}
}

const MaxCommentLength = 1000

// Vote is a single weighted choice cast by a participant on a proposal. Rows
// are never updated after insert and the unique index rejects a second vote.
type Vote struct {
	ID                   uint            `gorm:"primarykey"`
	ProposalID           string          `gorm:"uniqueIndex:idx_vote_unique,priority:1;size:36;not null"`
	VoterID              string          `gorm:"uniqueIndex:idx_vote_unique,priority:2;size:64;not null"`
	Choice               VoteChoice      `gorm:"not null"` // 0=Against, 1=Support, 2=Abstain
	VotingPower          decimal.Decimal `gorm:"type:text;not null"`
	BaseVotingPower      decimal.Decimal `gorm:"type:text;not null"`
	StakeMultiplier      decimal.Decimal `gorm:"type:text;not null"`
	ReputationMultiplier decimal.Decimal `gorm:"type:text;not null"`
	CastAt               time.Time       `gorm:"not null"`
	Comment              string          `gorm:"size:1000"`
	IsAnonymous          bool            `gorm:"not null"`
	DelegatedFrom        string          `gorm:"size:64"`
	CreatedAt            time.Time
}

// TableName returns the table name
func (Vote) TableName() string {
	return "governance_vote"
}

// Redacted returns a copy of the vote safe for public listing
func (v Vote) Redacted() Vote {
	if v.IsAnonymous {
		v.VoterID = ""
		v.DelegatedFrom = ""
	}
	return v
}

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

package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/governance"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/journal"
)

// percentPlaces is the precision of percentages in responses
const percentPlaces = 2

type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type CreateProposalBody struct {
	ProjectID         string          `json:"project_id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Kind              string          `json:"kind"`
	EndTime           time.Time       `json:"end_time"`
	MinTokensRequired decimal.Decimal `json:"min_tokens_required"`
	QuorumRequired    decimal.Decimal `json:"quorum_required"`
	RequiresApproval  bool            `json:"requires_approval"`
	ApproverID        string          `json:"approver_id"`
}

type CancelBody struct {
	Reason string `json:"reason"`
}

type ExecuteBody struct {
	Notes string `json:"notes"`
}

type StakeBody struct {
	Amount      decimal.Decimal `json:"amount"`
	WalletID    string          `json:"wallet_id"`
	Notes       string          `json:"notes"`
	TxReference string          `json:"tx_reference"`
}

type VoteBody struct {
	Choice        string `json:"choice"`
	Comment       string `json:"comment"`
	Anonymous     bool   `json:"anonymous"`
	DelegatedFrom string `json:"delegated_from"`
}

type ProposalResponse struct {
	ID                string          `json:"id"`
	ProjectID         string          `json:"project_id,omitempty"`
	CreatorID         string          `json:"creator_id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Kind              string          `json:"kind"`
	Status            string          `json:"status"`
	Outcome           string          `json:"outcome,omitempty"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	MinTokensRequired decimal.Decimal `json:"min_tokens_required"`
	QuorumRequired    decimal.Decimal `json:"quorum_required"`
	RequiresApproval  bool            `json:"requires_approval"`
	ApprovedBy        string          `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time      `json:"approved_at"`
	TotalTokensStaked decimal.Decimal `json:"total_tokens_staked"`
	TotalStakers      int64           `json:"total_stakers"`
	TotalVoters       int64           `json:"total_voters"`
	SupportTokens     decimal.Decimal `json:"support_tokens"`
	AgainstTokens     decimal.Decimal `json:"against_tokens"`
	AbstainTokens     decimal.Decimal `json:"abstain_tokens"`
	SupportPct        decimal.Decimal `json:"support_pct"`
	AgainstPct        decimal.Decimal `json:"against_pct"`
	AbstainPct        decimal.Decimal `json:"abstain_pct"`
	QuorumMet         bool            `json:"quorum_met"`
	ResolvedAt        *time.Time      `json:"resolved_at"`
	ExecutedAt        *time.Time      `json:"executed_at"`
	ExecutedBy        string          `json:"executed_by,omitempty"`
	ExecutionNotes    string          `json:"execution_notes,omitempty"`
	CancelledAt       *time.Time      `json:"cancelled_at"`
	CancelReason      string          `json:"cancel_reason,omitempty"`
	Version           uint64          `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
}

func newProposalResponse(p *models.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:                p.ID,
		ProjectID:         p.ProjectID,
		CreatorID:         p.CreatorID,
		Title:             p.Title,
		Description:       p.Description,
		Kind:              string(p.Kind),
		Status:            string(p.Status),
		Outcome:           string(p.Outcome),
		StartTime:         p.StartTime,
		EndTime:           p.EndTime,
		MinTokensRequired: p.MinTokensRequired,
		QuorumRequired:    p.QuorumRequired,
		RequiresApproval:  p.RequiresApproval,
		ApprovedBy:        p.ApprovedBy,
		ApprovedAt:        p.ApprovedAt,
		TotalTokensStaked: p.TotalTokensStaked,
		TotalStakers:      p.TotalStakers,
		TotalVoters:       p.TotalVoters,
		SupportTokens:     p.SupportTokens,
		AgainstTokens:     p.AgainstTokens,
		AbstainTokens:     p.AbstainTokens,
		SupportPct:        p.SupportPct().Round(percentPlaces),
		AgainstPct:        p.AgainstPct().Round(percentPlaces),
		AbstainPct:        p.AbstainPct().Round(percentPlaces),
		QuorumMet:         p.HasMetQuorum(),
		ResolvedAt:        p.ResolvedAt,
		ExecutedAt:        p.ExecutedAt,
		ExecutedBy:        p.ExecutedBy,
		ExecutionNotes:    p.ExecutionNotes,
		CancelledAt:       p.CancelledAt,
		CancelReason:      p.CancelReason,
		Version:           p.Version,
		CreatedAt:         p.CreatedAt,
	}
}

type StakeResponse struct {
	ID                uint            `json:"id"`
	ProposalID        string          `json:"proposal_id"`
	ParticipantID     string          `json:"participant_id"`
	WalletID          string          `json:"wallet_id,omitempty"`
	TokenAmount       decimal.Decimal `json:"token_amount"`
	Status            string          `json:"status"`
	StakedAt          time.Time       `json:"staked_at"`
	LockUntil         time.Time       `json:"lock_until"`
	UnstakedAt        *time.Time      `json:"unstaked_at"`
	TxReference       string          `json:"tx_reference,omitempty"`
	IsVerifiedOnChain bool            `json:"is_verified_on_chain"`
	RewardAmount      decimal.Decimal `json:"reward_amount"`
	PenaltyAmount     decimal.Decimal `json:"penalty_amount"`
	Notes             string          `json:"notes,omitempty"`
}

func newStakeResponse(s *models.Stake) StakeResponse {
	return StakeResponse{
		ID:                s.ID,
		ProposalID:        s.ProposalID,
		ParticipantID:     s.ParticipantID,
		WalletID:          s.WalletID,
		TokenAmount:       s.TokenAmount,
		Status:            string(s.Status),
		StakedAt:          s.StakedAt,
		LockUntil:         s.LockUntil,
		UnstakedAt:        s.UnstakedAt,
		TxReference:       s.TxReference,
		IsVerifiedOnChain: s.IsVerifiedOnChain,
		RewardAmount:      s.RewardAmount,
		PenaltyAmount:     s.PenaltyAmount,
		Notes:             s.Notes,
	}
}

type StakeResultResponse struct {
	TotalStakedForProposal decimal.Decimal `json:"total_staked_for_proposal"`
	Stake                  StakeResponse   `json:"stake"`
}

func newStakeResultResponse(r *governance.StakeResult) StakeResultResponse {
	return StakeResultResponse{
		TotalStakedForProposal: r.TotalStakedForProposal,
		Stake:                  newStakeResponse(r.Stake),
	}
}

type VoteResponse struct {
	ID                   uint            `json:"id"`
	ProposalID           string          `json:"proposal_id"`
	VoterID              string          `json:"voter_id,omitempty"`
	Choice               string          `json:"choice"`
	VotingPower          decimal.Decimal `json:"voting_power"`
	BaseVotingPower      decimal.Decimal `json:"base_voting_power"`
	StakeMultiplier      decimal.Decimal `json:"stake_multiplier"`
	ReputationMultiplier decimal.Decimal `json:"reputation_multiplier"`
	CastAt               time.Time       `json:"cast_at"`
	Comment              string          `json:"comment,omitempty"`
	IsAnonymous          bool            `json:"is_anonymous"`
	DelegatedFrom        string          `json:"delegated_from,omitempty"`
}

// newVoteResponse renders a vote. Anonymous votes never expose the voter.
func newVoteResponse(v models.Vote) VoteResponse {
	v = v.Redacted()
	return VoteResponse{
		ID:                   v.ID,
		ProposalID:           v.ProposalID,
		VoterID:              v.VoterID,
		Choice:               v.Choice.String(),
		VotingPower:          v.VotingPower,
		BaseVotingPower:      v.BaseVotingPower,
		StakeMultiplier:      v.StakeMultiplier,
		ReputationMultiplier: v.ReputationMultiplier,
		CastAt:               v.CastAt,
		Comment:              v.Comment,
		IsAnonymous:          v.IsAnonymous,
		DelegatedFrom:        v.DelegatedFrom,
	}
}

type VoteResultResponse struct {
	Vote       VoteResponse    `json:"vote"`
	SupportPct decimal.Decimal `json:"support_pct"`
	AgainstPct decimal.Decimal `json:"against_pct"`
	AbstainPct decimal.Decimal `json:"abstain_pct"`
	QuorumMet  bool            `json:"quorum_met"`
	Status     string          `json:"status"`
	Resolved   bool            `json:"resolved"`
}

func newVoteResultResponse(r *governance.VoteResult) VoteResultResponse {
	return VoteResultResponse{
		Vote:       newVoteResponse(*r.Vote),
		SupportPct: r.SupportPct.Round(percentPlaces),
		AgainstPct: r.AgainstPct.Round(percentPlaces),
		AbstainPct: r.AbstainPct.Round(percentPlaces),
		QuorumMet:  r.QuorumMet,
		Status:     string(r.Status),
		Resolved:   r.Resolved,
	}
}

type ReconcileResponse struct {
	Proposal ProposalResponse `json:"proposal"`
	Changed  bool             `json:"changed"`
}

type EventResponse struct {
	Sequence  uint64    `json:"sequence"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Outcome   string    `json:"outcome,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	Choice    string    `json:"choice,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Note      string    `json:"note,omitempty"`
}

func newEventResponse(e journal.Entry) EventResponse {
	return EventResponse{
		Sequence:  e.Sequence,
		Type:      string(e.Type),
		Timestamp: e.Timestamp,
		Status:    e.Data.Status,
		Outcome:   e.Data.Outcome,
		ActorID:   e.Data.ActorID,
		Choice:    e.Data.Choice,
		Amount:    e.Data.Amount,
		Note:      e.Data.Note,
	}
}

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

// Package proposal owns proposal records, their cached aggregates and the
// status transition rules.
package proposal

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/stake"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/tally"
	"gorm.io/gorm"
)

// ErrVersionConflict is returned by Save when another writer updated the
// proposal since it was read. The operation can be retried from scratch.
var ErrVersionConflict = errors.New("proposal version conflict")

var maxQuorum = decimal.NewFromInt(100)

// Draft is the input of Create
type Draft struct {
	ProjectID         string
	CreatorID         string
	Title             string
	Description       string
	Kind              models.ProposalKind
	EndTime           time.Time
	MinTokensRequired decimal.Decimal
	QuorumRequired    decimal.Decimal
	RequiresApproval  bool
	ApproverID        string
}

// Validate checks the draft against the proposal field rules
func (d Draft) Validate(now time.Time) error {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", models.ErrInvalidProposal)
	}
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return fmt.Errorf(
			"%w: title exceeds %d characters",
			models.ErrInvalidProposal,
			models.MaxTitleLength,
		)
	}
	if utf8.RuneCountInString(d.Description) > models.MaxDescriptionLength {
		return fmt.Errorf(
			"%w: description exceeds %d characters",
			models.ErrInvalidProposal,
			models.MaxDescriptionLength,
		)
	}
	if strings.TrimSpace(d.CreatorID) == "" {
		return fmt.Errorf("%w: creator is required", models.ErrInvalidProposal)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf(
			"%w: unknown proposal kind %q",
			models.ErrInvalidProposal,
			d.Kind,
		)
	}
	if !d.EndTime.After(now) {
		return fmt.Errorf(
			"%w: end time must be in the future",
			models.ErrInvalidProposal,
		)
	}
	if !d.QuorumRequired.IsPositive() ||
		d.QuorumRequired.GreaterThan(maxQuorum) {
		return fmt.Errorf(
			"%w: quorum must be greater than 0 and at most 100",
			models.ErrInvalidProposal,
		)
	}
	if d.MinTokensRequired.IsNegative() {
		return fmt.Errorf(
			"%w: minimum tokens can not be negative",
			models.ErrInvalidProposal,
		)
	}
	return nil
}

// Filter selects proposals for List
type Filter struct {
	Status models.ProposalStatus
	Offset int
	Limit  int
	Desc   bool
}

type Store struct {
	ledger *stake.Ledger
	tally  *tally.Tally
}

// NewStore returns a proposal store aggregating from ledger and tally
func NewStore(ledger *stake.Ledger, t *tally.Tally) *Store {
	return &Store{
		ledger: ledger,
		tally:  t,
	}
}

// Create validates and inserts a new proposal. It goes live immediately
// unless it requires approval and no approver was supplied.
func (s *Store) Create(
	txn *database.Txn,
	d Draft,
	now time.Time,
) (*models.Proposal, error) {
	if err := txn.Writable(); err != nil {
		return nil, err
	}
	if err := d.Validate(now); err != nil {
		return nil, err
	}
	p := &models.Proposal{
		ID:                uuid.NewString(),
		ProjectID:         d.ProjectID,
		CreatorID:         d.CreatorID,
		Title:             strings.TrimSpace(d.Title),
		Description:       d.Description,
		Kind:              d.Kind,
		Status:            models.ProposalStatusDraft,
		StartTime:         now,
		EndTime:           d.EndTime,
		MinTokensRequired: d.MinTokensRequired,
		QuorumRequired:    d.QuorumRequired,
		RequiresApproval:  d.RequiresApproval,
		TotalTokensStaked: decimal.Zero,
		SupportTokens:     decimal.Zero,
		AgainstTokens:     decimal.Zero,
		AbstainTokens:     decimal.Zero,
	}
	if !d.RequiresApproval || d.ApproverID != "" {
		p.Status = models.ProposalStatusActive
		if d.ApproverID != "" {
			p.ApprovedBy = d.ApproverID
			p.ApprovedAt = &now
		}
	}
	if result := txn.DB().Create(p); result.Error != nil {
		return nil, fmt.Errorf("create proposal: %w", result.Error)
	}
	return p, nil
}

// Get returns a proposal by id
func (s *Store) Get(txn *database.Txn, id string) (*models.Proposal, error) {
	var p models.Proposal
	if result := txn.DB().Where("id = ?", id).First(&p); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrProposalNotFound
		}
		return nil, fmt.Errorf("get proposal: %w", result.Error)
	}
	return &p, nil
}

// List returns one page of proposals, ordered by creation time, and the
// total number of proposals matching the filter
func (s *Store) List(
	txn *database.Txn,
	f Filter,
) ([]models.Proposal, int64, error) {
	query := txn.DB().Model(&models.Proposal{})
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, 0, fmt.Errorf(
				"%w: unknown status %q",
				models.ErrInvalidInput,
				f.Status,
			)
		}
		query = query.Where("status = ?", f.Status)
	}
	var total int64
	if result := query.Count(&total); result.Error != nil {
		return nil, 0, fmt.Errorf("count proposals: %w", result.Error)
	}
	order := "created_at, id"
	if f.Desc {
		order = "created_at DESC, id DESC"
	}
	query = query.Order(order).Offset(f.Offset)
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	var proposals []models.Proposal
	if result := query.Find(&proposals); result.Error != nil {
		return nil, 0, fmt.Errorf("list proposals: %w", result.Error)
	}
	return proposals, total, nil
}

// ListResolvable returns the active proposals whose window has closed at now
func (s *Store) ListResolvable(
	txn *database.Txn,
	now time.Time,
) ([]models.Proposal, error) {
	var active []models.Proposal
	if result := txn.DB().Where(
		"status = ?",
		models.ProposalStatusActive,
	).Order("end_time").Find(&active); result.Error != nil {
		return nil, fmt.Errorf("list active proposals: %w", result.Error)
	}
	// Times are compared in Go; sqlite stores them as text
	ret := make([]models.Proposal, 0, len(active))
	for _, p := range active {
		if p.CanResolve(now) {
			ret = append(ret, p)
		}
	}
	return ret, nil
}

// Save writes the mutable columns of p, provided nobody else saved it since
// it was read, and bumps its version
func (s *Store) Save(txn *database.Txn, p *models.Proposal) error {
	if err := txn.Writable(); err != nil {
		return err
	}
	prev := p.Version
	result := txn.DB().Model(&models.Proposal{}).Where(
		"id = ? AND version = ?",
		p.ID,
		prev,
	).Updates(map[string]any{
		"status":              p.Status,
		"outcome":             p.Outcome,
		"approved_by":         p.ApprovedBy,
		"approved_at":         p.ApprovedAt,
		"total_tokens_staked": p.TotalTokensStaked,
		"total_stakers":       p.TotalStakers,
		"total_voters":        p.TotalVoters,
		"support_tokens":      p.SupportTokens,
		"against_tokens":      p.AgainstTokens,
		"abstain_tokens":      p.AbstainTokens,
		"resolved_at":         p.ResolvedAt,
		"executed_at":         p.ExecutedAt,
		"executed_by":         p.ExecutedBy,
		"execution_notes":     p.ExecutionNotes,
		"cancelled_at":        p.CancelledAt,
		"cancel_reason":       p.CancelReason,
		"version":             prev + 1,
	})
	if result.Error != nil {
		return fmt.Errorf("save proposal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	p.Version = prev + 1
	return nil
}

// Reconcile recomputes the aggregates of p from its stake and vote rows. It
// returns true if the cached values differed. The caller persists p.
func (s *Store) Reconcile(txn *database.Txn, p *models.Proposal) (bool, error) {
	staked, err := s.ledger.SumActive(txn, p.ID)
	if err != nil {
		return false, err
	}
	stakers, err := s.ledger.CountActiveStakers(txn, p.ID)
	if err != nil {
		return false, err
	}
	totals, err := s.tally.Sum(txn, p.ID)
	if err != nil {
		return false, err
	}
	changed := !staked.Equal(p.TotalTokensStaked) ||
		stakers != p.TotalStakers ||
		!totals.Support.Equal(p.SupportTokens) ||
		!totals.Against.Equal(p.AgainstTokens) ||
		!totals.Abstain.Equal(p.AbstainTokens) ||
		totals.Voters != p.TotalVoters
	p.TotalTokensStaked = staked
	p.TotalStakers = stakers
	p.SupportTokens = totals.Support
	p.AgainstTokens = totals.Against
	p.AbstainTokens = totals.Abstain
	p.TotalVoters = totals.Voters
	return changed, nil
}

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
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/event"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/proposal"
)

const (
	DefaultPageCount = 100
	MaxPageCount     = 100
)

// CreateProposalRequest holds the caller supplied fields of a new proposal.
// A non-empty ApproverID records the approval at creation time.
type CreateProposalRequest struct {
	ProjectID         string
	Title             string
	Description       string
	Kind              models.ProposalKind
	EndTime           time.Time
	MinTokensRequired decimal.Decimal
	QuorumRequired    decimal.Decimal
	RequiresApproval  bool
	ApproverID        string
}

// ListOptions selects a page of proposals. Page is 1-based.
type ListOptions struct {
	Status models.ProposalStatus
	Page   int
	Count  int
	Desc   bool
}

type ProposalPage struct {
	Proposals []models.Proposal
	Total     int64
	Page      int
	Count     int
}

// CreateProposal stores a new proposal created by a privileged caller
func (c *Coordinator) CreateProposal(
	ctx context.Context,
	caller Caller,
	req CreateProposalRequest,
) (ret *models.Proposal, err error) {
	ctx, end := c.begin(ctx, "create_proposal")
	defer func() { end(err) }()
	if err := caller.Require(RolePrivileged); err != nil {
		return nil, err
	}
	draft := proposal.Draft{
		ProjectID:         req.ProjectID,
		CreatorID:         caller.ID,
		Title:             req.Title,
		Description:       req.Description,
		Kind:              req.Kind,
		EndTime:           req.EndTime,
		MinTokensRequired: req.MinTokensRequired,
		QuorumRequired:    req.QuorumRequired,
		RequiresApproval:  req.RequiresApproval,
		ApproverID:        req.ApproverID,
	}
	err = c.withRetry(ctx, "create_proposal", func() error {
		return c.db.Transaction(
			context.WithoutCancel(ctx),
			func(txn *database.Txn) error {
				p, err := c.store.Create(txn, draft, c.now())
				if err != nil {
					return err
				}
				ret = p
				return nil
			},
		)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info(
		"proposal created",
		"proposal", ret.ID,
		"kind", ret.Kind,
		"status", ret.Status,
		"creator", caller.ID,
	)
	c.publish([]pendingEvent{{
		eventType: event.ProposalCreatedEventType,
		data: event.GovernanceEvent{
			ProposalID: ret.ID,
			Status:     string(ret.Status),
			ActorID:    caller.ID,
		},
	}})
	return ret, nil
}

// GetProposal returns the committed state of a proposal
func (c *Coordinator) GetProposal(
	ctx context.Context,
	id string,
) (ret *models.Proposal, err error) {
	ctx, end := c.begin(ctx, "get_proposal")
	defer func() { end(err) }()
	return c.store.Get(c.db.Reader(ctx), id)
}

// ListProposals returns one page of proposals, optionally filtered by status
func (c *Coordinator) ListProposals(
	ctx context.Context,
	opts ListOptions,
) (ret ProposalPage, err error) {
	ctx, end := c.begin(ctx, "list_proposals")
	defer func() { end(err) }()
	if opts.Count <= 0 {
		opts.Count = DefaultPageCount
	}
	opts.Count = min(opts.Count, MaxPageCount)
	if opts.Page <= 0 {
		opts.Page = 1
	}
	proposals, total, err := c.store.List(
		c.db.Reader(ctx),
		proposal.Filter{
			Status: opts.Status,
			Offset: (opts.Page - 1) * opts.Count,
			Limit:  opts.Count,
			Desc:   opts.Desc,
		},
	)
	if err != nil {
		return ProposalPage{}, err
	}
	return ProposalPage{
		Proposals: proposals,
		Total:     total,
		Page:      opts.Page,
		Count:     opts.Count,
	}, nil
}

// ApproveProposal moves a draft proposal live
func (c *Coordinator) ApproveProposal(
	ctx context.Context,
	caller Caller,
	id string,
) (ret *models.Proposal, err error) {
	ctx, end := c.begin(ctx, "approve_proposal")
	defer func() { end(err) }()
	if err := caller.Require(RolePrivileged); err != nil {
		return nil, err
	}
	ret, err = c.mutate(ctx, "approve_proposal", id, func(m *mutation) error {
		p := m.proposal
		if p.Status == models.ProposalStatusDraft && p.IsExpired(m.now) {
			return ErrProposalExpired
		}
		if err := proposal.Apply(p, models.ProposalStatusActive, m.now); err != nil {
			return err
		}
		p.ApprovedBy = caller.ID
		p.ApprovedAt = &m.now
		m.dirty = true
		m.emit(event.ProposalApprovedEventType, event.GovernanceEvent{
			ActorID: caller.ID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("proposal approved", "proposal", id, "approver", caller.ID)
	return ret, nil
}

// CancelProposal moves any non-terminal proposal to cancelled
func (c *Coordinator) CancelProposal(
	ctx context.Context,
	caller Caller,
	id string,
	reason string,
) (ret *models.Proposal, err error) {
	ctx, end := c.begin(ctx, "cancel_proposal")
	defer func() { end(err) }()
	if err := caller.Require(RolePrivileged); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(reason) > models.MaxNotesLength {
		return nil, fmt.Errorf(
			"%w: reason exceeds %d characters",
			ErrInvalidInput,
			models.MaxNotesLength,
		)
	}
	ret, err = c.mutate(ctx, "cancel_proposal", id, func(m *mutation) error {
		if err := proposal.Apply(
			m.proposal,
			models.ProposalStatusCancelled,
			m.now,
		); err != nil {
			return err
		}
		m.proposal.CancelReason = strings.TrimSpace(reason)
		m.dirty = true
		m.emit(event.ProposalCancelledEventType, event.GovernanceEvent{
			ActorID: caller.ID,
			Note:    m.proposal.CancelReason,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("proposal cancelled", "proposal", id, "by", caller.ID)
	return ret, nil
}

// ExecuteProposal records the execution of a resolved proposal. An active
// proposal whose window has closed is resolved first. Executing an already
// executed proposal returns it unchanged.
func (c *Coordinator) ExecuteProposal(
	ctx context.Context,
	caller Caller,
	id string,
	notes string,
) (ret *models.Proposal, err error) {
	ctx, end := c.begin(ctx, "execute_proposal")
	defer func() { end(err) }()
	if err := caller.Require(RolePrivileged); err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > models.MaxNotesLength {
		return nil, fmt.Errorf(
			"%w: notes exceed %d characters",
			ErrInvalidInput,
			models.MaxNotesLength,
		)
	}
	var executed bool
	ret, err = c.mutate(ctx, "execute_proposal", id, func(m *mutation) error {
		p := m.proposal
		executed = false
		switch p.Status {
		case models.ProposalStatusExecuted:
			return nil
		case models.ProposalStatusActive:
			if !p.CanResolve(m.now) {
				return ErrProposalNotExecutable
			}
			if _, err := c.resolve(m, m.now); err != nil {
				return err
			}
		case models.ProposalStatusPassed, models.ProposalStatusFailed:
		default:
			return ErrProposalNotExecutable
		}
		if err := proposal.Apply(p, models.ProposalStatusExecuted, m.now); err != nil {
			return err
		}
		p.ExecutedBy = caller.ID
		p.ExecutionNotes = executionNotes(p, notes)
		m.dirty = true
		executed = true
		c.metrics.transitions.WithLabelValues(string(p.Status)).Inc()
		m.emit(event.ProposalExecutedEventType, event.GovernanceEvent{
			Outcome: string(p.Outcome),
			ActorID: caller.ID,
			Note:    p.ExecutionNotes,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if executed {
		c.logger.Info(
			"proposal executed",
			"proposal", id,
			"outcome", ret.Outcome,
			"by", caller.ID,
		)
	}
	return ret, nil
}

// executionNotes renders the human readable outcome note of an execution
func executionNotes(p *models.Proposal, notes string) string {
	ret := fmt.Sprintf(
		"%s with %s%% support of %s staked tokens (quorum %s%%)",
		p.Outcome,
		p.SupportPct().StringFixed(2),
		p.TotalTokensStaked.String(),
		p.QuorumRequired.String(),
	)
	if notes != "" {
		ret += ": " + notes
	}
	return ret
}

// ResolveExpired resolves every active proposal whose voting window has
// closed and returns the number of proposals transitioned
func (c *Coordinator) ResolveExpired(ctx context.Context) (count int, err error) {
	ctx, end := c.begin(ctx, "resolve_expired")
	defer func() { end(err) }()
	candidates, err := c.store.ListResolvable(c.db.Reader(ctx), c.now())
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		var resolved bool
		p, err := c.mutate(ctx, "resolve_expired", candidate.ID, func(m *mutation) error {
			// Someone else may have resolved it since it was listed
			var err error
			resolved, err = c.resolve(m, m.now)
			return err
		})
		if err != nil {
			c.logger.Error(
				"failed to resolve proposal",
				"proposal", candidate.ID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("resolve %s: %w", candidate.ID, err))
			continue
		}
		if resolved {
			count++
			c.logger.Info(
				"proposal resolved",
				"proposal", p.ID,
				"outcome", p.Outcome,
			)
		}
	}
	return count, errors.Join(errs...)
}

// ReconcileProposal recomputes the cached aggregates of a proposal from its
// stake and vote rows. It returns true if they had drifted.
func (c *Coordinator) ReconcileProposal(
	ctx context.Context,
	caller Caller,
	id string,
) (ret *models.Proposal, changed bool, err error) {
	ctx, end := c.begin(ctx, "reconcile_proposal")
	defer func() { end(err) }()
	if err := caller.Require(RolePrivileged); err != nil {
		return nil, false, err
	}
	ret, err = c.mutate(ctx, "reconcile_proposal", id, func(m *mutation) error {
		var err error
		changed, err = c.store.Reconcile(m.txn, m.proposal)
		m.dirty = changed
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		c.logger.Warn("proposal aggregates reconciled", "proposal", id)
	}
	return ret, changed, nil
}

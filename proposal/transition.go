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

package proposal

import (
	"fmt"
	"slices"
	"time"

	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
)

type TransitionKind int

const (
	NoChange TransitionKind = iota
	Transitioned
)

// Transition is the result of evaluating a proposal against the clock
type Transition struct {
	Kind TransitionKind
	From models.ProposalStatus
	To   models.ProposalStatus
}

// Changed returns true if the evaluation produced a status change
func (t Transition) Changed() bool {
	return t.Kind == Transitioned
}

func (t Transition) String() string {
	if !t.Changed() {
		return "no change"
	}
	return fmt.Sprintf("%s -> %s", t.From, t.To)
}

// allowed lists every legal status change. Terminal statuses have no entry.
var allowed = map[models.ProposalStatus][]models.ProposalStatus{
	models.ProposalStatusDraft: {
		models.ProposalStatusActive,
		models.ProposalStatusCancelled,
	},
	models.ProposalStatusActive: {
		models.ProposalStatusPassed,
		models.ProposalStatusFailed,
		models.ProposalStatusCancelled,
	},
	models.ProposalStatusPassed: {
		models.ProposalStatusExecuted,
		models.ProposalStatusCancelled,
	},
	models.ProposalStatusFailed: {
		models.ProposalStatusExecuted,
		models.ProposalStatusCancelled,
	},
}

// CanTransition reports whether from -> to is a legal status change
func CanTransition(from, to models.ProposalStatus) bool {
	return slices.Contains(allowed[from], to)
}

// EvaluateTransition decides whether an active proposal has to be resolved
// at now. It does not modify p.
func EvaluateTransition(p *models.Proposal, now time.Time) Transition {
	if !p.CanResolve(now) {
		return Transition{Kind: NoChange, From: p.Status, To: p.Status}
	}
	to := models.ProposalStatusFailed
	if p.HasMetQuorum() {
		to = models.ProposalStatusPassed
	}
	return Transition{Kind: Transitioned, From: p.Status, To: to}
}

// Apply moves p to status to and stamps the matching timestamp
func Apply(p *models.Proposal, to models.ProposalStatus, now time.Time) error {
	if !CanTransition(p.Status, to) {
		return fmt.Errorf(
			"%w: %s -> %s",
			models.ErrInvalidTransition,
			p.Status,
			to,
		)
	}
	switch to {
	case models.ProposalStatusPassed, models.ProposalStatusFailed:
		p.Outcome = to
		p.ResolvedAt = &now
	case models.ProposalStatusExecuted:
		p.ExecutedAt = &now
	case models.ProposalStatusCancelled:
		p.CancelledAt = &now
	}
	p.Status = to
	return nil
}

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

package tally

import (
	"github.com/shopspring/decimal"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
)

// Multipliers scale the base voting power of a vote
type Multipliers struct {
	Stake      decimal.Decimal
	Reputation decimal.Decimal
}

// PowerStrategy decides the multipliers applied to a voter's stake when a
// vote is cast. The result is recorded on the vote and never recomputed.
type PowerStrategy interface {
	Multipliers(proposal *models.Proposal, stake *models.Stake) (Multipliers, error)
}

// NeutralStrategy applies no boost: both multipliers are 1
type NeutralStrategy struct{}

func (NeutralStrategy) Multipliers(
	*models.Proposal,
	*models.Stake,
) (Multipliers, error) {
	return Multipliers{
		Stake:      decimal.NewFromInt(1),
		Reputation: decimal.NewFromInt(1),
	}, nil
}

// PowerStrategyFunc adapts a function to PowerStrategy
type PowerStrategyFunc func(*models.Proposal, *models.Stake) (Multipliers, error)

func (f PowerStrategyFunc) Multipliers(
	p *models.Proposal,
	s *models.Stake,
) (Multipliers, error) {
	return f(p, s)
}

// VotingPower returns base x stake multiplier x reputation multiplier
func VotingPower(base decimal.Decimal, m Multipliers) decimal.Decimal {
	return base.Mul(m.Stake).Mul(m.Reputation)
}

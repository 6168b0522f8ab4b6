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

import "github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"

// Errors returned by the coordinator. Each specific error wraps one of the
// categories, so errors.Is(err, ErrConflict) holds for ErrDuplicateVote.
var (
	ErrNotFound     = models.ErrNotFound
	ErrInvalidInput = models.ErrInvalidInput
	ErrInvalidState = models.ErrInvalidState
	ErrConflict     = models.ErrConflict
	ErrUnauthorized = models.ErrUnauthorized

	ErrProposalNotFound      = models.ErrProposalNotFound
	ErrInvalidAmount         = models.ErrInvalidAmount
	ErrInvalidChoice         = models.ErrInvalidChoice
	ErrInvalidProposal       = models.ErrInvalidProposal
	ErrProposalNotActive     = models.ErrProposalNotActive
	ErrProposalExpired       = models.ErrProposalExpired
	ErrProposalNotExecutable = models.ErrProposalNotExecutable
	ErrInvalidTransition     = models.ErrInvalidTransition
	ErrNoActiveStake         = models.ErrNoActiveStake
	ErrStakeLocked           = models.ErrStakeLocked
	ErrDuplicateVote         = models.ErrDuplicateVote
	ErrConcurrentUpdate      = models.ErrConcurrentUpdate
	ErrMissingRole           = models.ErrMissingRole
	ErrMissingCaller         = models.ErrMissingCaller
)

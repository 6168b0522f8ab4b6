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
	"errors"
	"fmt"
)

// Error categories. Every error returned by the engine wraps exactly one of
// these, so callers can branch on the category with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	ErrProposalNotFound = fmt.Errorf("proposal %w", ErrNotFound)
	ErrStakeNotFound    = fmt.Errorf("stake %w", ErrNotFound)

	ErrInvalidAmount = fmt.Errorf(
		"%w: token amount must be greater than zero",
		ErrInvalidInput,
	)
	ErrInvalidChoice = fmt.Errorf(
		"%w: vote choice must be against, support or abstain",
		ErrInvalidInput,
	)
	ErrInvalidProposal = fmt.Errorf("%w: invalid proposal", ErrInvalidInput)

	ErrProposalNotActive = fmt.Errorf(
		"%w: proposal is not active",
		ErrInvalidState,
	)
	ErrProposalExpired = fmt.Errorf(
		"%w: proposal voting window has closed",
		ErrInvalidState,
	)
	ErrProposalNotExecutable = fmt.Errorf(
		"%w: proposal is not executable",
		ErrInvalidState,
	)
	ErrInvalidTransition = fmt.Errorf(
		"%w: status transition not allowed",
		ErrInvalidState,
	)
	ErrNoActiveStake = fmt.Errorf(
		"%w: participant has no active stake on this proposal",
		ErrInvalidState,
	)
	ErrStakeLocked = fmt.Errorf(
		"%w: stake is still inside its lock window",
		ErrInvalidState,
	)

	ErrDuplicateVote = fmt.Errorf(
		"%w: participant has already voted on this proposal",
		ErrConflict,
	)
	ErrConcurrentUpdate = fmt.Errorf(
		"%w: concurrent update retries exhausted",
		ErrConflict,
	)

	ErrMissingRole = fmt.Errorf(
		"%w: caller lacks the required role",
		ErrUnauthorized,
	)
	ErrMissingCaller = fmt.Errorf(
		"%w: caller identity is required",
		ErrUnauthorized,
	)
)

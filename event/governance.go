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

package event

const (
	ProposalCreatedEventType   EventType = "governance.proposal.created"
	ProposalApprovedEventType  EventType = "governance.proposal.approved"
	ProposalCancelledEventType EventType = "governance.proposal.cancelled"
	ProposalResolvedEventType  EventType = "governance.proposal.resolved"
	ProposalExecutedEventType  EventType = "governance.proposal.executed"
	VoteCastEventType          EventType = "governance.vote.cast"
	StakeAddedEventType        EventType = "governance.stake.added"
	StakeWithdrawnEventType    EventType = "governance.stake.withdrawn"
)

// GovernanceEventTypes lists every event type emitted by the coordinator
var GovernanceEventTypes = []EventType{
	ProposalCreatedEventType,
	ProposalApprovedEventType,
	ProposalCancelledEventType,
	ProposalResolvedEventType,
	ProposalExecutedEventType,
	VoteCastEventType,
	StakeAddedEventType,
	StakeWithdrawnEventType,
}

// GovernanceEvent is the payload of every governance event. Fields that do
// not apply to an event type are left empty. ActorID is empty for anonymous
// votes.
type GovernanceEvent struct {
	ProposalID string `json:"proposalId"`
	Status     string `json:"status"`
	Outcome    string `json:"outcome,omitempty"`
	ActorID    string `json:"actorId,omitempty"`
	Choice     string `json:"choice,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Note       string `json:"note,omitempty"`
}

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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/governance"
)

const (
	HeaderCallerID   = "X-Caller-Id"
	HeaderCallerRole = "X-Caller-Role"
	HeaderCallerName = "X-Caller-Name"

	maxBodyBytes = 1 << 20
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}

// statusFor maps an operation error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrMissingCaller):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, ErrInvalidPaginationParameters):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response for err. Internal errors are logged and
// their detail withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(
			"request failed",
			"op", op,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, status, "failed to "+op)
		return
	}
	writeError(w, status, err.Error())
}

// callerFromRequest reads the caller identity asserted by the fronting
// identity provider
func callerFromRequest(r *http.Request) governance.Caller {
	return governance.Caller{
		ID:          strings.TrimSpace(r.Header.Get(HeaderCallerID)),
		Role:        governance.Role(strings.TrimSpace(r.Header.Get(HeaderCallerRole))),
		DisplayName: r.Header.Get(HeaderCallerName),
	}
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed request body: %s", models.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{IsHealthy: true})
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	params, err := ParsePagination(r)
	if err != nil {
		s.fail(w, r, "list proposals", err)
		return
	}
	page, err := s.gov.ListProposals(r.Context(), governance.ListOptions{
		Status: models.ProposalStatus(r.URL.Query().Get("status")),
		Page:   params.Page,
		Count:  params.Count,
		Desc:   params.Order == PaginationOrderDesc,
	})
	if err != nil {
		s.fail(w, r, "list proposals", err)
		return
	}
	SetPaginationHeaders(w, int(page.Total), params)
	resp := make([]ProposalResponse, 0, len(page.Proposals))
	for i := range page.Proposals {
		resp = append(resp, newProposalResponse(&page.Proposals[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var body CreateProposalBody
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, "create proposal", err)
		return
	}
	p, err := s.gov.CreateProposal(r.Context(), callerFromRequest(r), governance.CreateProposalRequest{
		ProjectID:         body.ProjectID,
		Title:             body.Title,
		Description:       body.Description,
		Kind:              models.ProposalKind(body.Kind),
		EndTime:           body.EndTime,
		MinTokensRequired: body.MinTokensRequired,
		QuorumRequired:    body.QuorumRequired,
		RequiresApproval:  body.RequiresApproval,
		ApproverID:        body.ApproverID,
	})
	if err != nil {
		s.fail(w, r, "create proposal", err)
		return
	}
	writeJSON(w, http.StatusCreated, newProposalResponse(p))
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := s.gov.GetProposal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "get proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, newProposalResponse(p))
}

func (s *Server) handleApproveProposal(w http.ResponseWriter, r *http.Request) {
	p, err := s.gov.ApproveProposal(r.Context(), callerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "approve proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, newProposalResponse(p))
}

func (s *Server) handleCancelProposal(w http.ResponseWriter, r *http.Request) {
	var body CancelBody
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, "cancel proposal", err)
		return
	}
	p, err := s.gov.CancelProposal(
		r.Context(),
		callerFromRequest(r),
		chi.URLParam(r, "id"),
		body.Reason,
	)
	if err != nil {
		s.fail(w, r, "cancel proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, newProposalResponse(p))
}

func (s *Server) handleExecuteProposal(w http.ResponseWriter, r *http.Request) {
	var body ExecuteBody
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, "execute proposal", err)
		return
	}
	p, err := s.gov.ExecuteProposal(
		r.Context(),
		callerFromRequest(r),
		chi.URLParam(r, "id"),
		body.Notes,
	)
	if err != nil {
		s.fail(w, r, "execute proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, newProposalResponse(p))
}

func (s *Server) handleReconcileProposal(w http.ResponseWriter, r *http.Request) {
	p, changed, err := s.gov.ReconcileProposal(
		r.Context(),
		callerFromRequest(r),
		chi.URLParam(r, "id"),
	)
	if err != nil {
		s.fail(w, r, "reconcile proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{
		Proposal: newProposalResponse(p),
		Changed:  changed,
	})
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var body StakeBody
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, "stake tokens", err)
		return
	}
	result, err := s.gov.StakeTokens(r.Context(), callerFromRequest(r), governance.StakeRequest{
		ProposalID:  chi.URLParam(r, "id"),
		Amount:      body.Amount,
		WalletID:    body.WalletID,
		Notes:       body.Notes,
		TxReference: body.TxReference,
	})
	if err != nil {
		s.fail(w, r, "stake tokens", err)
		return
	}
	writeJSON(w, http.StatusOK, newStakeResultResponse(result))
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	result, err := s.gov.UnstakeTokens(r.Context(), callerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "unstake tokens", err)
		return
	}
	writeJSON(w, http.StatusOK, newStakeResultResponse(result))
}

func (s *Server) handleListStakes(w http.ResponseWriter, r *http.Request) {
	params, err := ParsePagination(r)
	if err != nil {
		s.fail(w, r, "list stakes", err)
		return
	}
	stakes, err := s.gov.ListStakes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "list stakes", err)
		return
	}
	SetPaginationHeaders(w, len(stakes), params)
	page := paginate(stakes, params)
	resp := make([]StakeResponse, 0, len(page))
	for i := range page {
		resp = append(resp, newStakeResponse(&page[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var body VoteBody
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, "cast vote", err)
		return
	}
	choice, err := models.ParseVoteChoice(body.Choice)
	if err != nil {
		s.fail(w, r, "cast vote", err)
		return
	}
	result, err := s.gov.CastVote(r.Context(), callerFromRequest(r), governance.VoteRequest{
		ProposalID:    chi.URLParam(r, "id"),
		Choice:        choice,
		Comment:       body.Comment,
		Anonymous:     body.Anonymous,
		DelegatedFrom: body.DelegatedFrom,
	})
	if err != nil {
		s.fail(w, r, "cast vote", err)
		return
	}
	writeJSON(w, http.StatusOK, newVoteResultResponse(result))
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	params, err := ParsePagination(r)
	if err != nil {
		s.fail(w, r, "list votes", err)
		return
	}
	votes, err := s.gov.ListVotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "list votes", err)
		return
	}
	SetPaginationHeaders(w, len(votes), params)
	page := paginate(votes, params)
	resp := make([]VoteResponse, 0, len(page))
	for _, v := range page {
		resp = append(resp, newVoteResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusNotImplemented, "event journal is disabled")
		return
	}
	params, err := ParsePagination(r)
	if err != nil {
		s.fail(w, r, "list events", err)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.gov.GetProposal(r.Context(), id); err != nil {
		s.fail(w, r, "list events", err)
		return
	}
	entries, err := s.events.List(id)
	if err != nil {
		s.fail(w, r, "list events", err)
		return
	}
	SetPaginationHeaders(w, len(entries), params)
	page := paginate(entries, params)
	resp := make([]EventResponse, 0, len(page))
	for _, e := range page {
		resp = append(resp, newEventResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/infra/audit"
	"github.com/heritage-dao/heritage/internal/infra/governance"
)

// ─── Governance API (/api/proposals/*) ───────────────────────────────────────

// principal extracts the caller, writing 401 when the header is missing.
func principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p := strings.TrimSpace(r.Header.Get(PrincipalHeader))
	if p == "" {
		writeError(w, http.StatusUnauthorized, "missing "+PrincipalHeader+" header")
		return "", false
	}
	return domain.Principal(p), true
}

// proposalID parses the {id} URL parameter, writing 400 when malformed.
func proposalID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return 0, false
	}
	return id, true
}

// decode reads a JSON body, rejecting fields the request type does not know.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// --- GET /api/proposals[?status=] ---

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	var (
		list []*domain.Proposal
		err  error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, perr := domain.ParseProposalStatus(raw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		list, err = s.gov.ProposalsByStatus(r.Context(), status)
	} else {
		list, err = s.gov.ListProposals(r.Context())
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposals": list})
}

// --- GET /api/proposals/active ---

func (s *Server) handleActiveProposals(w http.ResponseWriter, r *http.Request) {
	list, err := s.gov.ActiveProposals(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposals": list})
}

// --- GET /api/proposals/{id} ---

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	p, err := s.gov.GetProposal(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- POST /api/proposals ---

// createProposalRequest requires proposal_type to be present; the zero
// ProposalType is a valid VerifyArtifact.
type createProposalRequest struct {
	governance.CreateProposalRequest
	Type *domain.ProposalType `json:"proposal_type"`
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	var req createProposalRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Type == nil {
		writeError(w, http.StatusBadRequest, "proposal_type is required")
		return
	}
	req.CreateProposalRequest.Type = *req.Type
	id, err := s.gov.CreateProposal(r.Context(), caller, req.CreateProposalRequest)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
}

// --- /api/proposals/{id}/votes ---

type castVoteRequest struct {
	Type               *domain.VoteType `json:"vote_type"`
	Rationale          string           `json:"rationale"`
	ExpertiseRelevance *uint32          `json:"expertise_relevance,omitempty"`
}

// requireVoteType writes 400 when a ballot body has no vote_type.
func requireVoteType(w http.ResponseWriter, vt *domain.VoteType) bool {
	if vt == nil {
		writeError(w, http.StatusBadRequest, "vote_type is required")
		return false
	}
	return true
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	var req castVoteRequest
	if !decode(w, r, &req) || !requireVoteType(w, req.Type) {
		return
	}
	msg, err := s.gov.VoteOnProposal(r.Context(), caller, governance.VoteRequest{
		ProposalID:         id,
		Type:               *req.Type,
		Rationale:          req.Rationale,
		ExpertiseRelevance: req.ExpertiseRelevance,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": msg})
}

type changeVoteRequest struct {
	Type      *domain.VoteType `json:"vote_type"`
	Rationale string           `json:"rationale"`
}

func (s *Server) handleChangeVote(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	var req changeVoteRequest
	if !decode(w, r, &req) || !requireVoteType(w, req.Type) {
		return
	}
	msg, err := s.gov.ChangeVote(r.Context(), caller, id, *req.Type, req.Rationale)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleVoteDetails(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	votes, err := s.gov.VoteDetails(r.Context(), caller, id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": votes})
}

// --- POST /api/proposals/{id}/comments ---

type addCommentRequest struct {
	Content string  `json:"content"`
	ReplyTo *uint64 `json:"reply_to,omitempty"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	var req addCommentRequest
	if !decode(w, r, &req) {
		return
	}
	commentID, err := s.gov.AddComment(r.Context(), caller, id, req.Content, req.ReplyTo)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": commentID})
}

// --- POST /api/proposals/{id}/execute ---

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	res, err := s.gov.ExecuteProposal(r.Context(), caller, id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- GET /api/stats ---

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.gov.Stats(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- GET /api/audit[?target=&limit=] ---

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeError(w, http.StatusNotImplemented, "audit log requires the sqlite storage backend")
		return
	}
	q := r.URL.Query()
	var (
		target uint64
		limit  int
		err    error
	)
	if raw := q.Get("target"); raw != "" {
		if target, err = strconv.ParseUint(raw, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid target")
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	events, err := s.auditLog.RecentAudit(r.Context(), target, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": audit.Check(events)})
}

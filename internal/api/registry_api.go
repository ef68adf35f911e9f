package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heritage-dao/heritage/internal/domain"
)

// Registry lists the users and artifacts the engine governs.
type Registry interface {
	Users() []domain.User
	Artifact(id uint64) (domain.Artifact, bool)
}

// ─── Registry Handlers ──────────────────────────────────────────────────────

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusNotImplemented, "no registry configured")
		return
	}
	users := s.registry.Users()
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusNotImplemented, "no registry configured")
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid artifact id")
		return
	}
	a, ok := s.registry.Artifact(id)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrArtifactNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

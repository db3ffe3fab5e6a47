package api

import (
	"errors"
	"net/http"

	"github.com/flowpbx/phonetree/internal/ivr"
	"github.com/flowpbx/phonetree/internal/session"
	"github.com/go-chi/chi/v5"
)

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStates returns the structure report of the loaded state table.
func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ivr.Report(s.engine.Table()))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	if msg := validateCallID("callID", callID); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	sess, err := s.sessions.Get(r.Context(), callID)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load session", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	if msg := validateCallID("callID", callID); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.sessions.Delete(r.Context(), callID); err != nil {
		s.logger.Error("failed to delete session", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("session deleted by admin", "call_id", callID)
	w.WriteHeader(http.StatusNoContent)
}

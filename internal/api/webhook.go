package api

import (
	"errors"
	"net/http"

	"github.com/flowpbx/phonetree/internal/ivr"
	"github.com/flowpbx/phonetree/internal/session"
	"github.com/flowpbx/phonetree/internal/twiml"
)

// finalCallStatuses are the CallStatus values after which a call takes no
// more turns.
var finalCallStatuses = map[string]bool{
	"completed": true,
	"busy":      true,
	"failed":    true,
	"no-answer": true,
	"canceled":  true,
}

// handleVoice runs one IVR turn for the calling party and answers with the
// voice markup the provider should execute next.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}

	// Keypad input the menus do not map, however odd, falls through to
	// the resolver's default route.
	digits := r.PostForm.Get("Digits")
	if msg := validateDigits("Digits", digits); msg != "" {
		s.logger.Debug("unexpected keypad input", "reason", msg, "digits_len", len(digits))
		if len(digits) > maxDigitsLen {
			// Still longer than any route key, so it stays unmapped.
			digits = digits[:maxDigitsLen+1]
		}
	}

	callID, err := s.correlate(w, r)
	if err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) {
			writeError(w, http.StatusBadRequest, bad.msg)
			return
		}
		s.logger.Error("failed to correlate call", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	ctx := r.Context()

	sess, err := s.sessions.Get(ctx, callID)
	if errors.Is(err, session.ErrNotFound) {
		sess = ivr.Session{CallID: callID}
	} else if err != nil {
		s.logger.Error("failed to load session", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	turn, err := s.engine.HandleTurn(sess, digits)
	if err != nil {
		s.logger.Error("call flow turn failed",
			"call_id", callID,
			"state", sess.CurrentState,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "call flow error")
		return
	}

	body, err := twiml.Marshal(turn.Actions)
	if err != nil {
		s.logger.Error("failed to render voice response",
			"call_id", callID,
			"state", turn.Session.CurrentState,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	turn.Session.UpdatedAt = s.now().UTC()
	if err := s.sessions.Put(ctx, turn.Session); err != nil {
		s.logger.Error("failed to store session", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeMarkup(w, body)
}

// handleStatus drops the session of a call that has ended.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}

	callID := r.PostForm.Get("CallSid")
	if msg := validateCallID("CallSid", callID); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	status := r.PostForm.Get("CallStatus")
	if finalCallStatuses[status] {
		if err := s.sessions.Delete(r.Context(), callID); err != nil {
			s.logger.Error("failed to delete session", "call_id", callID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		s.logger.Debug("call ended, session removed", "call_id", callID, "call_status", status)
	}

	w.WriteHeader(http.StatusNoContent)
}

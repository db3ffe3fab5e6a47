package api

import (
	"fmt"
	"net/http"
)

// callCookieName carries the signed correlation token for callers that do
// not send a CallSid.
const callCookieName = "phonetree_call"

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

// correlate returns the key the caller's session is stored under. A
// provider CallSid wins; otherwise a valid correlation cookie is reused,
// and failing that a new one is issued on w.
func (s *Server) correlate(w http.ResponseWriter, r *http.Request) (string, error) {
	if sid := r.PostForm.Get("CallSid"); sid != "" {
		if msg := validateCallID("CallSid", sid); msg != "" {
			return "", &badRequestError{msg: msg}
		}
		return sid, nil
	}

	if c, err := r.Cookie(callCookieName); err == nil {
		callID, err := s.callTokens.Parse(c.Value)
		if err == nil {
			return callID, nil
		}
		s.logger.Debug("discarding invalid call cookie", "error", err)
	}

	token, callID, expiresAt, err := s.callTokens.Issue()
	if err != nil {
		return "", fmt.Errorf("issuing call cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     callCookieName,
		Value:    token,
		Path:     "/webhook",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.opts.TLSEnabled,
		SameSite: http.SameSiteLaxMode,
	})
	return callID, nil
}

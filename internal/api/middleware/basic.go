package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// BasicAuth returns middleware that requires HTTP Basic credentials matching
// username and the Argon2id passwordHash. The hash is decoded once; if it is
// invalid every request fails with 500 rather than falling open.
func BasicAuth(username, passwordHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("subsystem", "basic_auth")

	hash, hashErr := ParsePasswordHash(passwordHash)
	if hashErr != nil {
		logger.Error("admin password hash is unusable", "error", hashErr)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hashErr != nil {
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok {
				unauthorized(w)
				return
			}

			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			if !hash.Matches(pass) || !userOK {
				logger.Warn("admin auth failed",
					"username", user,
					"remote_addr", r.RemoteAddr,
				)
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="phonetree", charset="UTF-8"`)
	writeError(w, http.StatusUnauthorized, "authentication required")
}

package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/icholy/digest"
)

const (
	digestRealm   = "phonetree"
	digestOpaque  = "phonetree"
	digestAlgoMD5 = "MD5"
	nonceExpiry   = 5 * time.Minute
)

// DigestAuth guards the voice webhook with HTTP digest authentication. The
// telephony provider is configured with the credentials embedded in the
// webhook URL and answers the 401 challenge on every request.
type DigestAuth struct {
	username string
	password string
	logger   *slog.Logger
	nonces   sync.Map // map[string]time.Time
	now      func() time.Time
}

// NewDigestAuth creates a digest authenticator for a single credential pair.
func NewDigestAuth(username, password string, logger *slog.Logger) *DigestAuth {
	return &DigestAuth{
		username: username,
		password: password,
		logger:   logger.With("subsystem", "digest_auth"),
		now:      time.Now,
	}
}

// Middleware rejects requests that do not carry a valid digest response.
func (a *DigestAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if h == "" {
			a.challenge(w, false)
			return
		}

		cred, err := digest.ParseCredentials(h)
		if err != nil {
			a.logger.Warn("failed to parse authorization header",
				"error", err,
				"remote_addr", r.RemoteAddr,
			)
			writeError(w, http.StatusBadRequest, "malformed authorization header")
			return
		}

		// Unknown or expired nonces get a fresh challenge.
		issued, ok := a.nonces.Load(cred.Nonce)
		if !ok {
			a.logger.Debug("unknown nonce, re-challenging", "username", cred.Username)
			a.challenge(w, false)
			return
		}
		if a.now().Sub(issued.(time.Time)) > nonceExpiry {
			a.nonces.Delete(cred.Nonce)
			a.logger.Debug("expired nonce, re-challenging", "username", cred.Username)
			a.challenge(w, true)
			return
		}

		chal := digest.Challenge{
			Realm:     digestRealm,
			Nonce:     cred.Nonce,
			Opaque:    digestOpaque,
			Algorithm: digestAlgoMD5,
		}
		expected, err := digest.Digest(&chal, digest.Options{
			Method:   r.Method,
			URI:      cred.URI,
			Username: a.username,
			Password: a.password,
		})
		if err != nil {
			a.logger.Error("failed to compute digest", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(cred.Username), []byte(a.username)) == 1
		respOK := subtle.ConstantTimeCompare([]byte(cred.Response), []byte(expected.Response)) == 1
		if !userOK || !respOK {
			a.logger.Warn("digest auth failed",
				"username", cred.Username,
				"remote_addr", r.RemoteAddr,
			)
			a.challenge(w, false)
			return
		}

		// A nonce is good for one request.
		a.nonces.Delete(cred.Nonce)

		next.ServeHTTP(w, r)
	})
}

// challenge issues a fresh nonce and writes a 401 carrying it.
func (a *DigestAuth) challenge(w http.ResponseWriter, stale bool) {
	a.pruneNonces()

	nonce := generateNonce()
	a.nonces.Store(nonce, a.now())

	chal := digest.Challenge{
		Realm:     digestRealm,
		Nonce:     nonce,
		Opaque:    digestOpaque,
		Stale:     stale,
		Algorithm: digestAlgoMD5,
	}
	w.Header().Set("WWW-Authenticate", chal.String())
	writeError(w, http.StatusUnauthorized, "authentication required")
}

func (a *DigestAuth) pruneNonces() {
	cutoff := a.now().Add(-nonceExpiry)
	a.nonces.Range(func(key, value any) bool {
		if value.(time.Time).Before(cutoff) {
			a.nonces.Delete(key)
		}
		return true
	})
}

func generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b) //nolint:errcheck
	return hex.EncodeToString(b)
}

package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// ErrInvalidCallToken is returned when a call token fails verification.
var ErrInvalidCallToken = errors.New("invalid call token")

const callTokenIssuer = "phonetree"

// CallTokenSigner issues and verifies HS256 tokens that carry a generated
// call ID. They correlate webhook requests from clients that do not send a
// provider call identifier.
type CallTokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCallTokenSigner creates a signer whose tokens live for ttl.
func NewCallTokenSigner(secret []byte, ttl time.Duration) *CallTokenSigner {
	return &CallTokenSigner{secret: secret, ttl: ttl, now: time.Now}
}

// Issue creates a token for a new random call ID.
func (s *CallTokenSigner) Issue() (token, callID string, expiresAt time.Time, err error) {
	now := s.now()
	expiresAt = now.Add(s.ttl)
	callID = uuid.NewString()

	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    callTokenIssuer,
		Subject:   callID,
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("signing call token: %w", err)
	}
	return token, callID, expiresAt, nil
}

// Parse verifies token and returns the call ID it carries.
func (s *CallTokenSigner) Parse(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidCallToken, err)
	}

	if claims.Issuer != callTokenIssuer {
		return "", fmt.Errorf("%w: unexpected issuer %q", ErrInvalidCallToken, claims.Issuer)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: subject is not a call id", ErrInvalidCallToken)
	}
	return claims.Subject, nil
}

// Package auth turns a handshake token into a Principal.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken   = errors.New("missing token")
	ErrInvalidSubject = errors.New("token has no usable subject")
)

// Claims is the payload accepted on handshake tokens. UserID is the legacy
// claim name and only consulted when the registered subject is empty.
type Claims struct {
	UserID json.Number `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens signed with a shared key.
type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

// NewVerifier creates a Verifier for the given signing key.
func NewVerifier(signingKey string) *Verifier {
	return &Verifier{
		key:    []byte(signingKey),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verify checks signature and expiry and returns the subject user id.
func (v *Verifier) Verify(raw string) (int, error) {
	if raw == "" {
		return 0, ErrMissingToken
	}
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return 0, jwt.ErrSignatureInvalid
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID.String()
	}
	userID, err := strconv.Atoi(subject)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidSubject
	}
	return userID, nil
}

// GenerateToken signs a token for userID. Token issuance belongs to the
// identity service; this exists for local tooling and tests.
func GenerateToken(signingKey string, userID int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
}

// ExtractToken prefers an "Authorization: Bearer" header and falls back to the
// token query parameter.
func ExtractToken(header, query string) string {
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && strings.TrimSpace(parts[1]) != "" {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(query)
}

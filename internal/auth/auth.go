// Package auth guards OrbitDock's HTTP and WebSocket surface with a local
// bearer token. It is grounded on the teacher's auth.JWTValidator (parse,
// validate claims, extract subject) minus the JWKS fetch: OrbitDock is a
// local single-node server (spec §1) with no remote IdP publishing keys, so
// tokens are signed and verified against ORBITDOCK_AUTH_TOKEN directly.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "orbitdock"

// Claims is the JWT claim set orbitdockd mints and validates.
type Claims struct {
	jwt.RegisteredClaims
}

// Validator validates bearer tokens against a shared HS256 secret.
type Validator struct {
	secret []byte
}

// NewValidator builds a Validator over secret. An empty secret disables
// auth entirely (Authenticate always succeeds) — intended for local dev
// only, matching spec §6's ORBITDOCK_AUTH_TOKEN being optional.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Enabled reports whether a secret was configured.
func (v *Validator) Enabled() bool { return len(v.secret) > 0 }

// GenerateToken mints an HS256 JWT over the configured secret with sub set
// to the requesting operator's identifier, for the `generate-token` CLI verb.
func (v *Validator) GenerateToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies tokenString, returning its claims.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header, falling back to a "token" query parameter for WebSocket upgrades
// where browsers can't set custom headers on the handshake request.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return after
		}
	}
	return r.URL.Query().Get("token")
}

// Middleware wraps next with bearer-token authentication. When the
// validator has no secret configured, requests pass through unauthenticated
// (local dev only, matching spec §6's optional ORBITDOCK_AUTH_TOKEN).
func (v *Validator) Middleware(next http.Handler) http.Handler {
	if !v.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		if _, err := v.Validate(token); err != nil {
			http.Error(w, `{"error":"invalid bearer token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

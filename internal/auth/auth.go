// Package auth guards the read endpoints with bearer credentials: static
// tokens from configuration or HS256 JWTs carrying a scope claim.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Well-known scopes.
const (
	ScopeAll          = "*"
	ScopeMessagesRead = "messages:read"
)

// Principal is an authenticated caller.
type Principal struct {
	Subject string
	Scopes  map[string]struct{}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("invalid Authorization header format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Authenticator checks presented bearer tokens. The zero value, or one
// built with no tokens and no JWT secret, is disabled.
type Authenticator struct {
	tokens    []string
	jwtSecret []byte
}

// NewAuthenticator builds an authenticator from static tokens and an
// optional HS256 secret.
func NewAuthenticator(tokens []string, jwtSecret string) *Authenticator {
	a := &Authenticator{}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			a.tokens = append(a.tokens, t)
		}
	}
	if jwtSecret != "" {
		a.jwtSecret = []byte(jwtSecret)
	}
	return a
}

// Enabled reports whether any credential is configured.
func (a *Authenticator) Enabled() bool {
	return a != nil && (len(a.tokens) > 0 || len(a.jwtSecret) > 0)
}

// Authenticate matches presented against static tokens first, then tries it
// as a JWT. Static tokens carry every scope.
func (a *Authenticator) Authenticate(presented string) (Principal, bool) {
	if !a.Enabled() || presented == "" {
		return Principal{}, false
	}

	for i, t := range a.tokens {
		if constantTimeEqual(presented, t) {
			return Principal{
				Subject: staticSubject(i),
				Scopes:  map[string]struct{}{ScopeAll: {}},
			}, true
		}
	}

	if len(a.jwtSecret) == 0 {
		return Principal{}, false
	}
	claims, err := parseToken(presented, a.jwtSecret)
	if err != nil {
		return Principal{}, false
	}
	return Principal{
		Subject: claims.Subject,
		Scopes:  normalizeScopes(strings.Fields(claims.Scope)),
	}, true
}

func staticSubject(i int) string {
	return "static-token-" + strconv.Itoa(i)
}

func normalizeScopes(scopes []string) map[string]struct{} {
	out := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out[s] = struct{}{}
	}
	return out
}

func HasAnyScope(p Principal, required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if _, ok := p.Scopes[ScopeAll]; ok {
		return true
	}
	for _, s := range required {
		if _, ok := p.Scopes[s]; ok {
			return true
		}
	}
	return false
}

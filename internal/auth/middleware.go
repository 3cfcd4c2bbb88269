package auth

import (
	"encoding/json"
	"net/http"
)

// Require returns middleware that admits callers holding any of scopes.
// A disabled authenticator admits everyone.
func (a *Authenticator) Require(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			token, err := ExtractBearerToken(r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="hookbox"`)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			p, ok := a.Authenticate(token)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="hookbox", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if !HasAnyScope(p, scopes...) {
				writeError(w, http.StatusForbidden, "insufficient scope")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
	http.Error(w, `{"code":401,"message":"`+message+`"}`, http.StatusUnauthorized)
}

// Auth guards a route group with a single static bearer token. The compare
// is constant time. An empty token rejects every request.
func Auth(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, got, found := strings.Cut(r.Header.Get("Authorization"), " ")
			switch {
			case !found && scheme == "":
				unauthorized(w, "missing authorization header")
			case !found || scheme != "Bearer":
				unauthorized(w, "invalid authorization header format")
			case got == "":
				unauthorized(w, "empty token")
			case len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1:
				unauthorized(w, "invalid token")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

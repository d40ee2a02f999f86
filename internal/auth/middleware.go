package auth

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/citypulse/api-edge/internal/api"
)

type contextKey string

const userContextKey contextKey = "user"

type Middleware struct {
	jwtSecret string
}

func NewMiddleware(jwtSecret string) *Middleware {
	return &Middleware{jwtSecret: jwtSecret}
}

// Optional attaches claims when a valid bearer token is present and lets the
// request through anonymously otherwise. Read endpoints and the tiered rate
// limiter use this: identity matters, authentication does not.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if claims, err := ValidateToken(token, m.jwtSecret); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), userContextKey, claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects requests without a valid bearer token.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			api.Fail(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		claims, err := ValidateToken(token, m.jwtSecret)
		if err != nil {
			api.Fail(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func UserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(userContextKey).(*Claims)
	return claims, ok
}

// Identity resolves the rate-limit identity: the authenticated user id when
// present, the caller's network address otherwise.
func Identity(r *http.Request) string {
	if claims, ok := UserFromContext(r.Context()); ok {
		return "user:" + claims.UserID
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

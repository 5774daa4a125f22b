package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"filmlog/handlers"
	"filmlog/services/users"
)

// TokenParser validates a bearer token and returns the user id it names.
type TokenParser interface {
	ParseToken(token string) (string, error)
}

var _ TokenParser = (*users.Service)(nil)

// AuthMiddleware resolves the bearer token into a user id on the request
// context. Requests without a valid token are rejected when required is set
// and passed through anonymously otherwise. A malformed token is always
// rejected.
func AuthMiddleware(parser TokenParser, required bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				if required {
					http.Error(w, "authentication required", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			userID, err := parser.ParseToken(strings.TrimSpace(token))
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(handlers.ContextWithUserID(r.Context(), userID)))
		})
	}
}

// localhostOnlyMiddleware restricts access to loopback clients. The decision
// uses the peer address only; the Host header is client supplied.
func localhostOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopback(r.RemoteAddr) {
			http.Error(w, "Admin endpoints only accessible from localhost", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

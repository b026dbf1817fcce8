package middleware

import (
	"context"
	"net/http"
	"strings"

	"donorcrm/internal/auth"
)

type contextKey string

const operatorIDKey contextKey = "operator_id"

func OperatorIDFromContext(ctx context.Context) (string, bool) {
	operatorID, ok := ctx.Value(operatorIDKey).(string)
	return operatorID, ok
}

func WithOperatorID(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorIDKey, operatorID)
}

// BearerToken returns the token from the Authorization header, falling back
// to the token query parameter used by browser websocket clients.
func BearerToken(r *http.Request, allowQuery bool) (string, bool) {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if allowQuery {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, true
		}
	}
	return "", false
}

func Auth(secret string) func(http.Handler) http.Handler {
	return authenticate(secret, false)
}

// AuthQuery is Auth for websocket upgrades.
func AuthQuery(secret string) func(http.Handler) http.Handler {
	return authenticate(secret, true)
}

func authenticate(secret string, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r, allowQuery)
			if !ok {
				message := "invalid authorization header"
				if r.Header.Get("Authorization") == "" {
					message = "missing authorization header"
				}
				http.Error(w, message, http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOperatorID(r.Context(), claims.OperatorID)))
		})
	}
}

package middleware

import (
	"context"
	"net/http"
)

type OperatorStore interface {
	IsOperator(ctx context.Context, operatorID string) (bool, bool, error)
	HasRole(ctx context.Context, operatorID, role string) (bool, error)
}

// RequireOperator admits registered operators holding role. Super operators
// pass every role check; an empty role only requires registration.
func RequireOperator(operators OperatorStore, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operatorID, ok := OperatorIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			isOperator, isSuper, err := operators.IsOperator(r.Context(), operatorID)
			if err != nil {
				http.Error(w, "unable to verify operator", http.StatusInternalServerError)
				return
			}
			if !isOperator {
				http.Error(w, "operator privileges required", http.StatusForbidden)
				return
			}
			if isSuper || role == "" {
				next.ServeHTTP(w, r)
				return
			}
			hasRole, err := operators.HasRole(r.Context(), operatorID, role)
			if err != nil {
				http.Error(w, "unable to verify role", http.StatusInternalServerError)
				return
			}
			if !hasRole {
				http.Error(w, "missing required role", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

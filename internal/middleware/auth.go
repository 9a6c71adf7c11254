package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mingjobo/piximagegenerator/internal/services"
)

type contextKey string

const userUUIDKey contextKey = "user_uuid"

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(userService *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			userUUID, err := userService.ValidateJWT(parts[1])
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userUUIDKey, userUUID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserUUID extracts the user uuid from context
func GetUserUUID(ctx context.Context) string {
	userUUID, ok := ctx.Value(userUUIDKey).(string)
	if !ok {
		return ""
	}
	return userUUID
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write([]byte(`{"code":-1,"message":"` + message + `"}`))
}

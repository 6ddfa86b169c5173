package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ContextKey string

const UserContextKey ContextKey = "currentUser"

// ErrNoUser is returned when the request carries no usable user_id claim.
var ErrNoUser = errors.New("missing user identity")

// AuthMiddleware verifies the bearer token with secret and stores its claims
// in the request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Missing auth token", http.StatusUnauthorized)
				return
			}
			serveWithClaims(w, r, next, strings.TrimPrefix(authHeader, "Bearer "), secret)
		})
	}
}

// WebSocketAuthMiddleware reads the token from the "token" query parameter,
// since browsers cannot set headers on websocket upgrades.
func WebSocketAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := r.URL.Query().Get("token")
			if tokenStr == "" {
				http.Error(w, "Missing auth token", http.StatusUnauthorized)
				return
			}
			serveWithClaims(w, r, next, tokenStr, secret)
		})
	}
}

func serveWithClaims(w http.ResponseWriter, r *http.Request, next http.Handler, tokenStr, secret string) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		http.Error(w, "Invalid token claims", http.StatusUnauthorized)
		return
	}
	ctx := context.WithValue(r.Context(), UserContextKey, claims)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// UserIDFromContext returns the user_id claim set by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (int64, error) {
	claims, ok := ctx.Value(UserContextKey).(jwt.MapClaims)
	if !ok {
		return 0, ErrNoUser
	}
	switch v := claims["user_id"].(type) {
	case float64: // JWT numbers are decoded as float64
		return int64(v), nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, ErrNoUser
		}
		return id, nil
	}
	return 0, ErrNoUser
}

func ResponseWrapperMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// UserIDHeader carries the owner id when bearer tokens are not required
const UserIDHeader = "X-User-ID"

type ownerKey struct{}

// AuthConfig controls how the caller's user id is established
type AuthConfig struct {
	JWTSecret       string // HS256 key; empty disables token validation
	AllowUserHeader bool   // trust X-User-ID when no token is sent
}

// OwnerFromContext returns the authenticated user id
func OwnerFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ownerKey{}).(int64)
	return id, ok
}

// WithOwner stores a user id on the context
func WithOwner(ctx context.Context, ownerID int64) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// AuthMiddleware resolves the owner from a bearer token, or from the
// X-User-ID header when allowed, and rejects the request otherwise
func AuthMiddleware(config AuthConfig, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	resp := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID, err := resolveOwner(r, config)
			if err != nil {
				resp.logger.Debugf("unauthenticated %s %s: %v", r.Method, r.URL.Path, err)
				resp.sendError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), ownerID)))
		})
	}
}

func resolveOwner(r *http.Request, config AuthConfig) (int64, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || config.JWTSecret == "" {
			return 0, errors.New("unsupported authorization header")
		}
		return ownerFromToken(strings.TrimSpace(token), config.JWTSecret)
	}

	if config.AllowUserHeader {
		if raw := r.Header.Get(UserIDHeader); raw != "" {
			id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil || id <= 0 {
				return 0, fmt.Errorf("invalid %s header", UserIDHeader)
			}
			return id, nil
		}
	}
	return 0, errors.New("authentication required")
}

func ownerFromToken(raw, secret string) (int64, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("invalid token: %w", err)
	}

	for _, key := range []string{"user_id", "sub"} {
		if id, ok := claimInt(claims[key]); ok {
			return id, nil
		}
	}
	return 0, errors.New("token has no numeric user_id or sub claim")
}

func claimInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n > 0 && n == float64(int64(n)) {
			return int64(n), true
		}
	case string:
		if id, err := strconv.ParseInt(n, 10, 64); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

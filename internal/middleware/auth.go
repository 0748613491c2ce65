// Package middleware provides HTTP middleware for the marketplace API.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hydrochain/marketplace/pkg/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Claims are the JWT claims carried by a marketplace session token.
type Claims struct {
	UserID string `json:"user_id"`
	Wallet string `json:"wallet,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token for the given user.
func IssueToken(secret []byte, userID, wallet string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: userID,
		Wallet: wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken validates a session token and returns its claims.
func ParseToken(secret []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// AuthMiddleware authenticates requests with a Bearer session token.
type AuthMiddleware struct {
	secret       []byte
	log          *logger.Logger
	skipPaths    map[string]bool
	skipPrefixes []string
}

// NewAuthMiddleware creates an authentication middleware. Requests to
// skipPaths (or any path under skipPrefixes) pass through unauthenticated.
func NewAuthMiddleware(secret []byte, log *logger.Logger, skipPaths, skipPrefixes []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{
		secret:       secret,
		log:          log,
		skipPaths:    skip,
		skipPrefixes: skipPrefixes,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skip(r.URL.Path) {
			// Public endpoints still attach identity when a valid token
			// is presented, so user-scoped views work there too.
			if claims, err := m.bearerClaims(r); err == nil && claims != nil {
				r = r.WithContext(context.WithValue(r.Context(), userIDKey, claims.UserID))
			}
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.bearerClaims(r)
		if err != nil {
			m.log.WithError(err).
				WithField("path", r.URL.Path).
				Warn("token validation failed")
			m.unauthorized(w, r, "invalid or expired token")
			return
		}
		if claims == nil {
			m.unauthorized(w, r, "missing Authorization header")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerClaims parses the Authorization header if present. It returns
// (nil, nil) when the header is absent.
func (m *AuthMiddleware) bearerClaims(r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, fmt.Errorf("invalid Authorization header format")
	}
	return ParseToken(m.secret, parts[1])
}

func (m *AuthMiddleware) skip(path string) bool {
	if m.skipPaths[path] {
		return true
	}
	for _, prefix := range m.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUserID returns a context carrying the given user ID. Intended for tests
// and internal callers that bypass the HTTP middleware.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

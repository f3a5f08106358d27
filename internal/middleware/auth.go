// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for user ID.
	UserIDKey ContextKey = "user_id"
	// ProfileKey is the context key for the caller's public profile.
	ProfileKey ContextKey = "profile"
)

// Claims represents the identity provider's JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Role    model.Role `json:"role"`
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Picture string     `json:"picture,omitempty"`
}

// Profile returns the public profile carried by the claims.
func (c *Claims) Profile() model.Profile {
	p := model.Profile{
		UserID:      c.Subject,
		DisplayName: c.Name,
		Email:       c.Email,
		Role:        c.Role,
	}
	if c.Picture != "" {
		picture := c.Picture
		p.AvatarURL = &picture
	}
	return p
}

// Auth creates JWT authentication middleware. The token is read from the
// Authorization header, or from the access_token query parameter for
// EventSource and websocket clients that cannot set headers.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "missing or malformed authorization")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid || claims.Subject == "" {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			// Add identity to context
			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, ProfileKey, claims.Profile())
			ctx = logger.IntoContext(ctx, logger.FromContext(ctx).With(zap.String("user_id", claims.Subject)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	if r.Method == http.MethodGet {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// GetProfile gets the caller's public profile from context.
func GetProfile(ctx context.Context) (model.Profile, bool) {
	p, ok := ctx.Value(ProfileKey).(model.Profile)
	return p, ok
}

// WithIdentity returns ctx carrying the identity Auth would set.
func WithIdentity(ctx context.Context, profile model.Profile) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, profile.UserID)
	return context.WithValue(ctx, ProfileKey, profile)
}

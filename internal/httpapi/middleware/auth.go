package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avelkov/personachat/internal/auth"
)

const (
	UserIDKey = "userID"
	ClaimsKey = "claims"
)

// TokenBlacklist reports whether a session token has been revoked.
// A nil blacklist disables the check.
type TokenBlacklist interface {
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

func authenticate(c *gin.Context, tm *auth.TokenManager, blacklist TokenBlacklist) (*auth.Claims, int, string) {
	token := auth.ExtractToken(c.Request)
	if token == "" {
		return nil, http.StatusUnauthorized, "authentication required"
	}

	if blacklist != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		revoked, err := blacklist.IsTokenBlacklisted(ctx, token)
		if err != nil {
			return nil, http.StatusInternalServerError, "session check failed"
		}
		if revoked {
			return nil, http.StatusUnauthorized, "token revoked"
		}
	}

	claims, err := tm.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, http.StatusUnauthorized, "token expired, please log in again"
		}
		return nil, http.StatusUnauthorized, "invalid token"
	}
	return claims, 0, ""
}

// AuthRequired rejects requests without a valid session token and stores
// the claims on the context.
func AuthRequired(tm *auth.TokenManager, blacklist TokenBlacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, status, msg := authenticate(c, tm, blacklist)
		if claims == nil {
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}
		c.Set(UserIDKey, claims.UserID)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// OptionalAuth stores claims when a valid token is present and continues
// anonymously otherwise. Used by read paths whose results depend on the
// viewer but are open to everyone.
func OptionalAuth(tm *auth.TokenManager, blacklist TokenBlacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, _, _ := authenticate(c, tm, blacklist); claims != nil {
			c.Set(UserIDKey, claims.UserID)
			c.Set(ClaimsKey, claims)
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, empty for anonymous requests.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(UserIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

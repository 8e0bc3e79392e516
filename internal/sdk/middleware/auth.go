package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/models"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/services/tokens"
)

const UserKey = "authenticated_user"

// UserStore is the slice of the credential store the authenticator needs.
type UserStore interface {
	GetUserByID(ctx context.Context, userID string) (models.User, error)
}

// Authenticate validates the access token from the access_token cookie or the
// Authorization header, loads the referenced user and attaches the sanitized
// record to the request context. Downstream handlers never run when the token
// is absent, invalid, or the user no longer exists.
func Authenticate(tokenService *tokens.TokenService, db UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := accessTokenFromRequest(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "error": "missing_access_token", "success": false})
			c.Abort()
			return
		}

		claims, err := tokenService.ParseAccessToken(c.Request.Context(), tokenString)
		if err != nil {
			var errCode string
			switch {
			case errors.Is(err, tokens.ErrExpiredToken):
				errCode = "expired_token"
			case errors.Is(err, tokens.ErrInvalidToken):
				errCode = "invalid_token"
			default:
				errCode = "unauthorized"
			}
			c.JSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "error": errCode, "success": false})
			c.Abort()
			return
		}

		if claims.Subject == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "error": "unauthorized", "success": false})
			c.Abort()
			return
		}

		user, err := db.GetUserByID(c.Request.Context(), claims.Subject)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "error": "invalid_token", "success": false})
			c.Abort()
			return
		}

		c.Set(UserKey, user.Sanitize())
		c.Next()
	}
}

func accessTokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	// Expect "Bearer <token>" format.
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return parts[1]
}

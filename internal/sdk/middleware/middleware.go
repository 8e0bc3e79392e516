// Package middleware provides HTTP middleware for authentication, request
// logging and CORS.
package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/models"
)

// GetUser fetches the authenticated user attached by Authenticate.
func GetUser(c *gin.Context) (models.User, error) {
	val, ok := c.Get(UserKey)
	if !ok {
		return models.User{}, errors.New("user not found in context")
	}

	user, ok := val.(models.User)
	if !ok || user.ID == "" {
		return models.User{}, errors.New("invalid user in context")
	}

	return user, nil
}

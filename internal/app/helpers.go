package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atharv2608/backend-for-video-streaming-platform/internal/services/sentry"
)

// respond writes the uniform success envelope.
func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"data":    data,
		"message": message,
		"success": true,
	})
}

// writeError writes the uniform failure envelope.
func writeError(c *gin.Context, status int, errCode string, details map[string]string) {
	response := gin.H{
		"status":  status,
		"error":   errCode,
		"success": false,
	}

	if len(details) > 0 {
		response["details"] = details
	}

	c.JSON(status, response)
}

// setAuthCookies attaches the token pair as same-site, http-only, secure
// cookies.
func setAuthCookies(c *gin.Context, accessToken string, accessExpiry time.Time, refreshToken string, refreshExpiry time.Time) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie("access_token", accessToken, secondsUntil(accessExpiry), "/", "", true, true)
	c.SetCookie("refresh_token", refreshToken, secondsUntil(refreshExpiry), "/", "", true, true)
}

func clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie("access_token", "", -1, "/", "", true, true)
	c.SetCookie("refresh_token", "", -1, "/", "", true, true)
}

func secondsUntil(t time.Time) int {
	seconds := int(time.Until(t).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// =============================================================================
func (a *App) toSentry(c *gin.Context, handler, errType string, level sentry.Level, err error) {
	a.sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("handler", handler)
		scope.SetExtra("error_type", errType)
		scope.SetLevel(level)
		if reqID := c.GetHeader("X-Request-ID"); reqID != "" {
			scope.SetTag("request_id", reqID)
		}
		a.sentry.CaptureException(err)
	})
}

package app

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/middleware"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/models"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/sqldb"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/services/sentry"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/services/tokens"
)

const (
	bcryptCost = bcrypt.DefaultCost

	maxRegisterFormMemory int64 = 10 << 20 // 10 MB
)

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func parseMultipartOrForm(r *http.Request, maxMemory int64) error {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return r.ParseForm()
		}
		return err
	}
	return nil
}

// HandleRegister creates a user account. The avatar must be uploaded to the
// media store before the record is inserted; a failed cover-image upload
// degrades to no cover instead of aborting.
func (a *App) HandleRegister(c *gin.Context) {
	if err := parseMultipartOrForm(c.Request, maxRegisterFormMemory); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	fullName := strings.TrimSpace(c.PostForm("full_name"))
	username := strings.ToLower(strings.TrimSpace(c.PostForm("username")))
	email := strings.ToLower(strings.TrimSpace(c.PostForm("email")))
	password := c.PostForm("password")

	if validationErrors := validateRegisterInput(fullName, username, email, password); len(validationErrors) > 0 {
		writeError(c, http.StatusBadRequest, "missing_required_fields", validationErrors)
		return
	}

	if _, err := mail.ParseAddress(email); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_email_format", map[string]string{"email": "invalid_email_format"})
		return
	}

	exists, err := a.db.UserExists(c.Request.Context(), username, email)
	if err != nil {
		a.toSentry(c, "register", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_create_user_error", nil)
		return
	}
	if exists {
		writeError(c, http.StatusConflict, "user_already_exists", nil)
		return
	}

	avatarFile, err := c.FormFile("avatar")
	if err != nil {
		writeError(c, http.StatusBadRequest, "avatar_required", nil)
		return
	}

	avatarURL, err := a.storeUpload(c, avatarFile)
	if err != nil {
		a.toSentry(c, "register", "media_upload", sentry.LevelError, err)
		writeError(c, http.StatusBadRequest, "avatar_upload_failed", nil)
		return
	}

	// The cover image is optional and its upload is best-effort.
	coverImageURL := ""
	if coverFile, err := c.FormFile("cover_image"); err == nil {
		coverImageURL, err = a.storeUpload(c, coverFile)
		if err != nil {
			a.toSentry(c, "register", "media_upload", sentry.LevelWarning, err)
			coverImageURL = ""
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		a.toSentry(c, "register", "bcrypt", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_hash_error", nil)
		return
	}

	createdUser, err := a.db.CreateUser(c.Request.Context(), models.NewUser{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		Password:      hashedPassword,
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
	})
	if err != nil {
		if errors.Is(err, sqldb.ErrDBDuplicatedEntry) {
			writeError(c, http.StatusConflict, "user_already_exists", nil)
			return
		}
		// The avatar upload already succeeded, so a failing insert here is
		// an invariant violation worth alerting on.
		a.toSentry(c, "register", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_create_user_error", nil)
		return
	}

	respond(c, http.StatusCreated, createdUser.Sanitize(), "user registered successfully")
}

// HandleLogin verifies credentials, issues the token pair and persists the
// new refresh token, invalidating any prior one.
func (a *App) HandleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	identifier := strings.ToLower(strings.TrimSpace(req.Username))
	if identifier == "" {
		identifier = strings.ToLower(strings.TrimSpace(req.Email))
	}

	if identifier == "" || req.Password == "" {
		writeError(c, http.StatusBadRequest, "missing_required_fields", nil)
		return
	}

	user, err := a.db.GetUserByIdentity(c.Request.Context(), identifier)
	if err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			writeError(c, http.StatusNotFound, "user_not_found", nil)
			return
		}
		a.toSentry(c, "login", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_login_error", nil)
		return
	}

	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(req.Password)); err != nil {
		writeError(c, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}

	accessToken, refreshToken, err := a.issueAndStoreTokens(c, user)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal_generate_tokens_error", nil)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"user":          user.Sanitize(),
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}, "user logged in successfully")
}

// HandleLogout clears the stored refresh token and the auth cookies.
// Idempotent for any authenticated caller.
func (a *App) HandleLogout(c *gin.Context) {
	user, err := middleware.GetUser(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	if err := a.db.ClearRefreshToken(c.Request.Context(), user.ID); err != nil {
		a.toSentry(c, "logout", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_logout_error", nil)
		return
	}

	clearAuthCookies(c)
	respond(c, http.StatusOK, nil, "user logged out")
}

// HandleRefresh rotates the refresh token. The incoming token must match the
// single stored value; a superseded token is rejected exactly like a forged
// one.
func (a *App) HandleRefresh(c *gin.Context) {
	incoming := refreshTokenFromRequest(c)
	if incoming == "" {
		writeError(c, http.StatusUnauthorized, "missing_refresh_token", nil)
		return
	}

	claims, err := a.tokens.ParseRefreshToken(c.Request.Context(), incoming)
	if err != nil {
		writeError(c, http.StatusUnauthorized, refreshErrCode(err), nil)
		return
	}

	user, err := a.db.GetUserByID(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			writeError(c, http.StatusUnauthorized, "invalid_token", nil)
			return
		}
		a.toSentry(c, "refresh", "db", sentry.LevelError, err)
		writeError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	if user.RefreshToken == nil || *user.RefreshToken != incoming {
		writeError(c, http.StatusUnauthorized, "invalid_token", nil)
		return
	}

	accessToken, accessExpiry, err := a.tokens.IssueAccessToken(user)
	if err != nil {
		a.toSentry(c, "refresh", "jwt_generate", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_generate_tokens_error", nil)
		return
	}

	refreshToken, refreshExpiry, err := a.tokens.IssueRefreshToken(user)
	if err != nil {
		a.toSentry(c, "refresh", "jwt_generate", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_generate_tokens_error", nil)
		return
	}

	// Compare-and-swap against the stored value: a concurrent refresh that
	// already rotated the token makes this fail, and the loser gets a 401.
	if err := a.db.RotateRefreshToken(c.Request.Context(), user.ID, incoming, refreshToken); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			writeError(c, http.StatusUnauthorized, "invalid_token", nil)
			return
		}
		a.toSentry(c, "refresh", "db_token", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_generate_tokens_error", nil)
		return
	}

	setAuthCookies(c, accessToken, accessExpiry, refreshToken, refreshExpiry)
	respond(c, http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}, "access token refreshed")
}

// HandleForgotPassword issues a reset token for the account behind the email.
// Delivery is external; the token is surfaced only via a cookie.
func (a *App) HandleForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		writeError(c, http.StatusBadRequest, "email_required", nil)
		return
	}

	user, err := a.db.GetUserByIdentity(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			writeError(c, http.StatusNotFound, "user_not_found", nil)
			return
		}
		a.toSentry(c, "forgot_password", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_create_reset_token_error", nil)
		return
	}

	resetToken, resetExpiry, err := a.tokens.IssueResetToken(user)
	if err != nil {
		a.toSentry(c, "forgot_password", "jwt", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_create_reset_token_error", nil)
		return
	}

	// TODO: deliver the token out of band instead of a cookie once an email
	// provider is wired up.
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie("reset_token", resetToken, secondsUntil(resetExpiry), "/", "", true, true)

	respond(c, http.StatusOK, nil, "password reset token issued")
}

// HandleResetPassword sets a new password for the user a valid reset token
// refers to.
func (a *App) HandleResetPassword(c *gin.Context) {
	resetToken := c.Param("token")

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	if req.NewPassword == "" {
		writeError(c, http.StatusBadRequest, "password_required", nil)
		return
	}

	claims, err := a.tokens.ParseResetToken(c.Request.Context(), resetToken)
	if err != nil {
		writeError(c, http.StatusUnauthorized, refreshErrCode(err), nil)
		return
	}

	user, err := a.db.GetUserByID(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			writeError(c, http.StatusUnauthorized, "invalid_token", nil)
			return
		}
		a.toSentry(c, "reset_password", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_reset_password_error", nil)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		a.toSentry(c, "reset_password", "bcrypt", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_hash_error", nil)
		return
	}

	if err := a.db.UpdateUserPassword(c.Request.Context(), user.ID, hashedPassword); err != nil {
		a.toSentry(c, "reset_password", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_reset_password_error", nil)
		return
	}

	respond(c, http.StatusOK, nil, "password has been reset successfully")
}

// ---------------------------------------------
// Helpers
// ---------------------------------------------

// issueAndStoreTokens mints a token pair, persists the refresh token as the
// sole valid one (the rotation point) and sets the auth cookies.
func (a *App) issueAndStoreTokens(c *gin.Context, user models.User) (string, string, error) {
	accessToken, accessExpiry, err := a.tokens.IssueAccessToken(user)
	if err != nil {
		a.toSentry(c, "login", "jwt_generate", sentry.LevelError, err)
		return "", "", err
	}

	refreshToken, refreshExpiry, err := a.tokens.IssueRefreshToken(user)
	if err != nil {
		a.toSentry(c, "login", "jwt_generate", sentry.LevelError, err)
		return "", "", err
	}

	if err := a.db.SetRefreshToken(c.Request.Context(), user.ID, refreshToken); err != nil {
		a.toSentry(c, "login", "db_token", sentry.LevelError, err)
		return "", "", err
	}

	setAuthCookies(c, accessToken, accessExpiry, refreshToken, refreshExpiry)
	return accessToken, refreshToken, nil
}

func (a *App) storeUpload(c *gin.Context, fileHeader *multipart.FileHeader) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	return a.media.Store(c.Request.Context(), file, contentType)
}

func refreshTokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie("refresh_token"); err == nil && cookie != "" {
		return cookie
	}

	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return ""
	}

	return strings.TrimSpace(req.RefreshToken)
}

func refreshErrCode(err error) string {
	switch {
	case errors.Is(err, tokens.ErrExpiredToken):
		return "expired_token"
	case errors.Is(err, tokens.ErrInvalidToken), errors.Is(err, tokens.ErrInvalidClaims):
		return "invalid_token"
	case errors.Is(err, tokens.ErrTokenNotFound):
		return "missing_token"
	default:
		return "unauthorized"
	}
}

func validateRegisterInput(fullName, username, email, password string) map[string]string {
	validationErrors := make(map[string]string)

	if fullName == "" {
		validationErrors["full_name"] = "full_name_required"
	}
	if username == "" {
		validationErrors["username"] = "username_required"
	}
	if email == "" {
		validationErrors["email"] = "email_required"
	}
	if password == "" {
		validationErrors["password"] = "password_required"
	}

	if len(validationErrors) == 0 {
		return nil
	}

	return validationErrors
}

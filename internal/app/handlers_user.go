package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/middleware"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/models"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/sqldb"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/services/sentry"
)

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type UpdateAccountRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// HandleCurrentUser returns the authenticated user attached by the
// middleware.
func (a *App) HandleCurrentUser(c *gin.Context) {
	user, err := middleware.GetUser(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	respond(c, http.StatusOK, user, "current user fetched")
}

// HandleChangePassword verifies the old password and persists the hash of the
// new one. Only the password column is written.
func (a *App) HandleChangePassword(c *gin.Context) {
	authUser, err := middleware.GetUser(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(c, http.StatusBadRequest, "missing_required_fields", nil)
		return
	}

	// The context user is sanitized, so fetch the stored hash.
	user, err := a.db.GetUserByID(c.Request.Context(), authUser.ID)
	if err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			writeError(c, http.StatusUnauthorized, "user_not_found", nil)
			return
		}
		a.toSentry(c, "change_password", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_update_password_error", nil)
		return
	}

	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(req.OldPassword)); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_password", nil)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		a.toSentry(c, "change_password", "bcrypt", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_hash_error", nil)
		return
	}

	if err := a.db.UpdateUserPassword(c.Request.Context(), user.ID, hashedPassword); err != nil {
		a.toSentry(c, "change_password", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_update_password_error", nil)
		return
	}

	respond(c, http.StatusOK, nil, "password changed successfully")
}

// HandleUpdateAccount updates the mutable profile fields. Both fields are
// required.
func (a *App) HandleUpdateAccount(c *gin.Context) {
	authUser, err := middleware.GetUser(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	fullName := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if fullName == "" || email == "" {
		writeError(c, http.StatusBadRequest, "all_fields_required", nil)
		return
	}

	if _, err := mail.ParseAddress(email); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_email_format", nil)
		return
	}

	user, err := a.db.UpdateUserDetails(c.Request.Context(), authUser.ID, fullName, email)
	if err != nil {
		if errors.Is(err, sqldb.ErrDBDuplicatedEntry) {
			writeError(c, http.StatusConflict, "email_already_in_use", nil)
			return
		}
		if errors.Is(err, sqldb.ErrDBNotFound) {
			writeError(c, http.StatusUnauthorized, "user_not_found", nil)
			return
		}
		a.toSentry(c, "update_account", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_update_account_error", nil)
		return
	}

	respond(c, http.StatusOK, user.Sanitize(), "account details updated successfully")
}

// HandleUpdateAvatar uploads the replacement avatar, commits the new
// reference, and only then deletes the previous object. A failed deletion is
// reported but never rolls back the committed change.
func (a *App) HandleUpdateAvatar(c *gin.Context) {
	a.handleMediaUpdate(c, mediaUpdate{
		handler:    "update_avatar",
		formField:  "avatar",
		missing:    "avatar_required",
		uploadFail: "avatar_upload_failed",
		update:     a.db.UpdateUserAvatar,
		previous: func(u models.User) string {
			return u.AvatarURL
		},
		message: "avatar updated successfully",
	})
}

// HandleUpdateCoverImage mirrors the avatar flow for the optional cover
// image.
func (a *App) HandleUpdateCoverImage(c *gin.Context) {
	a.handleMediaUpdate(c, mediaUpdate{
		handler:    "update_cover_image",
		formField:  "cover_image",
		missing:    "cover_image_required",
		uploadFail: "cover_image_upload_failed",
		update:     a.db.UpdateUserCoverImage,
		previous: func(u models.User) string {
			return u.CoverImageURL
		},
		message: "cover image updated successfully",
	})
}

// mediaUpdate describes one media-replacement flow: which form field carries
// the upload, which store column to update, and where the previous object
// reference lives.
type mediaUpdate struct {
	handler    string
	formField  string
	missing    string
	uploadFail string
	message    string
	update     func(ctx context.Context, userID, url string) (models.User, error)
	previous   func(models.User) string
}

// handleMediaUpdate uploads the replacement, persists the new reference, and
// then deletes the old object. Delete-after-persist means a failed upload
// never leaves the user without media, at the cost of leaking the old object
// if the deletion fails; that failure is reported, never rolled back.
func (a *App) handleMediaUpdate(c *gin.Context, op mediaUpdate) {
	authUser, err := middleware.GetUser(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	fileHeader, err := c.FormFile(op.formField)
	if err != nil {
		writeError(c, http.StatusBadRequest, op.missing, nil)
		return
	}

	newURL, err := a.storeUpload(c, fileHeader)
	if err != nil {
		a.toSentry(c, op.handler, "media_upload", sentry.LevelError, err)
		writeError(c, http.StatusBadRequest, op.uploadFail, nil)
		return
	}

	previousURL := op.previous(authUser)

	user, err := op.update(c.Request.Context(), authUser.ID, newURL)
	if err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			writeError(c, http.StatusUnauthorized, "user_not_found", nil)
			return
		}
		a.toSentry(c, op.handler, "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_media_update_error", nil)
		return
	}

	if previousURL != "" {
		if err := a.media.Delete(c.Request.Context(), previousURL); err != nil {
			slog.Warn("deleting previous media object", "url", previousURL, "error", err)
			a.toSentry(c, op.handler, "media_delete", sentry.LevelWarning, err)
		}
	}

	respond(c, http.StatusOK, user.Sanitize(), op.message)
}

// HandleWatchHistory is a reporting view over the watched-videos log.
func (a *App) HandleWatchHistory(c *gin.Context) {
	user, err := middleware.GetUser(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	entries, err := a.db.GetWatchHistory(c.Request.Context(), user.ID)
	if err != nil {
		a.toSentry(c, "watch_history", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_watch_history_error", nil)
		return
	}

	respond(c, http.StatusOK, entries, "watch history fetched")
}

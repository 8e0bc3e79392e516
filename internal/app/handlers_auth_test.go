package app

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerFields() map[string]string {
	return map[string]string{
		"full_name": "Alice Example",
		"username":  "Alice",
		"email":     "A@x.com",
		"password":  "p1",
	}
}

func avatarOnly() map[string][]byte {
	return map[string][]byte{"avatar": []byte("fake-png-bytes")}
}

func TestRegisterSuccess(t *testing.T) {
	env := newTestEnv(t)

	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register", registerFields(), avatarOnly())
	rec, resp := doRequest(t, env.router, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)

	var created struct {
		ID        string `json:"id"`
		Username  string `json:"username"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "alice", created.Username, "username must be stored lowercased")
	assert.Equal(t, "a@x.com", created.Email, "email must be stored lowercased")
	assert.NotEmpty(t, created.AvatarURL)

	body := rec.Body.String()
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "refresh_token")
}

func TestRegisterBlankFieldRejected(t *testing.T) {
	env := newTestEnv(t)

	fields := registerFields()
	fields["full_name"] = "   "
	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register", fields, avatarOnly())
	rec, resp := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_required_fields", resp.Error)
}

func TestRegisterDuplicateIdentityRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "a@x.com", "p1")

	// Same username, different email.
	fields := registerFields()
	fields["email"] = "other@x.com"
	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register", fields, avatarOnly())
	rec, resp := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user_already_exists", resp.Error)

	// Same email, different username.
	fields = registerFields()
	fields["username"] = "bob"
	req = multipartRequest(t, http.MethodPost, "/api/v1/users/register", fields, avatarOnly())
	rec, resp = doRequest(t, env.router, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user_already_exists", resp.Error)
}

func TestRegisterMissingAvatarRejected(t *testing.T) {
	env := newTestEnv(t)

	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register", registerFields(), nil)
	rec, resp := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "avatar_required", resp.Error)
}

func TestRegisterAvatarUploadFailureRejected(t *testing.T) {
	env := newTestEnv(t)
	env.media.failUpload = true

	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register", registerFields(), avatarOnly())
	rec, resp := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "avatar_upload_failed", resp.Error)
}

func TestRegisterWithCoverImage(t *testing.T) {
	env := newTestEnv(t)

	files := avatarOnly()
	files["cover_image"] = []byte("fake-cover-bytes")
	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register", registerFields(), files)
	rec, resp := doRequest(t, env.router, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		CoverImageURL string `json:"cover_image_url"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.NotEmpty(t, created.CoverImageURL)
}

func TestLoginSuccessSetsCookiesAndRotatesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice", "a@x.com", "p1")

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
		"password": "p1",
	})
	rec, resp := doRequest(t, env.router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	accessCookie := cookieValue(t, rec, "access_token")
	refreshCookie := cookieValue(t, rec, "refresh_token")
	assert.NotEmpty(t, accessCookie)
	assert.NotEmpty(t, refreshCookie)

	stored := env.db.storedRefreshToken(t, user.ID)
	require.NotNil(t, stored)
	assert.Equal(t, refreshCookie, *stored)

	body := rec.Body.String()
	assert.NotContains(t, body, `"password"`)
}

func TestLoginByEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "a@x.com", "p1")

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"email":    "A@x.com",
		"password": "p1",
	})
	rec, _ := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginUnknownIdentity(t *testing.T) {
	env := newTestEnv(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "nobody",
		"password": "p1",
	})
	rec, resp := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user_not_found", resp.Error)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "a@x.com", "p1")

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	rec, resp := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", resp.Error)
}

func (e *testEnv) login(t *testing.T, username, password string) (access, refresh string) {
	t.Helper()

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": username,
		"password": password,
	})
	rec, _ := doRequest(t, e.router, req)
	require.Equal(t, http.StatusOK, rec.Code)

	return cookieValue(t, rec, "access_token"), cookieValue(t, rec, "refresh_token")
}

func (e *testEnv) refresh(t *testing.T, refreshToken string) (*http.Response, envelope, string) {
	t.Helper()

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{
		"refresh_token": refreshToken,
	})
	rec, resp := doRequest(t, e.router, req)
	return rec.Result(), resp, cookieValue(t, rec, "refresh_token")
}

func TestRefreshRotationInvalidatesPriorToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "a@x.com", "p1")

	_, refresh1 := env.login(t, "alice", "p1")

	res, _, refresh2 := env.refresh(t, refresh1)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, refresh2)
	assert.NotEqual(t, refresh1, refresh2)

	// Replaying the superseded token must fail exactly like a forged one.
	res, resp, _ := env.refresh(t, refresh1)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_token", resp.Error)

	// The rotated token still works.
	res, _, _ = env.refresh(t, refresh2)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRefreshViaCookie(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "a@x.com", "p1")
	_, refresh1 := env.login(t, "alice", "p1")

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{})
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh1})
	rec, _ := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshMissingToken(t *testing.T) {
	env := newTestEnv(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{})
	rec, resp := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_refresh_token", resp.Error)
}

func TestRefreshGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	res, resp, _ := env.refresh(t, "garbage.token.value")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_token", resp.Error)
}

func TestLogoutClearsRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice", "a@x.com", "p1")
	access, refresh1 := env.login(t, "alice", "p1")

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: access})
	rec, _ := doRequest(t, env.router, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Nil(t, env.db.storedRefreshToken(t, user.ID))

	// The last-issued refresh token is now rejected.
	res, resp, _ := env.refresh(t, refresh1)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_token", resp.Error)

	// Logout is idempotent for an authenticated caller.
	req = jsonRequest(t, http.MethodPost, "/api/v1/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: access})
	rec, _ = doRequest(t, env.router, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestForgotPasswordIssuesResetCookie(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "a@x.com", "p1")

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/forgot-password", map[string]string{
		"email": "a@x.com",
	})
	rec, resp := doRequest(t, env.router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	resetCookie := cookieValue(t, rec, "reset_token")
	require.NotEmpty(t, resetCookie)

	// The token must never appear in the JSON body.
	assert.False(t, strings.Contains(rec.Body.String(), resetCookie))
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/forgot-password", map[string]string{
		"email": "nobody@x.com",
	})
	rec, resp := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user_not_found", resp.Error)
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice", "a@x.com", "p1")

	resetToken, _, err := env.tokens.IssueResetToken(user)
	require.NoError(t, err)

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/reset-password/"+resetToken, map[string]string{
		"new_password": "p2",
	})
	rec, _ := doRequest(t, env.router, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// New password works, old one does not.
	env.login(t, "alice", "p2")

	loginReq := jsonRequest(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
		"password": "p1",
	})
	loginRec, _ := doRequest(t, env.router, loginReq)
	assert.Equal(t, http.StatusUnauthorized, loginRec.Code)
}

func TestResetPasswordInvalidToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "a@x.com", "p1")

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/reset-password/garbage", map[string]string{
		"new_password": "p2",
	})
	rec, resp := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", resp.Error)
}

func TestResetPasswordWrongKindOfToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice", "a@x.com", "p1")

	// An access token must not authorize a password reset.
	accessToken := env.accessTokenFor(t, user)
	req := jsonRequest(t, http.MethodPost, "/api/v1/users/reset-password/"+accessToken, map[string]string{
		"new_password": "p2",
	})
	rec, _ := doRequest(t, env.router, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

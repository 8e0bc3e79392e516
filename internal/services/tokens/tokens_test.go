package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/config"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/models"
)

func testConfig() config.Tokens {
	return config.Tokens{
		Issuer:        "videotube-test",
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		ResetSecret:   "reset-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    30 * 24 * time.Hour,
		ResetTTL:      time.Hour,
	}
}

func testUser() models.User {
	return models.User{
		ID:       "7bb1f1f0-3b5a-4a21-9c5e-0c8f6f3a9d11",
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Example",
	}
}

func TestAccessTokenRoundtrip(t *testing.T) {
	svc := NewTokenService(testConfig())
	user := testUser()

	token, expiresAt, err := svc.IssueAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ParseAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, user.Username, claims.Username)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, user.FullName, claims.FullName)
}

func TestRefreshTokenCarriesOnlySubject(t *testing.T) {
	svc := NewTokenService(testConfig())

	token, _, err := svc.IssueRefreshToken(testUser())
	require.NoError(t, err)

	claims, err := svc.ParseRefreshToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, testUser().ID, claims.Subject)
	assert.Empty(t, claims.Username)
	assert.Empty(t, claims.Email)
	assert.Empty(t, claims.FullName)
}

func TestResetTokenRoundtrip(t *testing.T) {
	svc := NewTokenService(testConfig())

	token, _, err := svc.IssueResetToken(testUser())
	require.NoError(t, err)

	claims, err := svc.ParseResetToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, testUser().ID, claims.Subject)
}

func TestCrossKindVerificationFails(t *testing.T) {
	svc := NewTokenService(testConfig())
	user := testUser()

	accessToken, _, err := svc.IssueAccessToken(user)
	require.NoError(t, err)
	refreshToken, _, err := svc.IssueRefreshToken(user)
	require.NoError(t, err)
	resetToken, _, err := svc.IssueResetToken(user)
	require.NoError(t, err)

	_, err = svc.ParseRefreshToken(context.Background(), accessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ParseAccessToken(context.Background(), refreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ParseAccessToken(context.Background(), resetToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTTL = -time.Minute
	svc := NewTokenService(cfg)

	token, _, err := svc.IssueAccessToken(testUser())
	require.NoError(t, err)

	_, err = svc.ParseAccessToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestMalformedAndMissingTokens(t *testing.T) {
	svc := NewTokenService(testConfig())

	_, err := svc.ParseAccessToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = svc.ParseAccessToken(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuerMismatchRejected(t *testing.T) {
	issuing := NewTokenService(testConfig())

	verifyingCfg := testConfig()
	verifyingCfg.Issuer = "someone-else"
	verifying := NewTokenService(verifyingCfg)

	token, _, err := issuing.IssueAccessToken(testUser())
	require.NoError(t, err)

	_, err = verifying.ParseAccessToken(context.Background(), token)
	assert.Error(t, err)
}

// Package tokens issues and verifies the signed access, refresh and reset
// tokens. Each kind is signed with its own secret and lifetime so that a
// compromised reset secret cannot forge access or refresh tokens.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/config"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/models"
)

var (
	ErrInvalidToken     = errors.New("invalid_token")
	ErrExpiredToken     = errors.New("expired_token")
	ErrTokenNotFound    = errors.New("token_not_found")
	ErrInvalidClaims    = errors.New("invalid_claims")
	ErrTokenNotYetValid = errors.New("token_not_yet_valid")
)

// Claims carries the signed token payload. Access tokens populate the profile
// fields; refresh and reset tokens carry only the registered subject.
type Claims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

type TokenService struct {
	cfg config.Tokens
}

func NewTokenService(cfg config.Tokens) *TokenService {
	return &TokenService{cfg: cfg}
}

// IssueAccessToken signs a short-lived token carrying the user's identity
// claims. Access tokens are verified statelessly, never against the store.
func (s *TokenService) IssueAccessToken(user models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	claims := Claims{
		Username:         user.Username,
		Email:            user.Email,
		FullName:         user.FullName,
		RegisteredClaims: s.registered(user.ID, expiresAt),
	}
	return s.sign(claims, s.cfg.AccessSecret, expiresAt)
}

// IssueRefreshToken signs a longer-lived token carrying only the user id. The
// value is only honored while it matches the one stored on the user row.
func (s *TokenService) IssueRefreshToken(user models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.cfg.RefreshTTL)
	claims := Claims{RegisteredClaims: s.registered(user.ID, expiresAt)}
	return s.sign(claims, s.cfg.RefreshSecret, expiresAt)
}

// IssueResetToken signs a medium-lived single-purpose token authorizing a
// password reset for the subject user.
func (s *TokenService) IssueResetToken(user models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.cfg.ResetTTL)
	claims := Claims{RegisteredClaims: s.registered(user.ID, expiresAt)}
	return s.sign(claims, s.cfg.ResetSecret, expiresAt)
}

func (s *TokenService) ParseAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.cfg.AccessSecret)
}

func (s *TokenService) ParseRefreshToken(ctx context.Context, tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.cfg.RefreshSecret)
}

func (s *TokenService) ParseResetToken(ctx context.Context, tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.cfg.ResetSecret)
}

func (s *TokenService) registered(subject string, expiresAt time.Time) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (s *TokenService) sign(claims Claims, secret string, expiresAt time.Time) (string, time.Time, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *TokenService) parse(tokenString, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenNotFound
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithIssuer(s.cfg.Issuer),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrInvalidToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidToken
		case errors.Is(err, jwt.ErrTokenInvalidClaims):
			return nil, ErrInvalidClaims
		default:
			return nil, ErrInvalidToken
		}
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

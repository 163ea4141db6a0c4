package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"gpodo/config"
	"gpodo/models"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrWrongTokenType    = errors.New("wrong token type")
	ErrStaleTokenVersion = errors.New("token has been revoked")
)

type Claims struct {
	UserID       uint   `json:"user_id"`
	TokenVersion int    `json:"token_version"`
	SessionID    string `json:"session_id"`
	TokenType    string `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateJWTToken issues an access/refresh pair bound to a fresh
// session id.
func GenerateJWTToken(user *models.User) (string, string, string, error) {
	sessionID := uuid.NewString()

	accessToken, err := signToken(user, sessionID, tokenTypeAccess, AccessTokenTTL)
	if err != nil {
		return "", "", "", err
	}
	refreshToken, err := signToken(user, sessionID, tokenTypeRefresh, RefreshTokenTTL)
	if err != nil {
		return "", "", "", err
	}
	return accessToken, refreshToken, sessionID, nil
}

func signToken(user *models.User, sessionID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:       user.ID,
		TokenVersion: user.TokenVersion,
		SessionID:    sessionID,
		TokenType:    tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

func ParseJWTToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// ParseAccessToken rejects refresh tokens presented as bearer tokens.
func ParseAccessToken(tokenString string) (*Claims, error) {
	claims, err := ParseJWTToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// RefreshTokens swaps a valid refresh token for a new pair. Tokens minted
// before the last sign-out are rejected.
func RefreshTokens(db *gorm.DB, refreshToken string) (string, string, string, error) {
	claims, err := ParseJWTToken(refreshToken)
	if err != nil {
		return "", "", "", err
	}
	if claims.TokenType != tokenTypeRefresh {
		return "", "", "", ErrWrongTokenType
	}

	var user models.User
	if err := db.First(&user, claims.UserID).Error; err != nil {
		return "", "", "", errors.New("user not found")
	}
	if user.TokenVersion != claims.TokenVersion {
		return "", "", "", ErrStaleTokenVersion
	}

	return GenerateJWTToken(&user)
}

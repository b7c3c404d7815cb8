// Package auth implements password hashing and JWT token issuance.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/roofdocs/nexus/internal/config"
)

const (
	// DefaultBcryptCost is the cost for bcrypt hashing.
	DefaultBcryptCost = 12

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// TokenPair is what login, register and refresh hand back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims are the validated contents of a parsed token.
type Claims struct {
	UserID    string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether a password matches its bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateTokenPair issues a fresh access+refresh token pair for a user.
func GenerateTokenPair(cfg *config.Config, userID string) (*TokenPair, error) {
	access, err := signToken(cfg, userID, TokenTypeAccess, cfg.Auth.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := signToken(cfg, userID, TokenTypeRefresh, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(cfg.Auth.AccessTokenTTL.Seconds()),
	}, nil
}

func signToken(cfg *config.Config, userID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
		"type": tokenType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Auth.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token's signature, expiry and type claim.
func ParseToken(cfg *config.Config, tokenString, wantType string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Auth.JWTSecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	tokenType, _ := mapClaims["type"].(string)
	if tokenType != wantType {
		return nil, ErrWrongTokenType
	}

	c := &Claims{UserID: sub, TokenType: tokenType}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// roleRank orders roles from least to most privileged.
var roleRank = map[string]int{
	"rep":           0,
	"team_leader":   1,
	"sales_manager": 2,
	"manager":       3,
	"admin":         4,
}

// RoleAtLeast reports whether role meets the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	r, ok := roleRank[role]
	if !ok {
		return false
	}
	m, ok := roleRank[minimum]
	if !ok {
		return false
	}
	return r >= m
}

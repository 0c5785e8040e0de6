package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/simulado/internal/config"
	"github.com/stemsi/simulado/internal/model"
)

// Common auth errors.
var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims extends JWT standard claims with the student identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// AuthService issues and validates the student bearer tokens shared with the
// remote API.
type AuthService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{secret: []byte(cfg.JWTSecret), expiry: cfg.JWTExpiry, now: time.Now}
}

// GenerateToken signs an HS256 token for the student.
func (s *AuthService) GenerateToken(userID int, username string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		UserID:   userID,
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Principal validates tokenStr and returns the explicit auth context that is
// handed to the gateway.
func (s *AuthService) Principal(tokenStr string) (model.Principal, error) {
	claims, err := s.ValidateToken(tokenStr)
	if err != nil {
		return model.Principal{}, err
	}
	return claims.Principal(tokenStr), nil
}

// Principal pairs the claims with the raw token they came from.
func (c *Claims) Principal(token string) model.Principal {
	return model.Principal{UserID: c.UserID, Username: c.Username, Token: token}
}

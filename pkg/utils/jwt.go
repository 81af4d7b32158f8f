package utils

import (
	"fmt"
	"time"

	"github.com/civicdocs/backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	jwtSecret          = []byte("change-me-in-production")
	jwtExpirationHours = 168
	jwtRefreshDays     = 30
)

type Claims struct {
	UserID uuid.UUID       `json:"userID"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	// Type is "refresh" on refresh tokens and empty on access tokens.
	Type string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

func ConfigureJWT(secret string, expirationHours, refreshDays int) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if expirationHours > 0 {
		jwtExpirationHours = expirationHours
	}
	if refreshDays > 0 {
		jwtRefreshDays = refreshDays
	}
}

func GenerateToken(user *models.User) (string, error) {
	return signToken(user, "", time.Duration(jwtExpirationHours)*time.Hour)
}

// GenerateRefreshToken issues a longer-lived token carrying type=refresh.
func GenerateRefreshToken(user *models.User) (string, error) {
	return signToken(user, "refresh", time.Duration(jwtRefreshDays)*24*time.Hour)
}

func signToken(user *models.User, tokenType string, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

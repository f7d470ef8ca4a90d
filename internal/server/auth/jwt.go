// Package auth issues and verifies the signed session cookies.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/booklend/internal/common"
)

// Claims carries the registered claims plus the account and server-side
// session the token was issued for.
type Claims struct {
	jwt.RegisteredClaims
	UserID       int64  `json:"uid"`
	Role         string `json:"role"`
	SessionToken string `json:"sid"`
}

func GenerateToken(userID int64, role, sessionToken string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID:       userID,
		Role:         role,
		SessionToken: sessionToken,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies signature and expiry. An expired token yields
// common.ErrSessionExpired, any other failure common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrSessionExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == 0 || claims.SessionToken == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

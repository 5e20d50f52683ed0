// Package auth issues and verifies the HS256 session tokens that identify the
// authenticated account.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the account id.
type Claims struct {
	jwt.RegisteredClaims
	AccountID int64 `json:"account_id"`
}

// GenerateToken signs a token for accountID that expires after validity.
func GenerateToken(accountID int64, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		AccountID: accountID,
	})

	return token.SignedString(secretKey)
}

// AccountIDFromToken verifies tokenString and returns the account id it
// carries. Expired tokens yield common.ErrTokenExpired, every other failure
// common.ErrInvalidToken.
func AccountIDFromToken(tokenString string, secretKey []byte) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, common.ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.AccountID <= 0 {
		return 0, common.ErrInvalidToken
	}

	return claims.AccountID, nil
}

package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/claims"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/user"
	"github.com/golang-jwt/jwt/v4"
)

// BuildString creates a JWT string for the given user and token expiration time.
// Tokens are normally issued by the authentication service sharing the secret.
func BuildString(u user.User, secret string, tokenExp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims.Auth{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExp)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: u.ID,
		Admin:  u.Admin,
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Bearer %s", tokenString), nil
}

// GetUser extracts the user from a JWT token.
func GetUser(tokenString, secret string) (*user.User, error) {
	if secret == "" {
		return nil, errors.New("empty signing key")
	}

	claims := new(claims.Auth)

	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			// Verify that the token method is HS256
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf(
					"unexpected signing method: %v", token.Header["alg"],
				)
			}

			return []byte(secret), nil
		})
	if err != nil {
		return nil, fmt.Errorf("error parsing token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return &user.User{ID: claims.UserID, Admin: claims.Admin}, nil
}

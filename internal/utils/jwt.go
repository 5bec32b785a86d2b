package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LinkClaims is carried by a signed tracking link. It binds the bearer to one
// trip token and one role.
type LinkClaims struct {
	TripToken string `json:"trip_token"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

func GenerateLinkToken(tripToken, role, secretKey string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	now := time.Now()

	claims := &LinkClaims{
		TripToken: tripToken,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    AppName,
			Subject:   tripToken,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}

func ValidateLinkToken(tokenString, secretKey string) (*LinkClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &LinkClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*LinkClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New(ErrInvalidToken)
}

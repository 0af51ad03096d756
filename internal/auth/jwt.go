package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var JWTSecret []byte

// TokenTTL bounds the lifetime of tokens minted by GenerateToken.
var TokenTTL = 24 * time.Hour

// SetSecret sets the JWT secret key (e.g., from config)
func SetSecret(secret string) {
	JWTSecret = []byte(secret)
}

// Claims carries the principal in the standard subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

func (c *Claims) Principal() string {
	return c.Subject
}

// GenerateToken creates a signed JWT for the given principal
func GenerateToken(principal string) (string, error) {
	if len(JWTSecret) == 0 {
		return "", errors.New("JWT secret not set")
	}
	if principal == "" {
		return "", errors.New("empty principal")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(JWTSecret)
}

// ValidateToken parses and verifies a JWT string
func ValidateToken(tokenStr string) (*Claims, error) {
	if len(JWTSecret) == 0 {
		return nil, errors.New("JWT secret not set")
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Principal() == "" {
		return nil, errors.New("invalid claims")
	}

	return claims, nil
}

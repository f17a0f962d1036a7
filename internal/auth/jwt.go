package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity carries the claims the external identity provider signs for
// a user. The engine never issues long-lived user tokens itself, it
// only verifies them.
type Identity struct {
	UserID string
	Name   string
	Email  string
}

// GenerateToken signs an identity token, used by tests and tooling to
// stand in for the provider.
func GenerateToken(secret []byte, identity Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   identity.UserID,
		"name":  identity.Name,
		"email": identity.Email,
		"exp":   time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyToken parses and validates a provider token, returning the
// identity it asserts.
func VerifyToken(secret []byte, tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("token missing subject")
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)

	return &Identity{UserID: sub, Name: name, Email: email}, nil
}

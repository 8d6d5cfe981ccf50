package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenManager issues and resolves the signed bearer credentials carried
// in the Authorization header. Claims: sub (email), role, exp.
type TokenManager struct {
	secret   []byte
	method   jwt.SigningMethod
	tokenTTL time.Duration
}

// Claims resolved from a valid token.
type Claims struct {
	Email string
	Role  string
}

var ErrInvalidToken = fmt.Errorf("invalid or expired token")

func NewTokenManager(secret, algorithm string, ttlMinutes int) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing algorithm %q is not an HMAC method", algorithm)
	}

	return &TokenManager{
		secret:   []byte(secret),
		method:   method,
		tokenTTL: time.Duration(ttlMinutes) * time.Minute,
	}, nil
}

// Issue creates a signed token for the given subject email and role.
func (tm *TokenManager) Issue(email, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(tm.method, jwt.MapClaims{
		"sub":  email,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(tm.tokenTTL).Unix(),
	})

	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Resolve validates the token signature and expiry and extracts the
// subject email and role. The signing method must match the configured
// one; tokens signed with anything else are rejected.
func (tm *TokenManager) Resolve(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != tm.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	email, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if email == "" || role == "" {
		return nil, ErrInvalidToken
	}

	return &Claims{Email: email, Role: role}, nil
}

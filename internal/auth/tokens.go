package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer mints and verifies session tokens. A token is returned with
// every successful password login; clients present it on reconnect instead
// of re-sending credentials.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// sessionClaims are the JWT claims carried by a session token.
type sessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewTokenIssuer creates a TokenIssuer with the given HMAC secret and
// token lifetime.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue creates a signed session token for the user.
func (t *TokenIssuer) Issue(userID int64, username string) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    "homehub",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Verify validates a session token and returns the user id and username it
// was issued for. Returns ErrTokenExpired or ErrTokenInvalid on failure.
func (t *TokenIssuer) Verify(tokenString string) (int64, string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, "", ErrTokenExpired
		}
		return 0, "", ErrTokenInvalid
	}
	if !token.Valid {
		return 0, "", ErrTokenInvalid
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, "", ErrTokenInvalid
	}

	return userID, claims.Username, nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTypeAccess = "access"

var ErrInvalidToken = errors.New("invalid token")

// Claims are the access-token claims. Subject is the user id.
type Claims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email,omitempty"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

func (ti *TokenIssuer) TTL() time.Duration { return ti.ttl }

// Issue returns a signed access token for the session and its expiry.
func (ti *TokenIssuer) Issue(userID, sessionID, email string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ti.ttl)
	claims := Claims{
		SessionID: sessionID,
		Email:     email,
		Type:      tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies an access token and returns the caller it identifies.
// Every failure is reported as ErrInvalidToken.
func (ti *TokenIssuer) Parse(tokenString string) (AuthContext, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return ti.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return AuthContext{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != tokenTypeAccess || claims.Subject == "" || claims.SessionID == "" {
		return AuthContext{}, ErrInvalidToken
	}
	return AuthContext{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Email:     claims.Email,
	}, nil
}

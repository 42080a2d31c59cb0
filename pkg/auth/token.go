package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"turfbook/pkg/model"
)

// ErrInvalidToken covers malformed, expired and bad-signature tokens alike, so
// callers cannot distinguish why verification failed.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified (actor, role) pair extracted from a token.
type Identity struct {
	ActorID string
	Role    model.Role
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and verifies HS256-signed, time-bounded claims binding an
// actor id to its role. The secret is injected at construction, never read from
// ambient state.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (i *TokenIssuer) Issue(actorID string, role model.Role) (string, error) {
	now := time.Now()
	c := claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
}

func (i *TokenIssuer) Verify(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	role := model.Role(c.Role)
	if c.Subject == "" || !role.Valid() {
		return Identity{}, ErrInvalidToken
	}

	return Identity{ActorID: c.Subject, Role: role}, nil
}

// Package auth issues and verifies session tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenValidity is the session lifetime used when none is configured.
const DefaultTokenValidity = 24 * time.Hour

// Claims are the registered claims plus the id of the authenticated user.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Issuer signs and verifies HS256 session tokens with a single secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer for the given secret. A non-positive ttl
// falls back to DefaultTokenValidity. An empty secret is a configuration
// error and yields common.ErrMissingSecret.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, common.ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenValidity
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Sign stamps iat/nbf with the current time and exp with now+ttl, then
// signs the claims. Registered times already present in c are overwritten.
func (i *Issuer) Sign(c Claims) (string, error) {
	now := i.now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.NotBefore = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)

	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// SignUser is a shorthand for Sign(Claims{UserID: userID}).
func (i *Issuer) SignUser(userID string) (string, error) {
	return i.Sign(Claims{UserID: userID})
}

// Verify checks signature, algorithm and validity window and returns the
// claims. Failures map to common.ErrTokenExpired, common.ErrTokenNotYetValid
// or common.ErrInvalidToken.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, common.ErrTokenNotYetValid
	case err != nil:
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

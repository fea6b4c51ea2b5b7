package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/podx/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are carried by the signed session cookie.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CookieCodec signs and verifies session cookie values as HS256 JWTs.
type CookieCodec struct {
	secret []byte
	now    func() time.Time
}

// NewCookieCodec creates a [CookieCodec] keyed with secret.
func NewCookieCodec(secret string) (*CookieCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty session secret", shared.ErrMissingConfig)
	}
	return &CookieCodec{secret: []byte(secret), now: time.Now}, nil
}

// Encode returns a signed token naming sessionID that expires at expires.
func (c *CookieCodec) Encode(sessionID string, expires time.Time) (string, error) {
	claims := &Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(c.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return signed, nil
}

// Decode verifies value and returns the session ID it names.
func (c *CookieCodec) Decode(value string) (string, error) {
	token, err := jwt.ParseWithClaims(value, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Join(shared.ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", fmt.Errorf("%w: missing session id", shared.ErrInvalidSession)
	}
	return claims.SessionID, nil
}

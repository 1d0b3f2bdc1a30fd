package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL bounds a session token's lifetime when configuration does
// not override it.
const DefaultTokenTTL = 24 * time.Hour

// Claims is the state embedded in a session token. Everything else about the
// principal is re-resolved from storage on each request.
type Claims struct {
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and validates signed, time-bounded session tokens.
// The signing secret and TTL are immutable process-wide state loaded at
// startup.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService constructs a TokenService. A non-positive ttl falls back
// to DefaultTokenTTL.
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: secret, ttl: ttl, now: time.Now}
}

// Issue signs a token binding the username with issued-at now and expiry
// now+TTL.
func (ts *TokenService) Issue(username string) (string, error) {
	now := ts.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
	})

	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// Validate verifies the signature and expiry and returns the embedded
// claims. Validity is purely a function of the token, the secret, and the
// current time; storage is never consulted, so a token cannot be revoked
// before it expires.
func (ts *TokenService) Validate(tokenString string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(ts.now))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{Username: claims.Subject}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// TTL exposes the configured token lifetime, used by the login handler to
// align the cookie expiry with the token expiry.
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

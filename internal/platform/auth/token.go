package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Identity is the authenticated principal attached to a guarded request.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Identity extracts the principal carried by the claims.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.Subject, Email: c.Email, Name: c.Name}
}

type JWTConfig struct {
	// SigningKey is the shared HMAC key used to sign and verify tokens.
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
	// Skipper lets public routes through the guard without a token.
	Skipper func(c echo.Context) bool
}

func (cfg JWTConfig) now() time.Time {
	if cfg.Now != nil {
		return cfg.Now()
	}
	return time.Now()
}

// IssueToken signs an HS256 token for id that expires TTL after now.
func IssueToken(cfg JWTConfig, id Identity, now time.Time) (string, time.Time, error) {
	if len(cfg.SigningKey) == 0 {
		return "", time.Time{}, fmt.Errorf("issue token: signing key is empty")
	}
	if cfg.TTL <= 0 {
		return "", time.Time{}, fmt.Errorf("issue token: ttl must be positive, got %s", cfg.TTL)
	}

	expiresAt := now.Add(cfg.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: id.Email,
		Name:  id.Name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken verifies tokenStr against the signing key at instant now. It is
// a pure function of its arguments. The returned error wraps ErrTokenExpired
// or ErrTokenInvalid.
func ParseToken(tokenStr string, cfg JWTConfig, now time.Time) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/curakidney/api/internal/platform/apperr"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "user_email"
	UserNameKey  contextKey = "user_name"
)

// JWTMiddleware guards routes with bearer-token authentication. Requests
// without a valid, unexpired token never reach the handler.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return apperr.Authentication("missing authorization header", nil)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return apperr.Authentication("invalid authorization format", nil)
			}

			claims, err := ParseToken(strings.TrimSpace(parts[1]), cfg, cfg.now())
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					return apperr.Authentication("token expired", err)
				}
				return apperr.Authentication("invalid token", err)
			}

			id := claims.Identity()
			c.Set("user_id", id.UserID)
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))

			return next(c)
		}
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id.UserID)
	ctx = context.WithValue(ctx, UserEmailKey, id.Email)
	ctx = context.WithValue(ctx, UserNameKey, id.Name)
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

// IdentityFromContext returns the identity attached by JWTMiddleware and
// whether one was present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return Identity{}, false
	}
	email, _ := ctx.Value(UserEmailKey).(string)
	name, _ := ctx.Value(UserNameKey).(string)
	return Identity{UserID: uid, Email: email, Name: name}, true
}

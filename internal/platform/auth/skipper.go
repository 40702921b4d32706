package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route patterns under the guarded group that are reachable
// without a bearer token.
var publicPaths = map[string]bool{
	"/api/v1":               true,
	"/api/v1/":              true,
	"/api/v1/auth/register": true,
	"/api/v1/auth/login":    true,
}

// AuthSkipper reports whether the matched route is public. Use it as
// JWTConfig.Skipper.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

package auth

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// DocsBasicAuth protects the API documentation with a single username and
// password pair. Failed attempts receive a WWW-Authenticate challenge.
func DocsBasicAuth(username, password, realm string) echo.MiddlewareFunc {
	return echomw.BasicAuthWithConfig(echomw.BasicAuthConfig{
		Realm: realm,
		Validator: func(u, p string, c echo.Context) (bool, error) {
			userOK := subtle.ConstantTimeCompare([]byte(u), []byte(username)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(p), []byte(password)) == 1
			return userOK && passOK, nil
		},
	})
}

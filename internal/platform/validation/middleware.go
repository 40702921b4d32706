package validation

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/curakidney/api/internal/platform/apperr"
)

// Body returns middleware that validates the JSON request body against
// schema before the handler runs. The body is restored afterwards so the
// handler can Bind it into its DTO.
func Body(schema Schema) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			var raw []byte
			if req.Body != nil {
				var err error
				raw, err = io.ReadAll(req.Body)
				if err != nil {
					return err
				}
				req.Body.Close()
			}

			input := map[string]any{}
			if len(bytes.TrimSpace(raw)) > 0 {
				// A literal null decodes into a nil map.
				if err := json.Unmarshal(raw, &input); err != nil || input == nil {
					return apperr.Validation(apperr.FieldViolation{
						Field:   "body",
						Rule:    "type",
						Message: "request body must be a JSON object",
					})
				}
			}

			if _, err := schema.Validate(input); err != nil {
				return err
			}

			req.Body = io.NopCloser(bytes.NewReader(raw))
			return next(c)
		}
	}
}

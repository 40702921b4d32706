package account

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/curakidney/api/internal/platform/apperr"
	"github.com/curakidney/api/internal/platform/auth"
	"github.com/curakidney/api/internal/platform/openapi"
	"github.com/curakidney/api/internal/platform/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /auth on api. Register and login are listed in the
// guard's skipper; profile requires a token.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/register", h.Register, validation.Body(RegisterSchema))
	g.POST("/login", h.Login, validation.Body(LoginSchema))
	g.GET("/profile", h.Profile)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return bindError()
	}
	u, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return bindError()
	}
	tok, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tok)
}

func (h *Handler) Profile(c echo.Context) error {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return apperr.Authentication("missing authorization header", nil)
	}
	u, err := h.svc.Profile(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func bindError() error {
	return apperr.Validation(apperr.FieldViolation{
		Field: "body", Rule: "type", Message: "request body must be a JSON object",
	})
}

func (h *Handler) Operations() []openapi.Operation {
	const tag = "auth"
	register, login := RegisterSchema, LoginSchema
	return []openapi.Operation{
		{
			Method: http.MethodPost, Path: "/api/v1/auth/register", Tag: tag,
			Summary: "Register a user",
			Body:    &register,
			Responses: []openapi.Response{
				{Status: http.StatusCreated, Description: "The created user", SchemaRef: "User"},
				{Status: http.StatusConflict, Description: "Email already registered", SchemaRef: "Error"},
			},
		},
		{
			Method: http.MethodPost, Path: "/api/v1/auth/login", Tag: tag,
			Summary: "Exchange credentials for a bearer token",
			Body:    &login,
			Responses: []openapi.Response{
				{Status: http.StatusOK, Description: "Access token", SchemaRef: "TokenResponse"},
				{Status: http.StatusUnauthorized, Description: "Invalid email or password", SchemaRef: "Error"},
			},
		},
		{
			Method: http.MethodGet, Path: "/api/v1/auth/profile", Tag: tag, Secured: true,
			Summary: "Get the authenticated user",
			Responses: []openapi.Response{
				{Status: http.StatusOK, Description: "The user", SchemaRef: "User"},
				{Status: http.StatusNotFound, Description: "User no longer exists", SchemaRef: "Error"},
			},
		},
	}
}

func UserSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":         map[string]string{"type": "string", "format": "uuid"},
			"email":      map[string]string{"type": "string", "format": "email"},
			"name":       map[string]string{"type": "string"},
			"created_at": map[string]string{"type": "string", "format": "date-time"},
			"updated_at": map[string]string{"type": "string", "format": "date-time"},
		},
	}
}

func TokenResponseSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"access_token": map[string]string{"type": "string"},
			"token_type":   map[string]string{"type": "string", "example": "Bearer"},
			"expires_in":   map[string]string{"type": "integer"},
			"expires_at":   map[string]string{"type": "string", "format": "date-time"},
		},
	}
}

package notification

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/curakidney/api/internal/platform/apperr"
	"github.com/curakidney/api/internal/platform/openapi"
)

const defaultListLimit = 100

// Handler exposes the delivery history over HTTP.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

// RegisterRoutes registers the notification routes on a guarded group. mw
// runs before each handler.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	g := api.Group("/notifications", mw...)
	g.GET("/stats", h.HandleStats)
	g.GET("/:id", h.HandleGet)
	g.GET("", h.HandleList)
	g.POST("/:id/retry", h.HandleRetry)
}

func (h *Handler) HandleGet(c echo.Context) error {
	n, err := h.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// HandleList handles GET /notifications?recipient=...&limit=...
func (h *Handler) HandleList(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	if recipient == "" {
		return apperr.Validation(apperr.FieldViolation{
			Field: "recipient", Rule: "required", Message: "recipient is required",
		})
	}

	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apperr.Validation(apperr.FieldViolation{
				Field: "limit", Rule: "type", Message: "limit must be a positive integer",
			})
		}
		limit = n
	}

	return c.JSON(http.StatusOK, h.manager.ListByRecipient(c.Request().Context(), recipient, limit))
}

func (h *Handler) HandleRetry(c echo.Context) error {
	n, err := h.manager.Retry(c.Request().Context(), c.Param("id"))
	if err != nil {
		if n != nil {
			return apperr.Unavailable("email delivery failed", err)
		}
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats(c.Request().Context()))
}

// Operations documents the notification routes.
func (h *Handler) Operations() []openapi.Operation {
	const tag = "notifications"
	return []openapi.Operation{
		{
			Method: http.MethodGet, Path: "/api/v1/notifications/stats", Tag: tag, Secured: true,
			Summary:   "Count notifications by delivery status",
			Responses: []openapi.Response{{Status: http.StatusOK, Description: "Counts keyed by status"}},
		},
		{
			Method: http.MethodGet, Path: "/api/v1/notifications/:id", Tag: tag, Secured: true,
			Summary: "Get a notification",
			Responses: []openapi.Response{
				{Status: http.StatusOK, Description: "The notification", SchemaRef: "Notification"},
				{Status: http.StatusNotFound, Description: "Unknown notification", SchemaRef: "Error"},
			},
		},
		{
			Method: http.MethodGet, Path: "/api/v1/notifications", Tag: tag, Secured: true,
			Summary: "List notifications sent to a recipient",
			Params: []openapi.Param{
				{Name: "recipient", In: "query", Required: true, Description: "Recipient email address"},
				{Name: "limit", In: "query", Type: "integer", Description: "Maximum results, default 100"},
			},
			Responses: []openapi.Response{{Status: http.StatusOK, Description: "Newest first"}},
		},
		{
			Method: http.MethodPost, Path: "/api/v1/notifications/:id/retry", Tag: tag, Secured: true,
			Summary: "Retry a failed notification",
			Responses: []openapi.Response{
				{Status: http.StatusOK, Description: "Delivered on retry", SchemaRef: "Notification"},
				{Status: http.StatusNotFound, Description: "Unknown notification", SchemaRef: "Error"},
				{Status: http.StatusConflict, Description: "Notification is not in failed status", SchemaRef: "Error"},
				{Status: http.StatusBadGateway, Description: "Delivery failed again", SchemaRef: "Error"},
			},
		},
	}
}

// NotificationSchema is the response component for a stored notification.
func NotificationSchema() map[string]interface{} {
	str := map[string]string{"type": "string"}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":          str,
			"type":        str,
			"recipient":   str,
			"subject":     str,
			"body":        str,
			"template_id": str,
			"status":      map[string]interface{}{"type": "string", "enum": []string{StatusPending, StatusSent, StatusFailed}},
			"attempts":    map[string]string{"type": "integer"},
			"created_at":  map[string]string{"type": "string", "format": "date-time"},
			"sent_at":     map[string]string{"type": "string", "format": "date-time"},
			"error":       str,
		},
	}
}

package treatment

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/curakidney/api/internal/platform/apperr"
	"github.com/curakidney/api/internal/platform/openapi"
	"github.com/curakidney/api/internal/platform/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the treatment routes on a guarded group. mw runs
// after the guard, before each handler.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	g := api.Group("/patient-treatments", mw...)
	g.GET("", h.ListTreatments)
	g.GET("/:id", h.GetTreatment)
	g.POST("/send-payment-status-update", h.SendPaymentStatusUpdate,
		validation.Body(PaymentStatusUpdateSchema))
}

func (h *Handler) ListTreatments(c echo.Context) error {
	items, err := h.svc.FindAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetTreatment(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return apperr.Validation(apperr.FieldViolation{
			Field: "id", Rule: "type", Message: "id must be an integer",
		})
	}
	t, err := h.svc.FindOne(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) SendPaymentStatusUpdate(c echo.Context) error {
	var req PaymentStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(apperr.FieldViolation{
			Field: "body", Rule: "type", Message: "request body does not match PaymentStatusUpdateRequest",
		})
	}
	if _, err := h.svc.SendPaymentStatusUpdate(c.Request().Context(), req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: PaymentStatusUpdateSent})
}

// Operations documents the treatment routes.
func (h *Handler) Operations() []openapi.Operation {
	const tag = "patient-treatments"
	body := PaymentStatusUpdateSchema
	return []openapi.Operation{
		{
			Method: http.MethodGet, Path: "/api/v1/patient-treatments", Tag: tag, Secured: true,
			Summary: "List patient treatments",
			Responses: []openapi.Response{
				{Status: http.StatusOK, Description: "All treatments ordered by id",
					Schema: map[string]interface{}{
						"type":  "array",
						"items": map[string]string{"$ref": "#/components/schemas/PatientTreatment"},
					}},
			},
		},
		{
			Method: http.MethodGet, Path: "/api/v1/patient-treatments/:id", Tag: tag, Secured: true,
			Summary: "Get a patient treatment",
			Params:  []openapi.Param{{Name: "id", In: "path", Required: true, Type: "integer", Description: "Treatment id"}},
			Responses: []openapi.Response{
				{Status: http.StatusOK, Description: "The treatment", SchemaRef: "PatientTreatment"},
				{Status: http.StatusNotFound, Description: "Unknown treatment", SchemaRef: "Error"},
			},
		},
		{
			Method: http.MethodPost, Path: "/api/v1/patient-treatments/send-payment-status-update", Tag: tag, Secured: true,
			Summary:     "Email a payment status update",
			Description: "Sends the payment-status-update email for the listed treatment codes and waits for delivery.",
			Body:        &body,
			Responses: []openapi.Response{
				{Status: http.StatusOK, Description: "Email sent", Schema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"message": map[string]string{"type": "string", "example": PaymentStatusUpdateSent},
					},
				}},
				{Status: http.StatusNotFound, Description: "Unknown treatment code", SchemaRef: "Error"},
				{Status: http.StatusBadGateway, Description: "Email delivery failed", SchemaRef: "Error"},
			},
		},
	}
}

// TreatmentSchema is the response component for a treatment record.
func TreatmentSchema() map[string]interface{} {
	str := map[string]string{"type": "string"}
	ts := map[string]string{"type": "string", "format": "date-time"}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":             map[string]string{"type": "integer"},
			"treatment_code": str,
			"patient_name":   str,
			"patient_email":  map[string]string{"type": "string", "format": "email"},
			"treatment_type": str,
			"status":         str,
			"payment_status": str,
			"amount":         map[string]string{"type": "number"},
			"scheduled_at":   ts,
			"created_at":     ts,
			"updated_at":     ts,
		},
	}
}

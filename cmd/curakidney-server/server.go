package main

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/curakidney/api/internal/config"
	"github.com/curakidney/api/internal/domain/account"
	"github.com/curakidney/api/internal/domain/treatment"
	"github.com/curakidney/api/internal/platform/apperr"
	"github.com/curakidney/api/internal/platform/auth"
	"github.com/curakidney/api/internal/platform/db"
	"github.com/curakidney/api/internal/platform/middleware"
	"github.com/curakidney/api/internal/platform/notification"
	"github.com/curakidney/api/internal/platform/openapi"
)

// serverDeps holds everything newServer wires together. pool is nil when the
// server runs on in-memory repositories.
type serverDeps struct {
	cfg           *config.Config
	logger        zerolog.Logger
	jwt           auth.JWTConfig
	pool          *pgxpool.Pool
	users         account.UserRepository
	treatments    treatment.Repository
	notifications *notification.Manager
	limiter       middleware.Limiter
}

func newServer(d serverDeps) *echo.Echo {
	cfg, logger := d.cfg, d.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// Rate limit keys come from the socket peer; forwarding headers are client-controlled.
	e.IPExtractor = echo.ExtractIPDirect()
	e.HTTPErrorHandler = apperr.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders: []string{
			middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After",
		},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RateLimit(d.limiter, logger))

	// API routes
	apiV1 := e.Group("/api/v1",
		middleware.SecurityHeaders(),
		middleware.RequestTimeout(cfg.RequestTimeout),
		auth.JWTMiddleware(d.jwt),
	)
	apiV1.GET("", healthcheck)
	apiV1.GET("/", healthcheck)

	audit := middleware.Audit(logger)

	accountSvc := account.NewService(d.users, d.jwt, cfg.BcryptCost, d.notifications, logger)
	accountHandler := account.NewHandler(accountSvc)
	accountHandler.RegisterRoutes(apiV1)

	treatmentSvc := treatment.NewService(d.treatments, d.notifications)
	treatmentHandler := treatment.NewHandler(treatmentSvc)
	treatmentHandler.RegisterRoutes(apiV1, audit)

	notificationHandler := notification.NewHandler(d.notifications)
	notificationHandler.RegisterRoutes(apiV1, audit)

	// DB health check endpoint
	if d.pool != nil {
		e.GET("/health/db", db.HealthHandler(d.pool))
	}

	// API documentation
	docs := openapi.NewGenerator(openapi.Info{
		Title:       "CuraKidney API",
		Description: "The CuraKidney API documentation",
		Version:     "1.0",
	})
	docs.Add(healthcheckOperation())
	docs.Add(accountHandler.Operations()...)
	docs.Add(treatmentHandler.Operations()...)
	docs.Add(notificationHandler.Operations()...)
	docs.AddSchema("User", account.UserSchema())
	docs.AddSchema("TokenResponse", account.TokenResponseSchema())
	docs.AddSchema("PatientTreatment", treatment.TreatmentSchema())
	docs.AddSchema("Notification", notification.NotificationSchema())
	docs.RegisterRoutes(e, auth.DocsBasicAuth(cfg.SwaggerUser, cfg.SwaggerPassword, "CuraKidney API"))

	return e
}

type healthResponse struct {
	IsOnline bool `json:"is_online"`
}

func healthcheck(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{IsOnline: true})
}

func healthcheckOperation() openapi.Operation {
	return openapi.Operation{
		Method: http.MethodGet, Path: "/api/v1", Tag: "health",
		Summary: "Report that the API is online",
		Responses: []openapi.Response{{Status: http.StatusOK, Description: "Online", Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"is_online": map[string]interface{}{"type": "boolean", "example": true},
			},
		}}},
	}
}
